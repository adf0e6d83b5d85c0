package models

import "time"

// FriendRequest is a pending roster invitation in the Firestore
// "friend_requests" collection. Accepting one links both rosters and
// deletes the request in a single batch.
type FriendRequest struct {
	ID        string    `json:"id" firestore:"-"`
	FromUID   string    `json:"from_uid" firestore:"fromUid"`
	FromName  string    `json:"from_name" firestore:"fromName"`
	FromEmail string    `json:"from_email" firestore:"fromEmail"`
	ToUID     string    `json:"to_uid" firestore:"toUid"`
	ToName    string    `json:"to_name" firestore:"toName"`
	CreatedAt time.Time `json:"created_at" firestore:"createdAt,serverTimestamp"`
}

// SendRequestRequest asks to invite another user, identified by email.
type SendRequestRequest struct {
	Email string `json:"email" validate:"required,email"`
}
