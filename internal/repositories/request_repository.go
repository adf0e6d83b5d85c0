package repositories

import (
	"context"
	"errors"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/timiebi/alertos/backend/internal/models"
)

const requestsCollection = "friend_requests"

// ErrRequestNotFound is returned when a friend request does not exist
var ErrRequestNotFound = errors.New("friend request not found")

// RequestRepository defines the interface for friend request operations
type RequestRepository interface {
	Create(ctx context.Context, req *models.FriendRequest) (string, error)
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*models.FriendRequest, error)
	ListIncoming(ctx context.Context, toUID string) ([]models.FriendRequest, error)
	Exists(ctx context.Context, fromUID, toUID string) (bool, error)
	Accept(ctx context.Context, req *models.FriendRequest) error
}

// FirestoreRequestRepository implements RequestRepository over the
// "friend_requests" collection.
type FirestoreRequestRepository struct {
	client *firestore.Client
}

// NewFirestoreRequestRepository creates a new FirestoreRequestRepository
func NewFirestoreRequestRepository(client *firestore.Client) *FirestoreRequestRepository {
	return &FirestoreRequestRepository{client: client}
}

// Create stores a new pending request and returns its id.
func (r *FirestoreRequestRepository) Create(ctx context.Context, req *models.FriendRequest) (string, error) {
	ref, _, err := r.client.Collection(requestsCollection).Add(ctx, req)
	if err != nil {
		return "", err
	}
	return ref.ID, nil
}

// Delete removes a request, used for rejections.
func (r *FirestoreRequestRepository) Delete(ctx context.Context, id string) error {
	_, err := r.client.Collection(requestsCollection).Doc(id).Delete(ctx)
	return err
}

// Get retrieves a single request by id.
func (r *FirestoreRequestRepository) Get(ctx context.Context, id string) (*models.FriendRequest, error) {
	doc, err := r.client.Collection(requestsCollection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}
	var req models.FriendRequest
	if err := doc.DataTo(&req); err != nil {
		return nil, err
	}
	req.ID = doc.Ref.ID
	return &req, nil
}

// ListIncoming retrieves the pending requests addressed to a user.
func (r *FirestoreRequestRepository) ListIncoming(ctx context.Context, toUID string) ([]models.FriendRequest, error) {
	docs, err := r.client.Collection(requestsCollection).
		Where("toUid", "==", toUID).
		Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}
	requests := make([]models.FriendRequest, 0, len(docs))
	for _, doc := range docs {
		var req models.FriendRequest
		if err := doc.DataTo(&req); err != nil {
			continue
		}
		req.ID = doc.Ref.ID
		requests = append(requests, req)
	}
	return requests, nil
}

// Exists reports whether a pending request from one user to another is
// already on file, so duplicates can be refused before writing.
func (r *FirestoreRequestRepository) Exists(ctx context.Context, fromUID, toUID string) (bool, error) {
	docs, err := r.client.Collection(requestsCollection).
		Where("fromUid", "==", fromUID).
		Where("toUid", "==", toUID).
		Limit(1).
		Documents(ctx).GetAll()
	if err != nil {
		return false, err
	}
	return len(docs) > 0, nil
}

// Accept links both users' rosters and removes the request in one batch, so
// a partial failure can never leave a one-sided roster link.
func (r *FirestoreRequestRepository) Accept(ctx context.Context, req *models.FriendRequest) error {
	batch := r.client.Batch()
	batch.Update(r.client.Collection(usersCollection).Doc(req.ToUID), []firestore.Update{
		{Path: "roster", Value: firestore.ArrayUnion(req.FromUID)},
	})
	batch.Update(r.client.Collection(usersCollection).Doc(req.FromUID), []firestore.Update{
		{Path: "roster", Value: firestore.ArrayUnion(req.ToUID)},
	})
	batch.Delete(r.client.Collection(requestsCollection).Doc(req.ID))
	_, err := batch.Commit(ctx)
	return err
}
