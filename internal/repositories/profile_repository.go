package repositories

import (
	"context"
	"errors"
	"strings"

	"cloud.google.com/go/firestore"
	"github.com/timiebi/alertos/backend/internal/models"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const usersCollection = "users"

// ErrProfileNotFound is returned when a profile document does not exist.
var ErrProfileNotFound = errors.New("profile not found")

// ProfileRepository defines the interface for profile document operations
type ProfileRepository interface {
	Get(ctx context.Context, uid string) (*models.Profile, error)
	GetByEmail(ctx context.Context, email string) (*models.Profile, error)
	GetMany(ctx context.Context, uids []string) ([]models.Profile, error)
	Set(ctx context.Context, profile *models.Profile) error
	AddToRoster(ctx context.Context, uid, memberUID string) error
	RemoveFromRoster(ctx context.Context, uid, memberUID string) error
}

// FirestoreProfileRepository implements ProfileRepository over the Firestore
// "users" collection.
type FirestoreProfileRepository struct {
	client *firestore.Client
}

// NewFirestoreProfileRepository creates a new FirestoreProfileRepository
func NewFirestoreProfileRepository(client *firestore.Client) *FirestoreProfileRepository {
	return &FirestoreProfileRepository{client: client}
}

// Get retrieves a profile by Firebase UID.
func (r *FirestoreProfileRepository) Get(ctx context.Context, uid string) (*models.Profile, error) {
	doc, err := r.client.Collection(usersCollection).Doc(uid).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	var p models.Profile
	if err := doc.DataTo(&p); err != nil {
		return nil, err
	}
	p.UID = doc.Ref.ID
	return &p, nil
}

// GetByEmail retrieves a profile by its lowercased email field.
func (r *FirestoreProfileRepository) GetByEmail(ctx context.Context, email string) (*models.Profile, error) {
	docs, err := r.client.Collection(usersCollection).
		Where("email", "==", strings.ToLower(email)).
		Limit(1).
		Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrProfileNotFound
	}
	var p models.Profile
	if err := docs[0].DataTo(&p); err != nil {
		return nil, err
	}
	p.UID = docs[0].Ref.ID
	return &p, nil
}

// GetMany retrieves the profiles for a set of UIDs, skipping missing ones.
func (r *FirestoreProfileRepository) GetMany(ctx context.Context, uids []string) ([]models.Profile, error) {
	if len(uids) == 0 {
		return nil, nil
	}
	refs := make([]*firestore.DocumentRef, len(uids))
	for i, uid := range uids {
		refs[i] = r.client.Collection(usersCollection).Doc(uid)
	}
	docs, err := r.client.GetAll(ctx, refs)
	if err != nil {
		return nil, err
	}
	profiles := make([]models.Profile, 0, len(docs))
	for _, doc := range docs {
		if !doc.Exists() {
			continue
		}
		var p models.Profile
		if err := doc.DataTo(&p); err != nil {
			continue
		}
		p.UID = doc.Ref.ID
		profiles = append(profiles, p)
	}
	return profiles, nil
}

// Set merges the profile fields into the user document, creating it if
// needed. The roster is never touched here; roster edits go through
// AddToRoster/RemoveFromRoster so concurrent accepts cannot clobber it.
func (r *FirestoreProfileRepository) Set(ctx context.Context, profile *models.Profile) error {
	data := map[string]interface{}{
		"uid":      profile.UID,
		"email":    strings.ToLower(profile.Email),
		"fullName": profile.FullName,
	}
	if profile.PhoneNumber != "" {
		data["phoneNumber"] = profile.PhoneNumber
	}
	if profile.BloodType != "" {
		data["bloodType"] = profile.BloodType
	}
	if profile.EmergencyContact != "" {
		data["emergencyContact"] = profile.EmergencyContact
	}
	_, err := r.client.Collection(usersCollection).Doc(profile.UID).Set(ctx, data, firestore.MergeAll)
	return err
}

// AddToRoster appends a member UID to a user's roster.
func (r *FirestoreProfileRepository) AddToRoster(ctx context.Context, uid, memberUID string) error {
	_, err := r.client.Collection(usersCollection).Doc(uid).Update(ctx, []firestore.Update{
		{Path: "roster", Value: firestore.ArrayUnion(memberUID)},
	})
	return err
}

// RemoveFromRoster removes a member UID from a user's roster.
func (r *FirestoreProfileRepository) RemoveFromRoster(ctx context.Context, uid, memberUID string) error {
	_, err := r.client.Collection(usersCollection).Doc(uid).Update(ctx, []firestore.Update{
		{Path: "roster", Value: firestore.ArrayRemove(memberUID)},
	})
	return err
}
