package repositories

import (
	"context"
	"errors"
	"fmt"
	"log"

	"cloud.google.com/go/firestore"
	"github.com/timiebi/alertos/backend/internal/models"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const alertsCollection = "alerts"

// ErrAlertNotFound is returned when an alert document does not exist.
var ErrAlertNotFound = errors.New("alert not found")

// AlertRepository defines the interface for alert document operations
type AlertRepository interface {
	Replace(ctx context.Context, alert *models.Alert) (string, error)
	UpdateLocation(ctx context.Context, id string, lat, lng float64) error
	Delete(ctx context.Context, id string) error
	GetActive(ctx context.Context) ([]models.Alert, error)
	FindByUser(ctx context.Context, email string) ([]models.Alert, error)
	Subscribe(ctx context.Context) (<-chan []models.Alert, error)
}

// FirestoreAlertRepository implements AlertRepository over the Firestore
// "alerts" collection.
type FirestoreAlertRepository struct {
	client *firestore.Client
}

// NewFirestoreAlertRepository creates a new FirestoreAlertRepository
func NewFirestoreAlertRepository(client *firestore.Client) *FirestoreAlertRepository {
	return &FirestoreAlertRepository{client: client}
}

// Replace atomically deletes any existing alerts owned by the same user and
// creates the new one. Running both inside a transaction keeps the
// one-active-alert-per-user invariant even under a rapid double start.
func (r *FirestoreAlertRepository) Replace(ctx context.Context, alert *models.Alert) (string, error) {
	ref := r.client.Collection(alertsCollection).NewDoc()

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		existing, err := tx.Documents(r.client.Collection(alertsCollection).
			Where("user", "==", alert.User)).GetAll()
		if err != nil {
			return err
		}
		for _, doc := range existing {
			if err := tx.Delete(doc.Ref); err != nil {
				return err
			}
		}
		return tx.Create(ref, alert)
	})
	if err != nil {
		return "", fmt.Errorf("failed to replace alert for %s: %w", alert.User, err)
	}
	return ref.ID, nil
}

// UpdateLocation overwrites only the lat/lng fields of an active alert.
// Location ticks never recreate the document.
func (r *FirestoreAlertRepository) UpdateLocation(ctx context.Context, id string, lat, lng float64) error {
	_, err := r.client.Collection(alertsCollection).Doc(id).Update(ctx, []firestore.Update{
		{Path: "lat", Value: lat},
		{Path: "lng", Value: lng},
	})
	if status.Code(err) == codes.NotFound {
		return ErrAlertNotFound
	}
	return err
}

// Delete removes an alert document.
func (r *FirestoreAlertRepository) Delete(ctx context.Context, id string) error {
	_, err := r.client.Collection(alertsCollection).Doc(id).Delete(ctx)
	return err
}

// GetActive retrieves all live alerts ordered by creation time.
func (r *FirestoreAlertRepository) GetActive(ctx context.Context) ([]models.Alert, error) {
	docs, err := r.client.Collection(alertsCollection).
		OrderBy("createdAt", firestore.Asc).
		Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}
	return decodeAlerts(docs), nil
}

// FindByUser retrieves the alerts owned by an identity. The invariant says
// at most one, but stale duplicates from a crashed client may linger.
func (r *FirestoreAlertRepository) FindByUser(ctx context.Context, email string) ([]models.Alert, error) {
	docs, err := r.client.Collection(alertsCollection).
		Where("user", "==", email).
		Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}
	return decodeAlerts(docs), nil
}

// Subscribe opens a live query over the alerts collection and delivers the
// full visible set on every snapshot, in subscription order. The channel is
// closed when ctx is cancelled or the subscription fails.
func (r *FirestoreAlertRepository) Subscribe(ctx context.Context) (<-chan []models.Alert, error) {
	it := r.client.Collection(alertsCollection).
		OrderBy("createdAt", firestore.Asc).
		Snapshots(ctx)

	out := make(chan []models.Alert, 1)
	go func() {
		defer close(out)
		defer it.Stop()
		for {
			snap, err := it.Next()
			if err != nil {
				if status.Code(err) != codes.Canceled {
					log.Printf("alerts subscription terminated: %v", err)
				}
				return
			}
			docs, err := snap.Documents.GetAll()
			if err != nil {
				log.Printf("alerts snapshot read failed: %v", err)
				continue
			}
			select {
			case out <- decodeAlerts(docs):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func decodeAlerts(docs []*firestore.DocumentSnapshot) []models.Alert {
	alerts := make([]models.Alert, 0, len(docs))
	for _, doc := range docs {
		var a models.Alert
		if err := doc.DataTo(&a); err != nil {
			log.Printf("skipping malformed alert %s: %v", doc.Ref.ID, err)
			continue
		}
		a.ID = doc.Ref.ID
		alerts = append(alerts, a)
	}
	return alerts
}
