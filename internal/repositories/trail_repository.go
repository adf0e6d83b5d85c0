package repositories

import (
	"context"
	"time"

	"github.com/timiebi/alertos/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// TrailRepository defines the interface for location trail operations
type TrailRepository interface {
	Append(ctx context.Context, point *models.TrailPoint) error
	GetByAlertID(ctx context.Context, alertID string, limit int64) ([]models.TrailPoint, error)
	DeleteByAlertID(ctx context.Context, alertID string) error
}

// MongoTrailRepository implements TrailRepository for MongoDB
type MongoTrailRepository struct {
	collection *mongo.Collection
}

// NewMongoTrailRepository creates a new MongoTrailRepository
func NewMongoTrailRepository(db *mongo.Database) *MongoTrailRepository {
	return &MongoTrailRepository{collection: db.Collection("trails")}
}

// Append records one breadcrumb for an active alert.
func (r *MongoTrailRepository) Append(ctx context.Context, point *models.TrailPoint) error {
	point.ID = primitive.NewObjectID()
	if point.RecordedAt.IsZero() {
		point.RecordedAt = time.Now()
	}
	_, err := r.collection.InsertOne(ctx, point)
	return err
}

// GetByAlertID retrieves an alert's trail ordered oldest first.
func (r *MongoTrailRepository) GetByAlertID(ctx context.Context, alertID string, limit int64) ([]models.TrailPoint, error) {
	findOptions := options.Find().SetLimit(limit).SetSort(bson.D{{Key: "recorded_at", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"alert_id": alertID}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var points []models.TrailPoint
	if err = cursor.All(ctx, &points); err != nil {
		return nil, err
	}
	return points, nil
}

// DeleteByAlertID drops the trail once it is no longer needed.
func (r *MongoTrailRepository) DeleteByAlertID(ctx context.Context, alertID string) error {
	_, err := r.collection.DeleteMany(ctx, bson.M{"alert_id": alertID})
	return err
}
