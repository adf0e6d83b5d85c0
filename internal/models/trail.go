package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TrailPoint is one breadcrumb recorded while a signal is active (MongoDB).
// Points are appended on every location tick and read back as the safe-walk
// review trail for an alert.
type TrailPoint struct {
	ID         primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	AlertID    string             `json:"alert_id" bson:"alert_id"`
	User       string             `json:"user" bson:"user"`
	Lat        float64            `json:"lat" bson:"lat"`
	Lng        float64            `json:"lng" bson:"lng"`
	RecordedAt time.Time          `json:"recorded_at" bson:"recorded_at"`
}
