package models

import "time"

// Notification is a delivered proximity alert, persisted for history (PostgreSQL).
type Notification struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	Recipient  string    `json:"recipient" gorm:"size:120;index"` // recipient identity (email)
	AlertID    string    `json:"alert_id" gorm:"size:40"`
	AlertType  string    `json:"alert_type" gorm:"size:20"`
	ActorName  string    `json:"actor_name"`
	DistanceKm float64   `json:"distance_km"`
	Message    string    `json:"message"`
	IsRead     bool      `json:"is_read" gorm:"default:false;index"`
	CreatedAt  time.Time `json:"created_at" gorm:"index"`
}
