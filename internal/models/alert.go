package models

import (
	"strings"
	"time"
)

// AlertType tags an active signal document.
type AlertType string

const (
	AlertTypeSecurity AlertType = "security"
	AlertTypeMedical  AlertType = "medical"
	AlertTypeFire     AlertType = "fire"
	AlertTypeAccident AlertType = "accident"
	AlertTypeGhost    AlertType = "ghost"
)

// Valid reports whether t is one of the known signal types.
func (t AlertType) Valid() bool {
	switch t {
	case AlertTypeSecurity, AlertTypeMedical, AlertTypeFire, AlertTypeAccident, AlertTypeGhost:
		return true
	}
	return false
}

// Alert is one live document in the Firestore "alerts" collection: a single
// user's active emergency broadcast or safe-walk signal. At most one alert
// exists per user identity; starting a new signal replaces any prior one.
type Alert struct {
	ID        string    `json:"id" firestore:"-"`
	User      string    `json:"user" firestore:"user"`
	UserName  string    `json:"user_name" firestore:"userName"`
	UserPhone string    `json:"user_phone" firestore:"userPhone"`
	Type      AlertType `json:"type" firestore:"type"`
	Lat       float64   `json:"lat" firestore:"lat"`
	Lng       float64   `json:"lng" firestore:"lng"`
	VisibleTo []string  `json:"visible_to,omitempty" firestore:"visibleTo,omitempty"`
	CreatedAt time.Time `json:"created_at" firestore:"createdAt,serverTimestamp"`
}

// OwnedBy reports whether the alert belongs to the given identity.
// Identity strings are emails; the comparison is case-insensitive.
func (a *Alert) OwnedBy(email string) bool {
	return strings.EqualFold(a.User, email)
}

// VisibleToUID reports whether a viewer may render this alert's marker.
// Non-ghost alerts are public; ghost alerts are restricted to the roster
// snapshot captured in VisibleTo at creation time.
func (a *Alert) VisibleToUID(uid string) bool {
	if a.Type != AlertTypeGhost {
		return true
	}
	for _, v := range a.VisibleTo {
		if v == uid {
			return true
		}
	}
	return false
}

// StartSignalRequest is the REST payload for starting a signal.
type StartSignalRequest struct {
	Type AlertType `json:"type" validate:"required,oneof=security medical fire accident ghost"`
	Lat  float64   `json:"lat" validate:"required,min=-90,max=90"`
	Lng  float64   `json:"lng" validate:"required,min=-180,max=180"`
}
