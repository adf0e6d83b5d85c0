package presence

import (
	"github.com/timiebi/alertos/backend/internal/geo"
	"github.com/timiebi/alertos/backend/internal/models"
)

// Phase is the session's signalling state. Exactly one phase holds at a
// time, so "alerting" and "ghosting" can never both be true.
type Phase int

const (
	// Idle means no signal document is owned by this session's user.
	Idle Phase = iota
	// Alerting means a public emergency signal is being broadcast.
	Alerting
	// Ghosting means a roster-restricted safe-walk signal is being shared.
	Ghosting
)

func (p Phase) String() string {
	switch p {
	case Alerting:
		return "alerting"
	case Ghosting:
		return "ghosting"
	default:
		return "idle"
	}
}

// Mode selects which dashboard surface the client is on. It is orthogonal
// to Phase: mode is a pure UI toggle, phase is derived from the store.
type Mode string

const (
	// ModeUniversal is the public emergency surface; proximity alerts fire here.
	ModeUniversal Mode = "universal"
	// ModeGhost is the roster-only safe-walk surface.
	ModeGhost Mode = "ghost"
)

// State is the reconciler-owned view of "what am I signalling and where".
// It is rebuilt from every remote snapshot and is never the source of
// truth; the store is.
type State struct {
	Phase     Phase            `json:"-"`
	Mode      Mode             `json:"mode"`
	AlertID   string           `json:"alert_id,omitempty"`
	AlertType models.AlertType `json:"alert_type,omitempty"`
	Location  *geo.Coordinate  `json:"location,omitempty"`
}

// Active reports whether the user owns a live signal document.
func (s *State) Active() bool {
	return s.Phase != Idle
}

// PhaseName returns the wire name of the current phase; clients key their
// HUD off this string.
func (s State) PhaseName() string {
	return s.Phase.String()
}
