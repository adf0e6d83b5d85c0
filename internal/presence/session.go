package presence

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/timiebi/alertos/backend/internal/geo"
	"github.com/timiebi/alertos/backend/internal/models"
)

const (
	// ProximityRadiusKm is how close a fresh alert must be to raise the siren.
	ProximityRadiusKm = 2.0
	// RecencyWindow is how old a newly observed alert may be and still count as live.
	RecencyWindow = 120 * time.Second
	// ToastTTL is how long an ephemeral banner stays up before auto-clearing.
	ToastTTL = 5 * time.Second
)

var (
	// ErrRosterEmpty is returned when ghost mode is started with no approved contacts.
	ErrRosterEmpty = errors.New("roster is empty")
	// ErrNoLocation is returned when a signal is started before the first GPS fix.
	ErrNoLocation = errors.New("no location fix yet")
	// ErrSignalActive is returned when a mode switch is refused mid-signal.
	ErrSignalActive = errors.New("stop the active signal first")
)

// Notifier receives the side effects the reconciler raises toward the device.
// Implementations are fire-and-forget; delivery failures are swallowed.
type Notifier interface {
	Notify(n models.Notification)
	Siren()
	Toast(message string)
	ClearToast()
	StateChanged(st State)
	Alerts(visible []models.Alert)
}

// AlertWriter is the slice of the alert store the session drives.
type AlertWriter interface {
	Replace(ctx context.Context, alert *models.Alert) (string, error)
	UpdateLocation(ctx context.Context, id string, lat, lng float64) error
	Delete(ctx context.Context, id string) error
}

// TrailRecorder persists breadcrumbs for active signals. Failures are
// logged, never surfaced.
type TrailRecorder interface {
	Append(ctx context.Context, point *models.TrailPoint) error
}

// Viewer identifies the authenticated user driving a session, with the
// profile snapshot denormalized into new alert documents.
type Viewer struct {
	UID      string
	Email    string
	FullName string
	Phone    string
	Roster   []string
}

// Session is one user's presence & alert reconciler. It consumes the device
// location stream and the live alerts subscription, derives the local
// signalling state, and raises siren/notification side effects for nearby
// fresh alerts. All state is confined to the Run goroutine; commands are
// funneled through a channel, so event-arrival order is the only ordering.
type Session struct {
	viewer   Viewer
	alerts   AlertWriter
	trail    TrailRecorder
	notifier Notifier

	state  State
	seen   map[string]bool // alert ids present in the previous snapshot
	primed bool            // at least one snapshot processed

	commands chan func(context.Context)
	toastC   <-chan time.Time

	now   func() time.Time
	after func(time.Duration) <-chan time.Time
}

// NewSession creates a session for the given viewer. The trail recorder may
// be nil when breadcrumb persistence is not wanted.
func NewSession(viewer Viewer, alerts AlertWriter, trail TrailRecorder, notifier Notifier) *Session {
	return &Session{
		viewer:   viewer,
		alerts:   alerts,
		trail:    trail,
		notifier: notifier,
		state:    State{Mode: ModeUniversal},
		seen:     map[string]bool{},
		commands: make(chan func(context.Context)),
		now:      time.Now,
		after:    time.After,
	}
}

// Run drives the event loop until ctx is cancelled or both input channels
// close. Location updates, remote snapshots and commands are all handled on
// this one goroutine; nothing here blocks on remote completions beyond the
// individual store call.
func (s *Session) Run(ctx context.Context, locations <-chan geo.Coordinate, snapshots <-chan []models.Alert) {
	for {
		select {
		case <-ctx.Done():
			return
		case coord, ok := <-locations:
			if !ok {
				locations = nil
				continue
			}
			s.handleLocation(ctx, coord)
		case snap, ok := <-snapshots:
			if !ok {
				snapshots = nil
				continue
			}
			s.handleSnapshot(ctx, snap)
		case cmd := <-s.commands:
			cmd(ctx)
		case <-s.toastC:
			s.toastC = nil
			s.notifier.ClearToast()
		}
		if locations == nil && snapshots == nil {
			return
		}
	}
}

// StartSignal begins broadcasting a signal of the given type from the
// current location, replacing any prior record owned by this user. For
// ghost signals the viewer's roster becomes the visibility set; an empty
// roster refuses the start without writing anything.
func (s *Session) StartSignal(ctx context.Context, typ models.AlertType) (string, error) {
	type result struct {
		id  string
		err error
	}
	ch := make(chan result, 1)
	if err := s.do(ctx, func(loopCtx context.Context) {
		id, err := s.startSignal(loopCtx, typ)
		ch <- result{id, err}
	}); err != nil {
		return "", err
	}
	select {
	case r := <-ch:
		return r.id, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// StopSignal deletes the active signal document. It is a no-op, not an
// error, when nothing is active.
func (s *Session) StopSignal(ctx context.Context) error {
	ch := make(chan error, 1)
	if err := s.do(ctx, func(loopCtx context.Context) {
		ch <- s.stopSignal(loopCtx)
	}); err != nil {
		return err
	}
	select {
	case err := <-ch:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SetMode switches between the universal and ghost surfaces. Refused while
// a signal is active; the caller must stop first.
func (s *Session) SetMode(ctx context.Context, mode Mode) error {
	ch := make(chan error, 1)
	if err := s.do(ctx, func(context.Context) {
		ch <- s.setMode(mode)
	}); err != nil {
		return err
	}
	select {
	case err := <-ch:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CurrentState returns a copy of the session state as of the latest
// processed event.
func (s *Session) CurrentState(ctx context.Context) (State, error) {
	ch := make(chan State, 1)
	if err := s.do(ctx, func(context.Context) {
		ch <- s.state
	}); err != nil {
		return State{}, err
	}
	select {
	case st := <-ch:
		return st, nil
	case <-ctx.Done():
		return State{}, ctx.Err()
	}
}

func (s *Session) do(ctx context.Context, fn func(context.Context)) error {
	select {
	case s.commands <- fn:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// handleLocation overwrites the current location and, while a signal is
// active, routes a lat/lng-only update to the owned document. Store
// failures are logged and dropped; the next tick supersedes them.
func (s *Session) handleLocation(ctx context.Context, coord geo.Coordinate) {
	s.state.Location = &coord
	if !s.state.Active() {
		return
	}
	if err := s.alerts.UpdateLocation(ctx, s.state.AlertID, coord.Lat, coord.Lng); err != nil {
		log.Printf("presence: location update for alert %s failed: %v", s.state.AlertID, err)
	}
	if s.trail != nil {
		point := &models.TrailPoint{
			AlertID:    s.state.AlertID,
			User:       strings.ToLower(s.viewer.Email),
			Lat:        coord.Lat,
			Lng:        coord.Lng,
			RecordedAt: s.now(),
		}
		if err := s.trail.Append(ctx, point); err != nil {
			log.Printf("presence: trail append for alert %s failed: %v", s.state.AlertID, err)
		}
	}
}

// handleSnapshot reconciles local state against the full remote snapshot,
// then scans the added deltas for nearby fresh alerts.
func (s *Session) handleSnapshot(ctx context.Context, alerts []models.Alert) {
	s.reconcileSelf(alerts)
	s.scanProximity(alerts)
	s.notifier.Alerts(s.visibleAlerts(alerts))

	seen := make(map[string]bool, len(alerts))
	for _, a := range alerts {
		seen[a.ID] = true
	}
	s.seen = seen
	s.primed = true
}

// reconcileSelf derives the signalling phase from the record owned by this
// viewer, if any. The remote store always wins: a record deleted or created
// from another device flips the local state on the next snapshot.
func (s *Session) reconcileSelf(alerts []models.Alert) {
	before := s.state

	var mine *models.Alert
	for i := range alerts {
		if alerts[i].OwnedBy(s.viewer.Email) {
			mine = &alerts[i]
			break
		}
	}
	switch {
	case mine == nil:
		s.state.Phase, s.state.AlertID, s.state.AlertType = Idle, "", ""
	case mine.Type == models.AlertTypeGhost:
		s.state.Phase, s.state.AlertID, s.state.AlertType = Ghosting, mine.ID, mine.Type
	default:
		s.state.Phase, s.state.AlertID, s.state.AlertType = Alerting, mine.ID, mine.Type
	}

	if before.Phase != s.state.Phase || before.AlertID != s.state.AlertID {
		s.notifier.StateChanged(s.state)
	}
}

// scanProximity raises siren/notification side effects for records that are
// new relative to the previous snapshot. Skipped entirely until the first
// snapshot has been processed (records that predate the subscription are
// not news), while on the ghost surface, and before the first GPS fix.
func (s *Session) scanProximity(alerts []models.Alert) {
	if !s.primed || s.state.Mode != ModeUniversal || s.state.Location == nil {
		return
	}
	for _, a := range alerts {
		if s.seen[a.ID] {
			continue
		}
		if a.OwnedBy(s.viewer.Email) || a.Type == models.AlertTypeGhost {
			continue
		}
		dist := geo.Distance(*s.state.Location, geo.Coordinate{Lat: a.Lat, Lng: a.Lng})
		if dist > ProximityRadiusKm {
			continue
		}
		if s.now().Sub(a.CreatedAt) >= RecencyWindow {
			continue
		}
		s.raise(a, dist)
	}
}

func (s *Session) raise(a models.Alert, dist float64) {
	name := a.UserName
	if name == "" {
		name = a.User
	}
	msg := fmt.Sprintf("%s ALERT %.1fkm AWAY - %s", strings.ToUpper(string(a.Type)), dist, name)

	s.notifier.Siren()
	s.notifier.Notify(models.Notification{
		Recipient:  strings.ToLower(s.viewer.Email),
		AlertID:    a.ID,
		AlertType:  string(a.Type),
		ActorName:  name,
		DistanceKm: geo.RoundKm(dist),
		Message:    msg,
		CreatedAt:  s.now(),
	})
	s.toast(msg)
}

// visibleAlerts filters the snapshot down to the markers the current
// surface renders: public alerts on the universal surface, roster-shared
// ghosts on the ghost surface. The viewer's own record is never included.
func (s *Session) visibleAlerts(alerts []models.Alert) []models.Alert {
	visible := make([]models.Alert, 0, len(alerts))
	for _, a := range alerts {
		if a.OwnedBy(s.viewer.Email) {
			continue
		}
		switch s.state.Mode {
		case ModeGhost:
			if a.Type == models.AlertTypeGhost && a.VisibleToUID(s.viewer.UID) {
				visible = append(visible, a)
			}
		default:
			if a.Type != models.AlertTypeGhost {
				visible = append(visible, a)
			}
		}
	}
	return visible
}

func (s *Session) startSignal(ctx context.Context, typ models.AlertType) (string, error) {
	if typ == models.AlertTypeGhost && len(s.viewer.Roster) == 0 {
		return "", ErrRosterEmpty
	}
	if s.state.Location == nil {
		return "", ErrNoLocation
	}

	alert := &models.Alert{
		User:      strings.ToLower(s.viewer.Email),
		UserName:  s.viewer.FullName,
		UserPhone: s.viewer.Phone,
		Type:      typ,
		Lat:       s.state.Location.Lat,
		Lng:       s.state.Location.Lng,
	}
	if typ == models.AlertTypeGhost {
		alert.VisibleTo = append([]string(nil), s.viewer.Roster...)
	}

	id, err := s.alerts.Replace(ctx, alert)
	if err != nil {
		return "", err
	}

	// Cache immediately so the next location tick targets the new document
	// instead of waiting for the snapshot to echo it back.
	if typ == models.AlertTypeGhost {
		s.state.Phase = Ghosting
	} else {
		s.state.Phase = Alerting
	}
	s.state.AlertID, s.state.AlertType = id, typ
	s.notifier.StateChanged(s.state)
	s.toast("SIGNAL TRANSMITTED")
	return id, nil
}

func (s *Session) stopSignal(ctx context.Context) error {
	if !s.state.Active() {
		return nil
	}
	if err := s.alerts.Delete(ctx, s.state.AlertID); err != nil {
		return err
	}
	s.state.Phase, s.state.AlertID, s.state.AlertType = Idle, "", ""
	s.notifier.StateChanged(s.state)
	s.toast("SIGNAL CANCELLED")
	return nil
}

func (s *Session) setMode(mode Mode) error {
	if s.state.Active() {
		return ErrSignalActive
	}
	if mode != ModeUniversal && mode != ModeGhost {
		return fmt.Errorf("unknown mode %q", mode)
	}
	s.state.Mode = mode
	s.notifier.StateChanged(s.state)
	return nil
}

func (s *Session) toast(msg string) {
	s.notifier.Toast(msg)
	s.toastC = s.after(ToastTTL)
}
