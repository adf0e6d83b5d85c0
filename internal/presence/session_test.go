package presence

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timiebi/alertos/backend/internal/geo"
	"github.com/timiebi/alertos/backend/internal/models"
)

type locationCall struct {
	id       string
	lat, lng float64
}

// fakeAlertWriter records store calls and hands out sequential ids.
type fakeAlertWriter struct {
	replaced     []models.Alert
	updates      []locationCall
	deleted      []string
	nextID       int
	replaceErr   error
	updateErr    error
	activeByUser map[string]models.Alert
}

func newFakeAlertWriter() *fakeAlertWriter {
	return &fakeAlertWriter{activeByUser: map[string]models.Alert{}}
}

func (f *fakeAlertWriter) Replace(_ context.Context, alert *models.Alert) (string, error) {
	if f.replaceErr != nil {
		return "", f.replaceErr
	}
	f.nextID++
	id := alertID(f.nextID)
	a := *alert
	a.ID = id
	a.CreatedAt = time.Now()
	f.replaced = append(f.replaced, a)
	f.activeByUser[a.User] = a
	return id, nil
}

func (f *fakeAlertWriter) UpdateLocation(_ context.Context, id string, lat, lng float64) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates = append(f.updates, locationCall{id: id, lat: lat, lng: lng})
	return nil
}

func (f *fakeAlertWriter) Delete(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func alertID(n int) string {
	return string(rune('a'+n-1)) + "-alert"
}

// fakeNotifier records every side effect the session raises. Guarded by a
// mutex so loop-driven tests can assert from the test goroutine.
type fakeNotifier struct {
	mu            sync.Mutex
	notifications []models.Notification
	sirens        int
	toasts        []string
	clears        int
	states        []State
	views         [][]models.Alert
}

func (f *fakeNotifier) Notify(n models.Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notifications = append(f.notifications, n)
}

func (f *fakeNotifier) Siren() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sirens++
}

func (f *fakeNotifier) Toast(msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toasts = append(f.toasts, msg)
}

func (f *fakeNotifier) ClearToast() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clears++
}

func (f *fakeNotifier) StateChanged(st State) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, st)
}

func (f *fakeNotifier) Alerts(view []models.Alert) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.views = append(f.views, view)
}

func (f *fakeNotifier) clearCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.clears
}

type fakeTrail struct {
	points []models.TrailPoint
}

func (f *fakeTrail) Append(_ context.Context, p *models.TrailPoint) error {
	f.points = append(f.points, *p)
	return nil
}

func testViewer() Viewer {
	return Viewer{
		UID:      "uid-1",
		Email:    "agent@alertos.com",
		FullName: "Agent One",
		Phone:    "+2348031234567",
		Roster:   []string{"uid-2", "uid-3"},
	}
}

func newTestSession(w AlertWriter, tr TrailRecorder, n Notifier) *Session {
	s := NewSession(testViewer(), w, tr, n)
	s.after = func(time.Duration) <-chan time.Time { return nil }
	return s
}

var lagos = geo.Coordinate{Lat: 6.5244, Lng: 3.3792}

func TestReconcileSelfMutualExclusion(t *testing.T) {
	writer := newFakeAlertWriter()
	notifier := &fakeNotifier{}
	s := newTestSession(writer, nil, notifier)

	// My own security alert, matched case-insensitively.
	s.handleSnapshot(context.Background(), []models.Alert{
		{ID: "x1", User: "Agent@AlertOS.com", Type: models.AlertTypeSecurity, CreatedAt: time.Now()},
	})
	assert.Equal(t, Alerting, s.state.Phase)
	assert.Equal(t, "x1", s.state.AlertID)
	assert.Equal(t, models.AlertTypeSecurity, s.state.AlertType)

	// Superseded by a ghost record: never both.
	s.handleSnapshot(context.Background(), []models.Alert{
		{ID: "x2", User: "agent@alertos.com", Type: models.AlertTypeGhost, CreatedAt: time.Now()},
	})
	assert.Equal(t, Ghosting, s.state.Phase)
	assert.Equal(t, "x2", s.state.AlertID)

	// Gone remotely: flags clear.
	s.handleSnapshot(context.Background(), nil)
	assert.Equal(t, Idle, s.state.Phase)
	assert.Empty(t, s.state.AlertID)
	assert.Empty(t, s.state.AlertType)
}

func TestProximityNotificationFires(t *testing.T) {
	writer := newFakeAlertWriter()
	notifier := &fakeNotifier{}
	s := newTestSession(writer, nil, notifier)

	s.handleLocation(context.Background(), lagos)
	s.handleSnapshot(context.Background(), nil) // prime the subscription

	s.handleSnapshot(context.Background(), []models.Alert{
		{
			ID: "n1", User: "other@alertos.com", UserName: "Agent Two",
			Type: models.AlertTypeFire, Lat: 6.5300, Lng: 3.3800, CreatedAt: time.Now(),
		},
	})

	require.Len(t, notifier.notifications, 1)
	n := notifier.notifications[0]
	assert.Equal(t, 1, notifier.sirens)
	assert.Equal(t, "fire", n.AlertType)
	assert.Equal(t, "Agent Two", n.ActorName)
	assert.Equal(t, 0.6, n.DistanceKm) // ~0.63 km, rounded to one decimal
	assert.Contains(t, n.Message, "FIRE ALERT")
	assert.NotEmpty(t, notifier.toasts)
}

func TestProximitySkipsStaleAlerts(t *testing.T) {
	notifier := &fakeNotifier{}
	s := newTestSession(newFakeAlertWriter(), nil, notifier)

	s.handleLocation(context.Background(), lagos)
	s.handleSnapshot(context.Background(), nil)

	s.handleSnapshot(context.Background(), []models.Alert{
		{
			ID: "n1", User: "other@alertos.com", Type: models.AlertTypeFire,
			Lat: 6.5300, Lng: 3.3800, CreatedAt: time.Now().Add(-200 * time.Second),
		},
	})

	assert.Empty(t, notifier.notifications)
	assert.Zero(t, notifier.sirens)
}

func TestProximitySkipsFirstSnapshot(t *testing.T) {
	notifier := &fakeNotifier{}
	s := newTestSession(newFakeAlertWriter(), nil, notifier)
	s.handleLocation(context.Background(), lagos)

	// Records that predate the subscription are not news.
	s.handleSnapshot(context.Background(), []models.Alert{
		{ID: "n1", User: "other@alertos.com", Type: models.AlertTypeFire, Lat: 6.5300, Lng: 3.3800, CreatedAt: time.Now()},
	})

	assert.Empty(t, notifier.notifications)
	assert.Zero(t, notifier.sirens)
}

func TestProximitySkipsGhostsAndSelfAndFarAlerts(t *testing.T) {
	notifier := &fakeNotifier{}
	s := newTestSession(newFakeAlertWriter(), nil, notifier)
	s.handleLocation(context.Background(), lagos)
	s.handleSnapshot(context.Background(), nil)

	abuja := geo.Coordinate{Lat: 9.0579, Lng: 7.4951}
	s.handleSnapshot(context.Background(), []models.Alert{
		{ID: "g1", User: "other@alertos.com", Type: models.AlertTypeGhost, Lat: lagos.Lat, Lng: lagos.Lng, CreatedAt: time.Now(), VisibleTo: []string{"uid-1"}},
		{ID: "s1", User: "agent@alertos.com", Type: models.AlertTypeSecurity, Lat: lagos.Lat, Lng: lagos.Lng, CreatedAt: time.Now()},
		{ID: "f1", User: "far@alertos.com", Type: models.AlertTypeFire, Lat: abuja.Lat, Lng: abuja.Lng, CreatedAt: time.Now()},
	})

	assert.Empty(t, notifier.notifications)
	assert.Zero(t, notifier.sirens)
}

func TestProximitySkippedWithoutFixButSelfReconciles(t *testing.T) {
	notifier := &fakeNotifier{}
	s := newTestSession(newFakeAlertWriter(), nil, notifier)
	s.handleSnapshot(context.Background(), nil)

	s.handleSnapshot(context.Background(), []models.Alert{
		{ID: "m1", User: "agent@alertos.com", Type: models.AlertTypeMedical, Lat: 6.53, Lng: 3.38, CreatedAt: time.Now()},
		{ID: "n1", User: "other@alertos.com", Type: models.AlertTypeFire, Lat: 6.53, Lng: 3.38, CreatedAt: time.Now()},
	})

	assert.Equal(t, Alerting, s.state.Phase)
	assert.Equal(t, "m1", s.state.AlertID)
	assert.Empty(t, notifier.notifications)
}

func TestProximitySilentOnGhostSurface(t *testing.T) {
	notifier := &fakeNotifier{}
	s := newTestSession(newFakeAlertWriter(), nil, notifier)
	s.handleLocation(context.Background(), lagos)
	s.handleSnapshot(context.Background(), nil)
	require.NoError(t, s.setMode(ModeGhost))

	s.handleSnapshot(context.Background(), []models.Alert{
		{ID: "n1", User: "other@alertos.com", Type: models.AlertTypeFire, Lat: 6.5300, Lng: 3.3800, CreatedAt: time.Now()},
	})

	assert.Empty(t, notifier.notifications)
	assert.Zero(t, notifier.sirens)
}

func TestLocationUpdateRoutesToActiveAlert(t *testing.T) {
	writer := newFakeAlertWriter()
	trail := &fakeTrail{}
	s := newTestSession(writer, trail, &fakeNotifier{})

	// Not active yet: no remote write.
	s.handleLocation(context.Background(), lagos)
	assert.Empty(t, writer.updates)

	_, err := s.startSignal(context.Background(), models.AlertTypeSecurity)
	require.NoError(t, err)

	next := geo.Coordinate{Lat: 6.5250, Lng: 3.3795}
	s.handleLocation(context.Background(), next)

	require.Len(t, writer.updates, 1)
	assert.Equal(t, s.state.AlertID, writer.updates[0].id)
	assert.Equal(t, next.Lat, writer.updates[0].lat)
	assert.Equal(t, next.Lng, writer.updates[0].lng)
	require.Len(t, trail.points, 1)
	assert.Equal(t, "agent@alertos.com", trail.points[0].User)
}

func TestLocationUpdateFailureIsSwallowed(t *testing.T) {
	writer := newFakeAlertWriter()
	s := newTestSession(writer, nil, &fakeNotifier{})
	s.handleLocation(context.Background(), lagos)
	_, err := s.startSignal(context.Background(), models.AlertTypeFire)
	require.NoError(t, err)

	writer.updateErr = errors.New("store unreachable")
	s.handleLocation(context.Background(), geo.Coordinate{Lat: 6.5, Lng: 3.4})

	// State keeps the newest fix; the next tick will retry implicitly.
	assert.Equal(t, 6.5, s.state.Location.Lat)
	assert.Equal(t, Alerting, s.state.Phase)
}

func TestStartGhostWithEmptyRosterWritesNothing(t *testing.T) {
	writer := newFakeAlertWriter()
	s := NewSession(Viewer{UID: "uid-9", Email: "lone@alertos.com"}, writer, nil, &fakeNotifier{})
	s.after = func(time.Duration) <-chan time.Time { return nil }
	s.handleLocation(context.Background(), lagos)

	_, err := s.startSignal(context.Background(), models.AlertTypeGhost)
	assert.ErrorIs(t, err, ErrRosterEmpty)
	assert.Empty(t, writer.replaced)
	assert.Equal(t, Idle, s.state.Phase)
}

func TestStartGhostCapturesRosterVisibility(t *testing.T) {
	writer := newFakeAlertWriter()
	s := newTestSession(writer, nil, &fakeNotifier{})
	s.handleLocation(context.Background(), lagos)

	id, err := s.startSignal(context.Background(), models.AlertTypeGhost)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, Ghosting, s.state.Phase)
	require.Len(t, writer.replaced, 1)
	assert.Equal(t, []string{"uid-2", "uid-3"}, writer.replaced[0].VisibleTo)
}

func TestStartSignalBeforeFix(t *testing.T) {
	s := newTestSession(newFakeAlertWriter(), nil, &fakeNotifier{})
	_, err := s.startSignal(context.Background(), models.AlertTypeSecurity)
	assert.ErrorIs(t, err, ErrNoLocation)
}

func TestDoubleStartReplacesPriorRecord(t *testing.T) {
	writer := newFakeAlertWriter()
	s := newTestSession(writer, nil, &fakeNotifier{})
	s.handleLocation(context.Background(), lagos)

	first, err := s.startSignal(context.Background(), models.AlertTypeSecurity)
	require.NoError(t, err)
	second, err := s.startSignal(context.Background(), models.AlertTypeMedical)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	// The store's replace keeps one active record per user; the session
	// tracks the newest id.
	assert.Equal(t, second, s.state.AlertID)
	assert.Equal(t, models.AlertTypeMedical, s.state.AlertType)
	assert.Len(t, writer.activeByUser, 1)
}

func TestStopSignalNoopWhenIdle(t *testing.T) {
	writer := newFakeAlertWriter()
	s := newTestSession(writer, nil, &fakeNotifier{})

	require.NoError(t, s.stopSignal(context.Background()))
	assert.Empty(t, writer.deleted)
}

func TestStopSignalDeletesAndClears(t *testing.T) {
	writer := newFakeAlertWriter()
	s := newTestSession(writer, nil, &fakeNotifier{})
	s.handleLocation(context.Background(), lagos)

	id, err := s.startSignal(context.Background(), models.AlertTypeAccident)
	require.NoError(t, err)
	require.NoError(t, s.stopSignal(context.Background()))

	assert.Equal(t, []string{id}, writer.deleted)
	assert.Equal(t, Idle, s.state.Phase)
	assert.Empty(t, s.state.AlertID)
}

func TestModeSwitchRefusedWhileActive(t *testing.T) {
	s := newTestSession(newFakeAlertWriter(), nil, &fakeNotifier{})
	s.handleLocation(context.Background(), lagos)
	_, err := s.startSignal(context.Background(), models.AlertTypeSecurity)
	require.NoError(t, err)

	assert.ErrorIs(t, s.setMode(ModeGhost), ErrSignalActive)
	assert.Equal(t, ModeUniversal, s.state.Mode)

	require.NoError(t, s.stopSignal(context.Background()))
	require.NoError(t, s.setMode(ModeGhost))
	assert.Equal(t, ModeGhost, s.state.Mode)
}

func TestVisibleAlertsPerSurface(t *testing.T) {
	notifier := &fakeNotifier{}
	s := newTestSession(newFakeAlertWriter(), nil, notifier)

	snapshot := []models.Alert{
		{ID: "p1", User: "other@alertos.com", Type: models.AlertTypeFire, CreatedAt: time.Now()},
		{ID: "g1", User: "friend@alertos.com", Type: models.AlertTypeGhost, VisibleTo: []string{"uid-1"}, CreatedAt: time.Now()},
		{ID: "g2", User: "stranger@alertos.com", Type: models.AlertTypeGhost, VisibleTo: []string{"uid-7"}, CreatedAt: time.Now()},
		{ID: "mine", User: "agent@alertos.com", Type: models.AlertTypeSecurity, CreatedAt: time.Now()},
	}

	// Universal surface: public alerts only, never my own.
	s.handleSnapshot(context.Background(), snapshot)
	require.NotEmpty(t, notifier.views)
	universal := notifier.views[len(notifier.views)-1]
	require.Len(t, universal, 1)
	assert.Equal(t, "p1", universal[0].ID)

	// Ghost surface: only roster-shared ghosts.
	require.NoError(t, s.stopSignal(context.Background()))
	require.NoError(t, s.setMode(ModeGhost))
	s.handleSnapshot(context.Background(), snapshot)
	ghost := notifier.views[len(notifier.views)-1]
	require.Len(t, ghost, 1)
	assert.Equal(t, "g1", ghost[0].ID)
}

func TestToastAutoClears(t *testing.T) {
	writer := newFakeAlertWriter()
	notifier := &fakeNotifier{}
	s := NewSession(testViewer(), writer, nil, notifier)

	fire := make(chan time.Time, 1)
	s.after = func(d time.Duration) <-chan time.Time {
		assert.Equal(t, ToastTTL, d)
		return fire
	}

	locations := make(chan geo.Coordinate)
	snapshots := make(chan []models.Alert)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		s.Run(ctx, locations, snapshots)
		close(done)
	}()

	locations <- lagos
	_, err := s.StartSignal(ctx, models.AlertTypeSecurity)
	require.NoError(t, err)

	fire <- time.Now()

	require.Eventually(t, func() bool { return notifier.clearCount() == 1 },
		time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestRunSerializesCommands(t *testing.T) {
	writer := newFakeAlertWriter()
	notifier := &fakeNotifier{}
	s := NewSession(testViewer(), writer, nil, notifier)
	s.after = func(time.Duration) <-chan time.Time { return nil }

	locations := make(chan geo.Coordinate)
	snapshots := make(chan []models.Alert)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx, locations, snapshots)

	locations <- lagos
	id, err := s.StartSignal(ctx, models.AlertTypeFire)
	require.NoError(t, err)

	st, err := s.CurrentState(ctx)
	require.NoError(t, err)
	assert.Equal(t, Alerting, st.Phase)
	assert.Equal(t, id, st.AlertID)

	require.NoError(t, s.StopSignal(ctx))
	st, err = s.CurrentState(ctx)
	require.NoError(t, err)
	assert.Equal(t, Idle, st.Phase)
}
