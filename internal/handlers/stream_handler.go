package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/timiebi/alertos/backend/internal/geo"
	"github.com/timiebi/alertos/backend/internal/middleware"
	"github.com/timiebi/alertos/backend/internal/models"
	"github.com/timiebi/alertos/backend/internal/presence"
	"github.com/timiebi/alertos/backend/internal/repositories"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// sendBuffer bounds the per-connection event queue. A client that cannot
	// drain 64 events is effectively gone; further events are dropped.
	sendBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// clientMessage is what the device sends up the socket.
type clientMessage struct {
	Type      string           `json:"type"`
	Lat       float64          `json:"lat,omitempty"`
	Lng       float64          `json:"lng,omitempty"`
	AlertType models.AlertType `json:"alert_type,omitempty"`
	Mode      string           `json:"mode,omitempty"`
}

// serverEvent is what the session pushes down the socket.
type serverEvent struct {
	Type         string               `json:"type"`
	Phase        string               `json:"phase,omitempty"`
	State        *presence.State      `json:"state,omitempty"`
	Alerts       []models.Alert       `json:"alerts,omitempty"`
	Notification *models.Notification `json:"notification,omitempty"`
	Message      string               `json:"message,omitempty"`
}

// StreamHandler upgrades authenticated clients to a WebSocket and runs one
// presence session per connection: location ticks flow up, reconciler side
// effects flow down.
type StreamHandler struct {
	alertRepository        repositories.AlertRepository
	profileRepository      repositories.ProfileRepository
	trailRepository        repositories.TrailRepository
	notificationRepository repositories.NotificationRepository
}

// NewStreamHandler creates a new StreamHandler
func NewStreamHandler(
	alertRepo repositories.AlertRepository,
	profileRepo repositories.ProfileRepository,
	trailRepo repositories.TrailRepository,
	notificationRepo repositories.NotificationRepository,
) *StreamHandler {
	return &StreamHandler{
		alertRepository:        alertRepo,
		profileRepository:      profileRepo,
		trailRepository:        trailRepo,
		notificationRepository: notificationRepo,
	}
}

// RegisterStreamRoutes registers the realtime stream route
func (h *StreamHandler) RegisterStreamRoutes(g *echo.Group) {
	g.GET("/stream", h.Stream)
}

// wsNotifier adapts session side effects onto a connection's event queue.
// Proximity notifications are additionally persisted for the history view.
type wsNotifier struct {
	connID        string
	send          chan serverEvent
	notifications repositories.NotificationRepository
}

func (n *wsNotifier) push(ev serverEvent) {
	select {
	case n.send <- ev:
	default:
		log.Printf("stream %s: dropping %s event, client not draining", n.connID, ev.Type)
	}
}

func (n *wsNotifier) Notify(notification models.Notification) {
	if err := n.notifications.CreateNotification(&notification); err != nil {
		log.Printf("stream %s: persisting notification failed: %v", n.connID, err)
	}
	n.push(serverEvent{Type: "notify", Notification: &notification})
}

func (n *wsNotifier) Siren() {
	n.push(serverEvent{Type: "siren"})
}

func (n *wsNotifier) Toast(message string) {
	n.push(serverEvent{Type: "toast", Message: message})
}

func (n *wsNotifier) ClearToast() {
	n.push(serverEvent{Type: "toast_clear"})
}

func (n *wsNotifier) StateChanged(st presence.State) {
	n.push(serverEvent{Type: "state", Phase: st.PhaseName(), State: &st})
}

func (n *wsNotifier) Alerts(visible []models.Alert) {
	if visible == nil {
		visible = []models.Alert{}
	}
	n.push(serverEvent{Type: "alerts", Alerts: visible})
}

// Stream upgrades the connection and runs the session until the client
// disconnects or the alerts subscription dies.
func (h *StreamHandler) Stream(c echo.Context) error {
	claims, ok := middleware.ClaimsFromContext(c)
	if !ok || claims.FirebaseUID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "No Firebase identity on token")
	}

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	viewer := presence.Viewer{UID: claims.FirebaseUID, Email: claims.Email}
	if profile, err := h.profileRepository.Get(ctx, claims.FirebaseUID); err == nil {
		viewer.FullName = profile.FullName
		viewer.Phone = profile.PhoneNumber
		viewer.Roster = append([]string(nil), profile.Roster...)
	} else if err != repositories.ErrProfileNotFound {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to load profile")
	}

	snapshots, err := h.alertRepository.Subscribe(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to subscribe to alerts")
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Println("Error upgrading stream connection:", err)
		return err
	}

	connID := uuid.New().String()
	notifier := &wsNotifier{
		connID:        connID,
		send:          make(chan serverEvent, sendBuffer),
		notifications: h.notificationRepository,
	}
	session := presence.NewSession(viewer, h.alertRepository, h.trailRepository, notifier)
	locations := make(chan geo.Coordinate, 8)

	log.Printf("stream %s: connected as %s", connID, claims.Email)

	go h.writePump(conn, connID, notifier.send, cancel)
	go func() {
		defer cancel()
		session.Run(ctx, locations, snapshots)
	}()

	notifier.StateChanged(presence.State{Mode: presence.ModeUniversal})
	h.readPump(ctx, conn, connID, session, locations, notifier)
	cancel()
	conn.Close()
	log.Printf("stream %s: disconnected", connID)
	return nil
}

// readPump parses client messages and feeds the session until the socket
// errors or ctx is cancelled.
func (h *StreamHandler) readPump(
	ctx context.Context,
	conn *websocket.Conn,
	connID string,
	session *presence.Session,
	locations chan<- geo.Coordinate,
	notifier *wsNotifier,
) {
	defer close(locations)
	conn.SetReadLimit(1024)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("stream %s: read error: %v", connID, err)
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			notifier.push(serverEvent{Type: "error", Message: "Invalid message"})
			continue
		}

		switch msg.Type {
		case "location":
			coord := geo.Coordinate{Lat: msg.Lat, Lng: msg.Lng}
			if !geo.ServiceBounds.Contains(coord) {
				notifier.push(serverEvent{Type: "error", Message: "Location outside service area"})
				continue
			}
			select {
			case locations <- coord:
			case <-ctx.Done():
				return
			}
		case "start":
			if !msg.AlertType.Valid() {
				notifier.push(serverEvent{Type: "error", Message: "Unknown alert type"})
				continue
			}
			if _, err := session.StartSignal(ctx, msg.AlertType); err != nil {
				notifier.push(serverEvent{Type: "error", Message: err.Error()})
			}
		case "stop":
			if err := session.StopSignal(ctx); err != nil {
				notifier.push(serverEvent{Type: "error", Message: err.Error()})
			}
		case "mode":
			if err := session.SetMode(ctx, presence.Mode(msg.Mode)); err != nil {
				notifier.push(serverEvent{Type: "error", Message: err.Error()})
			}
		default:
			notifier.push(serverEvent{Type: "error", Message: "Unknown message type"})
		}

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

// writePump serializes all socket writes: queued events plus keepalive pings.
func (h *StreamHandler) writePump(conn *websocket.Conn, connID string, send <-chan serverEvent, cancel context.CancelFunc) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		cancel()
		conn.Close()
	}()

	for {
		select {
		case ev, ok := <-send:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				log.Printf("stream %s: write error: %v", connID, err)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
