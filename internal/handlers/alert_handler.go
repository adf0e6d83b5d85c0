package handlers

import (
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/timiebi/alertos/backend/internal/middleware"
	"github.com/timiebi/alertos/backend/internal/models"
	"github.com/timiebi/alertos/backend/internal/repositories"
)

const defaultTrailLimit = 500

// AlertHandler handles REST access to alert documents. The realtime path
// goes through the stream handler; these routes serve clients that only
// poll or that need the one-shot operations.
type AlertHandler struct {
	alertRepository   repositories.AlertRepository
	profileRepository repositories.ProfileRepository
	trailRepository   repositories.TrailRepository
}

// NewAlertHandler creates a new AlertHandler
func NewAlertHandler(alertRepo repositories.AlertRepository, profileRepo repositories.ProfileRepository, trailRepo repositories.TrailRepository) *AlertHandler {
	return &AlertHandler{
		alertRepository:   alertRepo,
		profileRepository: profileRepo,
		trailRepository:   trailRepo,
	}
}

// RegisterAlertRoutes registers alert-related routes
func (h *AlertHandler) RegisterAlertRoutes(g *echo.Group) {
	g.GET("/alerts", h.GetAlerts)
	g.POST("/alerts", h.StartSignal)
	g.DELETE("/alerts", h.StopSignal)
	g.GET("/alerts/types", h.GetAlertTypes)
	g.GET("/alerts/:id/trail", h.GetTrail)
}

// GetAlerts lists the live alerts the caller is allowed to see. Ghost
// alerts are filtered to the roster snapshot captured at creation time.
func (h *AlertHandler) GetAlerts(c echo.Context) error {
	claims, ok := middleware.ClaimsFromContext(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "No identity on token")
	}

	alerts, err := h.alertRepository.GetActive(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to fetch alerts")
	}

	visible := make([]models.Alert, 0, len(alerts))
	for _, a := range alerts {
		if a.VisibleToUID(claims.FirebaseUID) {
			visible = append(visible, a)
		}
	}
	return c.JSON(http.StatusOK, visible)
}

// StartSignal creates the caller's active alert, replacing any prior one.
// A ghost signal needs at least one roster member or nobody could ever
// see it.
func (h *AlertHandler) StartSignal(c echo.Context) error {
	claims, ok := middleware.ClaimsFromContext(c)
	if !ok || claims.FirebaseUID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "No Firebase identity on token")
	}

	var req models.StartSignalRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	profile, err := h.profileRepository.Get(ctx, claims.FirebaseUID)
	if err != nil && err != repositories.ErrProfileNotFound {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to load profile")
	}

	alert := &models.Alert{
		User: strings.ToLower(claims.Email),
		Type: req.Type,
		Lat:  req.Lat,
		Lng:  req.Lng,
	}
	if profile != nil {
		alert.UserName = profile.FullName
		alert.UserPhone = profile.PhoneNumber
	}
	if req.Type == models.AlertTypeGhost {
		if profile == nil || len(profile.Roster) == 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "Ghost mode needs at least one roster member")
		}
		alert.VisibleTo = append([]string(nil), profile.Roster...)
	}

	id, err := h.alertRepository.Replace(ctx, alert)
	if err != nil {
		log.Println("Error starting signal:", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to start signal")
	}
	alert.ID = id
	return c.JSON(http.StatusCreated, alert)
}

// StopSignal deletes every alert owned by the caller along with its trail
func (h *AlertHandler) StopSignal(c echo.Context) error {
	claims, ok := middleware.ClaimsFromContext(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "No identity on token")
	}

	ctx := c.Request().Context()
	alerts, err := h.alertRepository.FindByUser(ctx, strings.ToLower(claims.Email))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to fetch alerts")
	}
	for _, a := range alerts {
		if err := h.alertRepository.Delete(ctx, a.ID); err != nil {
			log.Println("Error deleting alert:", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "Failed to stop signal")
		}
		if err := h.trailRepository.DeleteByAlertID(ctx, a.ID); err != nil {
			log.Println("Error deleting trail:", err)
		}
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Signal cancelled"})
}

// GetAlertTypes returns the selectable signal types with their marker
// metadata, for clients that render the picker dynamically.
func (h *AlertHandler) GetAlertTypes(c echo.Context) error {
	return c.JSON(http.StatusOK, models.Markers())
}

// GetTrail returns the breadcrumb trail recorded for an alert
func (h *AlertHandler) GetTrail(c echo.Context) error {
	if _, ok := middleware.ClaimsFromContext(c); !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "No identity on token")
	}

	alertID := c.Param("id")
	limit := int64(defaultTrailLimit)
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid limit")
		}
		if parsed < limit {
			limit = parsed
		}
	}

	points, err := h.trailRepository.GetByAlertID(c.Request().Context(), alertID, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to fetch trail")
	}
	return c.JSON(http.StatusOK, points)
}
