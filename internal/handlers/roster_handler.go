package handlers

import (
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/timiebi/alertos/backend/internal/middleware"
	"github.com/timiebi/alertos/backend/internal/models"
	"github.com/timiebi/alertos/backend/internal/repositories"
)

// RosterHandler handles the trusted-contact roster and its friend requests
type RosterHandler struct {
	profileRepository repositories.ProfileRepository
	requestRepository repositories.RequestRepository
}

// NewRosterHandler creates a new RosterHandler
func NewRosterHandler(profileRepo repositories.ProfileRepository, requestRepo repositories.RequestRepository) *RosterHandler {
	return &RosterHandler{profileRepository: profileRepo, requestRepository: requestRepo}
}

// RegisterRosterRoutes registers roster-related routes
func (h *RosterHandler) RegisterRosterRoutes(g *echo.Group) {
	g.GET("/roster", h.GetRoster)
	g.DELETE("/roster/:uid", h.RemoveMember)
	g.POST("/roster/requests", h.SendRequest)
	g.GET("/roster/requests", h.ListIncomingRequests)
	g.POST("/roster/requests/:id/accept", h.AcceptRequest)
	g.DELETE("/roster/requests/:id", h.RejectRequest)
}

// GetRoster resolves the caller's roster UIDs into full profiles. Members
// whose profile document has vanished are silently dropped.
func (h *RosterHandler) GetRoster(c echo.Context) error {
	claims, ok := middleware.ClaimsFromContext(c)
	if !ok || claims.FirebaseUID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "No Firebase identity on token")
	}

	ctx := c.Request().Context()
	profile, err := h.profileRepository.Get(ctx, claims.FirebaseUID)
	if err != nil {
		if err == repositories.ErrProfileNotFound {
			return c.JSON(http.StatusOK, []models.Profile{})
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if len(profile.Roster) == 0 {
		return c.JSON(http.StatusOK, []models.Profile{})
	}

	members, err := h.profileRepository.GetMany(ctx, profile.Roster)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to fetch roster")
	}
	return c.JSON(http.StatusOK, members)
}

// RemoveMember takes a member off the caller's roster. The removal is
// one-sided: the other user keeps the caller until they remove them too.
func (h *RosterHandler) RemoveMember(c echo.Context) error {
	claims, ok := middleware.ClaimsFromContext(c)
	if !ok || claims.FirebaseUID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "No Firebase identity on token")
	}

	memberUID := c.Param("uid")
	if memberUID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Member uid is required")
	}
	if err := h.profileRepository.RemoveFromRoster(c.Request().Context(), claims.FirebaseUID, memberUID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to remove member")
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Member removed"})
}

// SendRequest creates a pending friend request addressed to another user
func (h *RosterHandler) SendRequest(c echo.Context) error {
	claims, ok := middleware.ClaimsFromContext(c)
	if !ok || claims.FirebaseUID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "No Firebase identity on token")
	}

	var req models.SendRequestRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	target, err := h.profileRepository.GetByEmail(ctx, req.Email)
	if err != nil {
		if err == repositories.ErrProfileNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "User not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if target.UID == claims.FirebaseUID {
		return echo.NewHTTPError(http.StatusBadRequest, "Cannot send a request to yourself")
	}
	if target.InRoster(claims.FirebaseUID) {
		return echo.NewHTTPError(http.StatusConflict, "Already on this user's roster")
	}

	exists, err := h.requestRepository.Exists(ctx, claims.FirebaseUID, target.UID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if exists {
		return echo.NewHTTPError(http.StatusConflict, "Request already pending")
	}

	sender, err := h.profileRepository.Get(ctx, claims.FirebaseUID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to load sender profile")
	}

	fr := &models.FriendRequest{
		FromUID:   claims.FirebaseUID,
		FromName:  sender.FullName,
		FromEmail: sender.Email,
		ToUID:     target.UID,
		ToName:    target.FullName,
	}
	id, err := h.requestRepository.Create(ctx, fr)
	if err != nil {
		log.Println("Error creating friend request:", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to send request")
	}
	fr.ID = id
	return c.JSON(http.StatusCreated, fr)
}

// ListIncomingRequests lists pending requests addressed to the caller
func (h *RosterHandler) ListIncomingRequests(c echo.Context) error {
	claims, ok := middleware.ClaimsFromContext(c)
	if !ok || claims.FirebaseUID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "No Firebase identity on token")
	}

	requests, err := h.requestRepository.ListIncoming(c.Request().Context(), claims.FirebaseUID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to fetch requests")
	}
	return c.JSON(http.StatusOK, requests)
}

// AcceptRequest accepts a pending request: both rosters gain the other
// user and the request document is removed, in one batched write.
func (h *RosterHandler) AcceptRequest(c echo.Context) error {
	claims, ok := middleware.ClaimsFromContext(c)
	if !ok || claims.FirebaseUID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "No Firebase identity on token")
	}

	ctx := c.Request().Context()
	requestID := c.Param("id")
	fr, err := h.requestRepository.Get(ctx, requestID)
	if err != nil {
		if err == repositories.ErrRequestNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "Request not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if fr.ToUID != claims.FirebaseUID {
		return echo.NewHTTPError(http.StatusForbidden, "Request is addressed to another user")
	}

	if err := h.requestRepository.Accept(ctx, fr); err != nil {
		log.Println("Error accepting friend request:", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to accept request")
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Request accepted"})
}

// RejectRequest discards a pending request addressed to the caller
func (h *RosterHandler) RejectRequest(c echo.Context) error {
	claims, ok := middleware.ClaimsFromContext(c)
	if !ok || claims.FirebaseUID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "No Firebase identity on token")
	}

	ctx := c.Request().Context()
	requestID := c.Param("id")
	fr, err := h.requestRepository.Get(ctx, requestID)
	if err != nil {
		if err == repositories.ErrRequestNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "Request not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if fr.ToUID != claims.FirebaseUID {
		return echo.NewHTTPError(http.StatusForbidden, "Request is addressed to another user")
	}

	if err := h.requestRepository.Delete(ctx, requestID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to reject request")
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Request rejected"})
}
