package handlers

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/timiebi/alertos/backend/internal/middleware"
	"github.com/timiebi/alertos/backend/internal/models"
	"github.com/timiebi/alertos/backend/internal/repositories"
)

// ProfileHandler handles HTTP requests for the Firestore profile documents
type ProfileHandler struct {
	profileRepository repositories.ProfileRepository
}

// NewProfileHandler creates a new ProfileHandler
func NewProfileHandler(profileRepo repositories.ProfileRepository) *ProfileHandler {
	return &ProfileHandler{profileRepository: profileRepo}
}

// RegisterProfileRoutes registers profile-related routes
func (h *ProfileHandler) RegisterProfileRoutes(g *echo.Group) {
	g.GET("/profile", h.GetProfile)
	g.PUT("/profile", h.UpdateProfile)
	g.GET("/users/search", h.SearchUser)
}

// GetProfile retrieves the authenticated user's profile document
func (h *ProfileHandler) GetProfile(c echo.Context) error {
	claims, ok := middleware.ClaimsFromContext(c)
	if !ok || claims.FirebaseUID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "No Firebase identity on token")
	}

	profile, err := h.profileRepository.Get(c.Request().Context(), claims.FirebaseUID)
	if err != nil {
		if err == repositories.ErrProfileNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "Profile not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, profile)
}

// UpdateProfile validates and merges the caller's profile fields. All
// validation happens before any remote write: a bad name or phone number
// never reaches the store.
func (h *ProfileHandler) UpdateProfile(c echo.Context) error {
	claims, ok := middleware.ClaimsFromContext(c)
	if !ok || claims.FirebaseUID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "No Firebase identity on token")
	}

	var req models.UpdateProfileRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	phone, err := models.NormalizePhone(req.PhoneNumber)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	profile := &models.Profile{
		UID:              claims.FirebaseUID,
		Email:            claims.Email,
		FullName:         strings.TrimSpace(req.FullName),
		PhoneNumber:      phone,
		BloodType:        req.BloodType,
		EmergencyContact: req.EmergencyContact,
	}
	if err := h.profileRepository.Set(c.Request().Context(), profile); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to save profile")
	}
	return c.JSON(http.StatusOK, profile)
}

// SearchUser finds another user's profile by exact email, for roster
// recruitment. Searching for yourself is refused.
func (h *ProfileHandler) SearchUser(c echo.Context) error {
	claims, ok := middleware.ClaimsFromContext(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "No identity on token")
	}

	email := strings.TrimSpace(strings.ToLower(c.QueryParam("email")))
	if email == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email query parameter is required")
	}
	if strings.EqualFold(email, claims.Email) {
		return echo.NewHTTPError(http.StatusBadRequest, "Cannot add yourself")
	}

	profile, err := h.profileRepository.GetByEmail(c.Request().Context(), email)
	if err != nil {
		if err == repositories.ErrProfileNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "User not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, profile)
}
