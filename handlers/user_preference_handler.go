package handlers

import (
	"fmt"
	"net/http"

	"itsamatch-backend/models"
	"itsamatch-backend/service"

	"github.com/gin-gonic/gin"
)

// UserPreferenceHandler handles the user-scoped fixed-shape preference routes
type UserPreferenceHandler struct {
	preferenceService *service.PreferenceService
}

// NewUserPreferenceHandler creates a new user preference handler
func NewUserPreferenceHandler(preferenceService *service.PreferenceService) *UserPreferenceHandler {
	return &UserPreferenceHandler{preferenceService: preferenceService}
}

// CreateUserPreferencesRequest represents the request body for creating user preferences
type CreateUserPreferencesRequest struct {
	UserID      string                  `json:"user_id" binding:"required"`
	Preferences *models.UserPreferences `json:"preferences" binding:"required"`
	Settings    *models.UserSettings    `json:"settings" binding:"required"`
}

// UpdateUserPreferencesRequest represents the request body for updating user preferences
type UpdateUserPreferencesRequest struct {
	Preferences *models.UserPreferences `json:"preferences"`
	Settings    *models.UserSettings    `json:"settings"`
}

func userIDParam(c *gin.Context) (string, error) {
	userID := c.Param("user_id")
	if userID == "" {
		return "", errEmptyUserID
	}
	return userID, nil
}

func userNotFound(userID string) string {
	return fmt.Sprintf("No preferences found for user %s", userID)
}

// CreateUserPreferences handles POST /user/preferences/
func (h *UserPreferenceHandler) CreateUserPreferences(c *gin.Context) {
	var req CreateUserPreferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidRequest(c, err)
		return
	}

	result, err := h.preferenceService.CreateUserPreferences(c.Request.Context(), service.CreateUserPreferencesRequest{
		UserID:      req.UserID,
		Preferences: *req.Preferences,
		Settings:    *req.Settings,
	})
	if err != nil {
		respondError(c, err, userNotFound(req.UserID))
		return
	}

	c.JSON(http.StatusOK, result.Document)
}

// GetUserPreferences handles GET /user/preferences/:user_id
func (h *UserPreferenceHandler) GetUserPreferences(c *gin.Context) {
	userID, err := userIDParam(c)
	if err != nil {
		respondInvalidRequest(c, err)
		return
	}

	result, err := h.preferenceService.GetUserPreferences(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err, userNotFound(userID))
		return
	}

	c.JSON(http.StatusOK, result.Document)
}

// UpdateUserPreferences handles PUT /user/preferences/:user_id
func (h *UserPreferenceHandler) UpdateUserPreferences(c *gin.Context) {
	userID, err := userIDParam(c)
	if err != nil {
		respondInvalidRequest(c, err)
		return
	}

	var req UpdateUserPreferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidRequest(c, err)
		return
	}

	result, err := h.preferenceService.UpdateUserPreferences(c.Request.Context(), service.UpdateUserPreferencesRequest{
		UserID:      userID,
		Preferences: req.Preferences,
		Settings:    req.Settings,
	})
	if err != nil {
		respondError(c, err, userNotFound(userID))
		return
	}

	c.JSON(http.StatusOK, result.Document)
}

// DeleteUserPreferences handles DELETE /user/preferences/:user_id
func (h *UserPreferenceHandler) DeleteUserPreferences(c *gin.Context) {
	userID, err := userIDParam(c)
	if err != nil {
		respondInvalidRequest(c, err)
		return
	}

	result, err := h.preferenceService.DeleteUserPreferences(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err, userNotFound(userID))
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": result.Message})
}
