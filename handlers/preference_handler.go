package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"itsamatch-backend/models"
	"itsamatch-backend/service"

	"github.com/gin-gonic/gin"
)

// PreferenceHandler handles HTTP requests for per-application preferences
type PreferenceHandler struct {
	preferenceService *service.PreferenceService
}

// NewPreferenceHandler creates a new preference handler
func NewPreferenceHandler(preferenceService *service.PreferenceService) *PreferenceHandler {
	return &PreferenceHandler{preferenceService: preferenceService}
}

var (
	errEmptyUserID = errors.New("user_id must not be empty")
	errEmptyAppID  = errors.New("app_id must not be empty")
)

// appKey reads the path key. An empty app_id would address the user-scoped
// document, so both segments are required.
func appKey(c *gin.Context) (models.PreferenceKey, error) {
	key := models.PreferenceKey{
		UserID: c.Param("user_id"),
		AppID:  c.Param("app_id"),
	}
	if key.UserID == "" {
		return key, errEmptyUserID
	}
	if key.AppID == "" {
		return key, errEmptyAppID
	}
	return key, nil
}

func appNotFound(key models.PreferenceKey) string {
	return fmt.Sprintf("No preferences found for user %s and app %s", key.UserID, key.AppID)
}

// bindObject decodes the request body as an arbitrary JSON object
func bindObject(c *gin.Context) (map[string]interface{}, error) {
	var body map[string]interface{}
	if err := c.ShouldBindJSON(&body); err != nil {
		return nil, err
	}
	if body == nil {
		body = map[string]interface{}{}
	}
	return body, nil
}

// CreatePreferences handles POST /user/:user_id/app/:app_id/preferences
func (h *PreferenceHandler) CreatePreferences(c *gin.Context) {
	key, err := appKey(c)
	if err != nil {
		respondInvalidRequest(c, err)
		return
	}

	body, err := bindObject(c)
	if err != nil {
		respondInvalidRequest(c, err)
		return
	}

	result, err := h.preferenceService.CreateAppPreferences(c.Request.Context(), service.AppPreferencesRequest{
		Key:  key,
		Body: body,
	})
	if err != nil {
		respondError(c, err, appNotFound(key))
		return
	}

	c.JSON(http.StatusOK, result.Document)
}

// GetPreferences handles GET /user/:user_id/app/:app_id/preferences
func (h *PreferenceHandler) GetPreferences(c *gin.Context) {
	key, err := appKey(c)
	if err != nil {
		respondInvalidRequest(c, err)
		return
	}

	result, err := h.preferenceService.GetAppPreferences(c.Request.Context(), service.AppPreferencesRequest{Key: key})
	if err != nil {
		respondError(c, err, appNotFound(key))
		return
	}

	c.JSON(http.StatusOK, result.Document)
}

// UpsertPreferences handles PUT /user/:user_id/app/:app_id/preferences
func (h *PreferenceHandler) UpsertPreferences(c *gin.Context) {
	key, err := appKey(c)
	if err != nil {
		respondInvalidRequest(c, err)
		return
	}

	body, err := bindObject(c)
	if err != nil {
		respondInvalidRequest(c, err)
		return
	}

	result, err := h.preferenceService.UpsertAppPreferences(c.Request.Context(), service.AppPreferencesRequest{
		Key:  key,
		Body: body,
	})
	if err != nil {
		respondError(c, err, appNotFound(key))
		return
	}

	c.JSON(http.StatusOK, result.Document)
}

// DeletePreferences handles DELETE /user/:user_id/app/:app_id/preferences
func (h *PreferenceHandler) DeletePreferences(c *gin.Context) {
	key, err := appKey(c)
	if err != nil {
		respondInvalidRequest(c, err)
		return
	}

	result, err := h.preferenceService.DeleteAppPreferences(c.Request.Context(), service.AppPreferencesRequest{Key: key})
	if err != nil {
		respondError(c, err, appNotFound(key))
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": result.Message})
}
