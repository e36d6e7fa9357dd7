package handlers

import (
	"net/http"

	"itsamatch-backend/middleware"
	"itsamatch-backend/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// SystemHandler serves the welcome, health, diagnostics and listing endpoints
type SystemHandler struct {
	preferenceService *service.PreferenceService
	connectionString  string
}

// NewSystemHandler creates a new system handler.
// connectionString is shown by /test-connection and must already be redacted.
func NewSystemHandler(preferenceService *service.PreferenceService, connectionString string) *SystemHandler {
	return &SystemHandler{
		preferenceService: preferenceService,
		connectionString:  connectionString,
	}
}

// Root handles GET /
func (h *SystemHandler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Welcome to the ItsAMatch API"})
}

// Health handles GET /health
func (h *SystemHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// TestConnection handles GET /test-connection
func (h *SystemHandler) TestConnection(c *gin.Context) {
	stats, err := h.preferenceService.CheckConnection(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		log.Error().
			Err(err).
			Str("request_id", middleware.GetRequestID(c)).
			Msg("store connection check failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"detail": "Database connection error",
			"code":   "STORE_UNAVAILABLE",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"connection_string": h.connectionString,
		"status":            "Connected",
		"database": gin.H{
			"name":           stats.Database,
			"status":         "Connected",
			"backend":        stats.Backend,
			"collection":     stats.Collection,
			"document_count": stats.DocumentCount,
			"size":           stats.SizeBytes,
		},
	})
}

// ListPreferences handles GET /generic
func (h *SystemHandler) ListPreferences(c *gin.Context) {
	result, err := h.preferenceService.ListPreferences(c.Request.Context())
	if err != nil {
		respondError(c, err, "No preferences found")
		return
	}

	c.JSON(http.StatusOK, result.Documents)
}
