package handlers

import (
	"errors"
	"net/http"

	"itsamatch-backend/middleware"
	"itsamatch-backend/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// respondError writes {"detail", "code"} with the status matching err.
// Store failures are logged with their cause and reported generically.
func respondError(c *gin.Context, err error, notFoundDetail string) {
	switch {
	case errors.Is(err, service.ErrPreferencesNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"detail": notFoundDetail,
			"code":   "NOT_FOUND",
		})
	case errors.Is(err, service.ErrPreferencesExist):
		c.JSON(http.StatusBadRequest, gin.H{
			"detail": err.Error(),
			"code":   "ALREADY_EXISTS",
		})
	case errors.Is(err, service.ErrNoUpdateData):
		c.JSON(http.StatusBadRequest, gin.H{
			"detail": "No update data provided",
			"code":   "NO_UPDATE_DATA",
		})
	default:
		_ = c.Error(err)
		log.Error().
			Err(err).
			Str("path", c.Request.URL.Path).
			Str("request_id", middleware.GetRequestID(c)).
			Msg("preference store operation failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"detail": "Internal server error",
			"code":   "INTERNAL_ERROR",
		})
	}
}

func respondInvalidRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"detail": err.Error(),
		"code":   "INVALID_REQUEST",
	})
}
