package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"path"
	"strconv"
	"strings"

	"itsamatch-backend/middleware"
	"itsamatch-backend/service"
	"itsamatch-backend/storage"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// SnapshotHandler handles HTTP requests for preference snapshots
type SnapshotHandler struct {
	snapshotService *service.SnapshotService
	maxFileSize     int64
}

// NewSnapshotHandler creates a new snapshot handler
func NewSnapshotHandler(snapshotService *service.SnapshotService) *SnapshotHandler {
	return &SnapshotHandler{
		snapshotService: snapshotService,
		maxFileSize:     10 * 1024 * 1024, // 10MB
	}
}

func (h *SnapshotHandler) respondSnapshotError(c *gin.Context, err error, code string) {
	_ = c.Error(err)
	log.Error().
		Err(err).
		Str("path", c.Request.URL.Path).
		Str("request_id", middleware.GetRequestID(c)).
		Msg("snapshot operation failed")
	c.JSON(http.StatusInternalServerError, gin.H{
		"detail": "Internal server error",
		"code":   code,
	})
}

// ExportSnapshot handles POST /admin/snapshots
func (h *SnapshotHandler) ExportSnapshot(c *gin.Context) {
	result, err := h.snapshotService.ExportSnapshot(c.Request.Context())
	if err != nil {
		h.respondSnapshotError(c, err, "EXPORT_FAILED")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"storage_path": result.StoragePath,
		"count":        result.Count,
	})
}

// ListSnapshots handles GET /admin/snapshots
func (h *SnapshotHandler) ListSnapshots(c *gin.Context) {
	objects, err := h.snapshotService.ListSnapshots(c.Request.Context())
	if err != nil {
		h.respondSnapshotError(c, err, "LIST_FAILED")
		return
	}

	c.JSON(http.StatusOK, gin.H{"snapshots": objects})
}

// snapshotPath reads the catch-all path and writes a 400 when it falls
// outside the snapshot prefix
func snapshotPath(c *gin.Context) (string, bool) {
	storagePath := strings.TrimPrefix(c.Param("path"), "/")
	if !strings.HasPrefix(storagePath, storage.SnapshotPrefix) || strings.Contains(storagePath, "..") {
		c.JSON(http.StatusBadRequest, gin.H{
			"detail": "Invalid snapshot path",
			"code":   "INVALID_PATH",
		})
		return "", false
	}
	return storagePath, true
}

func snapshotNotFound(c *gin.Context, storagePath string) {
	c.JSON(http.StatusNotFound, gin.H{
		"detail": fmt.Sprintf("Snapshot %s not found", storagePath),
		"code":   "NOT_FOUND",
	})
}

// GetSnapshot handles GET /admin/snapshots/*path
func (h *SnapshotHandler) GetSnapshot(c *gin.Context) {
	storagePath, ok := snapshotPath(c)
	if !ok {
		return
	}

	reader, err := h.snapshotService.OpenSnapshot(c.Request.Context(), storagePath)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			snapshotNotFound(c, storagePath)
			return
		}
		h.respondSnapshotError(c, err, "DOWNLOAD_FAILED")
		return
	}
	defer reader.Close()

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", path.Base(storagePath)))
	c.DataFromReader(http.StatusOK, -1, "application/json", reader, nil)
}

// DeleteSnapshot handles DELETE /admin/snapshots/*path
func (h *SnapshotHandler) DeleteSnapshot(c *gin.Context) {
	storagePath, ok := snapshotPath(c)
	if !ok {
		return
	}

	if err := h.snapshotService.DeleteSnapshot(c.Request.Context(), storagePath); err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			snapshotNotFound(c, storagePath)
			return
		}
		h.respondSnapshotError(c, err, "DELETE_FAILED")
		return
	}

	log.Info().Str("storage_path", storagePath).Msg("snapshot deleted")
	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("Snapshot %s deleted", storagePath)})
}

// ImportSnapshot handles POST /admin/snapshots/import.
// The multipart "file" field holds a JSON array of documents; "reset=true"
// replaces documents whose keys already exist.
func (h *SnapshotHandler) ImportSnapshot(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"detail": "File is required",
			"code":   "MISSING_FILE",
		})
		return
	}

	if fileHeader.Size > h.maxFileSize {
		c.JSON(http.StatusBadRequest, gin.H{
			"detail": fmt.Sprintf("File size exceeds maximum of %d bytes", h.maxFileSize),
			"code":   "FILE_TOO_LARGE",
		})
		return
	}

	reset := false
	if v := c.PostForm("reset"); v != "" {
		reset, err = strconv.ParseBool(v)
		if err != nil {
			respondInvalidRequest(c, fmt.Errorf("invalid reset value: %w", err))
			return
		}
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.respondSnapshotError(c, err, "FILE_OPEN_ERROR")
		return
	}
	defer file.Close()

	docs, err := service.DecodeSnapshot(file)
	if err != nil {
		respondInvalidRequest(c, fmt.Errorf("invalid snapshot: %w", err))
		return
	}

	result, err := h.snapshotService.ImportDocuments(c.Request.Context(), service.ImportDocumentsRequest{
		Documents: docs,
		Reset:     reset,
	})
	if err != nil {
		respondError(c, err, "No preferences found")
		return
	}

	log.Info().
		Str("filename", fileHeader.Filename).
		Int("inserted", result.Inserted).
		Int("replaced", result.Replaced).
		Int("skipped", result.Skipped).
		Msg("snapshot imported")

	c.JSON(http.StatusOK, gin.H{
		"inserted": result.Inserted,
		"replaced": result.Replaced,
		"skipped":  result.Skipped,
	})
}
