package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SnapshotPrefix is the key prefix every stored snapshot lives under
const SnapshotPrefix = "snapshots/"

// ErrObjectNotFound is returned when a stored object does not exist
var ErrObjectNotFound = errors.New("stored object not found")

// Storage interface for snapshot object storage
type Storage interface {
	// Upload stores an object and returns the storage path
	Upload(ctx context.Context, objectID uuid.UUID, name string, data io.Reader) (string, error)

	// Download retrieves an object by storage path
	Download(ctx context.Context, storagePath string) (io.ReadCloser, error)

	// Delete removes an object by storage path
	Delete(ctx context.Context, storagePath string) error

	// List returns the objects whose path starts with prefix, newest first
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
}

// ObjectInfo describes a stored object
type ObjectInfo struct {
	Path       string    `json:"storage_path"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified_at"`
}

// StorageType represents the storage backend type
type StorageType string

const (
	StorageTypeLocal StorageType = "local"
	StorageTypeS3    StorageType = "s3"
)

// StorageConfig holds configuration for storage
type StorageConfig struct {
	Type         StorageType
	LocalPath    string // For local storage
	S3Bucket     string // For S3 storage
	S3Region     string // For S3 storage
	S3Endpoint   string // S3-compatible endpoint (MinIO, LocalStack); path-style addressing
	AWSAccessKey string
	AWSSecretKey string
}

// NewStorage creates a new storage instance based on configuration
func NewStorage(cfg StorageConfig) (Storage, error) {
	switch cfg.Type {
	case StorageTypeLocal:
		return NewLocalStorage(cfg.LocalPath)
	case StorageTypeS3:
		if cfg.S3Bucket == "" {
			return nil, errors.New("AWS_S3_BUCKET is required for S3 storage")
		}
		return NewS3Storage(cfg)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}

// generateStoragePath builds a unique path under snapshots/ for an object
func generateStoragePath(objectID uuid.UUID, name string) string {
	ext := filepath.Ext(name)
	baseName := strings.TrimSuffix(name, ext)
	baseName = strings.ReplaceAll(baseName, " ", "_")
	baseName = strings.ReplaceAll(baseName, "/", "_")
	baseName = strings.ReplaceAll(baseName, "\\", "_")

	return fmt.Sprintf("%s%s_%s%s", SnapshotPrefix, baseName, objectID.String(), ext)
}

func sortNewestFirst(objects []ObjectInfo) {
	sort.Slice(objects, func(i, j int) bool {
		if !objects[i].ModifiedAt.Equal(objects[j].ModifiedAt) {
			return objects[i].ModifiedAt.After(objects[j].ModifiedAt)
		}
		return objects[i].Path > objects[j].Path
	})
}

// getContentType determines content type from the object name
func getContentType(name string) string {
	switch filepath.Ext(name) {
	case ".json":
		return "application/json"
	case ".ndjson":
		return "application/x-ndjson"
	default:
		return "application/octet-stream"
	}
}
