package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"itsamatch-backend/models"
)

var (
	// ErrNotFound is returned when no document matches the key
	ErrNotFound = errors.New("preference document not found")
	// ErrUnknownField is returned when a partial update names a field outside the document shape
	ErrUnknownField = errors.New("unknown preference document field")
)

// Updatable document fields for partial updates
const (
	FieldPreferences = "preferences"
	FieldSettings    = "settings"
)

// PreferenceStore is the document-store boundary used by the services.
// Implementations are safe for concurrent use.
type PreferenceStore interface {
	// FindOne returns the document stored under key or ErrNotFound
	FindOne(ctx context.Context, key models.PreferenceKey) (*models.PreferenceDocument, error)

	// InsertIfAbsent atomically inserts doc unless a document with the same key exists.
	// It returns the stored document and whether doc was the one inserted.
	InsertIfAbsent(ctx context.Context, doc *models.PreferenceDocument) (*models.PreferenceDocument, bool, error)

	// Replace rewrites every field of the document stored under doc's key
	Replace(ctx context.Context, doc *models.PreferenceDocument) error

	// UpdateFields sets only the named top-level fields
	UpdateFields(ctx context.Context, key models.PreferenceKey, fields map[string]interface{}) error

	// Delete removes the document stored under key or returns ErrNotFound
	Delete(ctx context.Context, key models.PreferenceKey) error

	// List returns every stored document
	List(ctx context.Context) ([]*models.PreferenceDocument, error)

	// Stats describes the backing collection
	Stats(ctx context.Context) (*models.StoreStats, error)

	// EnsureSchema creates the unique (user_id, app_id) index or table if missing
	EnsureSchema(ctx context.Context) error

	// Ping verifies the store is reachable
	Ping(ctx context.Context) error

	// Close releases the underlying client
	Close(ctx context.Context) error
}

// StoreType represents the preference store backend
type StoreType string

const (
	StoreTypeMongo    StoreType = "mongo"
	StoreTypePostgres StoreType = "postgres"
	StoreTypeMemory   StoreType = "memory"
)

// StoreConfig holds configuration for the preference store
type StoreConfig struct {
	Type           StoreType
	MongoURL       string
	PostgresURL    string
	Database       string
	Collection     string
	ConnectTimeout time.Duration
}

// NewPreferenceStore connects to the configured backend and prepares its indexes
func NewPreferenceStore(ctx context.Context, cfg StoreConfig) (PreferenceStore, error) {
	switch cfg.Type {
	case StoreTypeMongo:
		return NewMongoPreferenceStore(ctx, cfg)
	case StoreTypePostgres:
		return NewPostgresPreferenceStore(ctx, cfg)
	case StoreTypeMemory:
		return NewMemoryPreferenceStore(WithMemoryNames(cfg.Database, cfg.Collection)), nil
	default:
		return nil, fmt.Errorf("unknown store type: %s", cfg.Type)
	}
}

func checkUpdateFields(fields map[string]interface{}) error {
	for name := range fields {
		if name != FieldPreferences && name != FieldSettings {
			return fmt.Errorf("%w: %s", ErrUnknownField, name)
		}
	}
	return nil
}

func fieldMap(v interface{}) map[string]interface{} {
	if v == nil {
		return nil
	}
	if m, ok := v.(map[string]interface{}); ok {
		return m
	}
	return nil
}
