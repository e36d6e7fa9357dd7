package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"itsamatch-backend/models"
	"itsamatch-backend/repository"
	"itsamatch-backend/storage"

	"github.com/google/uuid"
)

var ErrStorageNotSet = errors.New("snapshot storage not set")

// SnapshotService copies preference documents between the store and object storage
type SnapshotService struct {
	store   repository.PreferenceStore
	storage storage.Storage
	now     func() time.Time
}

// SnapshotServiceOption is a functional option for SnapshotService
type SnapshotServiceOption func(*SnapshotService)

// SnapshotWithPreferenceStore sets the preference store
func SnapshotWithPreferenceStore(store repository.PreferenceStore) SnapshotServiceOption {
	return func(s *SnapshotService) {
		s.store = store
	}
}

// SnapshotWithStorage sets the object storage
func SnapshotWithStorage(st storage.Storage) SnapshotServiceOption {
	return func(s *SnapshotService) {
		s.storage = st
	}
}

// SnapshotWithClock overrides the time source used to name snapshots
func SnapshotWithClock(now func() time.Time) SnapshotServiceOption {
	return func(s *SnapshotService) {
		s.now = now
	}
}

// NewSnapshotService creates a new snapshot service
func NewSnapshotService(opts ...SnapshotServiceOption) *SnapshotService {
	s := &SnapshotService{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ExportSnapshotResult represents a written snapshot
type ExportSnapshotResult struct {
	StoragePath string
	Count       int
}

// ExportSnapshot writes every stored document as a JSON array
func (s *SnapshotService) ExportSnapshot(ctx context.Context) (*ExportSnapshotResult, error) {
	if s.store == nil {
		return nil, ErrStoreNotSet
	}
	if s.storage == nil {
		return nil, ErrStorageNotSet
	}

	docs, err := s.store.List(ctx)
	if err != nil {
		return nil, classify(err)
	}
	if docs == nil {
		docs = []*models.PreferenceDocument{}
	}

	data, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}

	name := fmt.Sprintf("preferences_%s.json", s.now().UTC().Format("20060102T150405Z"))
	path, err := s.storage.Upload(ctx, uuid.New(), name, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	return &ExportSnapshotResult{StoragePath: path, Count: len(docs)}, nil
}

// ListSnapshots returns stored snapshots, newest first
func (s *SnapshotService) ListSnapshots(ctx context.Context) ([]storage.ObjectInfo, error) {
	if s.storage == nil {
		return nil, ErrStorageNotSet
	}

	objects, err := s.storage.List(ctx, storage.SnapshotPrefix)
	if err != nil {
		return nil, err
	}
	if objects == nil {
		objects = []storage.ObjectInfo{}
	}
	return objects, nil
}

// OpenSnapshot returns the raw contents of a stored snapshot
func (s *SnapshotService) OpenSnapshot(ctx context.Context, storagePath string) (io.ReadCloser, error) {
	if s.storage == nil {
		return nil, ErrStorageNotSet
	}
	return s.storage.Download(ctx, storagePath)
}

// LoadSnapshot reads the documents of a stored snapshot
func (s *SnapshotService) LoadSnapshot(ctx context.Context, storagePath string) ([]*models.PreferenceDocument, error) {
	body, err := s.OpenSnapshot(ctx, storagePath)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	docs, err := DecodeSnapshot(body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode snapshot %s: %w", storagePath, err)
	}
	return docs, nil
}

// DecodeSnapshot parses a JSON array of preference documents
func DecodeSnapshot(r io.Reader) ([]*models.PreferenceDocument, error) {
	var docs []*models.PreferenceDocument
	if err := json.NewDecoder(r).Decode(&docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// ImportDocumentsRequest represents documents to write into the store
type ImportDocumentsRequest struct {
	Documents []*models.PreferenceDocument
	// Reset overwrites documents whose keys already exist
	Reset bool
}

// ImportDocumentsResult counts what the import did
type ImportDocumentsResult struct {
	Inserted int
	Replaced int
	Skipped  int
}

// ImportDocuments inserts documents whose keys are not already stored.
// With Reset, an existing document is rewritten in place by a single
// Replace, so a failed write leaves the previous document untouched.
func (s *SnapshotService) ImportDocuments(ctx context.Context, req ImportDocumentsRequest) (*ImportDocumentsResult, error) {
	if s.store == nil {
		return nil, ErrStoreNotSet
	}

	result := &ImportDocumentsResult{}
	for _, doc := range req.Documents {
		if doc == nil || doc.UserID == "" {
			result.Skipped++
			continue
		}

		if req.Reset {
			err := s.store.Replace(ctx, doc)
			if err == nil {
				result.Replaced++
				continue
			}
			if !errors.Is(err, repository.ErrNotFound) {
				return result, classify(err)
			}
		}

		_, inserted, err := s.store.InsertIfAbsent(ctx, doc)
		if err != nil {
			return result, classify(err)
		}
		if inserted {
			result.Inserted++
		} else {
			result.Skipped++
		}
	}

	return result, nil
}

// DeleteSnapshot removes a stored snapshot
func (s *SnapshotService) DeleteSnapshot(ctx context.Context, storagePath string) error {
	if s.storage == nil {
		return ErrStorageNotSet
	}
	return s.storage.Delete(ctx, storagePath)
}
