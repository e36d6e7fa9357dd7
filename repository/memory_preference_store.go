package repository

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"itsamatch-backend/models"

	"github.com/google/uuid"
)

// MemoryPreferenceStore keeps preference documents in process memory.
// Used for local development and tests.
type MemoryPreferenceStore struct {
	mu         sync.RWMutex
	docs       map[models.PreferenceKey]*models.PreferenceDocument
	database   string
	collection string
}

// MemoryStoreOption configures a MemoryPreferenceStore
type MemoryStoreOption func(*MemoryPreferenceStore)

// WithMemoryNames sets the database and collection names reported by Stats.
// Empty names keep the defaults.
func WithMemoryNames(database, collection string) MemoryStoreOption {
	return func(s *MemoryPreferenceStore) {
		if database != "" {
			s.database = database
		}
		if collection != "" {
			s.collection = collection
		}
	}
}

// NewMemoryPreferenceStore creates an empty in-memory store
func NewMemoryPreferenceStore(opts ...MemoryStoreOption) *MemoryPreferenceStore {
	s := &MemoryPreferenceStore{
		docs:       make(map[models.PreferenceKey]*models.PreferenceDocument),
		database:   "memory",
		collection: "preferences",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FindOne returns a copy of the stored document
func (s *MemoryPreferenceStore) FindOne(ctx context.Context, key models.PreferenceKey) (*models.PreferenceDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[key]
	if !ok {
		return nil, ErrNotFound
	}
	return doc.Clone(), nil
}

// InsertIfAbsent inserts doc unless its key is taken
func (s *MemoryPreferenceStore) InsertIfAbsent(ctx context.Context, doc *models.PreferenceDocument) (*models.PreferenceDocument, bool, error) {
	stored := doc.Clone()
	stored.Preferences = normalizeFields(stored.Preferences)
	stored.Settings = normalizeFields(stored.Settings)

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.docs[doc.Key()]; ok {
		return existing.Clone(), false, nil
	}
	stored.ID = uuid.NewString()
	s.docs[doc.Key()] = stored
	return stored.Clone(), true, nil
}

// Replace rewrites the stored document, keeping its internal id
func (s *MemoryPreferenceStore) Replace(ctx context.Context, doc *models.PreferenceDocument) error {
	replacement := doc.Clone()
	replacement.Preferences = normalizeFields(replacement.Preferences)
	replacement.Settings = normalizeFields(replacement.Settings)

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.docs[doc.Key()]
	if !ok {
		return ErrNotFound
	}
	replacement.ID = existing.ID
	s.docs[doc.Key()] = replacement
	return nil
}

// UpdateFields sets the named fields on the stored document
func (s *MemoryPreferenceStore) UpdateFields(ctx context.Context, key models.PreferenceKey, fields map[string]interface{}) error {
	if err := checkUpdateFields(fields); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[key]
	if !ok {
		return ErrNotFound
	}
	updated := doc.Clone()
	if v, ok := fields[FieldPreferences]; ok {
		updated.Preferences = normalizeFields(fieldMap(v))
	}
	if v, ok := fields[FieldSettings]; ok {
		updated.Settings = normalizeFields(fieldMap(v))
	}
	s.docs[key] = updated
	return nil
}

// Delete removes the stored document
func (s *MemoryPreferenceStore) Delete(ctx context.Context, key models.PreferenceKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[key]; !ok {
		return ErrNotFound
	}
	delete(s.docs, key)
	return nil
}

// List returns every document ordered by user and application
func (s *MemoryPreferenceStore) List(ctx context.Context) ([]*models.PreferenceDocument, error) {
	s.mu.RLock()
	docs := make([]*models.PreferenceDocument, 0, len(s.docs))
	for _, doc := range s.docs {
		docs = append(docs, doc.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(docs, func(i, j int) bool {
		if docs[i].UserID != docs[j].UserID {
			return docs[i].UserID < docs[j].UserID
		}
		return docs[i].AppID < docs[j].AppID
	})
	return docs, nil
}

// Stats reports the document count and the JSON size of the stored documents
func (s *MemoryPreferenceStore) Stats(ctx context.Context) (*models.StoreStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var size int64
	for _, doc := range s.docs {
		data, err := json.Marshal(doc)
		if err != nil {
			return nil, err
		}
		size += int64(len(data))
	}

	return &models.StoreStats{
		Backend:       string(StoreTypeMemory),
		Database:      s.database,
		Collection:    s.collection,
		DocumentCount: int64(len(s.docs)),
		SizeBytes:     size,
	}, nil
}

// EnsureSchema is a no-op; keys are unique by construction
func (s *MemoryPreferenceStore) EnsureSchema(ctx context.Context) error {
	return nil
}

// Ping always succeeds
func (s *MemoryPreferenceStore) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op
func (s *MemoryPreferenceStore) Close(ctx context.Context) error {
	return nil
}

// normalizeFields stores values the way a JSON document store would return them
func normalizeFields(fields map[string]interface{}) map[string]interface{} {
	if fields == nil {
		return nil
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return models.CloneFields(fields)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return models.CloneFields(fields)
	}
	return out
}
