package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"itsamatch-backend/models"
	"itsamatch-backend/repository"
)

var (
	ErrStoreNotSet         = errors.New("preference store not set")
	ErrPreferencesNotFound = errors.New("preferences not found")
	ErrPreferencesExist    = errors.New("preferences already exist")
	ErrNoUpdateData        = errors.New("no update data provided")
	ErrStoreUnavailable    = errors.New("preference store unavailable")
)

// PreferenceService handles preference document operations
type PreferenceService struct {
	store repository.PreferenceStore
	now   func() time.Time
}

// PreferenceServiceOption is a functional option for PreferenceService
type PreferenceServiceOption func(*PreferenceService)

// WithPreferenceStore sets the preference store
func WithPreferenceStore(store repository.PreferenceStore) PreferenceServiceOption {
	return func(s *PreferenceService) {
		s.store = store
	}
}

// WithClock overrides the time source used for document timestamps
func WithClock(now func() time.Time) PreferenceServiceOption {
	return func(s *PreferenceService) {
		s.now = now
	}
}

// NewPreferenceService creates a new preference service
func NewPreferenceService(opts ...PreferenceServiceOption) *PreferenceService {
	s := &PreferenceService{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// classify maps repository failures onto service errors
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, repository.ErrNotFound) {
		return ErrPreferencesNotFound
	}
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}

// PreferencesResult carries a stored document back to the caller
type PreferencesResult struct {
	Document *models.PreferenceDocument
}

// DeletePreferencesResult represents the result of deleting a document
type DeletePreferencesResult struct {
	Message string
}

// AppPreferencesRequest addresses a per-application document.
// Body is ignored by Get and Delete.
type AppPreferencesRequest struct {
	Key  models.PreferenceKey
	Body map[string]interface{}
}

// CreateAppPreferences stores body for the key unless a document already exists,
// in which case the existing document is returned unchanged.
func (s *PreferenceService) CreateAppPreferences(ctx context.Context, req AppPreferencesRequest) (*PreferencesResult, error) {
	if s.store == nil {
		return nil, ErrStoreNotSet
	}

	existing, err := s.store.FindOne(ctx, req.Key)
	if err == nil {
		return &PreferencesResult{Document: existing}, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, classify(err)
	}

	doc := models.NewAppPreferenceDocument(req.Key, req.Body, s.now())
	stored, _, err := s.store.InsertIfAbsent(ctx, doc)
	if err != nil {
		return nil, classify(err)
	}

	return &PreferencesResult{Document: stored}, nil
}

// GetAppPreferences retrieves a per-application document
func (s *PreferenceService) GetAppPreferences(ctx context.Context, req AppPreferencesRequest) (*PreferencesResult, error) {
	if s.store == nil {
		return nil, ErrStoreNotSet
	}

	doc, err := s.store.FindOne(ctx, req.Key)
	if err != nil {
		return nil, classify(err)
	}

	return &PreferencesResult{Document: doc}, nil
}

// UpsertAppPreferences inserts the document if absent, otherwise replaces its
// preferences and advances updated_at while keeping created_at.
func (s *PreferenceService) UpsertAppPreferences(ctx context.Context, req AppPreferencesRequest) (*PreferencesResult, error) {
	if s.store == nil {
		return nil, ErrStoreNotSet
	}

	now := s.now()
	existing, err := s.store.FindOne(ctx, req.Key)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, classify(err)
		}

		doc := models.NewAppPreferenceDocument(req.Key, req.Body, now)
		stored, inserted, err := s.store.InsertIfAbsent(ctx, doc)
		if err != nil {
			return nil, classify(err)
		}
		if inserted {
			return &PreferencesResult{Document: stored}, nil
		}
		// Lost an insert race; fall through and replace the winner.
		existing = stored
	}

	doc := models.NewAppPreferenceDocument(req.Key, req.Body, now)
	doc.CreatedAt = existing.CreatedAt
	if doc.CreatedAt == nil {
		doc.CreatedAt = doc.UpdatedAt
	}

	if err := s.store.Replace(ctx, doc); err != nil {
		return nil, classify(err)
	}

	stored, err := s.store.FindOne(ctx, req.Key)
	if err != nil {
		return nil, classify(err)
	}
	return &PreferencesResult{Document: stored}, nil
}

// DeleteAppPreferences removes a per-application document
func (s *PreferenceService) DeleteAppPreferences(ctx context.Context, req AppPreferencesRequest) (*DeletePreferencesResult, error) {
	if s.store == nil {
		return nil, ErrStoreNotSet
	}

	if err := s.store.Delete(ctx, req.Key); err != nil {
		return nil, classify(err)
	}

	return &DeletePreferencesResult{
		Message: fmt.Sprintf("Preferences for user %s and app %s deleted successfully", req.Key.UserID, req.Key.AppID),
	}, nil
}

// CreateUserPreferencesRequest represents a request to create user-scoped preferences
type CreateUserPreferencesRequest struct {
	UserID      string
	Preferences models.UserPreferences
	Settings    models.UserSettings
}

// CreateUserPreferences stores a user-scoped document and fails with
// ErrPreferencesExist when one is already stored.
func (s *PreferenceService) CreateUserPreferences(ctx context.Context, req CreateUserPreferencesRequest) (*PreferencesResult, error) {
	if s.store == nil {
		return nil, ErrStoreNotSet
	}

	doc := models.NewUserPreferenceDocument(req.UserID, req.Preferences, req.Settings)
	stored, inserted, err := s.store.InsertIfAbsent(ctx, doc)
	if err != nil {
		return nil, classify(err)
	}
	if !inserted {
		return nil, fmt.Errorf("%w for user %s", ErrPreferencesExist, req.UserID)
	}

	return &PreferencesResult{Document: stored}, nil
}

// GetUserPreferences retrieves user-scoped preferences
func (s *PreferenceService) GetUserPreferences(ctx context.Context, userID string) (*PreferencesResult, error) {
	if s.store == nil {
		return nil, ErrStoreNotSet
	}

	doc, err := s.store.FindOne(ctx, models.PreferenceKey{UserID: userID})
	if err != nil {
		return nil, classify(err)
	}

	return &PreferencesResult{Document: doc}, nil
}

// UpdateUserPreferencesRequest represents a partial update of user-scoped preferences.
// Nil fields keep their stored values.
type UpdateUserPreferencesRequest struct {
	UserID      string
	Preferences *models.UserPreferences
	Settings    *models.UserSettings
}

// UpdateUserPreferences sets only the supplied sub-objects
func (s *PreferenceService) UpdateUserPreferences(ctx context.Context, req UpdateUserPreferencesRequest) (*PreferencesResult, error) {
	if s.store == nil {
		return nil, ErrStoreNotSet
	}

	key := models.PreferenceKey{UserID: req.UserID}
	if _, err := s.store.FindOne(ctx, key); err != nil {
		return nil, classify(err)
	}

	fields := make(map[string]interface{})
	if req.Preferences != nil {
		fields[repository.FieldPreferences] = req.Preferences.Fields()
	}
	if req.Settings != nil {
		fields[repository.FieldSettings] = req.Settings.Fields()
	}
	if len(fields) == 0 {
		return nil, ErrNoUpdateData
	}

	if err := s.store.UpdateFields(ctx, key, fields); err != nil {
		return nil, classify(err)
	}

	updated, err := s.store.FindOne(ctx, key)
	if err != nil {
		return nil, classify(err)
	}
	return &PreferencesResult{Document: updated}, nil
}

// DeleteUserPreferences removes user-scoped preferences
func (s *PreferenceService) DeleteUserPreferences(ctx context.Context, userID string) (*DeletePreferencesResult, error) {
	if s.store == nil {
		return nil, ErrStoreNotSet
	}

	if err := s.store.Delete(ctx, models.PreferenceKey{UserID: userID}); err != nil {
		return nil, classify(err)
	}

	return &DeletePreferencesResult{
		Message: fmt.Sprintf("Preferences for user %s deleted successfully", userID),
	}, nil
}

// ListPreferencesResult represents every stored document
type ListPreferencesResult struct {
	Documents []*models.PreferenceDocument
}

// ListPreferences returns every stored document
func (s *PreferenceService) ListPreferences(ctx context.Context) (*ListPreferencesResult, error) {
	if s.store == nil {
		return nil, ErrStoreNotSet
	}

	docs, err := s.store.List(ctx)
	if err != nil {
		return nil, classify(err)
	}
	if docs == nil {
		docs = []*models.PreferenceDocument{}
	}

	return &ListPreferencesResult{Documents: docs}, nil
}

// CheckConnection pings the store and reads collection statistics
func (s *PreferenceService) CheckConnection(ctx context.Context) (*models.StoreStats, error) {
	if s.store == nil {
		return nil, ErrStoreNotSet
	}

	if err := s.store.Ping(ctx); err != nil {
		return nil, classify(err)
	}

	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, classify(err)
	}
	return stats, nil
}
