package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"itsamatch-backend/models"
	"itsamatch-backend/repository"
	"itsamatch-backend/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotExportAndImport(t *testing.T) {
	ctx := context.Background()
	fixed := func() time.Time { return time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC) }

	local, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	source := repository.NewMemoryPreferenceStore()
	prefs := NewPreferenceService(WithPreferenceStore(source), WithClock(fixed))
	_, err = prefs.CreateAppPreferences(ctx, AppPreferencesRequest{
		Key:  models.PreferenceKey{UserID: "u1", AppID: "chat"},
		Body: map[string]interface{}{"volume": float64(5)},
	})
	require.NoError(t, err)
	_, err = prefs.CreateUserPreferences(ctx, CreateUserPreferencesRequest{
		UserID:      "user1",
		Preferences: models.DefaultUserPreferences(),
		Settings:    models.DefaultUserSettings(),
	})
	require.NoError(t, err)

	exporter := NewSnapshotService(
		SnapshotWithPreferenceStore(source),
		SnapshotWithStorage(local),
		SnapshotWithClock(fixed),
	)
	exported, err := exporter.ExportSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, exported.Count)
	assert.True(t, strings.HasPrefix(exported.StoragePath, "snapshots/preferences_20260601T080000Z_"))
	assert.True(t, strings.HasSuffix(exported.StoragePath, ".json"))

	docs, err := exporter.LoadSnapshot(ctx, exported.StoragePath)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	target := repository.NewMemoryPreferenceStore()
	importer := NewSnapshotService(SnapshotWithPreferenceStore(target), SnapshotWithStorage(local))

	result, err := importer.ImportDocuments(ctx, ImportDocumentsRequest{Documents: docs})
	require.NoError(t, err)
	assert.Equal(t, &ImportDocumentsResult{Inserted: 2}, result)

	got, err := target.FindOne(ctx, models.PreferenceKey{UserID: "u1", AppID: "chat"})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"volume": float64(5)}, got.Preferences)
	assert.True(t, fixed().Equal(*got.CreatedAt))

	result, err = importer.ImportDocuments(ctx, ImportDocumentsRequest{Documents: append(docs, nil)})
	require.NoError(t, err)
	assert.Equal(t, &ImportDocumentsResult{Skipped: 3}, result)
}

func TestImportDocuments_Reset(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryPreferenceStore()
	key := models.PreferenceKey{UserID: "user2"}

	_, _, err := store.InsertIfAbsent(ctx, models.NewUserPreferenceDocument("user2", models.DefaultUserPreferences(), models.DefaultUserSettings()))
	require.NoError(t, err)

	light := models.UserPreferences{Theme: "light", NotificationsEnabled: false, Language: "es"}
	svc := NewSnapshotService(SnapshotWithPreferenceStore(store))
	result, err := svc.ImportDocuments(ctx, ImportDocumentsRequest{
		Documents: []*models.PreferenceDocument{
			models.NewUserPreferenceDocument("user2", light, models.DefaultUserSettings()),
		},
		Reset: true,
	})
	require.NoError(t, err)
	assert.Equal(t, &ImportDocumentsResult{Replaced: 1}, result)

	got, err := store.FindOne(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "light", got.Preferences["theme"])

	result, err = svc.ImportDocuments(ctx, ImportDocumentsRequest{
		Documents: []*models.PreferenceDocument{
			models.NewUserPreferenceDocument("user3", light, models.DefaultUserSettings()),
		},
		Reset: true,
	})
	require.NoError(t, err)
	assert.Equal(t, &ImportDocumentsResult{Inserted: 1}, result)
}

// replaceFailingStore fails every Replace
type replaceFailingStore struct {
	*repository.MemoryPreferenceStore
}

func (replaceFailingStore) Replace(ctx context.Context, doc *models.PreferenceDocument) error {
	return errors.New("write conflict")
}

func TestImportDocuments_ResetFailureKeepsExistingDocument(t *testing.T) {
	ctx := context.Background()
	store := replaceFailingStore{repository.NewMemoryPreferenceStore()}
	_, _, err := store.InsertIfAbsent(ctx, models.NewUserPreferenceDocument("user2", models.DefaultUserPreferences(), models.DefaultUserSettings()))
	require.NoError(t, err)

	light := models.UserPreferences{Theme: "light", Language: "es"}
	svc := NewSnapshotService(SnapshotWithPreferenceStore(store))
	result, err := svc.ImportDocuments(ctx, ImportDocumentsRequest{
		Documents: []*models.PreferenceDocument{
			models.NewUserPreferenceDocument("user2", light, models.DefaultUserSettings()),
		},
		Reset: true,
	})
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.Equal(t, &ImportDocumentsResult{}, result)

	got, err := store.FindOne(ctx, models.PreferenceKey{UserID: "user2"})
	require.NoError(t, err)
	assert.Equal(t, "dark", got.Preferences["theme"])
}

func TestDeleteSnapshot(t *testing.T) {
	ctx := context.Background()
	local, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	svc := NewSnapshotService(
		SnapshotWithPreferenceStore(repository.NewMemoryPreferenceStore()),
		SnapshotWithStorage(local),
	)
	exported, err := svc.ExportSnapshot(ctx)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteSnapshot(ctx, exported.StoragePath))
	assert.ErrorIs(t, svc.DeleteSnapshot(ctx, exported.StoragePath), storage.ErrObjectNotFound)

	snapshots, err := svc.ListSnapshots(ctx)
	require.NoError(t, err)
	assert.Empty(t, snapshots)
}

func TestSnapshotService_MissingDependencies(t *testing.T) {
	ctx := context.Background()

	_, err := NewSnapshotService().ExportSnapshot(ctx)
	assert.ErrorIs(t, err, ErrStoreNotSet)

	_, err = NewSnapshotService(SnapshotWithPreferenceStore(repository.NewMemoryPreferenceStore())).ExportSnapshot(ctx)
	assert.ErrorIs(t, err, ErrStorageNotSet)

	_, err = NewSnapshotService().LoadSnapshot(ctx, "snapshots/x.json")
	assert.ErrorIs(t, err, ErrStorageNotSet)

	assert.ErrorIs(t, NewSnapshotService().DeleteSnapshot(ctx, "snapshots/x.json"), ErrStorageNotSet)
}
