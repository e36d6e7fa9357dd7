package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"itsamatch-backend/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStoreContract exercises behavior every PreferenceStore must share.
// Keys are randomized so the suite can run against a shared database.
func runStoreContract(t *testing.T, store PreferenceStore) {
	ctx := context.Background()
	now := models.Timestamp(time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC))

	newKey := func(app string) models.PreferenceKey {
		return models.PreferenceKey{UserID: "u-" + uuid.NewString(), AppID: app}
	}

	t.Run("find missing key", func(t *testing.T) {
		_, err := store.FindOne(ctx, newKey("chat"))
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("insert if absent keeps the first document", func(t *testing.T) {
		key := newKey("chat")
		first := models.NewAppPreferenceDocument(key, map[string]interface{}{"volume": float64(5)}, now)

		stored, inserted, err := store.InsertIfAbsent(ctx, first)
		require.NoError(t, err)
		assert.True(t, inserted)
		assert.Equal(t, map[string]interface{}{"volume": float64(5)}, stored.Preferences)
		assert.NotEmpty(t, stored.ID)

		second := models.NewAppPreferenceDocument(key, map[string]interface{}{"volume": float64(9)}, now.Add(time.Hour))
		stored, inserted, err = store.InsertIfAbsent(ctx, second)
		require.NoError(t, err)
		assert.False(t, inserted)
		assert.Equal(t, map[string]interface{}{"volume": float64(5)}, stored.Preferences)
		require.NotNil(t, stored.CreatedAt)
		assert.True(t, now.Equal(*stored.CreatedAt))
	})

	t.Run("nested values round trip", func(t *testing.T) {
		key := newKey("notes")
		body := map[string]interface{}{
			"layout": map[string]interface{}{
				"columns": []interface{}{"title", "date"},
				"width":   float64(320),
			},
			"pinned": true,
			"label":  nil,
		}
		_, _, err := store.InsertIfAbsent(ctx, models.NewAppPreferenceDocument(key, body, now))
		require.NoError(t, err)

		got, err := store.FindOne(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, body, got.Preferences)
		assert.Equal(t, key.UserID, got.UserID)
		assert.Equal(t, key.AppID, got.AppID)
	})

	t.Run("user and app scopes are independent", func(t *testing.T) {
		userKey := newKey("")
		appKey := models.PreferenceKey{UserID: userKey.UserID, AppID: "chat"}

		userDoc := models.NewUserPreferenceDocument(userKey.UserID, models.DefaultUserPreferences(), models.DefaultUserSettings())
		_, inserted, err := store.InsertIfAbsent(ctx, userDoc)
		require.NoError(t, err)
		require.True(t, inserted)

		_, err = store.FindOne(ctx, appKey)
		assert.ErrorIs(t, err, ErrNotFound)

		_, inserted, err = store.InsertIfAbsent(ctx, models.NewAppPreferenceDocument(appKey, map[string]interface{}{"a": "b"}, now))
		require.NoError(t, err)
		assert.True(t, inserted)

		got, err := store.FindOne(ctx, userKey)
		require.NoError(t, err)
		assert.Empty(t, got.AppID)
		assert.Equal(t, "dark", got.Preferences["theme"])
		assert.Equal(t, "UTC", got.Settings["timezone"])
		assert.Nil(t, got.CreatedAt)
	})

	t.Run("replace rewrites the document", func(t *testing.T) {
		key := newKey("chat")
		_, _, err := store.InsertIfAbsent(ctx, models.NewAppPreferenceDocument(key, map[string]interface{}{"old": true}, now))
		require.NoError(t, err)

		later := now.Add(time.Minute)
		replacement := models.NewAppPreferenceDocument(key, map[string]interface{}{"new": true}, later)
		replacement.CreatedAt = &now
		require.NoError(t, store.Replace(ctx, replacement))

		got, err := store.FindOne(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, map[string]interface{}{"new": true}, got.Preferences)
		assert.True(t, now.Equal(*got.CreatedAt))
		assert.True(t, later.Equal(*got.UpdatedAt))
	})

	t.Run("replace missing key", func(t *testing.T) {
		doc := models.NewAppPreferenceDocument(newKey("chat"), map[string]interface{}{}, now)
		assert.ErrorIs(t, store.Replace(ctx, doc), ErrNotFound)
	})

	t.Run("update fields touches only named fields", func(t *testing.T) {
		key := newKey("")
		doc := models.NewUserPreferenceDocument(key.UserID, models.DefaultUserPreferences(), models.DefaultUserSettings())
		_, _, err := store.InsertIfAbsent(ctx, doc)
		require.NoError(t, err)

		settings := models.UserSettings{Timezone: "Europe/Paris", Location: "FR"}
		require.NoError(t, store.UpdateFields(ctx, key, map[string]interface{}{FieldSettings: settings.Fields()}))

		got, err := store.FindOne(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "Europe/Paris", got.Settings["timezone"])
		assert.Equal(t, "FR", got.Settings["location"])
		assert.Equal(t, "dark", got.Preferences["theme"])
		assert.Equal(t, true, got.Preferences["notifications_enabled"])
	})

	t.Run("update fields rejects unknown field", func(t *testing.T) {
		err := store.UpdateFields(ctx, newKey(""), map[string]interface{}{"user_id": "x"})
		assert.ErrorIs(t, err, ErrUnknownField)
	})

	t.Run("update fields missing key", func(t *testing.T) {
		err := store.UpdateFields(ctx, newKey(""), map[string]interface{}{FieldPreferences: map[string]interface{}{}})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		key := newKey("chat")
		_, _, err := store.InsertIfAbsent(ctx, models.NewAppPreferenceDocument(key, nil, now))
		require.NoError(t, err)

		require.NoError(t, store.Delete(ctx, key))
		_, err = store.FindOne(ctx, key)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, store.Delete(ctx, key), ErrNotFound)
	})

	t.Run("list and stats", func(t *testing.T) {
		key := newKey("listed")
		_, _, err := store.InsertIfAbsent(ctx, models.NewAppPreferenceDocument(key, map[string]interface{}{"x": float64(1)}, now))
		require.NoError(t, err)

		docs, err := store.List(ctx)
		require.NoError(t, err)
		found := false
		for _, d := range docs {
			if d.Key() == key {
				found = true
			}
		}
		assert.True(t, found)

		stats, err := store.Stats(ctx)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, stats.DocumentCount, int64(1))
		assert.NotEmpty(t, stats.Collection)
		require.NoError(t, store.Ping(ctx))
	})

	t.Run("concurrent inserts have one winner", func(t *testing.T) {
		key := newKey("race")
		const writers = 8

		var wg sync.WaitGroup
		var mu sync.Mutex
		winners := 0
		bodies := make([]interface{}, 0, writers)
		errs := make([]error, 0)

		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				doc := models.NewAppPreferenceDocument(key, map[string]interface{}{"writer": float64(i)}, now)
				stored, inserted, err := store.InsertIfAbsent(ctx, doc)

				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					errs = append(errs, err)
					return
				}
				if inserted {
					winners++
				}
				bodies = append(bodies, stored.Preferences["writer"])
			}(i)
		}
		wg.Wait()

		require.Empty(t, errs)
		assert.Equal(t, 1, winners)
		for _, b := range bodies {
			assert.Equal(t, bodies[0], b)
		}
	})
}

func TestMemoryPreferenceStore(t *testing.T) {
	runStoreContract(t, NewMemoryPreferenceStore())
}

func TestMemoryPreferenceStore_ReturnsCopies(t *testing.T) {
	store := NewMemoryPreferenceStore()
	ctx := context.Background()
	key := models.PreferenceKey{UserID: "u1", AppID: "chat"}

	stored, _, err := store.InsertIfAbsent(ctx, models.NewAppPreferenceDocument(key, map[string]interface{}{"volume": float64(5)}, time.Now()))
	require.NoError(t, err)
	stored.Preferences["volume"] = float64(99)

	got, err := store.FindOne(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, float64(5), got.Preferences["volume"])
}

func TestNewPreferenceStore_UnknownType(t *testing.T) {
	_, err := NewPreferenceStore(context.Background(), StoreConfig{Type: "cassandra"})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Contains(t, err.Error(), "unknown store type")
}

func TestNewPreferenceStore_Memory(t *testing.T) {
	store, err := NewPreferenceStore(context.Background(), StoreConfig{Type: StoreTypeMemory})
	require.NoError(t, err)
	assert.IsType(t, &MemoryPreferenceStore{}, store)
	assert.NoError(t, store.Close(context.Background()))
}

func TestNewPreferenceStore_MemoryReportsConfiguredNames(t *testing.T) {
	ctx := context.Background()
	store, err := NewPreferenceStore(ctx, StoreConfig{Type: StoreTypeMemory, Database: "ItsAMatch", Collection: "generic"})
	require.NoError(t, err)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, "memory", stats.Backend)
	assert.Equal(t, "ItsAMatch", stats.Database)
	assert.Equal(t, "generic", stats.Collection)

	stats, err = NewMemoryPreferenceStore().Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, "memory", stats.Database)
	assert.Equal(t, "preferences", stats.Collection)
}
