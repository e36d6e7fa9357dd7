package server

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"itsamatch-backend/models"
	"itsamatch-backend/repository"
	"itsamatch-backend/service"
	"itsamatch-backend/storage"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSnapshotRouter(t *testing.T, store repository.PreferenceStore) *gin.Engine {
	t.Helper()
	local, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	return NewRouter(RouterConfig{
		PreferenceService: service.NewPreferenceService(service.WithPreferenceStore(store)),
		SnapshotService: service.NewSnapshotService(
			service.SnapshotWithPreferenceStore(store),
			service.SnapshotWithStorage(local),
		),
	})
}

func multipartImport(t *testing.T, payload, reset string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "preferences.json")
	require.NoError(t, err)
	_, err = fw.Write([]byte(payload))
	require.NoError(t, err)
	if reset != "" {
		require.NoError(t, mw.WriteField("reset", reset))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/admin/snapshots/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestSnapshotRoutes_ExportAndDownload(t *testing.T) {
	store := repository.NewMemoryPreferenceStore()
	r := newSnapshotRouter(t, store)

	w := do(t, r, http.MethodPut, "/user/u1/app/chat/preferences", `{"volume":5}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, r, http.MethodPost, "/admin/snapshots", "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	exported := decode(t, w)
	assert.Equal(t, float64(1), exported["count"])
	path := exported["storage_path"].(string)

	w = do(t, r, http.MethodGet, "/admin/snapshots", "")
	require.Equal(t, http.StatusOK, w.Code)
	var listed struct {
		Snapshots []storage.ObjectInfo `json:"snapshots"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	require.Len(t, listed.Snapshots, 1)
	assert.Equal(t, path, listed.Snapshots[0].Path)
	assert.Positive(t, listed.Snapshots[0].Size)

	w = do(t, r, http.MethodGet, "/admin/snapshots/"+path, "")
	require.Equal(t, http.StatusOK, w.Code)
	var docs []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &docs))
	require.Len(t, docs, 1)
	assert.Equal(t, "u1", docs[0]["user_id"])
	assertNoInternalID(t, w.Body.String())

	w = do(t, r, http.MethodGet, "/admin/snapshots/snapshots/missing.json", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, r, http.MethodGet, "/admin/snapshots/etc/passwd", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSnapshotRoutes_Delete(t *testing.T) {
	store := repository.NewMemoryPreferenceStore()
	r := newSnapshotRouter(t, store)

	w := do(t, r, http.MethodPost, "/admin/snapshots", "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	path := decode(t, w)["storage_path"].(string)

	w = do(t, r, http.MethodDelete, "/admin/snapshots/"+path, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"message":"Snapshot `+path+` deleted"}`, w.Body.String())

	w = do(t, r, http.MethodGet, "/admin/snapshots/"+path, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, r, http.MethodGet, "/admin/snapshots", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"snapshots":[]}`, w.Body.String())

	w = do(t, r, http.MethodDelete, "/admin/snapshots/"+path, "")
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", decode(t, w)["code"])

	w = do(t, r, http.MethodDelete, "/admin/snapshots/etc/passwd", "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_PATH", decode(t, w)["code"])

	w = do(t, r, http.MethodDelete, "/admin/snapshots/snapshots/../config.json", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSnapshotRoutes_Import(t *testing.T) {
	store := repository.NewMemoryPreferenceStore()
	r := newSnapshotRouter(t, store)
	payload := `[
		{"user_id":"u1","app_id":"chat","preferences":{"volume":5},"created_at":"2026-01-01T00:00:00Z","updated_at":"2026-01-01T00:00:00Z"},
		{"user_id":"user1","preferences":{"theme":"dark","notifications_enabled":true,"language":"en"},"settings":{"timezone":"UTC","location":"US"}}
	]`

	w := httptest.NewRecorder()
	r.ServeHTTP(w, multipartImport(t, payload, ""))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"inserted":2,"replaced":0,"skipped":0}`, w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, multipartImport(t, payload, "true"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"inserted":0,"replaced":2,"skipped":0}`, w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, multipartImport(t, payload, ""))
	assert.JSONEq(t, `{"inserted":0,"replaced":0,"skipped":2}`, w.Body.String())

	got, err := store.FindOne(t.Context(), models.PreferenceKey{UserID: "user1"})
	require.NoError(t, err)
	assert.Equal(t, "dark", got.Preferences["theme"])

	w = httptest.NewRecorder()
	r.ServeHTTP(w, multipartImport(t, `{"not":"an array"}`, ""))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, multipartImport(t, payload, "sometimes"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodPost, "/admin/snapshots/import", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "MISSING_FILE", decode(t, w)["code"])
}

func TestSnapshotRoutes_DisabledByDefault(t *testing.T) {
	r := newTestRouter(t, repository.NewMemoryPreferenceStore())

	w := do(t, r, http.MethodPost, "/admin/snapshots", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
