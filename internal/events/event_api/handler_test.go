package event_api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-attendance/internal/auth"
	"ms-attendance/internal/config"
	"ms-attendance/internal/events/db"
	"ms-attendance/internal/events/service"
	"ms-attendance/internal/logger"
	"ms-attendance/internal/models"
	"ms-attendance/internal/testutil"
	"ms-attendance/internal/utils"
)

func newRouter(t *testing.T, actor models.Actor) (http.Handler, *db.DB) {
	store := &db.DB{Bun: testutil.NewSQLiteDB(t)}
	log := logger.NewConsoleLogger(io.Discard)
	svc := service.NewEventService(store, nil, nil, config.AttendanceConfig{
		MaxTxAttempts: 2, RetryBaseDelay: time.Millisecond, RetryMaxDelay: time.Millisecond,
		DefaultMaxGuests: 2, MinEventDuration: 15 * time.Minute,
	}, log)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(auth.WithActor(req.Context(), actor)))
		})
	})
	NewHandler(svc, log).RegisterRoutes(r)
	return r, store
}

func do(t *testing.T, h http.Handler, method, path string, body any) (*httptest.ResponseRecorder, utils.APIResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, &buf))

	var resp utils.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, resp
}

func TestCreateAndPublishEvent(t *testing.T) {
	router, _ := newRouter(t, models.Actor{UserID: "org"})

	rec, resp := do(t, router, http.MethodPost, "/events", map[string]any{
		"title":            "Potluck",
		"location":         "Community hall",
		"starts_at":        time.Now().Add(48 * time.Hour).Format(time.RFC3339),
		"duration_minutes": 120,
		"capacity":         30,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, resp.Success)

	id := resp.Data.(map[string]any)["id"].(string)
	rec, resp = do(t, router, http.MethodPost, "/events/"+id+"/status", map[string]string{"status": "published"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "published", resp.Data.(map[string]any)["status"])

	rec, resp = do(t, router, http.MethodGet, "/events?status=published", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, resp.Data.([]any), 1)
}

func TestErrorStatusCodes(t *testing.T) {
	router, store := newRouter(t, models.Actor{UserID: "stranger"})
	event := testutil.InsertEvent(t, store.Bun)

	rec, resp := do(t, router, http.MethodGet, "/events/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "event_not_found", resp.Code)

	rec, _ = do(t, router, http.MethodPost, "/events/"+event.ID+"/status", map[string]string{"status": "cancelled"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = do(t, router, http.MethodPost, "/events", map[string]any{"title": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
