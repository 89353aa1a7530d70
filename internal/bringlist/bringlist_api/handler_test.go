package bringlist_api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-attendance/internal/auth"
	"ms-attendance/internal/bringlist/db"
	"ms-attendance/internal/bringlist/service"
	"ms-attendance/internal/logger"
	"ms-attendance/internal/models"
	"ms-attendance/internal/testutil"
	"ms-attendance/internal/utils"
)

func TestBringListFlow(t *testing.T) {
	store := &db.DB{Bun: testutil.NewSQLiteDB(t)}
	event := testutil.InsertEvent(t, store.Bun)
	_, err := store.Bun.NewInsert().Model(&models.AttendanceRecord{
		EventID: event.ID, UserID: "alice", Status: models.RSVPGoing, RSVPAt: time.Now().UTC(),
	}).Exec(context.Background())
	require.NoError(t, err)

	log := logger.NewConsoleLogger(io.Discard)
	h := NewHandler(service.NewBringListService(store, log), log)
	r := chi.NewRouter()
	h.RegisterRoutes(r)

	call := func(actor, method, path, body string) (*httptest.ResponseRecorder, utils.APIResponse) {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req = req.WithContext(auth.WithActor(req.Context(), models.Actor{UserID: actor}))
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		var resp utils.APIResponse
		if rec.Body.Len() > 0 {
			require.NoError(t, json.NewDecoder(bytes.NewReader(rec.Body.Bytes())).Decode(&resp))
		}
		return rec, resp
	}

	rec, resp := call("organizer-1", http.MethodPost, "/events/"+event.ID+"/bring-list", `{"item":"Ice","quantity_needed":3}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	itemID := resp.Data.(map[string]any)["id"].(string)

	rec, resp = call("alice", http.MethodPost, "/bring-list/"+itemID+"/claim", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", resp.Data.(map[string]any)["assigned_to"])

	rec, resp = call("bob", http.MethodPost, "/bring-list/"+itemID+"/claim", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "already_claimed", resp.Code)

	rec, resp = call("organizer-1", http.MethodDelete, "/bring-list/"+itemID, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "item_claimed", resp.Code)

	rec, _ = call("alice", http.MethodPost, "/bring-list/"+itemID+"/fulfill", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, resp = call("alice", http.MethodGet, "/events/"+event.ID+"/bring-list", "")
	require.Equal(t, http.StatusOK, rec.Code)
	items := resp.Data.([]any)
	require.Len(t, items, 1)
	assert.Equal(t, true, items[0].(map[string]any)["fulfilled"])
}
