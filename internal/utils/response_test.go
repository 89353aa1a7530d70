package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-attendance/internal/models"
)

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, StatusFor(models.ErrEventNotFound))
	assert.Equal(t, http.StatusConflict, StatusFor(models.ErrBusy))
	assert.Equal(t, http.StatusConflict, StatusFor(models.ErrAlreadyClaimed))
	assert.Equal(t, http.StatusForbidden, StatusFor(models.ErrNotEligible))
	assert.Equal(t, http.StatusBadRequest, StatusFor(models.NewValidationError("title is required")))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(errors.New("boom")))
	assert.Equal(t, http.StatusNotFound, StatusFor(fmt.Errorf("lookup: %w", models.ErrItemNotFound)))
}

func TestWriteErrorEnvelope(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, models.ErrBusy)

	assert.Equal(t, http.StatusConflict, w.Code)
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "please try again", resp.Message)
	assert.Equal(t, "busy", resp.Code)
	assert.Equal(t, "conflict", resp.Error)
}

func TestWriteErrorHidesInternalDetails(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, errors.New("pq: password authentication failed"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "password")
}
