package utils

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"ms-attendance/internal/models"
)

type APIResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Code      string      `json:"code,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func SuccessResponse(message string, data interface{}) APIResponse {
	return APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now(),
	}
}

func ErrorResponse(message, error string) APIResponse {
	return APIResponse{
		Success:   false,
		Message:   message,
		Error:     error,
		Timestamp: time.Now(),
	}
}

// WriteJSON encodes v with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

// StatusFor maps a domain error kind onto an HTTP status code.
func StatusFor(err error) int {
	switch models.KindOf(err) {
	case models.KindNotFound:
		return http.StatusNotFound
	case models.KindInvalidState, models.KindConflict:
		return http.StatusConflict
	case models.KindForbidden:
		return http.StatusForbidden
	case models.KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// WriteError renders err in the APIResponse envelope. Unclassified errors are hidden
// behind a generic message.
func WriteError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	resp := ErrorResponse("request failed", "internal error")

	var de *models.DomainError
	if errors.As(err, &de) {
		resp.Message = de.Message
		resp.Error = string(de.Kind)
		resp.Code = de.Code
	}
	_ = WriteJSON(w, status, resp)
}
