package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-attendance/internal/auth"
	"ms-attendance/internal/logger"
	"ms-attendance/internal/models"
	"ms-attendance/internal/utils"
)

// AccessChecker decides whether an actor may watch an event's stream.
type AccessChecker interface {
	CheckStreamAccess(ctx context.Context, actor models.Actor, eventID string) error
}

type Handler struct {
	Broker *Broker
	Access AccessChecker
	Logger *logger.Logger
}

func NewHandler(broker *Broker, access AccessChecker, log *logger.Logger) *Handler {
	return &Handler{Broker: broker, Access: access, Logger: log}
}

// StreamEvent streams attendance notifications for one event until the client disconnects.
func (h *Handler) StreamEvent(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")
	actor := auth.ActorFrom(r.Context())

	if err := h.Access.CheckStreamAccess(r.Context(), actor, eventID); err != nil {
		h.Logger.LogSecurity("SSE_DENIED", fmt.Sprintf("%s on %s: %v", actor.UserID, eventID, err))
		utils.WriteError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	setupSSEHeaders(w)

	ctx := r.Context()
	events := h.Broker.Subscribe(ctx, eventID)

	fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"connected\",\"event_id\":%q}\n\n", eventID)
	flusher.Flush()
	h.Logger.Info("SSE", fmt.Sprintf("Client %s connected to stream of %s", actor.UserID, eventID))

	for {
		select {
		case n, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(n)
			if err != nil {
				h.Logger.Error("SSE", fmt.Sprintf("Failed to serialize notification: %v", err))
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", n.Type, data)
			flusher.Flush()

		case <-ctx.Done():
			h.Logger.Debug("SSE", fmt.Sprintf("Client %s left stream of %s", actor.UserID, eventID))
			return
		}
	}
}

func setupSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream;charset=UTF-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, max-age=0, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Content-Type-Options", "nosniff")
}
