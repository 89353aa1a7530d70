package event_api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-attendance/internal/auth"
	"ms-attendance/internal/events/db"
	"ms-attendance/internal/events/service"
	"ms-attendance/internal/logger"
	"ms-attendance/internal/models"
	"ms-attendance/internal/utils"
)

type Handler struct {
	EventService *service.EventService
	Logger       *logger.Logger
}

func NewHandler(eventService *service.EventService, log *logger.Logger) *Handler {
	return &Handler{EventService: eventService, Logger: log}
}

// RegisterRoutes mounts the event lifecycle endpoints.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/events", h.CreateEvent)
	r.Get("/events", h.ListEvents)
	r.Get("/events/{eventId}", h.GetEvent)
	r.Post("/events/{eventId}/status", h.TransitionStatus)
}

func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	actor := auth.ActorFrom(r.Context())

	var input models.EventInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.Logger.Warn("API", fmt.Sprintf("CreateEvent: invalid body: %v", err))
		utils.WriteError(w, models.NewValidationError("invalid request body"))
		return
	}

	event, err := h.EventService.CreateEvent(r.Context(), actor, input)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreateEvent: %v", err))
		utils.WriteError(w, err)
		return
	}
	_ = utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("event created", event))
}

func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")

	event, err := h.EventService.GetEvent(r.Context(), eventID)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	_ = utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("event", event))
}

// ListEvents supports ?status= and ?organizer= filters.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	filter := db.EventFilter{
		Status:      models.EventStatus(r.URL.Query().Get("status")),
		OrganizerID: r.URL.Query().Get("organizer"),
	}

	events, err := h.EventService.ListEvents(r.Context(), filter)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	_ = utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse(fmt.Sprintf("%d events", len(events)), events))
}

func (h *Handler) TransitionStatus(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")
	actor := auth.ActorFrom(r.Context())

	var body struct {
		Status models.EventStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.WriteError(w, models.NewValidationError("invalid request body"))
		return
	}

	event, err := h.EventService.TransitionStatus(r.Context(), actor, eventID, body.Status)
	if err != nil {
		h.Logger.Warn("API", fmt.Sprintf("TransitionStatus: %s -> %s by %s: %v", eventID, body.Status, actor.UserID, err))
		utils.WriteError(w, err)
		return
	}
	_ = utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("status updated", event))
}
