package analytics_api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-attendance/internal/analytics"
	"ms-attendance/internal/auth"
	"ms-attendance/internal/logger"
	"ms-attendance/internal/utils"
)

// Handler handles roster HTTP endpoints
type Handler struct {
	Service *analytics.Service
	Logger  *logger.Logger
}

// NewHandler creates a new analytics handler
func NewHandler(service *analytics.Service, logger *logger.Logger) *Handler {
	return &Handler{
		Service: service,
		Logger:  logger,
	}
}

// RegisterRoutes registers the roster routes on a chi router
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/events/{eventId}/roster", h.GetEventRoster)
	r.Get("/organizer/roster", h.GetOrganizerOverview)
}

// GetEventRoster returns the aggregated roster of one event
func (h *Handler) GetEventRoster(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")
	actor := auth.ActorFrom(r.Context())
	h.Logger.Debug("ANALYTICS", fmt.Sprintf("Roster of %s requested by %s", eventID, actor.UserID))

	roster, err := h.Service.GetEventRoster(r.Context(), actor, eventID)
	if err != nil {
		h.Logger.Warn("ANALYTICS", fmt.Sprintf("Roster of %s failed: %v", eventID, err))
		utils.WriteError(w, err)
		return
	}
	_ = utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("roster", roster))
}

// GetOrganizerOverview returns rosters for every event the caller organizes
func (h *Handler) GetOrganizerOverview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.Service.GetOrganizerOverview(r.Context(), auth.ActorFrom(r.Context()))
	if err != nil {
		h.Logger.Error("ANALYTICS", fmt.Sprintf("Organizer overview failed: %v", err))
		utils.WriteError(w, err)
		return
	}
	_ = utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("organizer overview", overview))
}
