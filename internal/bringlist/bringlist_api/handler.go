package bringlist_api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-attendance/internal/auth"
	"ms-attendance/internal/bringlist/service"
	"ms-attendance/internal/logger"
	"ms-attendance/internal/models"
	"ms-attendance/internal/utils"
)

type Handler struct {
	BringList *service.BringListService
	Logger    *logger.Logger
}

func NewHandler(bringList *service.BringListService, log *logger.Logger) *Handler {
	return &Handler{BringList: bringList, Logger: log}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/events/{eventId}/bring-list", h.ListItems)
	r.Post("/events/{eventId}/bring-list", h.AddItem)
	r.Delete("/bring-list/{itemId}", h.RemoveItem)
	r.Post("/bring-list/{itemId}/claim", h.itemAction("claimed", h.BringList.Claim))
	r.Post("/bring-list/{itemId}/unclaim", h.itemAction("unclaimed", h.BringList.Unclaim))
	r.Post("/bring-list/{itemId}/fulfill", h.itemAction("fulfilled", h.BringList.MarkFulfilled))
	r.Post("/bring-list/{itemId}/unfulfill", h.itemAction("reopened", h.BringList.Unfulfill))
}

func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.BringList.ListItems(r.Context(), chi.URLParam(r, "eventId"))
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	_ = utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("bring list", items))
}

func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var input models.BringListItemInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		utils.WriteError(w, models.NewValidationError("invalid request body"))
		return
	}

	item, err := h.BringList.AddItem(r.Context(), auth.ActorFrom(r.Context()), chi.URLParam(r, "eventId"), input)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	_ = utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("item added", item))
}

func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	if err := h.BringList.RemoveItem(r.Context(), auth.ActorFrom(r.Context()), chi.URLParam(r, "itemId")); err != nil {
		utils.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type itemOp func(ctx context.Context, actor models.Actor, itemID string) (*models.BringListItem, error)

// itemAction adapts the single-item state changes, which share one request shape.
func (h *Handler) itemAction(verb string, op itemOp) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := auth.ActorFrom(r.Context())
		itemID := chi.URLParam(r, "itemId")

		item, err := op(r.Context(), actor, itemID)
		if err != nil {
			h.Logger.Debug("API", fmt.Sprintf("bring-list %s of %s by %s failed: %v", verb, itemID, actor.UserID, err))
			utils.WriteError(w, err)
			return
		}
		_ = utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("item "+verb, item))
	}
}
