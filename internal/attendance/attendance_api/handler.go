package attendance_api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"ms-attendance/internal/attendance/pass"
	"ms-attendance/internal/attendance/service"
	"ms-attendance/internal/auth"
	"ms-attendance/internal/logger"
	"ms-attendance/internal/models"
	"ms-attendance/internal/utils"
)

type Handler struct {
	Attendance *service.AttendanceService
	Passes     *pass.Service
	Logger     *logger.Logger
}

func NewHandler(attendance *service.AttendanceService, passes *pass.Service, log *logger.Logger) *Handler {
	return &Handler{Attendance: attendance, Passes: passes, Logger: log}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/events/{eventId}", func(r chi.Router) {
		r.Post("/rsvp", h.SubmitRSVP)
		r.Put("/capacity", h.ChangeCapacity)
		r.Get("/attendance", h.GetAttendance)
		r.Get("/attendance/me", h.GetMyAttendance)
		r.Get("/attendance/me/pass", h.GetMyPass)
		r.Post("/attendance/{userId}/withdraw", h.WithdrawAttendee)
		r.Get("/waitlist", h.GetWaitlist)
		r.Post("/waitlist/promote", h.Promote)
		r.Get("/summary", h.GetSummary)
		r.Post("/passes/verify", h.VerifyPass)
	})
}

func (h *Handler) SubmitRSVP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	eventID := chi.URLParam(r, "eventId")
	actor := auth.ActorFrom(r.Context())

	var body struct {
		Status     models.RSVPStatus `json:"status"`
		GuestCount int               `json:"guest_count"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.WriteError(w, models.NewValidationError("invalid request body"))
		return
	}

	result, err := h.Attendance.SubmitRSVP(r.Context(), models.RSVPRequest{
		EventID:    eventID,
		UserID:     actor.UserID,
		Status:     body.Status,
		GuestCount: body.GuestCount,
	})
	if err != nil {
		h.Logger.LogAPI(r.Method, r.URL.Path, fmt.Sprint(utils.StatusFor(err)), time.Since(start).String())
		utils.WriteError(w, err)
		return
	}

	status := http.StatusOK
	if result.Outcome == models.OutcomeWaitlisted {
		status = http.StatusAccepted
	}
	h.Logger.LogAPI(r.Method, r.URL.Path, fmt.Sprint(status), time.Since(start).String())
	_ = utils.WriteJSON(w, status, utils.SuccessResponse(string(result.Outcome), result))
}

func (h *Handler) ChangeCapacity(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Capacity *int `json:"capacity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.WriteError(w, models.NewValidationError("invalid request body"))
		return
	}

	result, err := h.Attendance.ChangeCapacity(r.Context(), auth.ActorFrom(r.Context()), chi.URLParam(r, "eventId"), body.Capacity)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	_ = utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("capacity updated", result))
}

// GetAttendance is the organizer roster of raw records.
func (h *Handler) GetAttendance(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")
	if _, err := h.Attendance.RequireManager(r.Context(), auth.ActorFrom(r.Context()), eventID); err != nil {
		utils.WriteError(w, err)
		return
	}

	records, err := h.Attendance.GetAttendance(r.Context(), eventID)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	_ = utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("attendance", records))
}

func (h *Handler) GetMyAttendance(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")
	actor := auth.ActorFrom(r.Context())

	record, err := h.Attendance.GetUserAttendance(r.Context(), eventID, actor.UserID)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	if record == nil {
		utils.WriteError(w, models.ErrAttendanceNotFound)
		return
	}
	_ = utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("attendance", record))
}

// GetMyPass returns the check-in pass as JSON, or as a bare PNG with ?format=png.
func (h *Handler) GetMyPass(w http.ResponseWriter, r *http.Request) {
	actor := auth.ActorFrom(r.Context())

	issued, err := h.Passes.Issue(r.Context(), chi.URLParam(r, "eventId"), actor.UserID)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	if r.URL.Query().Get("format") == "png" {
		w.Header().Set("Content-Type", "image/png")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(issued.PNG)
		return
	}
	_ = utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("pass issued", issued))
}

func (h *Handler) VerifyPass(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Token == "" {
		utils.WriteError(w, models.NewValidationError("token is required"))
		return
	}

	v, err := h.Passes.Verify(r.Context(), auth.ActorFrom(r.Context()), chi.URLParam(r, "eventId"), body.Token)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	_ = utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("pass checked", v))
}

func (h *Handler) WithdrawAttendee(w http.ResponseWriter, r *http.Request) {
	actor := auth.ActorFrom(r.Context())
	eventID := chi.URLParam(r, "eventId")
	userID := chi.URLParam(r, "userId")

	result, err := h.Attendance.WithdrawAttendee(r.Context(), actor, eventID, userID)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	h.Logger.LogSecurity("WITHDRAW", fmt.Sprintf("%s withdrew %s from %s", actor.UserID, userID, eventID))
	_ = utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("attendee withdrawn", result))
}

func (h *Handler) GetWaitlist(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")
	if _, err := h.Attendance.RequireManager(r.Context(), auth.ActorFrom(r.Context()), eventID); err != nil {
		utils.WriteError(w, err)
		return
	}

	queue, err := h.Attendance.GetWaitlist(r.Context(), eventID)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	_ = utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse(fmt.Sprintf("%d waiting", len(queue)), queue))
}

func (h *Handler) Promote(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")
	if _, err := h.Attendance.RequireManager(r.Context(), auth.ActorFrom(r.Context()), eventID); err != nil {
		utils.WriteError(w, err)
		return
	}

	promoted, err := h.Attendance.Promote(r.Context(), eventID)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	_ = utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse(fmt.Sprintf("%d promoted", len(promoted)), promoted))
}

func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Attendance.GetSummary(r.Context(), chi.URLParam(r, "eventId"))
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	_ = utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("summary", summary))
}
