package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"ms-attendance/internal/config"
	"ms-attendance/internal/database"
	"ms-attendance/internal/events/db"
	"ms-attendance/internal/logger"
	"ms-attendance/internal/models"
)

type EventStore interface {
	CreateEvent(ctx context.Context, event *models.Event) error
	GetEvent(ctx context.Context, id string) (*models.Event, error)
	ListEvents(ctx context.Context, filter db.EventFilter) ([]models.Event, error)
	// UpdateStatus returns the waitlist entries dropped by a move to a terminal status.
	UpdateStatus(ctx context.Context, event *models.Event, status models.EventStatus) ([]models.WaitlistEntry, error)
	ListRecordsByStatus(ctx context.Context, eventID string, statuses ...models.RSVPStatus) ([]models.AttendanceRecord, error)
}

type Notifier interface {
	Notify(ctx context.Context, notifications ...models.Notification)
}

// Invalidator drops cached views of an event older than version.
type Invalidator interface {
	Invalidate(ctx context.Context, eventID string, version int64)
}

type EventService struct {
	Store    EventStore
	Notifier Notifier
	Cache    Invalidator
	Logger   *logger.Logger

	cfg   config.AttendanceConfig
	retry database.RetryPolicy
	now   func() time.Time
}

// NewEventService builds the event lifecycle service. notifier and cache may be nil.
func NewEventService(store EventStore, notifier Notifier, cache Invalidator, cfg config.AttendanceConfig, log *logger.Logger) *EventService {
	return &EventService{
		Store:    store,
		Notifier: notifier,
		Cache:    cache,
		Logger:   log,
		cfg:      cfg,
		retry:    database.RetryPolicyFrom(cfg),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *EventService) SetClock(now func() time.Time) {
	s.now = now
}

// CreateEvent validates input and stores a new draft event owned by actor.
func (s *EventService) CreateEvent(ctx context.Context, actor models.Actor, input models.EventInput) (*models.Event, error) {
	if actor.UserID == "" {
		return nil, models.ErrForbidden
	}
	now := s.now()
	if err := s.validate(input, now); err != nil {
		return nil, err
	}

	maxGuests := s.cfg.DefaultMaxGuests
	if input.MaxGuestsPerRSVP != nil {
		maxGuests = *input.MaxGuestsPerRSVP
	}

	event := &models.Event{
		ID:               uuid.NewString(),
		OrganizerID:      actor.UserID,
		Title:            strings.TrimSpace(input.Title),
		Description:      input.Description,
		Location:         strings.TrimSpace(input.Location),
		CoverImageURL:    input.CoverImageURL,
		StartsAt:         input.StartsAt.UTC(),
		DurationMinutes:  input.DurationMinutes,
		Capacity:         input.Capacity,
		MaxGuestsPerRSVP: maxGuests,
		Status:           models.EventStatusDraft,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.Store.CreateEvent(ctx, event); err != nil {
		return nil, err
	}

	s.Logger.Info("EVENT", fmt.Sprintf("Event %s created by %s", event.ID, actor.UserID))
	return event, nil
}

func (s *EventService) validate(input models.EventInput, now time.Time) error {
	switch {
	case strings.TrimSpace(input.Title) == "":
		return models.NewValidationError("title is required")
	case strings.TrimSpace(input.Location) == "":
		return models.NewValidationError("location is required")
	case !input.StartsAt.After(now):
		return models.NewValidationError("starts_at must be in the future")
	case time.Duration(input.DurationMinutes)*time.Minute < s.cfg.MinEventDuration:
		return models.NewValidationError(fmt.Sprintf("duration must be at least %d minutes", int(s.cfg.MinEventDuration.Minutes())))
	case input.Capacity != nil && *input.Capacity <= 0:
		return models.NewValidationError("capacity must be positive or omitted for unlimited")
	case input.MaxGuestsPerRSVP != nil && *input.MaxGuestsPerRSVP < 0:
		return models.NewValidationError("max_guests_per_rsvp must not be negative")
	}
	return nil
}

func (s *EventService) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	return s.Store.GetEvent(ctx, id)
}

func (s *EventService) ListEvents(ctx context.Context, filter db.EventFilter) ([]models.Event, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, models.NewValidationError(fmt.Sprintf("unknown status %q", filter.Status))
	}
	return s.Store.ListEvents(ctx, filter)
}

// TransitionStatus moves an event through draft -> published -> cancelled|completed.
// Cancelling notifies everyone who answered going or maybe; their records are kept.
func (s *EventService) TransitionStatus(ctx context.Context, actor models.Actor, eventID string, next models.EventStatus) (*models.Event, error) {
	if !next.Valid() {
		return nil, models.NewValidationError(fmt.Sprintf("unknown status %q", next))
	}

	var (
		event   *models.Event
		dropped []models.WaitlistEntry
	)
	err := database.RetryOnConflict(ctx, s.retry, func() error {
		current, err := s.Store.GetEvent(ctx, eventID)
		if err != nil {
			return err
		}
		if !current.IsManagedBy(actor) {
			return models.ErrForbidden
		}
		if !current.Status.CanTransitionTo(next) {
			return models.ErrInvalidTransition
		}
		if next == models.EventStatusCompleted && s.now().Before(current.StartsAt) {
			return models.ErrInvalidTransition
		}
		dropped, err = s.Store.UpdateStatus(ctx, current, next)
		if err != nil {
			return err
		}
		event = current
		return nil
	}, func(attempt int) {
		s.Logger.Debug("EVENT", fmt.Sprintf("status change of %s conflicted on attempt %d", eventID, attempt))
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Info("EVENT", fmt.Sprintf("Event %s is now %s (by %s)", eventID, next, actor.UserID))
	if len(dropped) > 0 {
		s.Logger.LogWaitlist("CLOSE", eventID, fmt.Sprintf("dropped %d queued users", len(dropped)))
	}
	if s.Cache != nil {
		s.Cache.Invalidate(ctx, eventID, event.Version)
	}
	if next == models.EventStatusCancelled {
		s.notifyCancelled(ctx, event, dropped)
	}
	return event, nil
}

// notifyCancelled tells everyone who answered going or maybe, and everyone who was still
// queued, that the event is off.
func (s *EventService) notifyCancelled(ctx context.Context, event *models.Event, queued []models.WaitlistEntry) {
	if s.Notifier == nil {
		return
	}
	records, err := s.Store.ListRecordsByStatus(ctx, event.ID, models.RSVPGoing, models.RSVPMaybe)
	if err != nil {
		s.Logger.Error("EVENT", fmt.Sprintf("Failed to load attendees of cancelled event %s: %v", event.ID, err))
	}

	notified := make(map[string]bool, len(records)+len(queued))
	notifications := make([]models.Notification, 0, len(records)+len(queued))
	for _, r := range records {
		notified[r.UserID] = true
		notifications = append(notifications, models.NewNotification(models.NotifyEventCancelled, event.ID, r.UserID, map[string]any{
			"title":     event.Title,
			"starts_at": event.StartsAt,
			"status":    r.Status,
		}))
	}
	for _, e := range queued {
		if notified[e.UserID] {
			continue
		}
		notified[e.UserID] = true
		notifications = append(notifications, models.NewNotification(models.NotifyEventCancelled, event.ID, e.UserID, map[string]any{
			"title":     event.Title,
			"starts_at": event.StartsAt,
			"status":    "waitlisted",
		}))
	}
	if len(notifications) > 0 {
		s.Notifier.Notify(ctx, notifications...)
	}
	s.Logger.Info("EVENT", fmt.Sprintf("Cancellation of %s sent to %d users", event.ID, len(notifications)))
}
