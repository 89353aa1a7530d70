package analytics

import (
	"context"
	"fmt"

	"ms-attendance/internal/logger"
	"ms-attendance/internal/models"
)

// Service builds organizer rosters
type Service struct {
	db     *DB
	logger *logger.Logger
}

// NewService creates a new analytics service
func NewService(db *DB, log *logger.Logger) *Service {
	return &Service{db: db, logger: log}
}

// StatusBreakdown is the roster line of one RSVP status
type StatusBreakdown struct {
	Records int `json:"records"`
	Guests  int `json:"guests"`
}

// BringListProgress tracks how much of the bring list is covered
type BringListProgress struct {
	Total     int `json:"total"`
	Assigned  int `json:"assigned"`
	Fulfilled int `json:"fulfilled"`
}

// EventRoster represents aggregated attendance for one event
type EventRoster struct {
	EventID       string                                `json:"event_id"`
	Title         string                                `json:"title"`
	Status        models.EventStatus                    `json:"status"`
	Capacity      *int                                  `json:"capacity"`
	AttendeeCount int                                   `json:"attendee_count"`
	ByStatus      map[models.RSVPStatus]StatusBreakdown `json:"by_status"`
	// SeatsHeld is recomputed from the ledger and should always equal AttendeeCount.
	SeatsHeld       int               `json:"seats_held"`
	WaitlistEntries int               `json:"waitlist_entries"`
	WaitlistSeats   int               `json:"waitlist_seats"`
	BringList       BringListProgress `json:"bring_list"`
}

// OrganizerOverview lists the roster of every event an organizer owns
type OrganizerOverview struct {
	OrganizerID string        `json:"organizer_id"`
	Events      []EventRoster `json:"events"`
	TotalSeats  int           `json:"total_seats"`
}

// GetEventRoster aggregates the ledger, waitlist and bring list of an event the actor manages
func (s *Service) GetEventRoster(ctx context.Context, actor models.Actor, eventID string) (*EventRoster, error) {
	event, err := s.db.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !event.IsManagedBy(actor) {
		return nil, models.ErrForbidden
	}
	return s.buildRoster(ctx, event)
}

// GetOrganizerOverview aggregates every event owned by the actor
func (s *Service) GetOrganizerOverview(ctx context.Context, actor models.Actor) (*OrganizerOverview, error) {
	events, err := s.db.GetEventsByOrganizer(ctx, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("list organizer events: %w", err)
	}

	overview := &OrganizerOverview{OrganizerID: actor.UserID, Events: make([]EventRoster, 0, len(events))}
	for i := range events {
		roster, err := s.buildRoster(ctx, &events[i])
		if err != nil {
			return nil, err
		}
		overview.Events = append(overview.Events, *roster)
		overview.TotalSeats += roster.SeatsHeld
	}
	return overview, nil
}

func (s *Service) buildRoster(ctx context.Context, event *models.Event) (*EventRoster, error) {
	counts, err := s.db.GetStatusCounts(ctx, event.ID)
	if err != nil {
		return nil, err
	}
	queue, err := s.db.GetWaitlistTotals(ctx, event.ID)
	if err != nil {
		return nil, err
	}
	items, err := s.db.GetBringListTotals(ctx, event.ID)
	if err != nil {
		return nil, err
	}

	roster := &EventRoster{
		EventID:       event.ID,
		Title:         event.Title,
		Status:        event.Status,
		Capacity:      event.Capacity,
		AttendeeCount: event.AttendeeCount,
		ByStatus: map[models.RSVPStatus]StatusBreakdown{
			models.RSVPGoing:    {},
			models.RSVPMaybe:    {},
			models.RSVPNotGoing: {},
		},
		WaitlistEntries: queue.Entries,
		WaitlistSeats:   queue.Seats,
		BringList:       BringListProgress(items),
	}
	for _, c := range counts {
		roster.ByStatus[c.Status] = StatusBreakdown{Records: c.Records, Guests: c.Guests}
	}
	going := roster.ByStatus[models.RSVPGoing]
	roster.SeatsHeld = going.Records + going.Guests

	if roster.SeatsHeld != event.AttendeeCount {
		s.logger.Warn("ANALYTICS", fmt.Sprintf("Event %s counter %d disagrees with ledger %d", event.ID, event.AttendeeCount, roster.SeatsHeld))
	}
	return roster, nil
}
