package models

import (
	"slices"
	"time"

	"github.com/uptrace/bun"
)

type EventStatus string

const (
	EventStatusDraft     EventStatus = "draft"
	EventStatusPublished EventStatus = "published"
	EventStatusCancelled EventStatus = "cancelled"
	EventStatusCompleted EventStatus = "completed"
)

var eventTransitions = map[EventStatus][]EventStatus{
	EventStatusDraft:     {EventStatusPublished},
	EventStatusPublished: {EventStatusCancelled, EventStatusCompleted},
	EventStatusCancelled: {},
	EventStatusCompleted: {},
}

func (s EventStatus) Valid() bool {
	_, ok := eventTransitions[s]
	return ok
}

// IsTerminal reports whether no further transition is possible.
func (s EventStatus) IsTerminal() bool {
	return s == EventStatusCancelled || s == EventStatusCompleted
}

func (s EventStatus) CanTransitionTo(next EventStatus) bool {
	return slices.Contains(eventTransitions[s], next)
}

type Event struct {
	bun.BaseModel `bun:"table:events"`

	ID               string      `bun:"id,pk" json:"id"`
	OrganizerID      string      `bun:"organizer_id,notnull" json:"organizer_id"`
	Title            string      `bun:"title,notnull" json:"title"`
	Description      string      `bun:"description" json:"description,omitempty"`
	Location         string      `bun:"location,notnull" json:"location"`
	CoverImageURL    string      `bun:"cover_image_url" json:"cover_image_url,omitempty"`
	StartsAt         time.Time   `bun:"starts_at,notnull" json:"starts_at"`
	DurationMinutes  int         `bun:"duration_minutes,notnull" json:"duration_minutes"`
	Capacity         *int        `bun:"capacity" json:"capacity"` // nil means unlimited
	MaxGuestsPerRSVP int         `bun:"max_guests_per_rsvp,notnull" json:"max_guests_per_rsvp"`
	Status           EventStatus `bun:"status,notnull" json:"status"`
	AttendeeCount    int         `bun:"attendee_count,notnull" json:"attendee_count"`
	Version          int64       `bun:"version,notnull" json:"version"`
	CreatedAt        time.Time   `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt        time.Time   `bun:"updated_at,notnull" json:"updated_at"`
}

// EventInput carries the organizer supplied fields of a new event.
type EventInput struct {
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	Location         string    `json:"location"`
	CoverImageURL    string    `json:"cover_image_url"`
	StartsAt         time.Time `json:"starts_at"`
	DurationMinutes  int       `json:"duration_minutes"`
	Capacity         *int      `json:"capacity"`
	MaxGuestsPerRSVP *int      `json:"max_guests_per_rsvp"`
}

// AcceptingRSVPs is true only for published events that have not started yet.
func (e *Event) AcceptingRSVPs(now time.Time) bool {
	return e.Status == EventStatusPublished && now.Before(e.StartsAt)
}

// RemainingSeats returns free seats and false when the event has no capacity limit.
func (e *Event) RemainingSeats() (int, bool) {
	if e.Capacity == nil {
		return 0, false
	}
	return *e.Capacity - e.AttendeeCount, true
}

// Fits reports whether delta more seats can be taken without exceeding capacity.
func (e *Event) Fits(delta int) bool {
	if e.Capacity == nil {
		return true
	}
	return e.AttendeeCount+delta <= *e.Capacity
}

// IsManagedBy reports whether the actor may administer the event.
func (e *Event) IsManagedBy(actor Actor) bool {
	return actor.IsAdmin() || e.OrganizerID == actor.UserID
}
