package models

import (
	"time"

	"github.com/uptrace/bun"
)

type RSVPStatus string

const (
	RSVPGoing    RSVPStatus = "going"
	RSVPMaybe    RSVPStatus = "maybe"
	RSVPNotGoing RSVPStatus = "not_going"
)

func (s RSVPStatus) Valid() bool {
	switch s {
	case RSVPGoing, RSVPMaybe, RSVPNotGoing:
		return true
	}
	return false
}

// AttendanceRecord is the current RSVP state of one user for one event. Records are never deleted;
// not_going represents a withdrawal.
type AttendanceRecord struct {
	bun.BaseModel `bun:"table:attendance_records"`

	EventID    string     `bun:"event_id,pk" json:"event_id"`
	UserID     string     `bun:"user_id,pk" json:"user_id"`
	Status     RSVPStatus `bun:"status,notnull" json:"status"`
	GuestCount int        `bun:"guest_count,notnull" json:"guest_count"`
	RSVPAt     time.Time  `bun:"rsvp_at,notnull" json:"rsvp_at"`
}

// Seats is the number of seats the record holds against capacity.
func (r *AttendanceRecord) Seats() int {
	if r == nil || r.Status != RSVPGoing {
		return 0
	}
	return 1 + r.GuestCount
}

type RSVPOutcome string

const (
	OutcomeAdmitted   RSVPOutcome = "admitted"
	OutcomeWaitlisted RSVPOutcome = "waitlisted"
	OutcomeRejected   RSVPOutcome = "rejected"
)

const RejectInsufficientCapacity = "insufficient_capacity"

type RSVPRequest struct {
	EventID    string     `json:"event_id"`
	UserID     string     `json:"user_id"`
	Status     RSVPStatus `json:"status"`
	GuestCount int        `json:"guest_count"`
}

type RSVPResult struct {
	Outcome       RSVPOutcome       `json:"outcome"`
	Position      int               `json:"position,omitempty"`
	Reason        string            `json:"reason,omitempty"`
	Record        *AttendanceRecord `json:"record,omitempty"`
	AttendeeCount int               `json:"attendee_count"`
	Promoted      []string          `json:"promoted,omitempty"`
}

// EventSummary is the public, cacheable view of an event's occupancy.
type EventSummary struct {
	EventID        string      `json:"event_id"`
	Status         EventStatus `json:"status"`
	Capacity       *int        `json:"capacity"`
	AttendeeCount  int         `json:"attendee_count"`
	Remaining      *int        `json:"remaining"`
	WaitlistLength int         `json:"waitlist_length"`
	// Version is the event version the summary was built from.
	Version int64 `json:"version"`
}

// CapacityResult is returned by an administrative capacity change.
type CapacityResult struct {
	Event    *Event   `json:"event"`
	Promoted []string `json:"promoted,omitempty"`
}
