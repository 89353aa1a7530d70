package models

import (
	"time"

	"github.com/uptrace/bun"
)

// WaitlistEntry queues a going request that did not fit. Seq is the event version at which the
// entry was created, which gives a strict arrival order per event.
type WaitlistEntry struct {
	bun.BaseModel `bun:"table:waitlist_entries"`

	EventID    string    `bun:"event_id,pk" json:"event_id"`
	UserID     string    `bun:"user_id,pk" json:"user_id"`
	GuestCount int       `bun:"guest_count,notnull" json:"guest_count"`
	Seq        int64     `bun:"seq,notnull" json:"seq"`
	JoinedAt   time.Time `bun:"joined_at,notnull" json:"joined_at"`
}

func (w *WaitlistEntry) Seats() int {
	return 1 + w.GuestCount
}

// PromotionPolicy selects how the waitlist behaves when the head does not fit the free seats.
type PromotionPolicy string

const (
	// PolicySkipAhead promotes later entries that fit; entries that do not fit keep their place.
	PolicySkipAhead PromotionPolicy = "skip_ahead"
	// PolicyStrictFIFO stops at the first entry that does not fit.
	PolicyStrictFIFO PromotionPolicy = "strict_fifo"
)

func ParsePromotionPolicy(s string) PromotionPolicy {
	if PromotionPolicy(s) == PolicyStrictFIFO {
		return PolicyStrictFIFO
	}
	return PolicySkipAhead
}
