// Package attendance holds the storage contracts shared by the attendance
// ledger implementation and the capacity arbiter.
package attendance

import (
	"context"

	"ms-attendance/internal/models"
)

// Tx is the view of the ledger inside a single arbiter transaction. Every
// successful transaction ends with CommitEvent, which bumps the event version
// and fails with models.ErrVersionConflict when another writer got there first.
type Tx interface {
	GetEvent(ctx context.Context, eventID string) (*models.Event, error)
	// GetRecord returns nil, nil when the user has never responded.
	GetRecord(ctx context.Context, eventID, userID string) (*models.AttendanceRecord, error)
	SaveRecord(ctx context.Context, record *models.AttendanceRecord) error
	// GetWaitlistEntry returns nil, nil when the user is not queued.
	GetWaitlistEntry(ctx context.Context, eventID, userID string) (*models.WaitlistEntry, error)
	ListWaitlist(ctx context.Context, eventID string) ([]models.WaitlistEntry, error)
	SaveWaitlistEntry(ctx context.Context, entry *models.WaitlistEntry) error
	RemoveWaitlistEntry(ctx context.Context, eventID, userID string) error
	CommitEvent(ctx context.Context, event *models.Event) error
}

// Reader is the read-only face of the ledger.
type Reader interface {
	GetEvent(ctx context.Context, eventID string) (*models.Event, error)
	GetRecord(ctx context.Context, eventID, userID string) (*models.AttendanceRecord, error)
	ListRecords(ctx context.Context, eventID string) ([]models.AttendanceRecord, error)
	ListWaitlist(ctx context.Context, eventID string) ([]models.WaitlistEntry, error)
	ListEventsWithWaitlist(ctx context.Context) ([]string, error)
}

type Store interface {
	Reader
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
