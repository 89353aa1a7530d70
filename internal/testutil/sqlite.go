// Package testutil builds throwaway databases for store and service tests.
package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"

	"ms-attendance/internal/models"
)

// NewSQLiteDB opens a private in-memory SQLite database with every table created.
// The pool is pinned to one connection so transactions serialize instead of
// failing with "database is locked".
func NewSQLiteDB(t *testing.T) *bun.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	sqldb, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("Failed to open in-memory database: %v", err)
	}
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = bunDB.Close() })

	ctx := context.Background()
	for _, model := range []any{
		(*models.Event)(nil),
		(*models.AttendanceRecord)(nil),
		(*models.WaitlistEntry)(nil),
		(*models.BringListItem)(nil),
	} {
		if _, err := bunDB.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			t.Fatalf("Failed to create table for %T: %v", model, err)
		}
	}
	return bunDB
}

// EventOption tweaks a fixture event before it is inserted.
type EventOption func(*models.Event)

func WithCapacity(capacity int) EventOption {
	return func(e *models.Event) { e.Capacity = &capacity }
}

func Unlimited() EventOption {
	return func(e *models.Event) { e.Capacity = nil }
}

func WithStatus(status models.EventStatus) EventOption {
	return func(e *models.Event) { e.Status = status }
}

func WithMaxGuests(n int) EventOption {
	return func(e *models.Event) { e.MaxGuestsPerRSVP = n }
}

func WithOrganizer(id string) EventOption {
	return func(e *models.Event) { e.OrganizerID = id }
}

func StartingAt(at time.Time) EventOption {
	return func(e *models.Event) { e.StartsAt = at }
}

// InsertEvent stores a published event starting tomorrow with capacity 10 unless options say otherwise.
func InsertEvent(t *testing.T, db bun.IDB, opts ...EventOption) *models.Event {
	t.Helper()

	now := time.Now().UTC()
	capacity := 10
	event := &models.Event{
		ID:               uuid.NewString(),
		OrganizerID:      "organizer-1",
		Title:            "Board game night",
		Location:         "Library basement",
		StartsAt:         now.Add(24 * time.Hour),
		DurationMinutes:  120,
		Capacity:         &capacity,
		MaxGuestsPerRSVP: 3,
		Status:           models.EventStatusPublished,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	for _, opt := range opts {
		opt(event)
	}

	if _, err := db.NewInsert().Model(event).Exec(context.Background()); err != nil {
		t.Fatalf("Failed to insert event: %v", err)
	}
	return event
}
