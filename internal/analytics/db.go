package analytics

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"ms-attendance/internal/database"
	"ms-attendance/internal/models"
)

// DB handles roster aggregate queries
type DB struct {
	bun *bun.DB
}

// NewDB creates a new analytics DB handler
func NewDB(db *bun.DB) *DB {
	return &DB{bun: db}
}

// StatusCountRow is one GROUP BY status bucket of attendance records
type StatusCountRow struct {
	Status  models.RSVPStatus `bun:"status"`
	Records int               `bun:"records"`
	Guests  int               `bun:"guests"`
}

// WaitlistTotals sums the queue of an event
type WaitlistTotals struct {
	Entries int `bun:"entries"`
	Seats   int `bun:"seats"`
}

// BringListTotals counts items per state
type BringListTotals struct {
	Total     int `bun:"total"`
	Assigned  int `bun:"assigned"`
	Fulfilled int `bun:"fulfilled"`
}

// GetEvent loads one event
func (db *DB) GetEvent(ctx context.Context, eventID string) (*models.Event, error) {
	var event models.Event
	err := db.bun.NewSelect().Model(&event).Where("id = ?", eventID).Limit(1).Scan(ctx)
	if err != nil {
		return nil, database.Translate(err, models.ErrEventNotFound)
	}
	return &event, nil
}

// GetEventsByOrganizer lists the events an organizer owns, soonest first
func (db *DB) GetEventsByOrganizer(ctx context.Context, organizerID string) ([]models.Event, error) {
	events := []models.Event{}
	err := db.bun.NewSelect().
		Model(&events).
		Where("organizer_id = ?", organizerID).
		Order("starts_at ASC").
		Scan(ctx)
	return events, err
}

// GetStatusCounts counts records and guests per RSVP status
func (db *DB) GetStatusCounts(ctx context.Context, eventID string) ([]StatusCountRow, error) {
	var rows []StatusCountRow
	err := db.bun.NewSelect().
		Model((*models.AttendanceRecord)(nil)).
		ColumnExpr("status").
		ColumnExpr("COUNT(*) AS records").
		ColumnExpr("COALESCE(SUM(guest_count), 0) AS guests").
		Where("event_id = ?", eventID).
		Group("status").
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("count records by status: %w", err)
	}
	return rows, nil
}

// GetWaitlistTotals counts queued entries and the seats they ask for
func (db *DB) GetWaitlistTotals(ctx context.Context, eventID string) (WaitlistTotals, error) {
	var totals WaitlistTotals
	err := db.bun.NewSelect().
		Model((*models.WaitlistEntry)(nil)).
		ColumnExpr("COUNT(*) AS entries").
		ColumnExpr("COALESCE(SUM(guest_count + 1), 0) AS seats").
		Where("event_id = ?", eventID).
		Scan(ctx, &totals)
	if err != nil {
		return totals, fmt.Errorf("sum waitlist: %w", err)
	}
	return totals, nil
}

// GetBringListTotals counts the event's items by state
func (db *DB) GetBringListTotals(ctx context.Context, eventID string) (BringListTotals, error) {
	var totals BringListTotals
	err := db.bun.NewSelect().
		Model((*models.BringListItem)(nil)).
		ColumnExpr("COUNT(*) AS total").
		ColumnExpr("COALESCE(SUM(CASE WHEN assigned_to IS NOT NULL THEN 1 ELSE 0 END), 0) AS assigned").
		ColumnExpr("COALESCE(SUM(CASE WHEN fulfilled THEN 1 ELSE 0 END), 0) AS fulfilled").
		Where("event_id = ?", eventID).
		Scan(ctx, &totals)
	if err != nil {
		return totals, fmt.Errorf("count bring-list items: %w", err)
	}
	return totals, nil
}
