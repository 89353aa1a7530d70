package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"ms-attendance/internal/attendance"
	"ms-attendance/internal/database"
	"ms-attendance/internal/models"
)

// DB is the bun backed attendance ledger.
type DB struct {
	Bun *bun.DB
}

var _ attendance.Store = (*DB)(nil)

// RunInTx runs fn in one database transaction. Driver conflicts surface as models.ErrVersionConflict.
func (d *DB) RunInTx(ctx context.Context, fn func(ctx context.Context, tx attendance.Tx) error) error {
	err := d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, &ledgerTx{idb: tx})
	})
	return database.Translate(err, nil)
}

func (d *DB) GetEvent(ctx context.Context, eventID string) (*models.Event, error) {
	return getEvent(ctx, d.Bun, eventID)
}

func (d *DB) GetRecord(ctx context.Context, eventID, userID string) (*models.AttendanceRecord, error) {
	return getRecord(ctx, d.Bun, eventID, userID)
}

// ListRecords → every record of the event, oldest response first
func (d *DB) ListRecords(ctx context.Context, eventID string) ([]models.AttendanceRecord, error) {
	var records []models.AttendanceRecord
	err := d.Bun.NewSelect().
		Model(&records).
		Where("event_id = ?", eventID).
		Order("rsvp_at ASC", "user_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list attendance records: %w", err)
	}
	return records, nil
}

func (d *DB) ListWaitlist(ctx context.Context, eventID string) ([]models.WaitlistEntry, error) {
	return listWaitlist(ctx, d.Bun, eventID)
}

// ListEventsWithWaitlist → ids of published events that have at least one queued entry
func (d *DB) ListEventsWithWaitlist(ctx context.Context) ([]string, error) {
	var ids []string
	err := d.Bun.NewSelect().
		TableExpr("waitlist_entries AS w").
		Join("JOIN events AS e ON e.id = w.event_id").
		ColumnExpr("DISTINCT w.event_id").
		Where("e.status = ?", models.EventStatusPublished).
		Scan(ctx, &ids)
	if err != nil {
		return nil, fmt.Errorf("list waitlisted events: %w", err)
	}
	return ids, nil
}

// ---------------- TRANSACTION ----------------

type ledgerTx struct {
	idb bun.IDB
}

func (t *ledgerTx) GetEvent(ctx context.Context, eventID string) (*models.Event, error) {
	return getEvent(ctx, t.idb, eventID)
}

func (t *ledgerTx) GetRecord(ctx context.Context, eventID, userID string) (*models.AttendanceRecord, error) {
	return getRecord(ctx, t.idb, eventID, userID)
}

// SaveRecord upserts on the (event_id, user_id) key.
func (t *ledgerTx) SaveRecord(ctx context.Context, record *models.AttendanceRecord) error {
	_, err := t.idb.NewInsert().
		Model(record).
		On("CONFLICT (event_id, user_id) DO UPDATE").
		Set("status = EXCLUDED.status").
		Set("guest_count = EXCLUDED.guest_count").
		Set("rsvp_at = EXCLUDED.rsvp_at").
		Exec(ctx)
	return database.Translate(err, nil)
}

func (t *ledgerTx) GetWaitlistEntry(ctx context.Context, eventID, userID string) (*models.WaitlistEntry, error) {
	var entry models.WaitlistEntry
	err := t.idb.NewSelect().
		Model(&entry).
		Where("event_id = ?", eventID).
		Where("user_id = ?", userID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get waitlist entry: %w", err)
	}
	return &entry, nil
}

func (t *ledgerTx) ListWaitlist(ctx context.Context, eventID string) ([]models.WaitlistEntry, error) {
	return listWaitlist(ctx, t.idb, eventID)
}

// SaveWaitlistEntry upserts; an existing entry keeps its seq and joined_at.
func (t *ledgerTx) SaveWaitlistEntry(ctx context.Context, entry *models.WaitlistEntry) error {
	_, err := t.idb.NewInsert().
		Model(entry).
		On("CONFLICT (event_id, user_id) DO UPDATE").
		Set("guest_count = EXCLUDED.guest_count").
		Exec(ctx)
	return database.Translate(err, nil)
}

func (t *ledgerTx) RemoveWaitlistEntry(ctx context.Context, eventID, userID string) error {
	_, err := t.idb.NewDelete().
		Model((*models.WaitlistEntry)(nil)).
		Where("event_id = ?", eventID).
		Where("user_id = ?", userID).
		Exec(ctx)
	return database.Translate(err, nil)
}

// CommitEvent writes the counter and capacity guarded by the version read at the start
// of the transaction, then advances event.Version.
func (t *ledgerTx) CommitEvent(ctx context.Context, event *models.Event) error {
	now := time.Now().UTC()
	res, err := t.idb.NewUpdate().
		Model((*models.Event)(nil)).
		Set("attendee_count = ?", event.AttendeeCount).
		Set("capacity = ?", event.Capacity).
		Set("updated_at = ?", now).
		Set("version = version + 1").
		Where("id = ?", event.ID).
		Where("version = ?", event.Version).
		Exec(ctx)
	if err != nil {
		return database.Translate(err, nil)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return models.ErrVersionConflict
	}
	event.Version++
	event.UpdatedAt = now
	return nil
}

// ---------------- SHARED QUERIES ----------------

func getEvent(ctx context.Context, idb bun.IDB, eventID string) (*models.Event, error) {
	var event models.Event
	err := idb.NewSelect().
		Model(&event).
		Where("id = ?", eventID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, database.Translate(err, models.ErrEventNotFound)
	}
	return &event, nil
}

func getRecord(ctx context.Context, idb bun.IDB, eventID, userID string) (*models.AttendanceRecord, error) {
	var record models.AttendanceRecord
	err := idb.NewSelect().
		Model(&record).
		Where("event_id = ?", eventID).
		Where("user_id = ?", userID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get attendance record: %w", err)
	}
	return &record, nil
}

func listWaitlist(ctx context.Context, idb bun.IDB, eventID string) ([]models.WaitlistEntry, error) {
	var entries []models.WaitlistEntry
	err := idb.NewSelect().
		Model(&entries).
		Where("event_id = ?", eventID).
		Order("seq ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list waitlist: %w", err)
	}
	return entries, nil
}
