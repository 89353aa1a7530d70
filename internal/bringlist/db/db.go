package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"ms-attendance/internal/database"
	"ms-attendance/internal/models"
)

// DB stores bring-list items. Every state change is a single-row compare-and-swap:
// the boolean result reports whether the row still matched the expected state.
type DB struct {
	Bun *bun.DB
}

func (d *DB) InsertItem(ctx context.Context, item *models.BringListItem) error {
	if _, err := d.Bun.NewInsert().Model(item).Exec(ctx); err != nil {
		return fmt.Errorf("insert bring-list item: %w", database.Translate(err, nil))
	}
	return nil
}

func (d *DB) GetItem(ctx context.Context, id string) (*models.BringListItem, error) {
	var item models.BringListItem
	err := d.Bun.NewSelect().
		Model(&item).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, database.Translate(err, models.ErrItemNotFound)
	}
	return &item, nil
}

func (d *DB) ListItems(ctx context.Context, eventID string) ([]models.BringListItem, error) {
	items := []models.BringListItem{}
	err := d.Bun.NewSelect().
		Model(&items).
		Where("event_id = ?", eventID).
		Order("created_at ASC", "id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list bring-list items: %w", err)
	}
	return items, nil
}

func (d *DB) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	var event models.Event
	err := d.Bun.NewSelect().Model(&event).Where("id = ?", id).Limit(1).Scan(ctx)
	if err != nil {
		return nil, database.Translate(err, models.ErrEventNotFound)
	}
	return &event, nil
}

// GetRecord returns nil, nil when the user never responded.
func (d *DB) GetRecord(ctx context.Context, eventID, userID string) (*models.AttendanceRecord, error) {
	var record models.AttendanceRecord
	err := d.Bun.NewSelect().
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

// Assign claims an unassigned, unfulfilled item for userID.
func (d *DB) Assign(ctx context.Context, itemID, userID string) (bool, error) {
	q := d.update(itemID).
		Set("assigned_to = ?", userID).
		Where("assigned_to IS NULL").
		Where("fulfilled = ?", false)
	return exec(ctx, q)
}

// Release clears the assignee while the item is still held by userID and not fulfilled.
func (d *DB) Release(ctx context.Context, itemID, userID string) (bool, error) {
	q := d.update(itemID).
		Set("assigned_to = NULL").
		Where("assigned_to = ?", userID).
		Where("fulfilled = ?", false)
	return exec(ctx, q)
}

// SetFulfilled flips the fulfilled flag of an item still assigned to assignee.
func (d *DB) SetFulfilled(ctx context.Context, itemID, assignee string, fulfilled bool) (bool, error) {
	q := d.update(itemID).
		Set("fulfilled = ?", fulfilled).
		Where("assigned_to = ?", assignee).
		Where("fulfilled = ?", !fulfilled)
	return exec(ctx, q)
}

// DeleteUnclaimed removes the item only while nobody holds it.
func (d *DB) DeleteUnclaimed(ctx context.Context, itemID string) (bool, error) {
	res, err := d.Bun.NewDelete().
		Model((*models.BringListItem)(nil)).
		Where("id = ?", itemID).
		Where("assigned_to IS NULL").
		Exec(ctx)
	return affected(res, err)
}

func (d *DB) update(itemID string) *bun.UpdateQuery {
	return d.Bun.NewUpdate().
		Model((*models.BringListItem)(nil)).
		Set("version = version + 1").
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", itemID)
}

func exec(ctx context.Context, q *bun.UpdateQuery) (bool, error) {
	res, err := q.Exec(ctx)
	return affected(res, err)
}

func affected(res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, database.Translate(err, nil)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
