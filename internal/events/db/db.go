package db

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"ms-attendance/internal/database"
	"ms-attendance/internal/models"
)

type DB struct {
	Bun *bun.DB
}

// EventFilter narrows ListEvents. Zero values match everything.
type EventFilter struct {
	Status      models.EventStatus
	OrganizerID string
}

func (d *DB) CreateEvent(ctx context.Context, event *models.Event) error {
	_, err := d.Bun.NewInsert().Model(event).Exec(ctx)
	if err != nil {
		return fmt.Errorf("insert event: %w", database.Translate(err, nil))
	}
	return nil
}

func (d *DB) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	var event models.Event
	err := d.Bun.NewSelect().
		Model(&event).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, database.Translate(err, models.ErrEventNotFound)
	}
	return &event, nil
}

// ListEvents → soonest first
func (d *DB) ListEvents(ctx context.Context, filter EventFilter) ([]models.Event, error) {
	events := []models.Event{}
	q := d.Bun.NewSelect().Model(&events)
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.OrganizerID != "" {
		q = q.Where("organizer_id = ?", filter.OrganizerID)
	}
	if err := q.Order("starts_at ASC", "id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

// UpdateStatus moves the event to status if its version is still event.Version.
// On success event is updated in place. Moving to a terminal status empties the waitlist in
// the same transaction and returns the entries that were dropped.
func (d *DB) UpdateStatus(ctx context.Context, event *models.Event, status models.EventStatus) ([]models.WaitlistEntry, error) {
	now := time.Now().UTC()
	var dropped []models.WaitlistEntry
	err := d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model((*models.Event)(nil)).
			Set("status = ?", status).
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
		if !status.IsTerminal() {
			return nil
		}

		if err := tx.NewSelect().Model(&dropped).Where("event_id = ?", event.ID).Order("seq ASC").Scan(ctx); err != nil {
			return fmt.Errorf("load waitlist: %w", err)
		}
		if len(dropped) == 0 {
			return nil
		}
		if _, err := tx.NewDelete().Model((*models.WaitlistEntry)(nil)).Where("event_id = ?", event.ID).Exec(ctx); err != nil {
			return fmt.Errorf("clear waitlist: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	event.Status = status
	event.Version++
	event.UpdatedAt = now
	return dropped, nil
}

// ListRecordsByStatus returns the attendance records of the event whose status is one of statuses.
func (d *DB) ListRecordsByStatus(ctx context.Context, eventID string, statuses ...models.RSVPStatus) ([]models.AttendanceRecord, error) {
	records := []models.AttendanceRecord{}
	err := d.Bun.NewSelect().
		Model(&records).
		Where("event_id = ?", eventID).
		Where("status IN (?)", bun.In(statuses)).
		Order("rsvp_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list records by status: %w", err)
	}
	return records, nil
}
