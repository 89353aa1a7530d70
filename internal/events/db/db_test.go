package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-attendance/internal/models"
	"ms-attendance/internal/testutil"
)

func TestGetEventNotFound(t *testing.T) {
	d := &DB{Bun: testutil.NewSQLiteDB(t)}

	_, err := d.GetEvent(context.Background(), "nope")
	assert.ErrorIs(t, err, models.ErrEventNotFound)
}

func TestCreateAndListEvents(t *testing.T) {
	d := &DB{Bun: testutil.NewSQLiteDB(t)}
	ctx := context.Background()

	now := time.Now().UTC()
	later := &models.Event{ID: "e-2", OrganizerID: "org-a", Title: "Picnic", Location: "Park",
		StartsAt: now.Add(48 * time.Hour), DurationMinutes: 60, Status: models.EventStatusDraft, CreatedAt: now, UpdatedAt: now}
	sooner := &models.Event{ID: "e-1", OrganizerID: "org-b", Title: "Quiz", Location: "Pub",
		StartsAt: now.Add(24 * time.Hour), DurationMinutes: 90, Status: models.EventStatusPublished, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, d.CreateEvent(ctx, later))
	require.NoError(t, d.CreateEvent(ctx, sooner))

	all, err := d.ListEvents(ctx, EventFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "e-1", all[0].ID)

	drafts, err := d.ListEvents(ctx, EventFilter{Status: models.EventStatusDraft})
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, "e-2", drafts[0].ID)

	mine, err := d.ListEvents(ctx, EventFilter{OrganizerID: "org-b"})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "Quiz", mine[0].Title)
}

func TestUpdateStatusVersionGuard(t *testing.T) {
	d := &DB{Bun: testutil.NewSQLiteDB(t)}
	ctx := context.Background()
	event := testutil.InsertEvent(t, d.Bun)

	stale := *event
	_, err := d.UpdateStatus(ctx, event, models.EventStatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, int64(1), event.Version)

	_, err = d.UpdateStatus(ctx, &stale, models.EventStatusCompleted)
	assert.ErrorIs(t, err, models.ErrVersionConflict)

	stored, err := d.GetEvent(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EventStatusCancelled, stored.Status)
}

func TestListRecordsByStatus(t *testing.T) {
	d := &DB{Bun: testutil.NewSQLiteDB(t)}
	ctx := context.Background()
	event := testutil.InsertEvent(t, d.Bun)

	now := time.Now().UTC()
	records := []models.AttendanceRecord{
		{EventID: event.ID, UserID: "a", Status: models.RSVPGoing, RSVPAt: now},
		{EventID: event.ID, UserID: "b", Status: models.RSVPMaybe, RSVPAt: now.Add(time.Second)},
		{EventID: event.ID, UserID: "c", Status: models.RSVPNotGoing, RSVPAt: now.Add(2 * time.Second)},
	}
	_, err := d.Bun.NewInsert().Model(&records).Exec(ctx)
	require.NoError(t, err)

	got, err := d.ListRecordsByStatus(ctx, event.ID, models.RSVPGoing, models.RSVPMaybe)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].UserID)
	assert.Equal(t, "b", got[1].UserID)
}

func TestUpdateStatusToTerminalClearsWaitlist(t *testing.T) {
	d := &DB{Bun: testutil.NewSQLiteDB(t)}
	ctx := context.Background()
	cancelled := testutil.InsertEvent(t, d.Bun)
	open := testutil.InsertEvent(t, d.Bun)

	now := time.Now().UTC()
	entries := []models.WaitlistEntry{
		{EventID: cancelled.ID, UserID: "bob", Seq: 2, JoinedAt: now},
		{EventID: cancelled.ID, UserID: "alice", Seq: 1, JoinedAt: now},
		{EventID: open.ID, UserID: "carol", Seq: 1, JoinedAt: now},
	}
	_, err := d.Bun.NewInsert().Model(&entries).Exec(ctx)
	require.NoError(t, err)

	dropped, err := d.UpdateStatus(ctx, cancelled, models.EventStatusCancelled)
	require.NoError(t, err)
	require.Len(t, dropped, 2)
	assert.Equal(t, "alice", dropped[0].UserID)

	remaining, err := d.Bun.NewSelect().Model((*models.WaitlistEntry)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, remaining, "other events keep their queue")
}
