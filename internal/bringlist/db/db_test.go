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

func newItem(t *testing.T, d *DB, eventID string) *models.BringListItem {
	now := time.Now().UTC()
	item := &models.BringListItem{
		ID: "item-" + eventID[:8], EventID: eventID, Item: "Chips", QuantityNeeded: 2,
		CreatedBy: "org", CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, d.InsertItem(context.Background(), item))
	return item
}

func TestAssignIsSingleWinner(t *testing.T) {
	d := &DB{Bun: testutil.NewSQLiteDB(t)}
	ctx := context.Background()
	event := testutil.InsertEvent(t, d.Bun)
	item := newItem(t, d, event.ID)

	ok, err := d.Assign(ctx, item.ID, "alice")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = d.Assign(ctx, item.ID, "bob")
	require.NoError(t, err)
	assert.False(t, ok)

	stored, err := d.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", stored.AssignedTo)
	assert.Equal(t, int64(1), stored.Version)
}

func TestReleaseAndFulfilGuards(t *testing.T) {
	d := &DB{Bun: testutil.NewSQLiteDB(t)}
	ctx := context.Background()
	event := testutil.InsertEvent(t, d.Bun)
	item := newItem(t, d, event.ID)

	_, err := d.Assign(ctx, item.ID, "alice")
	require.NoError(t, err)

	ok, err := d.Release(ctx, item.ID, "bob")
	require.NoError(t, err)
	assert.False(t, ok, "only the holder releases")

	ok, err = d.SetFulfilled(ctx, item.ID, "alice", true)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = d.Release(ctx, item.ID, "alice")
	require.NoError(t, err)
	assert.False(t, ok, "fulfilled items stay assigned")

	ok, err = d.SetFulfilled(ctx, item.ID, "alice", false)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = d.Release(ctx, item.ID, "alice")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDeleteUnclaimed(t *testing.T) {
	d := &DB{Bun: testutil.NewSQLiteDB(t)}
	ctx := context.Background()
	event := testutil.InsertEvent(t, d.Bun)
	item := newItem(t, d, event.ID)

	_, err := d.Assign(ctx, item.ID, "alice")
	require.NoError(t, err)
	ok, err := d.DeleteUnclaimed(ctx, item.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = d.Release(ctx, item.ID, "alice")
	require.NoError(t, err)
	ok, err = d.DeleteUnclaimed(ctx, item.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = d.GetItem(ctx, item.ID)
	assert.ErrorIs(t, err, models.ErrItemNotFound)
}
