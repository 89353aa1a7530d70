package service

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-attendance/internal/bringlist/db"
	"ms-attendance/internal/logger"
	"ms-attendance/internal/models"
	"ms-attendance/internal/testutil"
)

var (
	organizer = models.Actor{UserID: "organizer-1"}
	admin     = models.Actor{UserID: "ops", Roles: []string{models.RoleAdmin}}
	alice     = models.Actor{UserID: "alice"}
	bob       = models.Actor{UserID: "bob"}
)

type fixture struct {
	store *db.DB
	svc   *BringListService
	event *models.Event
}

func newFixture(t *testing.T, opts ...testutil.EventOption) *fixture {
	store := &db.DB{Bun: testutil.NewSQLiteDB(t)}
	event := testutil.InsertEvent(t, store.Bun, opts...)
	return &fixture{
		store: store,
		svc:   NewBringListService(store, logger.NewConsoleLogger(io.Discard)),
		event: event,
	}
}

func (f *fixture) respond(t *testing.T, userID string, status models.RSVPStatus) {
	t.Helper()
	_, err := f.store.Bun.NewInsert().Model(&models.AttendanceRecord{
		EventID: f.event.ID, UserID: userID, Status: status, RSVPAt: time.Now().UTC(),
	}).Exec(context.Background())
	require.NoError(t, err)
}

func (f *fixture) add(t *testing.T) *models.BringListItem {
	t.Helper()
	item, err := f.svc.AddItem(context.Background(), organizer, f.event.ID, models.BringListItemInput{Item: "Napkins", QuantityNeeded: 1})
	require.NoError(t, err)
	return item
}

func (f *fixture) setStatus(t *testing.T, status models.EventStatus) {
	t.Helper()
	_, err := f.store.Bun.NewUpdate().Model((*models.Event)(nil)).
		Set("status = ?", status).Where("id = ?", f.event.ID).Exec(context.Background())
	require.NoError(t, err)
}

func TestAddItem(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddItem(ctx, alice, f.event.ID, models.BringListItemInput{Item: "Cake", QuantityNeeded: 1})
	assert.ErrorIs(t, err, models.ErrForbidden)

	_, err = f.svc.AddItem(ctx, organizer, f.event.ID, models.BringListItemInput{Item: "", QuantityNeeded: 1})
	assert.Equal(t, models.KindValidation, models.KindOf(err))

	_, err = f.svc.AddItem(ctx, organizer, f.event.ID, models.BringListItemInput{Item: "Cake", QuantityNeeded: 0})
	assert.Equal(t, models.KindValidation, models.KindOf(err))

	item, err := f.svc.AddItem(ctx, admin, f.event.ID, models.BringListItemInput{Item: " Cake ", QuantityNeeded: 2})
	require.NoError(t, err)
	assert.Equal(t, "Cake", item.Item)
	assert.Equal(t, models.ItemAvailable, item.State())

	items, err := f.svc.ListItems(ctx, f.event.ID)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestClaimRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.add(t)
	f.respond(t, "alice", models.RSVPGoing)
	f.respond(t, "bob", models.RSVPMaybe)

	_, err := f.svc.Claim(ctx, bob, item.ID)
	assert.ErrorIs(t, err, models.ErrNotEligible, "maybe is not enough")

	claimed, err := f.svc.Claim(ctx, alice, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", claimed.AssignedTo)

	again, err := f.svc.Claim(ctx, alice, item.ID)
	require.NoError(t, err)
	assert.Equal(t, claimed.Version, again.Version, "repeat claim changes nothing")

	f.respond(t, "carol", models.RSVPGoing)
	_, err = f.svc.Claim(ctx, models.Actor{UserID: "carol"}, item.ID)
	assert.ErrorIs(t, err, models.ErrAlreadyClaimed)

	_, err = f.svc.Claim(ctx, alice, "missing")
	assert.ErrorIs(t, err, models.ErrItemNotFound)
}

func TestClaimOnClosedEvent(t *testing.T) {
	f := newFixture(t)
	item := f.add(t)
	f.respond(t, "alice", models.RSVPGoing)
	f.setStatus(t, models.EventStatusCancelled)

	_, err := f.svc.Claim(context.Background(), alice, item.ID)
	assert.ErrorIs(t, err, models.ErrEventClosed)
}

func TestConcurrentClaimsHaveOneWinner(t *testing.T) {
	f := newFixture(t)
	item := f.add(t)

	const n = 10
	for i := 0; i < n; i++ {
		f.respond(t, fmt.Sprintf("user-%d", i), models.RSVPGoing)
	}

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Claim(context.Background(), models.Actor{UserID: fmt.Sprintf("user-%d", i)}, item.ID)
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
			continue
		}
		assert.ErrorIs(t, err, models.ErrAlreadyClaimed)
	}
	assert.Equal(t, 1, winners)
}

func TestUnclaimAndFulfil(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.add(t)
	f.respond(t, "alice", models.RSVPGoing)

	_, err := f.svc.Unclaim(ctx, alice, item.ID)
	assert.ErrorIs(t, err, models.ErrItemNotAssigned)
	_, err = f.svc.MarkFulfilled(ctx, alice, item.ID)
	assert.ErrorIs(t, err, models.ErrItemNotAssigned)

	_, err = f.svc.Claim(ctx, alice, item.ID)
	require.NoError(t, err)

	_, err = f.svc.Unclaim(ctx, bob, item.ID)
	assert.ErrorIs(t, err, models.ErrNotOwner)
	_, err = f.svc.MarkFulfilled(ctx, bob, item.ID)
	assert.ErrorIs(t, err, models.ErrNotOwner)

	done, err := f.svc.MarkFulfilled(ctx, alice, item.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ItemFulfilled, done.State())

	again, err := f.svc.MarkFulfilled(ctx, alice, item.ID)
	require.NoError(t, err)
	assert.Equal(t, done.Version, again.Version)

	_, err = f.svc.Unclaim(ctx, alice, item.ID)
	assert.ErrorIs(t, err, models.ErrAlreadyFulfilled)

	_, err = f.svc.Unfulfill(ctx, alice, item.ID)
	assert.ErrorIs(t, err, models.ErrForbidden)

	reopened, err := f.svc.Unfulfill(ctx, organizer, item.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ItemAssigned, reopened.State())
	assert.Equal(t, "alice", reopened.AssignedTo)

	_, err = f.svc.Unfulfill(ctx, organizer, item.ID)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)

	released, err := f.svc.Unclaim(ctx, admin, item.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ItemAvailable, released.State())
}

func TestRemoveItem(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.add(t)
	f.respond(t, "alice", models.RSVPGoing)

	_, err := f.svc.Claim(ctx, alice, item.ID)
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.RemoveItem(ctx, alice, item.ID), models.ErrForbidden)
	assert.ErrorIs(t, f.svc.RemoveItem(ctx, organizer, item.ID), models.ErrItemClaimed)

	_, err = f.svc.Unclaim(ctx, alice, item.ID)
	require.NoError(t, err)
	require.NoError(t, f.svc.RemoveItem(ctx, organizer, item.ID))
	assert.ErrorIs(t, f.svc.RemoveItem(ctx, organizer, item.ID), models.ErrItemNotFound)
}
