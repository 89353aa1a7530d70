package pass

import (
	"context"
	"crypto/sha256"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-attendance/internal/attendance/db"
	"ms-attendance/internal/logger"
	"ms-attendance/internal/models"
	"ms-attendance/internal/testutil"
)

func setup(t *testing.T) (*Service, *db.DB, *models.Event) {
	store := &db.DB{Bun: testutil.NewSQLiteDB(t)}
	event := testutil.InsertEvent(t, store.Bun, testutil.WithOrganizer("org"))
	now := time.Now().UTC()
	records := []models.AttendanceRecord{
		{EventID: event.ID, UserID: "alice", Status: models.RSVPGoing, GuestCount: 2, RSVPAt: now},
		{EventID: event.ID, UserID: "bob", Status: models.RSVPMaybe, RSVPAt: now},
	}
	_, err := store.Bun.NewInsert().Model(&records).Exec(context.Background())
	require.NoError(t, err)
	svc, err := NewService(store, "test-secret-key-0123", logger.NewConsoleLogger(io.Discard))
	require.NoError(t, err)
	return svc, store, event
}

func TestIssueAndVerify(t *testing.T) {
	svc, _, event := setup(t)
	ctx := context.Background()

	issued, err := svc.Issue(ctx, event.ID, "alice")
	require.NoError(t, err)
	assert.NotEmpty(t, issued.PNG)
	assert.Equal(t, 2, issued.Pass.GuestCount)

	v, err := svc.Verify(ctx, models.Actor{UserID: "org"}, event.ID, issued.Token)
	require.NoError(t, err)
	assert.True(t, v.Valid)
	assert.Equal(t, "alice", v.Pass.UserID)
	assert.Equal(t, 2, v.GuestCount)
}

func TestIssueRequiresGoing(t *testing.T) {
	svc, _, event := setup(t)

	_, err := svc.Issue(context.Background(), event.ID, "bob")
	assert.ErrorIs(t, err, models.ErrNotAttending)

	_, err = svc.Issue(context.Background(), event.ID, "nobody")
	assert.ErrorIs(t, err, models.ErrNotAttending)
}

func TestVerifyRechecksLedger(t *testing.T) {
	svc, store, event := setup(t)
	ctx := context.Background()

	issued, err := svc.Issue(ctx, event.ID, "alice")
	require.NoError(t, err)

	_, err = store.Bun.NewUpdate().Model((*models.AttendanceRecord)(nil)).
		Set("status = ?", models.RSVPNotGoing).
		Where("event_id = ? AND user_id = ?", event.ID, "alice").Exec(ctx)
	require.NoError(t, err)

	v, err := svc.Verify(ctx, models.Actor{UserID: "org"}, event.ID, issued.Token)
	require.NoError(t, err)
	assert.False(t, v.Valid)
	assert.Equal(t, models.RSVPNotGoing, v.Status)
}

func TestVerifyRejectsTamperingAndStrangers(t *testing.T) {
	svc, store, event := setup(t)
	ctx := context.Background()

	issued, err := svc.Issue(ctx, event.ID, "alice")
	require.NoError(t, err)

	_, err = svc.Verify(ctx, models.Actor{UserID: "alice"}, event.ID, issued.Token)
	assert.ErrorIs(t, err, models.ErrForbidden)

	other, err := NewService(store, "another-secret-4567", logger.NewConsoleLogger(io.Discard))
	require.NoError(t, err)
	_, err = other.Verify(ctx, models.Actor{UserID: "org"}, event.ID, issued.Token)
	assert.ErrorIs(t, err, models.ErrInvalidPass)

	_, err = svc.Verify(ctx, models.Actor{UserID: "org"}, event.ID, "not-base64!")
	assert.ErrorIs(t, err, models.ErrInvalidPass)

	second := testutil.InsertEvent(t, store.Bun, testutil.WithOrganizer("org"))
	v, err := svc.Verify(ctx, models.Actor{UserID: "org"}, second.ID, issued.Token)
	require.NoError(t, err)
	assert.False(t, v.Valid)
}

func TestNewServiceRefusesGuessableSecrets(t *testing.T) {
	store := &db.DB{Bun: testutil.NewSQLiteDB(t)}
	log := logger.NewConsoleLogger(io.Discard)

	for _, secret := range []string{"", "short"} {
		svc, err := NewService(store, secret, log)
		assert.ErrorIs(t, err, ErrWeakSecret, "secret %q", secret)
		assert.Nil(t, svc)
	}
}

func TestEmptyKeyPassDoesNotVerify(t *testing.T) {
	svc, _, event := setup(t)

	// a pass sealed with sha256("") is what an attacker could mint without the secret
	forger := &Service{secret: emptyKey()}
	token, err := forger.seal(Pass{EventID: event.ID, UserID: "alice", IssuedAt: time.Now().UTC()})
	require.NoError(t, err)

	_, err = svc.Verify(context.Background(), models.Actor{UserID: "org"}, event.ID, token)
	assert.ErrorIs(t, err, models.ErrInvalidPass)
}

func emptyKey() []byte {
	sum := sha256.Sum256(nil)
	return sum[:]
}
