package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ms-attendance/internal/attendance"
	"ms-attendance/internal/config"
	"ms-attendance/internal/database"
	"ms-attendance/internal/logger"
	"ms-attendance/internal/models"
)

// Notifier delivers notifications after a transaction has committed. Delivery is best effort.
type Notifier interface {
	Notify(ctx context.Context, notifications ...models.Notification)
}

// SummaryCache holds the public occupancy view of an event. Invalidate records the
// committed version so a Set built from an older read is ignored.
type SummaryCache interface {
	Get(ctx context.Context, eventID string) (*models.EventSummary, bool)
	Set(ctx context.Context, summary *models.EventSummary)
	Invalidate(ctx context.Context, eventID string, version int64)
}

// Locker is a best effort cross-instance mutex.
type Locker interface {
	Acquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key, owner string) error
}

type AttendanceService struct {
	Store    attendance.Store
	Notifier Notifier
	Cache    SummaryCache
	Locker   Locker
	Logger   *logger.Logger

	cfg        config.AttendanceConfig
	retry      database.RetryPolicy
	lockTTL    time.Duration
	instanceID string
	now        func() time.Time
}

// NewAttendanceService wires the arbiter. cache and locker may be nil.
func NewAttendanceService(store attendance.Store, notifier Notifier, cache SummaryCache, locker Locker, cfg config.AttendanceConfig, lockTTL time.Duration, log *logger.Logger) *AttendanceService {
	if notifier == nil {
		notifier = discardNotifier{}
	}
	return &AttendanceService{
		Store:      store,
		Notifier:   notifier,
		Cache:      cache,
		Locker:     locker,
		Logger:     log,
		cfg:        cfg,
		retry:      database.RetryPolicyFrom(cfg),
		lockTTL:    lockTTL,
		instanceID: uuid.NewString(),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source.
func (s *AttendanceService) SetClock(now func() time.Time) {
	s.now = now
}

// runTx executes fn in a fresh transaction per attempt, retrying version conflicts.
// fn must rebuild any per-attempt state itself.
func (s *AttendanceService) runTx(ctx context.Context, op string, fn func(ctx context.Context, tx attendance.Tx) error) error {
	err := database.RetryOnConflict(ctx, s.retry, func() error {
		return s.Store.RunInTx(ctx, fn)
	}, func(attempt int) {
		s.Logger.Debug("ARBITER", fmt.Sprintf("%s: version conflict on attempt %d/%d", op, attempt, s.retry.MaxAttempts))
	})
	if errors.Is(err, models.ErrBusy) {
		s.Logger.Warn("ARBITER", fmt.Sprintf("%s: giving up after %d attempts", op, s.retry.MaxAttempts))
	}
	return err
}

// afterCommit drops the cached summary and hands notifications to the dispatcher.
func (s *AttendanceService) afterCommit(ctx context.Context, eventID string, version int64, notifications []models.Notification) {
	if s.Cache != nil {
		s.Cache.Invalidate(ctx, eventID, version)
	}
	if len(notifications) > 0 {
		s.Notifier.Notify(ctx, notifications...)
	}
}

type discardNotifier struct{}

func (discardNotifier) Notify(context.Context, ...models.Notification) {}
