package database

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"ms-attendance/internal/models"
)

var fastPolicy = RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

func TestRetryOnConflictSucceedsAfterConflicts(t *testing.T) {
	calls := 0
	var conflicts []int
	err := RetryOnConflict(context.Background(), fastPolicy, func() error {
		calls++
		if calls < 3 {
			return fmt.Errorf("commit: %w", models.ErrVersionConflict)
		}
		return nil
	}, func(attempt int) { conflicts = append(conflicts, attempt) })

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, conflicts)
}

func TestRetryOnConflictBecomesBusy(t *testing.T) {
	calls := 0
	err := RetryOnConflict(context.Background(), fastPolicy, func() error {
		calls++
		return models.ErrVersionConflict
	}, nil)

	assert.ErrorIs(t, err, models.ErrBusy)
	assert.Equal(t, 3, calls)
}

func TestRetryOnConflictStopsOnOtherErrors(t *testing.T) {
	calls := 0
	err := RetryOnConflict(context.Background(), fastPolicy, func() error {
		calls++
		return models.ErrEventNotFound
	}, nil)

	assert.ErrorIs(t, err, models.ErrEventNotFound)
	assert.Equal(t, 1, calls)
}

func TestRetryOnConflictHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := RetryOnConflict(ctx, RetryPolicy{MaxAttempts: 10, BaseDelay: time.Second, MaxDelay: time.Second}, func() error {
		return models.ErrVersionConflict
	}, nil)

	assert.True(t, errors.Is(err, context.Canceled) || errors.Is(err, models.ErrBusy))
}
