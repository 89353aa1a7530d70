package database

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"ms-attendance/internal/config"
	"ms-attendance/internal/models"
)

// RetryPolicy bounds optimistic-concurrency retries.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// RetryPolicyFrom reads the transaction retry settings.
func RetryPolicyFrom(cfg config.AttendanceConfig) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: cfg.MaxTxAttempts,
		BaseDelay:   cfg.RetryBaseDelay,
		MaxDelay:    cfg.RetryMaxDelay,
	}
}

// RetryOnConflict runs op until it succeeds, fails with anything other than
// models.ErrVersionConflict, or runs out of attempts. Running out yields models.ErrBusy.
// onConflict, when set, is called with the attempt number after each conflict.
func RetryOnConflict(ctx context.Context, policy RetryPolicy, op func() error, onConflict func(attempt int)) error {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}

	attempt := 0
	operation := func() error {
		attempt++
		err := op()
		if err == nil {
			return nil
		}
		if errors.Is(err, models.ErrVersionConflict) {
			if onConflict != nil {
				onConflict(attempt)
			}
			return err
		}
		return backoff.Permanent(err)
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = policy.BaseDelay
	exp.MaxInterval = policy.MaxDelay
	exp.MaxElapsedTime = 0

	err := backoff.Retry(operation, backoff.WithContext(
		backoff.WithMaxRetries(exp, uint64(policy.MaxAttempts-1)), ctx))
	if errors.Is(err, models.ErrVersionConflict) {
		return models.ErrBusy
	}
	return err
}
