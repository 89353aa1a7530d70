package redis

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

// Locker is a SetNX based lock keyed by name and owned by a token.
type Locker struct {
	Client *redis.Client
}

func NewLocker(client *redis.Client) *Locker {
	return &Locker{Client: client}
}

// Acquire takes the lock for ttl. It returns false when someone else holds it.
func (l *Locker) Acquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	return l.Client.SetNX(ctx, key, owner, ttl).Result()
}

// Release drops the lock only if owner still holds it.
func (l *Locker) Release(ctx context.Context, key, owner string) error {
	val, err := l.Client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil // expired or never taken
	}
	if err != nil {
		return err
	}
	if val == owner {
		return l.Client.Del(ctx, key).Err()
	}
	return nil
}

// Holder returns the current owner of key, or "" when it is free.
func (l *Locker) Holder(ctx context.Context, key string) (string, error) {
	val, err := l.Client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return val, err
}
