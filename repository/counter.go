package repository

import (
	"context"
	"errors"
	"time"
)

// ErrLimitReached is returned by IncrementBelow when the counter is already at the limit.
var ErrLimitReached = errors.New("counter limit reached")

// CounterRepository stores windowed counters.
type CounterRepository interface {
	// IncrementBelow atomically increments key when its current value is absent
	// or below limit and returns the new value. The key expires after ttl.
	IncrementBelow(ctx context.Context, key string, limit int64, ttl time.Duration) (int64, error)
}
