package memory

import (
	"context"
	"sync"
	"time"

	"github.com/fastygo/taskbot/domain"
	"github.com/fastygo/taskbot/repository"
)

type counter struct {
	value     int64
	expiresAt time.Time
}

// CounterRepository is a mutex-guarded counter map with lazy expiry.
type CounterRepository struct {
	mu       sync.Mutex
	counters map[string]counter
	now      func() time.Time
}

var _ repository.CounterRepository = (*CounterRepository)(nil)

func NewCounterRepository() *CounterRepository {
	return &CounterRepository{
		counters: make(map[string]counter),
		now:      time.Now,
	}
}

func (r *CounterRepository) IncrementBelow(_ context.Context, key string, limit int64, ttl time.Duration) (int64, error) {
	if ttl <= 0 {
		ttl = 48 * time.Hour
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	current, ok := r.counters[key]
	if ok && !now.Before(current.expiresAt) {
		current, ok = counter{}, false
	}
	if current.value >= limit {
		return 0, repository.ErrLimitReached
	}
	if !ok {
		current.expiresAt = now.Add(ttl)
	}
	current.value++
	r.counters[key] = current
	return current.value, nil
}

// LaunchTokenRepository stores launch tokens until they are taken or expire.
type LaunchTokenRepository struct {
	mu     sync.Mutex
	tokens map[string]domain.LaunchToken
	now    func() time.Time
}

var _ repository.LaunchTokenRepository = (*LaunchTokenRepository)(nil)

func NewLaunchTokenRepository() *LaunchTokenRepository {
	return &LaunchTokenRepository{
		tokens: make(map[string]domain.LaunchToken),
		now:    time.Now,
	}
}

func (r *LaunchTokenRepository) Save(_ context.Context, token *domain.LaunchToken) error {
	if token == nil || token.ID == "" {
		return domain.ErrInvalidPayload
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if token.CreatedAt.IsZero() {
		token.CreatedAt = r.now()
	}
	r.tokens[token.ID] = *token
	return nil
}

func (r *LaunchTokenRepository) Take(_ context.Context, id string) (*domain.LaunchToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	token, ok := r.tokens[id]
	if !ok {
		return nil, domain.ErrLaunchTokenNotFound
	}
	delete(r.tokens, id)
	if token.IsExpired(r.now()) {
		return nil, domain.ErrLaunchTokenNotFound
	}
	return &token, nil
}
