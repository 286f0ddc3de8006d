package reminder

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/taskbot/domain"
)

type memoryTrigger struct {
	fireAt     time.Time
	leaseUntil time.Time
	inflight   bool
	attempts   int
	payload    domain.ReminderPayload
}

type memoryStore struct {
	mu       sync.Mutex
	triggers map[string]*memoryTrigger
}

// NewMemory returns a scheduler keeping triggers in process memory.
// Armed triggers are lost on restart.
func NewMemory(cfg Config, logger *zap.Logger) *Scheduler {
	return newScheduler(&memoryStore{triggers: make(map[string]*memoryTrigger)}, cfg, logger)
}

func (m *memoryStore) arm(_ context.Context, key string, fireAt time.Time, payload domain.ReminderPayload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.triggers[key] = &memoryTrigger{fireAt: fireAt, payload: payload}
	return nil
}

func (m *memoryStore) cancel(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.triggers, key)
	return nil
}

func (m *memoryStore) recoverExpired(_ context.Context, now time.Time, limit int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, t := range m.triggers {
		if n >= limit {
			break
		}
		if t.inflight && !t.leaseUntil.After(now) {
			t.inflight = false
			t.fireAt = now
			n++
		}
	}
	return n, nil
}

func (m *memoryStore) claim(_ context.Context, now, leaseUntil time.Time, limit int) ([]claimed, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var due []string
	for key, t := range m.triggers {
		if !t.inflight && !t.fireAt.After(now) {
			due = append(due, key)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		return m.triggers[due[i]].fireAt.Before(m.triggers[due[j]].fireAt)
	})
	if len(due) > limit {
		due = due[:limit]
	}

	out := make([]claimed, 0, len(due))
	for _, key := range due {
		t := m.triggers[key]
		t.inflight = true
		t.leaseUntil = leaseUntil
		out = append(out, claimed{key: key, payload: t.payload, found: true})
	}
	return out, nil
}

func (m *memoryStore) ack(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.triggers[key]; ok && t.inflight {
		delete(m.triggers, key)
	}
	return nil
}

func (m *memoryStore) retry(_ context.Context, key string, at time.Time, maxAttempts int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.triggers[key]
	if !ok || !t.inflight {
		return true, nil
	}
	t.attempts++
	if t.attempts >= maxAttempts {
		delete(m.triggers, key)
		return false, nil
	}
	t.inflight = false
	t.fireAt = at
	return true, nil
}
