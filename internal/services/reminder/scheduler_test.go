package reminder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redislib "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/taskbot/domain"
)

type recorder struct {
	mu    sync.Mutex
	calls []domain.ReminderPayload
	fail  error
}

func (r *recorder) handle(_ context.Context, payload domain.ReminderPayload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, payload)
	return r.fail
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func schedulers(t *testing.T) map[string]*Scheduler {
	mr := miniredis.RunT(t)
	client := redislib.NewClient(&redislib.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := Config{RetryDelay: time.Minute, MaxAttempts: 3, Lease: time.Minute}
	return map[string]*Scheduler{
		"redis":  NewRedis(client, cfg, nil),
		"memory": NewMemory(cfg, nil),
	}
}

func setup(s *Scheduler) (*clock, *recorder) {
	c := &clock{now: time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)}
	s.now = c.Now
	rec := &recorder{}
	s.SetHandler(rec.handle)
	return c, rec
}

func TestScheduler_FiresOnceWhenDue(t *testing.T) {
	for name, s := range schedulers(t) {
		t.Run(name, func(t *testing.T) {
			c, rec := setup(s)
			ctx := context.Background()
			payload := domain.ReminderPayload{UserID: 1, TaskID: "abc", Text: "call"}

			require.NoError(t, s.Arm(ctx, payload.Key(), c.Now().Add(time.Hour), payload))

			n, err := s.Poll(ctx)
			require.NoError(t, err)
			assert.Equal(t, 0, n)

			c.Advance(time.Hour)
			n, err = s.Poll(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, n)
			require.Equal(t, 1, rec.count())
			assert.Equal(t, payload, rec.calls[0])

			c.Advance(time.Hour)
			n, err = s.Poll(ctx)
			require.NoError(t, err)
			assert.Equal(t, 0, n)
		})
	}
}

func TestScheduler_RejectsPastTime(t *testing.T) {
	for name, s := range schedulers(t) {
		t.Run(name, func(t *testing.T) {
			c, _ := setup(s)
			err := s.Arm(context.Background(), "k", c.Now(), domain.ReminderPayload{})
			assert.ErrorIs(t, err, domain.ErrReminderNotFuture)
		})
	}
}

func TestScheduler_RearmReplaces(t *testing.T) {
	for name, s := range schedulers(t) {
		t.Run(name, func(t *testing.T) {
			c, rec := setup(s)
			ctx := context.Background()
			payload := domain.ReminderPayload{UserID: 1, TaskID: "abc"}

			require.NoError(t, s.Arm(ctx, payload.Key(), c.Now().Add(time.Hour), payload))
			require.NoError(t, s.Arm(ctx, payload.Key(), c.Now().Add(3*time.Hour), payload))

			c.Advance(2 * time.Hour)
			_, err := s.Poll(ctx)
			require.NoError(t, err)
			assert.Equal(t, 0, rec.count())

			c.Advance(time.Hour)
			_, err = s.Poll(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, rec.count())
		})
	}
}

func TestScheduler_CancelIsIdempotent(t *testing.T) {
	for name, s := range schedulers(t) {
		t.Run(name, func(t *testing.T) {
			c, rec := setup(s)
			ctx := context.Background()

			require.NoError(t, s.Arm(ctx, "k", c.Now().Add(time.Minute), domain.ReminderPayload{TaskID: "k"}))
			require.NoError(t, s.Cancel(ctx, "k"))
			require.NoError(t, s.Cancel(ctx, "k"))
			require.NoError(t, s.Cancel(ctx, "never-armed"))

			c.Advance(time.Hour)
			_, err := s.Poll(ctx)
			require.NoError(t, err)
			assert.Equal(t, 0, rec.count())
		})
	}
}

func TestScheduler_RetriesFailedDeliveryThenDrops(t *testing.T) {
	for name, s := range schedulers(t) {
		t.Run(name, func(t *testing.T) {
			c, rec := setup(s)
			rec.fail = errors.New("telegram down")
			ctx := context.Background()

			require.NoError(t, s.Arm(ctx, "k", c.Now().Add(time.Minute), domain.ReminderPayload{TaskID: "k"}))

			c.Advance(time.Minute)
			_, err := s.Poll(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, rec.count())

			// Not yet due again.
			_, err = s.Poll(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, rec.count())

			for i := 0; i < 5; i++ {
				c.Advance(time.Minute)
				_, err = s.Poll(ctx)
				require.NoError(t, err)
			}
			assert.Equal(t, 3, rec.count(), "dropped after MaxAttempts")
		})
	}
}

func TestScheduler_RecoversExpiredLease(t *testing.T) {
	for name, s := range schedulers(t) {
		t.Run(name, func(t *testing.T) {
			c, rec := setup(s)
			ctx := context.Background()

			require.NoError(t, s.Arm(ctx, "k", c.Now().Add(time.Minute), domain.ReminderPayload{TaskID: "k"}))
			c.Advance(time.Minute)

			// Simulate a poller that claimed the trigger and crashed.
			claimed, err := s.store.claim(ctx, c.Now(), c.Now().Add(time.Minute), 10)
			require.NoError(t, err)
			require.Len(t, claimed, 1)

			_, err = s.Poll(ctx)
			require.NoError(t, err)
			assert.Equal(t, 0, rec.count())

			c.Advance(time.Minute)
			_, err = s.Poll(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, rec.count())
		})
	}
}

func TestScheduler_NoHandlerIsNoop(t *testing.T) {
	s := NewMemory(Config{}, nil)
	n, err := s.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
