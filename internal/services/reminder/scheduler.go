// Package reminder runs one-shot reminder triggers. Triggers are armed with a
// fire time and a payload; a cron poller claims due triggers and hands their
// payload to the registered Handler. Delivery is at-least-once.
package reminder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/fastygo/taskbot/domain"
	"github.com/fastygo/taskbot/usecase"
)

// Handler receives the payload of a fired trigger. A non-nil error re-queues
// the trigger after Config.RetryDelay.
type Handler func(ctx context.Context, payload domain.ReminderPayload) error

type Config struct {
	PollInterval   time.Duration
	BatchSize      int
	Lease          time.Duration
	RetryDelay     time.Duration
	MaxAttempts    int
	HandlerTimeout time.Duration
}

func (c *Config) normalize() {
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.Lease <= 0 {
		c.Lease = time.Minute
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 30 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 10
	}
	if c.HandlerTimeout <= 0 {
		c.HandlerTimeout = 10 * time.Second
	}
}

// claimed is a trigger taken off the due queue. found is false when the
// payload vanished between claim and read, i.e. the trigger was cancelled.
type claimed struct {
	key     string
	payload domain.ReminderPayload
	found   bool
}

// store is the trigger storage a Scheduler runs on.
type store interface {
	arm(ctx context.Context, key string, fireAt time.Time, payload domain.ReminderPayload) error
	cancel(ctx context.Context, key string) error
	// recoverExpired returns triggers whose lease ran out to the due queue.
	recoverExpired(ctx context.Context, now time.Time, limit int) (int, error)
	claim(ctx context.Context, now, leaseUntil time.Time, limit int) ([]claimed, error)
	ack(ctx context.Context, key string) error
	// retry re-queues key at at. It reports false when the trigger was dropped
	// because it reached maxAttempts.
	retry(ctx context.Context, key string, at time.Time, maxAttempts int) (bool, error)
}

// Scheduler implements usecase.ReminderScheduler.
type Scheduler struct {
	store   store
	cfg     Config
	logger  *zap.Logger
	now     func() time.Time
	cron    *cron.Cron
	mu      sync.RWMutex
	handler Handler
}

var _ usecase.ReminderScheduler = (*Scheduler)(nil)

func newScheduler(s store, cfg Config, logger *zap.Logger) *Scheduler {
	cfg.normalize()
	if logger == nil {
		logger = zap.NewNop()
	}

	sch := &Scheduler{
		store:  s,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
		cron:   cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
	}

	schedule := fmt.Sprintf("@every %s", cfg.PollInterval)
	_, _ = sch.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Lease)
		defer cancel()
		if _, err := sch.Poll(ctx); err != nil {
			sch.logger.Error("reminder poll failed", zap.Error(err))
		}
	})
	return sch
}

// SetHandler registers the callback invoked for fired triggers.
func (s *Scheduler) SetHandler(h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = h
}

// SetClock replaces the time source used for due checks.
func (s *Scheduler) SetClock(clock func() time.Time) {
	s.now = clock
}

// Arm schedules key to fire at fireAt, replacing any trigger armed under key.
func (s *Scheduler) Arm(ctx context.Context, key string, fireAt time.Time, payload domain.ReminderPayload) error {
	if key == "" {
		return domain.ErrInvalidPayload
	}
	if !fireAt.After(s.now()) {
		return domain.ErrReminderNotFuture
	}
	return s.store.arm(ctx, key, fireAt, payload)
}

// Cancel removes the trigger for key. Unknown keys are ignored.
func (s *Scheduler) Cancel(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	return s.store.cancel(ctx, key)
}

// Poll fires every due trigger once and returns how many were delivered.
func (s *Scheduler) Poll(ctx context.Context) (int, error) {
	s.mu.RLock()
	handler := s.handler
	s.mu.RUnlock()
	if handler == nil {
		return 0, nil
	}

	now := s.now()
	if n, err := s.store.recoverExpired(ctx, now, s.cfg.BatchSize); err != nil {
		return 0, err
	} else if n > 0 {
		s.logger.Warn("recovered expired reminder leases", zap.Int("count", n))
	}

	batch, err := s.store.claim(ctx, now, now.Add(s.cfg.Lease), s.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	delivered := 0
	for _, item := range batch {
		if !item.found {
			_ = s.store.ack(ctx, item.key)
			continue
		}

		if err := s.invoke(ctx, handler, item.payload); err != nil {
			kept, retryErr := s.store.retry(ctx, item.key, s.now().Add(s.cfg.RetryDelay), s.cfg.MaxAttempts)
			switch {
			case retryErr != nil:
				s.logger.Error("failed to re-queue reminder", zap.String("key", item.key), zap.Error(retryErr))
			case !kept:
				s.logger.Error("dropping reminder after max attempts", zap.String("key", item.key), zap.Error(err))
			default:
				s.logger.Warn("reminder delivery failed, re-queued", zap.String("key", item.key), zap.Error(err))
			}
			continue
		}

		if err := s.store.ack(ctx, item.key); err != nil {
			s.logger.Warn("failed to ack reminder", zap.String("key", item.key), zap.Error(err))
		}
		delivered++
	}
	return delivered, nil
}

func (s *Scheduler) invoke(parent context.Context, handler Handler, payload domain.ReminderPayload) error {
	ctx, cancel := context.WithTimeout(parent, s.cfg.HandlerTimeout)
	defer cancel()
	return handler(ctx, payload)
}

// Start launches the poller.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("reminder scheduler started", zap.Duration("interval", s.cfg.PollInterval))
}

// Stop waits for a running poll to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	s.logger.Info("reminder scheduler stopped")
}
