package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/fastygo/taskbot/domain"
	"github.com/fastygo/taskbot/internal/infrastructure/outbox"
	"github.com/fastygo/taskbot/usecase"
)

// OutboxConfig controls how parked messages are drained.
type OutboxConfig struct {
	Interval    time.Duration
	BatchSize   int
	MaxAttempts int
	Retention   time.Duration
	SendTimeout time.Duration
}

// OutboxProcessor delivers messages through a Messenger and parks the ones
// that fail transiently in a durable outbox, retried by a cron drain.
type OutboxProcessor struct {
	store  *outbox.Store
	next   usecase.Messenger
	logger *zap.Logger
	cron   *cron.Cron
	cfg    OutboxConfig
	now    func() time.Time
}

var _ usecase.Messenger = (*OutboxProcessor)(nil)

func NewOutboxProcessor(store *outbox.Store, next usecase.Messenger, logger *zap.Logger, cfg OutboxConfig) *OutboxProcessor {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 24 * time.Hour
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	op := &OutboxProcessor{
		store:  store,
		next:   next,
		logger: logger,
		cfg:    cfg,
		now:    time.Now,
		cron:   cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
	}

	schedule := fmt.Sprintf("@every %ds", int(cfg.Interval.Seconds()))
	_, _ = op.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Interval)
		defer cancel()
		if _, err := op.Drain(ctx); err != nil {
			op.logger.Error("outbox drain failed", zap.Error(err))
		}
	})

	return op
}

// Start launches the drain schedule.
func (op *OutboxProcessor) Start() {
	op.cron.Start()
	op.logger.Info("outbox processor started", zap.Duration("interval", op.cfg.Interval))
}

// Stop waits for a running drain or ctx, whichever ends first.
func (op *OutboxProcessor) Stop(ctx context.Context) {
	stopCtx := op.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	op.logger.Info("outbox processor stopped")
}

// Send tries immediate delivery. Transient failures are parked and reported
// as delivered; permanent ones are returned to the caller.
func (op *OutboxProcessor) Send(ctx context.Context, msg domain.OutboundMessage) error {
	err := op.deliver(ctx, msg)
	if err == nil || !retryable(err) {
		return err
	}

	op.logger.Warn("message delivery failed, parking in outbox",
		zap.Int64("chat_id", msg.ChatID),
		zap.String("kind", string(msg.Kind)),
		zap.Error(err))
	if parkErr := op.store.Put(outbox.Entry{Message: msg, Attempts: 1, LastErr: err.Error()}); parkErr != nil {
		return domain.Upstream("park outbound message", parkErr)
	}
	return nil
}

// Drain retries parked messages once and returns how many were delivered.
func (op *OutboxProcessor) Drain(ctx context.Context) (int, error) {
	if removed, err := op.store.Expire(op.now().Add(-op.cfg.Retention)); err != nil {
		op.logger.Warn("outbox expiry failed", zap.Error(err))
	} else if removed > 0 {
		op.logger.Warn("expired parked messages", zap.Int("count", removed))
	}

	entries, err := op.store.Peek(op.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	delivered := 0
	for _, entry := range entries {
		if ctx.Err() != nil {
			return delivered, ctx.Err()
		}

		err := op.deliver(ctx, entry.Message)
		switch {
		case err == nil:
			delivered++
			if err := op.store.Remove(entry); err != nil {
				op.logger.Warn("failed to remove delivered message", zap.String("entry_id", entry.ID), zap.Error(err))
			}
		case !retryable(err) || entry.Attempts+1 >= op.cfg.MaxAttempts:
			op.logger.Error("dropping parked message",
				zap.String("entry_id", entry.ID),
				zap.Int64("chat_id", entry.Message.ChatID),
				zap.Int("attempts", entry.Attempts+1),
				zap.Error(err))
			_ = op.store.Remove(entry)
		default:
			if err := op.store.Retry(entry, err); err != nil {
				op.logger.Error("failed to requeue parked message", zap.String("entry_id", entry.ID), zap.Error(err))
			}
		}
	}
	return delivered, nil
}

// Size returns the number of parked messages.
func (op *OutboxProcessor) Size() int {
	size, err := op.store.Size()
	if err != nil {
		return 0
	}
	return size
}

func (op *OutboxProcessor) deliver(parent context.Context, msg domain.OutboundMessage) error {
	ctx, cancel := context.WithTimeout(parent, op.cfg.SendTimeout)
	defer cancel()
	return op.next.Send(ctx, msg)
}

func retryable(err error) bool {
	return domain.IsDomainError(err, domain.ErrCodeUpstream) || domain.IsDomainError(err, domain.ErrCodeRateLimited)
}
