// Package motivation sends a daily motivational message to users who opted in.
package motivation

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fastygo/taskbot/domain"
	"github.com/fastygo/taskbot/usecase"
)

// Messages is the rotation of daily messages.
var Messages = []string{
	"Every task you finish is a promise kept to yourself.",
	"Small steps every day add up to big results.",
	"Start with the hardest task. The rest of the day gets easier.",
	"Progress, not perfection.",
	"You don't have to be great to start, but you have to start to be great.",
	"Focus on one thing at a time. Finish it, then move on.",
	"Your future self will thank you for what you do today.",
	"Discipline is choosing what you want most over what you want now.",
	"A streak is built one day at a time. Keep it going!",
	"Done is better than perfect.",
}

// Recipients selects and marks users due for a message.
type Recipients interface {
	MotivationRecipients(ctx context.Context, limit int) ([]domain.UserProfile, error)
	MarkMotivated(ctx context.Context, userID int64, at time.Time) error
}

type Config struct {
	// Schedule is a cron spec with seconds, e.g. "0 0 9 * * *".
	Schedule    string
	BatchSize   int
	Concurrency int
	Timeout     time.Duration
}

type Broadcaster struct {
	recipients Recipients
	messenger  usecase.Messenger
	cfg        Config
	logger     *zap.Logger
	cron       *cron.Cron
	now        func() time.Time
}

func New(recipients Recipients, messenger usecase.Messenger, cfg Config, logger *zap.Logger) (*Broadcaster, error) {
	if cfg.Schedule == "" {
		cfg.Schedule = "0 0 9 * * *"
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	b := &Broadcaster{
		recipients: recipients,
		messenger:  messenger,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
	}
	if _, err := b.cron.AddFunc(cfg.Schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
		defer cancel()
		if _, err := b.Run(ctx); err != nil {
			b.logger.Error("motivation broadcast failed", zap.Error(err))
		}
	}); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Broadcaster) Start() {
	b.cron.Start()
	b.logger.Info("motivation broadcaster started", zap.String("schedule", b.cfg.Schedule))
}

func (b *Broadcaster) Stop(ctx context.Context) {
	stopCtx := b.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	b.logger.Info("motivation broadcaster stopped")
}

// Run messages every due recipient once and returns how many were reached.
// A failed send leaves the user due for the next run.
func (b *Broadcaster) Run(ctx context.Context) (int, error) {
	users, err := b.recipients.MotivationRecipients(ctx, b.cfg.BatchSize)
	if err != nil {
		return 0, err
	}
	if len(users) == 0 {
		return 0, nil
	}

	now := b.now().UTC()
	results := make([]bool, len(users))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.cfg.Concurrency)
	for i, u := range users {
		g.Go(func() error {
			msg := domain.OutboundMessage{
				ChatID: u.UserID,
				Kind:   domain.MessageBroadcast,
				Text:   "💪 <b>Daily Motivation</b>\n\n" + Pick(u.UserID, now),
			}
			if err := b.messenger.Send(gctx, msg); err != nil {
				b.logger.Warn("motivation send failed", zap.Int64("user_id", u.UserID), zap.Error(err))
				return nil
			}
			if err := b.recipients.MarkMotivated(gctx, u.UserID, now); err != nil {
				b.logger.Warn("failed to record motivation", zap.Int64("user_id", u.UserID), zap.Error(err))
			}
			results[i] = true
			return nil
		})
	}
	_ = g.Wait()

	sent := 0
	for _, ok := range results {
		if ok {
			sent++
		}
	}
	b.logger.Info("motivation broadcast done", zap.Int("recipients", len(users)), zap.Int("sent", sent))
	return sent, ctx.Err()
}

// Pick rotates messages by day so a user does not get the same one twice in a row.
func Pick(userID int64, day time.Time) string {
	n := int64(len(Messages))
	idx := (int64(day.YearDay()) + userID%n) % n
	if idx < 0 {
		idx += n
	}
	return Messages[idx]
}
