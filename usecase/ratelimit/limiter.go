// Package ratelimit enforces a per-user daily call budget.
package ratelimit

import (
	"context"
	"errors"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/taskbot/domain"
	"github.com/fastygo/taskbot/repository"
)

// DefaultDailyLimit is the number of calls a user may make per UTC day.
const DefaultDailyLimit = 10

// counterTTL outlives the UTC day the key belongs to.
const counterTTL = 48 * time.Hour

// Decision is the result of a single Allow call.
type Decision struct {
	Allowed   bool `json:"allowed"`
	Remaining int  `json:"remaining"`
}

type Config struct {
	DailyLimit int
	// FailClosed rejects calls when the counter store is unreachable.
	// The default lets them through.
	FailClosed bool
}

type Limiter struct {
	counters repository.CounterRepository
	cfg      Config
	now      func() time.Time
	logger   *zap.Logger
}

func New(counters repository.CounterRepository, cfg Config, logger *zap.Logger) *Limiter {
	if cfg.DailyLimit <= 0 {
		cfg.DailyLimit = DefaultDailyLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Limiter{
		counters: counters,
		cfg:      cfg,
		now:      time.Now,
		logger:   logger,
	}
}

// Allow consumes one call from the user's budget for the current UTC day.
// A denied call does not touch the counter.
func (l *Limiter) Allow(ctx context.Context, userID int64) (Decision, error) {
	key := strconv.FormatInt(userID, 10) + ":" + l.now().UTC().Format(domain.DateLayout)
	limit := int64(l.cfg.DailyLimit)

	used, err := l.counters.IncrementBelow(ctx, key, limit, counterTTL)
	switch {
	case err == nil:
		return Decision{Allowed: true, Remaining: int(limit - used)}, nil
	case errors.Is(err, repository.ErrLimitReached):
		l.logger.Info("daily limit reached", zap.Int64("user_id", userID))
		return Decision{Allowed: false, Remaining: 0}, nil
	case l.cfg.FailClosed:
		return Decision{}, domain.Upstream("rate limit check", err)
	default:
		l.logger.Warn("rate limit check failed, allowing call", zap.Int64("user_id", userID), zap.Error(err))
		return Decision{Allowed: true, Remaining: 0}, nil
	}
}

// Consume is Allow for callers that only care about denial; a denied call
// yields domain.ErrRateLimited.
func (l *Limiter) Consume(ctx context.Context, userID int64) (Decision, error) {
	decision, err := l.Allow(ctx, userID)
	if err != nil {
		return decision, err
	}
	if !decision.Allowed {
		return decision, domain.ErrRateLimited
	}
	return decision, nil
}
