package profile

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/taskbot/domain"
	"github.com/fastygo/taskbot/repository"
	"github.com/fastygo/taskbot/usecase/gamification"
)

// maxAttempts bounds the optimistic read-modify-write loop.
const maxAttempts = 5

type UseCase struct {
	profiles    repository.ProfileRepository
	engine      *gamification.Engine
	adminUserID int64
	logger      *zap.Logger
}

func New(profiles repository.ProfileRepository, engine *gamification.Engine, adminUserID int64, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	if engine == nil {
		engine = gamification.NewEngine(nil)
	}
	return &UseCase{
		profiles:    profiles,
		engine:      engine,
		adminUserID: adminUserID,
		logger:      logger,
	}
}

// Get returns the profile of userID, creating the default profile on first use.
func (uc *UseCase) Get(ctx context.Context, userID int64) (*domain.UserProfile, error) {
	profile, err := uc.profiles.Get(ctx, userID)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, domain.ErrProfileNotFound) {
		return nil, err
	}
	return uc.profiles.Create(ctx, domain.NewUserProfile(userID))
}

// Award applies one completion of the given priority exactly once.
func (uc *UseCase) Award(ctx context.Context, userID int64, priority domain.Priority) (*gamification.Award, error) {
	var award gamification.Award
	_, err := uc.update(ctx, userID, func(current *domain.UserProfile) *domain.UserProfile {
		award = uc.engine.AwardCompletion(current, priority)
		return award.Profile
	})
	if err != nil {
		return nil, err
	}

	uc.logger.Debug("xp awarded",
		zap.Int64("user_id", userID),
		zap.Int("xp", award.Total()),
		zap.Int("level", award.Profile.Level))
	return &award, nil
}

// Penalize applies a penalty of the given kind exactly once.
func (uc *UseCase) Penalize(ctx context.Context, userID int64, kind gamification.PenaltyKind) (*gamification.Penalty, error) {
	var penalty gamification.Penalty
	_, err := uc.update(ctx, userID, func(current *domain.UserProfile) *domain.UserProfile {
		penalty = uc.engine.ApplyPenalty(current, kind)
		return penalty.Profile
	})
	if err != nil {
		return nil, err
	}
	return &penalty, nil
}

// SetMotivation turns the daily motivation message on or off.
func (uc *UseCase) SetMotivation(ctx context.Context, userID int64, enabled bool) (*domain.UserProfile, error) {
	return uc.update(ctx, userID, func(current *domain.UserProfile) *domain.UserProfile {
		next := current.Clone()
		next.MotivationEnabled = enabled
		return next
	})
}

// MarkMotivated records that the daily motivation was delivered at at.
func (uc *UseCase) MarkMotivated(ctx context.Context, userID int64, at time.Time) error {
	_, err := uc.update(ctx, userID, func(current *domain.UserProfile) *domain.UserProfile {
		next := current.Clone()
		stamp := at.UTC()
		next.LastMotivationAt = &stamp
		return next
	})
	return err
}

// MotivationRecipients lists opted-in users not messaged within the last day.
func (uc *UseCase) MotivationRecipients(ctx context.Context, limit int) ([]domain.UserProfile, error) {
	return uc.profiles.ListMotivationRecipients(ctx, limit)
}

// AdminStats returns totals over all profiles. Only the configured admin may read them.
func (uc *UseCase) AdminStats(ctx context.Context, requesterID int64) (domain.ProfileTotals, error) {
	if uc.adminUserID == 0 || requesterID != uc.adminUserID {
		return domain.ProfileTotals{}, domain.ErrForbidden
	}
	return uc.profiles.Totals(ctx)
}

// update runs mutate against the latest stored profile and writes the result
// only if nobody else wrote in between, re-reading on conflict.
func (uc *UseCase) update(ctx context.Context, userID int64, mutate func(*domain.UserProfile) *domain.UserProfile) (*domain.UserProfile, error) {
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		current, err := uc.Get(ctx, userID)
		if err != nil {
			return nil, err
		}

		next := mutate(current)
		next.UserID = userID
		err = uc.profiles.UpdateIfVersion(ctx, next, current.Version)
		if err == nil {
			return next, nil
		}
		if !errors.Is(err, domain.ErrProfileConflict) {
			return nil, err
		}
		uc.logger.Debug("profile write conflict, retrying",
			zap.Int64("user_id", userID),
			zap.Int("attempt", attempt))
	}
	return nil, domain.ErrProfileConflict
}
