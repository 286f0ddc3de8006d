package repository

import (
	"context"

	"github.com/fastygo/taskbot/domain"
)

// ProfileRepository persists user profiles with optimistic concurrency on Version.
type ProfileRepository interface {
	Get(ctx context.Context, userID int64) (*domain.UserProfile, error)
	// Create inserts the profile unless one already exists; the stored profile is returned either way.
	Create(ctx context.Context, profile *domain.UserProfile) (*domain.UserProfile, error)
	// UpdateIfVersion writes profile only when the stored version equals expected,
	// bumping Version. It returns ErrProfileConflict otherwise.
	UpdateIfVersion(ctx context.Context, profile *domain.UserProfile, expected int64) error
	ListMotivationRecipients(ctx context.Context, limit int) ([]domain.UserProfile, error)
	Totals(ctx context.Context) (domain.ProfileTotals, error)
}
