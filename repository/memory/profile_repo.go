package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fastygo/taskbot/domain"
	"github.com/fastygo/taskbot/repository"
)

// ProfileRepository keeps profiles in memory with the same version check as the SQL store.
type ProfileRepository struct {
	mu       sync.Mutex
	profiles map[int64]*domain.UserProfile
	now      func() time.Time
}

var _ repository.ProfileRepository = (*ProfileRepository)(nil)

func NewProfileRepository() *ProfileRepository {
	return &ProfileRepository{
		profiles: make(map[int64]*domain.UserProfile),
		now:      time.Now,
	}
}

func (r *ProfileRepository) Get(_ context.Context, userID int64) (*domain.UserProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	profile, ok := r.profiles[userID]
	if !ok {
		return nil, domain.ErrProfileNotFound
	}
	return profile.Clone(), nil
}

func (r *ProfileRepository) Create(_ context.Context, profile *domain.UserProfile) (*domain.UserProfile, error) {
	if profile == nil {
		return nil, domain.ErrInvalidPayload
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.profiles[profile.UserID]; ok {
		return existing.Clone(), nil
	}

	stored := profile.Clone()
	stored.Version = 0
	stored.Level = domain.LevelFor(stored.TotalXP)
	stored.CreatedAt = r.now().UTC()
	stored.UpdatedAt = stored.CreatedAt
	r.profiles[stored.UserID] = stored
	return stored.Clone(), nil
}

func (r *ProfileRepository) UpdateIfVersion(_ context.Context, profile *domain.UserProfile, expected int64) error {
	if profile == nil {
		return domain.ErrInvalidPayload
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.profiles[profile.UserID]
	if !ok || current.Version != expected {
		return domain.ErrProfileConflict
	}

	stored := profile.Clone()
	stored.Level = domain.LevelFor(stored.TotalXP)
	stored.Version = expected + 1
	stored.CreatedAt = current.CreatedAt
	stored.UpdatedAt = r.now().UTC()
	r.profiles[stored.UserID] = stored

	profile.Version = stored.Version
	profile.UpdatedAt = stored.UpdatedAt
	return nil
}

func (r *ProfileRepository) ListMotivationRecipients(_ context.Context, limit int) ([]domain.UserProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-24 * time.Hour)
	var out []domain.UserProfile
	for _, profile := range r.profiles {
		if !profile.MotivationEnabled {
			continue
		}
		if profile.LastMotivationAt != nil && !profile.LastMotivationAt.Before(cutoff) {
			continue
		}
		out = append(out, *profile.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *ProfileRepository) Totals(_ context.Context) (domain.ProfileTotals, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	totals := domain.ProfileTotals{TotalUsers: len(r.profiles)}
	for _, profile := range r.profiles {
		totals.TotalXP += int64(profile.TotalXP)
		totals.TotalTasks += int64(profile.TasksCompleted)
	}
	return totals, nil
}
