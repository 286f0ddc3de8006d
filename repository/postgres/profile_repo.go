package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastygo/taskbot/domain"
	"github.com/fastygo/taskbot/repository"
)

const profileColumns = `user_id, level, total_xp, streak, tasks_completed, high_priority_completed,
	achievements, last_completed_date, last_delete_date, days_without_delete, activity_log,
	motivation_enabled, last_motivation_at, version, created_at, updated_at`

type profileRepository struct {
	pool *pgxpool.Pool
}

// NewProfileRepository instantiates a Postgres-backed profile repository.
func NewProfileRepository(pool *pgxpool.Pool) repository.ProfileRepository {
	return &profileRepository{pool: pool}
}

func (r *profileRepository) Get(ctx context.Context, userID int64) (*domain.UserProfile, error) {
	const query = `SELECT ` + profileColumns + ` FROM user_profiles WHERE user_id = $1`
	return scanProfile(r.pool.QueryRow(ctx, query, userID))
}

func (r *profileRepository) Create(ctx context.Context, profile *domain.UserProfile) (*domain.UserProfile, error) {
	if profile == nil {
		return nil, domain.ErrInvalidPayload
	}

	const query = `
	INSERT INTO user_profiles (user_id, level, total_xp, streak, tasks_completed, high_priority_completed,
		achievements, last_completed_date, last_delete_date, days_without_delete, activity_log,
		motivation_enabled, last_motivation_at, version, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, 0, NOW(), NOW())
	ON CONFLICT (user_id) DO NOTHING
	`

	if _, err := r.pool.Exec(ctx, query, profileArgs(profile)...); err != nil {
		return nil, domain.Upstream("create profile", err)
	}
	return r.Get(ctx, profile.UserID)
}

func (r *profileRepository) UpdateIfVersion(ctx context.Context, profile *domain.UserProfile, expected int64) error {
	if profile == nil {
		return domain.ErrInvalidPayload
	}

	const query = `
	UPDATE user_profiles
	SET level = $2,
		total_xp = $3,
		streak = $4,
		tasks_completed = $5,
		high_priority_completed = $6,
		achievements = $7,
		last_completed_date = $8,
		last_delete_date = $9,
		days_without_delete = $10,
		activity_log = $11,
		motivation_enabled = $12,
		last_motivation_at = $13,
		version = version + 1,
		updated_at = NOW()
	WHERE user_id = $1 AND version = $14
	RETURNING version, updated_at
	`

	args := append(profileArgs(profile), expected)
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&profile.Version, &profile.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrProfileConflict
		}
		return domain.Upstream("update profile", err)
	}
	return nil
}

func (r *profileRepository) ListMotivationRecipients(ctx context.Context, limit int) ([]domain.UserProfile, error) {
	const query = `
	SELECT ` + profileColumns + `
	FROM user_profiles
	WHERE motivation_enabled
	  AND (last_motivation_at IS NULL OR last_motivation_at < NOW() - INTERVAL '1 day')
	ORDER BY user_id
	LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, clampBatch(limit))
	if err != nil {
		return nil, domain.Upstream("list motivation recipients", err)
	}
	defer rows.Close()

	var profiles []domain.UserProfile
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, *profile)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Upstream("list motivation recipients", err)
	}
	return profiles, nil
}

func (r *profileRepository) Totals(ctx context.Context) (domain.ProfileTotals, error) {
	const query = `
	SELECT COUNT(*), COALESCE(SUM(total_xp), 0), COALESCE(SUM(tasks_completed), 0)
	FROM user_profiles
	`
	var totals domain.ProfileTotals
	if err := r.pool.QueryRow(ctx, query).Scan(&totals.TotalUsers, &totals.TotalXP, &totals.TotalTasks); err != nil {
		return domain.ProfileTotals{}, domain.Upstream("profile totals", err)
	}
	return totals, nil
}

func profileArgs(p *domain.UserProfile) []interface{} {
	achievements := make([]string, 0, len(p.Achievements))
	for _, a := range p.Achievements {
		achievements = append(achievements, string(a))
	}
	return []interface{}{
		p.UserID,
		domain.LevelFor(p.TotalXP),
		p.TotalXP,
		p.Streak,
		p.TasksCompleted,
		p.HighPriorityCompleted,
		achievements,
		p.LastCompletedDate,
		p.LastDeleteDate,
		p.DaysWithoutDelete,
		marshalCounts(p.ActivityLog),
		p.MotivationEnabled,
		p.LastMotivationAt,
	}
}

func scanProfile(row interface {
	Scan(dest ...interface{}) error
}) (*domain.UserProfile, error) {
	var (
		profile      domain.UserProfile
		achievements []string
		activity     []byte
	)

	if err := row.Scan(
		&profile.UserID,
		&profile.Level,
		&profile.TotalXP,
		&profile.Streak,
		&profile.TasksCompleted,
		&profile.HighPriorityCompleted,
		&achievements,
		&profile.LastCompletedDate,
		&profile.LastDeleteDate,
		&profile.DaysWithoutDelete,
		&activity,
		&profile.MotivationEnabled,
		&profile.LastMotivationAt,
		&profile.Version,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrProfileNotFound
		}
		return nil, domain.Upstream("scan profile", err)
	}

	profile.Achievements = make([]domain.AchievementID, 0, len(achievements))
	for _, a := range achievements {
		profile.Achievements = append(profile.Achievements, domain.AchievementID(a))
	}
	profile.ActivityLog = map[string]int{}
	if len(activity) > 0 {
		_ = json.Unmarshal(activity, &profile.ActivityLog)
	}
	return &profile, nil
}

func clampBatch(limit int) int {
	if limit <= 0 || limit > 1000 {
		return 1000
	}
	return limit
}
