// Package gamification computes XP, streak, level and achievement changes.
// The engine is pure: it never touches storage and works on copies of the
// profiles it is given.
package gamification

import (
	"time"

	"github.com/fastygo/taskbot/domain"
)

const (
	StreakBonusPerDay = 5
	AchievementXP     = 50
)

var baseXP = map[domain.Priority]int{
	domain.PriorityLow:    10,
	domain.PriorityMedium: 20,
	domain.PriorityHigh:   30,
}

// PenaltyKind names a reason for losing XP.
type PenaltyKind string

const (
	PenaltyDelete PenaltyKind = "delete"
	// PenaltyIgnore is reserved for reminders left unanswered. Nothing applies it yet.
	PenaltyIgnore PenaltyKind = "ignore"
)

var penaltyXP = map[PenaltyKind]int{
	PenaltyDelete: 10,
	PenaltyIgnore: 15,
}

// Award is the outcome of a task completion.
type Award struct {
	Profile          *domain.UserProfile    `json:"-"`
	XPEarned         int                    `json:"xpEarned"`
	StreakBonus      int                    `json:"streakBonus"`
	AchievementBonus int                    `json:"achievementBonus"`
	Unlocked         []domain.AchievementID `json:"unlocked"`
	LeveledUp        bool                   `json:"leveledUp"`
}

// Total is the XP gained by the completion.
func (a Award) Total() int {
	return a.XPEarned + a.StreakBonus + a.AchievementBonus
}

// Penalty is the outcome of a penalty event.
type Penalty struct {
	Profile *domain.UserProfile `json:"-"`
	Kind    PenaltyKind         `json:"kind"`
	XPLost  int                 `json:"xpLost"`
}

// Engine applies gamification rules relative to its clock.
type Engine struct {
	now func() time.Time
}

// NewEngine returns an engine reading the current time from clock, or time.Now when nil.
func NewEngine(clock func() time.Time) *Engine {
	if clock == nil {
		clock = time.Now
	}
	return &Engine{now: clock}
}

// AwardCompletion applies one task completion of the given priority.
func (e *Engine) AwardCompletion(profile *domain.UserProfile, priority domain.Priority) Award {
	now := e.now().UTC()
	today := now.Format(domain.DateLayout)
	yesterday := now.AddDate(0, 0, -1).Format(domain.DateLayout)

	next := cloneOrNew(profile)
	previousLevel := domain.LevelFor(next.TotalXP)

	base, ok := baseXP[priority]
	if !ok {
		base = baseXP[domain.PriorityMedium]
	}

	switch next.LastCompletedDate {
	case yesterday:
		next.Streak++
	case today:
		// unchanged
	default:
		next.Streak = 1
	}

	streakBonus := 0
	if next.Streak > 1 {
		streakBonus = StreakBonusPerDay * (next.Streak - 1)
	}

	next.TasksCompleted++
	if priority == domain.PriorityHigh {
		next.HighPriorityCompleted++
	}
	next.DaysWithoutDelete++

	unlocked := unlockedAchievements(next, now.Hour())
	next.Achievements = append(next.Achievements, unlocked...)
	achievementBonus := AchievementXP * len(unlocked)

	next.TotalXP += base + streakBonus + achievementBonus
	next.Level = domain.LevelFor(next.TotalXP)
	next.LastCompletedDate = today
	next.ActivityLog[today]++

	return Award{
		Profile:          next,
		XPEarned:         base,
		StreakBonus:      streakBonus,
		AchievementBonus: achievementBonus,
		Unlocked:         unlocked,
		LeveledUp:        next.Level > previousLevel,
	}
}

// ApplyPenalty deducts the XP of kind, never below zero, and resets DaysWithoutDelete.
func (e *Engine) ApplyPenalty(profile *domain.UserProfile, kind PenaltyKind) Penalty {
	amount, ok := penaltyXP[kind]
	if !ok {
		kind, amount = PenaltyDelete, penaltyXP[PenaltyDelete]
	}

	next := cloneOrNew(profile)
	next.TotalXP -= amount
	if next.TotalXP < 0 {
		next.TotalXP = 0
	}
	next.Level = domain.LevelFor(next.TotalXP)
	next.DaysWithoutDelete = 0
	next.LastDeleteDate = e.now().UTC().Format(domain.DateLayout)

	return Penalty{Profile: next, Kind: kind, XPLost: amount}
}

// unlockedAchievements evaluates the catalog against post-increment counters.
func unlockedAchievements(p *domain.UserProfile, hour int) []domain.AchievementID {
	reached := map[domain.AchievementID]bool{
		domain.AchievementFirstTask:      p.TasksCompleted >= 1,
		domain.AchievementWeekStreak:     p.Streak >= 7,
		domain.AchievementEarlyBird:      hour < 8,
		domain.AchievementNightOwl:       hour >= 22,
		domain.AchievementCentury:        p.TasksCompleted >= 100,
		domain.AchievementPriorityMaster: p.HighPriorityCompleted >= 10,
		domain.AchievementNoQuit:         p.DaysWithoutDelete >= 30,
	}

	unlocked := []domain.AchievementID{}
	for _, a := range domain.Achievements {
		if reached[a.ID] && !p.HasAchievement(a.ID) {
			unlocked = append(unlocked, a.ID)
		}
	}
	return unlocked
}

func cloneOrNew(profile *domain.UserProfile) *domain.UserProfile {
	if profile == nil {
		return domain.NewUserProfile(0)
	}
	return profile.Clone()
}
