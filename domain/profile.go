package domain

import "time"

// DateLayout is the calendar-day format used for streaks, activity and rate-limit windows.
const DateLayout = "2006-01-02"

// XPPerLevel is the XP span of a single level.
const XPPerLevel = 100

// AchievementID names a one-time unlockable achievement.
type AchievementID string

const (
	AchievementFirstTask      AchievementID = "first_task"
	AchievementWeekStreak     AchievementID = "week_streak"
	AchievementEarlyBird      AchievementID = "early_bird"
	AchievementNightOwl       AchievementID = "night_owl"
	AchievementCentury        AchievementID = "century"
	AchievementPriorityMaster AchievementID = "priority_master"
	AchievementNoQuit         AchievementID = "no_quit"
)

// Achievement describes an achievement for display.
type Achievement struct {
	ID          AchievementID `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
}

// Achievements is the catalog in evaluation order.
var Achievements = []Achievement{
	{ID: AchievementFirstTask, Name: "🎯 First Task", Description: "Complete your first task"},
	{ID: AchievementWeekStreak, Name: "🔥 Week Warrior", Description: "7-day streak"},
	{ID: AchievementEarlyBird, Name: "🌅 Early Bird", Description: "Complete a task before 8:00"},
	{ID: AchievementNightOwl, Name: "🦉 Night Owl", Description: "Complete a task after 22:00"},
	{ID: AchievementCentury, Name: "💯 Centurion", Description: "Complete 100 tasks"},
	{ID: AchievementPriorityMaster, Name: "⚡ Priority Master", Description: "Complete 10 high priority tasks"},
	{ID: AchievementNoQuit, Name: "💪 No Quit", Description: "30 completions without deleting a task"},
}

// LookupAchievement returns the catalog entry for id, or a bare entry for unknown ids.
func LookupAchievement(id AchievementID) Achievement {
	for _, a := range Achievements {
		if a.ID == id {
			return a
		}
	}
	return Achievement{ID: id, Name: string(id)}
}

// UserProfile holds the gamification state of a user.
type UserProfile struct {
	UserID                int64           `json:"user_id"`
	Level                 int             `json:"level"`
	TotalXP               int             `json:"total_xp"`
	Streak                int             `json:"streak"`
	TasksCompleted        int             `json:"tasks_completed"`
	HighPriorityCompleted int             `json:"high_priority_completed"`
	Achievements          []AchievementID `json:"achievements"`
	LastCompletedDate     string          `json:"last_completed_date,omitempty"`
	LastDeleteDate        string          `json:"last_delete_date,omitempty"`
	DaysWithoutDelete     int             `json:"days_without_delete"`
	ActivityLog           map[string]int  `json:"activity_log"`
	MotivationEnabled     bool            `json:"motivation_enabled"`
	LastMotivationAt      *time.Time      `json:"last_motivation_at,omitempty"`
	Version               int64           `json:"version"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

// NewUserProfile returns the zeroed profile a user starts with.
func NewUserProfile(userID int64) *UserProfile {
	return &UserProfile{
		UserID:       userID,
		Level:        1,
		Achievements: []AchievementID{},
		ActivityLog:  map[string]int{},
	}
}

// LevelFor derives the level reached with totalXP.
func LevelFor(totalXP int) int {
	if totalXP < 0 {
		totalXP = 0
	}
	return totalXP/XPPerLevel + 1
}

// HasAchievement reports whether id is already unlocked.
func (p *UserProfile) HasAchievement(id AchievementID) bool {
	if p == nil {
		return false
	}
	for _, existing := range p.Achievements {
		if existing == id {
			return true
		}
	}
	return false
}

// XPProgress is the XP collected inside the current level.
func (p *UserProfile) XPProgress() int {
	if p == nil || p.TotalXP < 0 {
		return 0
	}
	return p.TotalXP % XPPerLevel
}

// Clone returns a deep copy so callers can mutate without aliasing stored state.
func (p *UserProfile) Clone() *UserProfile {
	if p == nil {
		return nil
	}
	out := *p
	out.Achievements = append([]AchievementID(nil), p.Achievements...)
	if out.Achievements == nil {
		out.Achievements = []AchievementID{}
	}
	out.ActivityLog = make(map[string]int, len(p.ActivityLog))
	for day, count := range p.ActivityLog {
		out.ActivityLog[day] = count
	}
	if p.LastMotivationAt != nil {
		at := *p.LastMotivationAt
		out.LastMotivationAt = &at
	}
	return &out
}

// ProfileTotals aggregates every profile for the admin view.
type ProfileTotals struct {
	TotalUsers int   `json:"totalUsers"`
	TotalXP    int64 `json:"totalXP"`
	TotalTasks int64 `json:"totalTasks"`
}
