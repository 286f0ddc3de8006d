package transport

import (
	"github.com/fastygo/taskbot/domain"
)

// TaskView is the Mini App representation of a task. Times are unix seconds.
type TaskView struct {
	ID          string   `json:"id"`
	Text        string   `json:"text"`
	Priority    string   `json:"priority"`
	Status      string   `json:"status"`
	RemindAt    int64    `json:"remindAt"`
	Tags        []string `json:"tags"`
	CompletedAt *int64   `json:"completedAt"`
}

func NewTaskView(task *domain.Task) TaskView {
	view := TaskView{
		ID:       task.ID,
		Text:     task.Text,
		Priority: string(task.Priority),
		Status:   string(task.Status),
		RemindAt: task.RemindAt.Unix(),
		Tags:     task.Tags,
	}
	if view.Tags == nil {
		view.Tags = []string{}
	}
	if task.CompletedAt != nil {
		at := task.CompletedAt.Unix()
		view.CompletedAt = &at
	}
	return view
}

func NewTaskViews(tasks []domain.Task) []TaskView {
	out := make([]TaskView, 0, len(tasks))
	for i := range tasks {
		out = append(out, NewTaskView(&tasks[i]))
	}
	return out
}

type TaskListResponse struct {
	Tasks []TaskView `json:"tasks"`
}

type TaskCreatedResponse struct {
	TaskID string   `json:"taskId"`
	Task   TaskView `json:"task"`
}

// ProfileView is the profile as shown in the Mini App.
type ProfileView struct {
	UserID            int64                `json:"userId"`
	Level             int                  `json:"level"`
	TotalXP           int                  `json:"totalXP"`
	XPProgress        int                  `json:"xpProgress"`
	XPForNextLevel    int                  `json:"xpForNextLevel"`
	Streak            int                  `json:"streak"`
	TasksCompleted    int                  `json:"tasksCompleted"`
	Achievements      []domain.Achievement `json:"achievements"`
	TotalAchievements int                  `json:"totalAchievements"`
	ActivityLog       map[string]int       `json:"activityLog"`
	MotivationEnabled bool                 `json:"motivationEnabled"`
}

func NewProfileView(p *domain.UserProfile) ProfileView {
	achievements := make([]domain.Achievement, 0, len(p.Achievements))
	for _, id := range p.Achievements {
		achievements = append(achievements, domain.LookupAchievement(id))
	}
	activity := p.ActivityLog
	if activity == nil {
		activity = map[string]int{}
	}
	return ProfileView{
		UserID:            p.UserID,
		Level:             p.Level,
		TotalXP:           p.TotalXP,
		XPProgress:        p.XPProgress(),
		XPForNextLevel:    domain.XPPerLevel,
		Streak:            p.Streak,
		TasksCompleted:    p.TasksCompleted,
		Achievements:      achievements,
		TotalAchievements: len(domain.Achievements),
		ActivityLog:       activity,
		MotivationEnabled: p.MotivationEnabled,
	}
}
