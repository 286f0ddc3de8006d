package domain

import (
	"strconv"
	"time"
)

// Priority ranks a task and drives the XP it is worth.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// ParsePriority normalizes user input, falling back to medium.
func ParsePriority(value string) Priority {
	switch Priority(value) {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return Priority(value)
	default:
		return PriorityMedium
	}
}

// Rank orders priorities for listings, high first.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityLow:
		return 2
	default:
		return 1
	}
}

// TaskStatus is the lifecycle state of a task. Deleted tasks are removed, not transitioned.
type TaskStatus string

const (
	TaskPending TaskStatus = "pending"
	TaskDone    TaskStatus = "done"
)

// Task represents a user-owned reminder item.
type Task struct {
	ID          string     `json:"id"`
	OwnerID     int64      `json:"owner_id"`
	Text        string     `json:"text"`
	Priority    Priority   `json:"priority"`
	Tags        []string   `json:"tags"`
	Status      TaskStatus `json:"status"`
	RemindAt    time.Time  `json:"remind_at"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Notified    bool       `json:"notified"`
}

func (t *Task) IsCompleted() bool {
	return t != nil && t.Status == TaskDone
}

func (t *Task) IsPending() bool {
	return t != nil && t.Status == TaskPending
}

// HasTag reports whether the task carries tag (without the leading '#').
func (t *Task) HasTag(tag string) bool {
	if t == nil {
		return false
	}
	for _, existing := range t.Tags {
		if existing == tag {
			return true
		}
	}
	return false
}

// ShortID is the prefix shown in chat replies.
func (t *Task) ShortID() string {
	if t == nil {
		return ""
	}
	if len(t.ID) > 8 {
		return t.ID[:8]
	}
	return t.ID
}

// ReminderPayload is attached to an armed trigger and handed back when it fires.
type ReminderPayload struct {
	UserID int64  `json:"userId"`
	TaskID string `json:"taskId"`
	Text   string `json:"text,omitempty"`
}

// Key returns the trigger key of the task the payload belongs to.
func (p ReminderPayload) Key() string {
	return ReminderKey(p.UserID, p.TaskID)
}

// ReminderKey identifies the single trigger a live task may own.
func ReminderKey(ownerID int64, taskID string) string {
	return "reminder-" + strconv.FormatInt(ownerID, 10) + "-" + taskID
}
