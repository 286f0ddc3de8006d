package task

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fastygo/taskbot/domain"
	"github.com/fastygo/taskbot/pkg/timeparse"
	"github.com/fastygo/taskbot/repository"
	"github.com/fastygo/taskbot/usecase"
	"github.com/fastygo/taskbot/usecase/gamification"
)

// ErrNoTime is returned when task text carries no recognizable time.
var ErrNoTime = domain.NewError(domain.ErrCodeInvalid,
	"no time found in task text, try: "+strings.Join(timeparse.Examples, "; "))

var ErrEmptyText = domain.NewError(domain.ErrCodeInvalid, "task text is required")

const (
	idAttempts     = 3
	maxTextLength  = 1000
	defaultLead    = time.Hour
	statsTaskLimit = 1000
	topTagsLimit   = 5
)

// Gamifier persists XP changes caused by the task lifecycle.
type Gamifier interface {
	Award(ctx context.Context, userID int64, priority domain.Priority) (*gamification.Award, error)
	Penalize(ctx context.Context, userID int64, kind gamification.PenaltyKind) (*gamification.Penalty, error)
}

// Completion is the result of completing a task.
type Completion struct {
	Task  *domain.Task        `json:"task"`
	Award *gamification.Award `json:"award"`
}

// Deletion is the result of deleting a task. Penalty is nil for completed tasks.
type Deletion struct {
	Task    *domain.Task          `json:"task"`
	Penalty *gamification.Penalty `json:"penalty,omitempty"`
}

type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// Stats summarizes a user's tasks.
type Stats struct {
	Completed         int        `json:"completed"`
	Pending           int        `json:"pending"`
	CompletedThisWeek int        `json:"completedThisWeek"`
	TopTags           []TagCount `json:"topTags"`
}

type UseCase struct {
	tasks     repository.TaskRepository
	scheduler usecase.ReminderScheduler
	gamifier  Gamifier
	messenger usecase.Messenger
	logger    *zap.Logger
	now       func() time.Time
	newID     func() string
}

func New(
	tasks repository.TaskRepository,
	scheduler usecase.ReminderScheduler,
	gamifier Gamifier,
	messenger usecase.Messenger,
	logger *zap.Logger,
) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		tasks:     tasks,
		scheduler: scheduler,
		gamifier:  gamifier,
		messenger: messenger,
		logger:    logger,
		now:       time.Now,
		newID:     func() string { return uuid.NewString()[:8] },
	}
}

// Create stores a pending task whose reminder time is parsed from text and arms its trigger.
func (uc *UseCase) Create(ctx context.Context, ownerID int64, text string, priority domain.Priority) (*domain.Task, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}
	remindAt, ok := timeparse.Parse(text, uc.now())
	if !ok {
		return nil, ErrNoTime
	}
	return uc.create(ctx, ownerID, text, priority, remindAt, timeparse.Tags(text))
}

// CreateAt stores a task with an explicit reminder time. A nil remindAt means one hour from now.
func (uc *UseCase) CreateAt(ctx context.Context, ownerID int64, text string, priority domain.Priority, remindAt *time.Time, tags []string) (*domain.Task, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}
	at := uc.now().Add(defaultLead)
	if remindAt != nil && !remindAt.IsZero() {
		at = *remindAt
	}
	return uc.create(ctx, ownerID, text, priority, at, normalizeTags(append(tags, timeparse.Tags(text)...)))
}

func (uc *UseCase) create(ctx context.Context, ownerID int64, text string, priority domain.Priority, remindAt time.Time, tags []string) (*domain.Task, error) {
	if len(text) > maxTextLength {
		return nil, domain.Invalid("task text is too long")
	}

	task := &domain.Task{
		OwnerID:   ownerID,
		Text:      text,
		Priority:  domain.ParsePriority(string(priority)),
		Tags:      tags,
		Status:    domain.TaskPending,
		RemindAt:  remindAt.UTC().Truncate(time.Second),
		CreatedAt: uc.now().UTC(),
	}

	var err error
	for attempt := 0; attempt < idAttempts; attempt++ {
		task.ID = uc.newID()
		if err = uc.tasks.Create(ctx, task); !errors.Is(err, domain.ErrTaskExists) {
			break
		}
	}
	if err != nil {
		return nil, err
	}

	if err := uc.arm(ctx, task); err != nil {
		if _, delErr := uc.tasks.Delete(ctx, ownerID, task.ID); delErr != nil {
			uc.logger.Error("failed to drop task without reminder",
				zap.String("task_id", task.ID), zap.Error(delErr))
		}
		return nil, err
	}
	uc.logger.Info("task created",
		zap.Int64("owner_id", ownerID),
		zap.String("task_id", task.ID),
		zap.Time("remind_at", task.RemindAt))
	return task, nil
}

// Complete moves a pending task to done, awards XP and cancels its trigger.
// Completing a task twice fails with domain.ErrTaskAlreadyCompleted and awards nothing.
// If the award fails the task is reopened so a retry can award it.
func (uc *UseCase) Complete(ctx context.Context, ownerID int64, taskID string) (*Completion, error) {
	task, err := uc.tasks.Complete(ctx, ownerID, taskID, uc.now())
	if err != nil {
		return nil, err
	}

	award, err := uc.gamifier.Award(ctx, ownerID, task.Priority)
	if err != nil {
		log := uc.logger.With(zap.Int64("owner_id", ownerID), zap.String("task_id", taskID))
		log.Error("xp award failed, reopening task", zap.Error(err))
		if reopened, reopenErr := uc.tasks.Reopen(ctx, ownerID, taskID); reopenErr != nil {
			log.Error("failed to reopen task", zap.Error(reopenErr))
		} else {
			uc.rearm(ctx, reopened)
		}
		return nil, err
	}

	uc.cancel(ctx, task)
	return &Completion{Task: task, Award: award}, nil
}

// Delete removes a task. Deleting a task that was not completed costs XP.
func (uc *UseCase) Delete(ctx context.Context, ownerID int64, taskID string) (*Deletion, error) {
	task, err := uc.tasks.Delete(ctx, ownerID, taskID)
	if err != nil {
		return nil, err
	}

	result := &Deletion{Task: task}
	if !task.IsCompleted() {
		penalty, err := uc.gamifier.Penalize(ctx, ownerID, gamification.PenaltyDelete)
		if err != nil {
			log := uc.logger.With(zap.Int64("owner_id", ownerID), zap.String("task_id", taskID))
			log.Error("deletion penalty failed, restoring task", zap.Error(err))
			if restoreErr := uc.tasks.Create(ctx, task); restoreErr != nil {
				log.Error("failed to restore task", zap.Error(restoreErr))
			} else {
				uc.rearm(ctx, task)
			}
			return nil, err
		}
		result.Penalty = penalty
	}

	uc.cancel(ctx, task)
	return result, nil
}

// Snooze moves the reminder of a pending task and re-arms its trigger.
func (uc *UseCase) Snooze(ctx context.Context, ownerID int64, taskID, delay string) (*domain.Task, error) {
	remindAt := timeparse.SnoozeDelay(delay, uc.now()).Truncate(time.Second)

	task, err := uc.tasks.Reschedule(ctx, ownerID, taskID, remindAt)
	if err != nil {
		return nil, err
	}
	if err := uc.arm(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// OnReminderFire delivers the reminder of a trigger. It is safe to call more
// than once per trigger: only the first call for a pending task sends.
func (uc *UseCase) OnReminderFire(ctx context.Context, payload domain.ReminderPayload) error {
	log := uc.logger.With(zap.Int64("owner_id", payload.UserID), zap.String("task_id", payload.TaskID))

	task, err := uc.tasks.Get(ctx, payload.UserID, payload.TaskID)
	if err != nil {
		if errors.Is(err, domain.ErrTaskNotFound) {
			log.Info("reminder for missing task ignored")
			return nil
		}
		return err
	}
	if !task.IsPending() || task.Notified {
		log.Info("reminder already handled")
		return nil
	}

	claimed, err := uc.tasks.MarkNotified(ctx, task.OwnerID, task.ID)
	if err != nil {
		return err
	}
	if !claimed {
		log.Info("reminder claimed elsewhere")
		return nil
	}

	msg := domain.OutboundMessage{
		ChatID: task.OwnerID,
		Kind:   domain.MessageReminder,
		Text:   ReminderText(task),
	}
	if err := uc.messenger.Send(ctx, msg); err != nil {
		if releaseErr := uc.tasks.ReleaseNotified(ctx, task.OwnerID, task.ID); releaseErr != nil {
			log.Error("failed to release reminder claim", zap.Error(releaseErr))
		}
		return domain.Upstream("send reminder", err)
	}

	log.Info("reminder sent")
	return nil
}

// ListFilter narrows List. An empty Status means pending.
type ListFilter struct {
	Status domain.TaskStatus
	Tag    string
	All    bool
}

// List returns tasks ordered by priority, then reminder time.
func (uc *UseCase) List(ctx context.Context, ownerID int64, filter ListFilter) ([]domain.Task, error) {
	status := filter.Status
	if status == "" && !filter.All {
		status = domain.TaskPending
	}
	tasks, err := uc.tasks.List(ctx, repository.TaskFilter{
		OwnerID: ownerID,
		Status:  status,
		Tag:     strings.TrimPrefix(filter.Tag, "#"),
		Limit:   statsTaskLimit,
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(tasks, func(i, j int) bool {
		if tasks[i].Priority.Rank() != tasks[j].Priority.Rank() {
			return tasks[i].Priority.Rank() < tasks[j].Priority.Rank()
		}
		return tasks[i].RemindAt.Before(tasks[j].RemindAt)
	})
	return tasks, nil
}

// Tags returns the sorted tags used by pending tasks.
func (uc *UseCase) Tags(ctx context.Context, ownerID int64) ([]string, error) {
	tasks, err := uc.List(ctx, ownerID, ListFilter{})
	if err != nil {
		return nil, err
	}
	var all []string
	for _, t := range tasks {
		all = append(all, t.Tags...)
	}
	return normalizeTags(all), nil
}

// Stats counts completed and pending tasks and the most used tags of completed ones.
func (uc *UseCase) Stats(ctx context.Context, ownerID int64) (*Stats, error) {
	tasks, err := uc.List(ctx, ownerID, ListFilter{All: true})
	if err != nil {
		return nil, err
	}

	weekAgo := uc.now().AddDate(0, 0, -7)
	counts := map[string]int{}
	stats := &Stats{TopTags: []TagCount{}}
	for _, t := range tasks {
		if !t.IsCompleted() {
			stats.Pending++
			continue
		}
		stats.Completed++
		if t.CompletedAt != nil && t.CompletedAt.After(weekAgo) {
			stats.CompletedThisWeek++
		}
		for _, tag := range t.Tags {
			counts[tag]++
		}
	}

	for tag, count := range counts {
		stats.TopTags = append(stats.TopTags, TagCount{Tag: tag, Count: count})
	}
	sort.Slice(stats.TopTags, func(i, j int) bool {
		if stats.TopTags[i].Count != stats.TopTags[j].Count {
			return stats.TopTags[i].Count > stats.TopTags[j].Count
		}
		return stats.TopTags[i].Tag < stats.TopTags[j].Tag
	})
	if len(stats.TopTags) > topTagsLimit {
		stats.TopTags = stats.TopTags[:topTagsLimit]
	}
	return stats, nil
}

// ReminderText renders the reminder message of a task.
func ReminderText(task *domain.Task) string {
	return "🔔 <b>Reminder</b>\n\n" + escapeHTML(task.Text) + "\n\nMark as done: /done " + task.ShortID()
}

// arm replaces the trigger of task. A reminder time that is not in the future
// leaves the task without a trigger.
func (uc *UseCase) arm(ctx context.Context, task *domain.Task) error {
	payload := domain.ReminderPayload{UserID: task.OwnerID, TaskID: task.ID, Text: task.Text}
	err := uc.scheduler.Arm(ctx, payload.Key(), task.RemindAt, payload)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrReminderNotFuture):
		uc.logger.Debug("reminder time not in the future, trigger skipped", zap.String("task_id", task.ID))
		return nil
	default:
		return domain.Upstream("arm reminder", err)
	}
}

// rearm restores the trigger of a task whose transition was rolled back.
func (uc *UseCase) rearm(ctx context.Context, task *domain.Task) {
	if task.Notified {
		return
	}
	if err := uc.arm(ctx, task); err != nil {
		uc.logger.Error("failed to re-arm reminder", zap.String("task_id", task.ID), zap.Error(err))
	}
}

func (uc *UseCase) cancel(ctx context.Context, task *domain.Task) {
	if err := uc.scheduler.Cancel(ctx, domain.ReminderKey(task.OwnerID, task.ID)); err != nil {
		uc.logger.Warn("failed to cancel reminder", zap.String("task_id", task.ID), zap.Error(err))
	}
}

func normalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimPrefix(strings.TrimSpace(tag), "#")
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func escapeHTML(s string) string {
	return htmlEscaper.Replace(s)
}
