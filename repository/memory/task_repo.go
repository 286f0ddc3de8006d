// Package memory provides in-process repositories for local runs and tests.
// Each store guards its map with a mutex, so conditional writes are atomic.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fastygo/taskbot/domain"
	"github.com/fastygo/taskbot/repository"
)

type taskKey struct {
	owner int64
	id    string
}

// TaskRepository keeps tasks in a map keyed by (owner, id).
type TaskRepository struct {
	mu    sync.Mutex
	tasks map[taskKey]domain.Task
}

var _ repository.TaskRepository = (*TaskRepository)(nil)

func NewTaskRepository() *TaskRepository {
	return &TaskRepository{tasks: make(map[taskKey]domain.Task)}
}

func (r *TaskRepository) Get(_ context.Context, ownerID int64, id string) (*domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	task, ok := r.tasks[taskKey{ownerID, id}]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	return copyTask(task), nil
}

func (r *TaskRepository) List(_ context.Context, filter repository.TaskFilter) ([]domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []domain.Task
	for key, task := range r.tasks {
		if key.owner != filter.OwnerID {
			continue
		}
		if filter.Status != "" && task.Status != filter.Status {
			continue
		}
		if filter.Tag != "" && !task.HasTag(filter.Tag) {
			continue
		}
		out = append(out, *copyTask(task))
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].RemindAt.Equal(out[j].RemindAt) {
			return out[i].RemindAt.Before(out[j].RemindAt)
		}
		return out[i].ID < out[j].ID
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *TaskRepository) Create(_ context.Context, task *domain.Task) error {
	if task == nil || task.ID == "" {
		return domain.ErrInvalidPayload
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := taskKey{task.OwnerID, task.ID}
	if _, exists := r.tasks[key]; exists {
		return domain.ErrTaskExists
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now().UTC()
	}
	r.tasks[key] = *copyTask(*task)
	return nil
}

func (r *TaskRepository) Complete(_ context.Context, ownerID int64, id string, at time.Time) (*domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := taskKey{ownerID, id}
	task, ok := r.tasks[key]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	if task.IsCompleted() {
		return nil, domain.ErrTaskAlreadyCompleted
	}

	completed := at.UTC()
	task.Status = domain.TaskDone
	task.CompletedAt = &completed
	r.tasks[key] = task
	return copyTask(task), nil
}

func (r *TaskRepository) Reopen(_ context.Context, ownerID int64, id string) (*domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := taskKey{ownerID, id}
	task, ok := r.tasks[key]
	if !ok || !task.IsCompleted() {
		return nil, domain.ErrTaskNotFound
	}
	task.Status = domain.TaskPending
	task.CompletedAt = nil
	r.tasks[key] = task
	return copyTask(task), nil
}

func (r *TaskRepository) Reschedule(_ context.Context, ownerID int64, id string, remindAt time.Time) (*domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := taskKey{ownerID, id}
	task, ok := r.tasks[key]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	if task.IsCompleted() {
		return nil, domain.ErrTaskAlreadyCompleted
	}

	task.RemindAt = remindAt.UTC()
	task.Notified = false
	r.tasks[key] = task
	return copyTask(task), nil
}

func (r *TaskRepository) Delete(_ context.Context, ownerID int64, id string) (*domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := taskKey{ownerID, id}
	task, ok := r.tasks[key]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	delete(r.tasks, key)
	return copyTask(task), nil
}

func (r *TaskRepository) MarkNotified(_ context.Context, ownerID int64, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := taskKey{ownerID, id}
	task, ok := r.tasks[key]
	if !ok || !task.IsPending() || task.Notified {
		return false, nil
	}
	task.Notified = true
	r.tasks[key] = task
	return true, nil
}

func (r *TaskRepository) ReleaseNotified(_ context.Context, ownerID int64, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := taskKey{ownerID, id}
	if task, ok := r.tasks[key]; ok {
		task.Notified = false
		r.tasks[key] = task
	}
	return nil
}

func copyTask(task domain.Task) *domain.Task {
	out := task
	out.Tags = append([]string(nil), task.Tags...)
	if task.CompletedAt != nil {
		at := *task.CompletedAt
		out.CompletedAt = &at
	}
	return &out
}
