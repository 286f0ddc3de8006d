package repository

import (
	"context"
	"time"

	"github.com/fastygo/taskbot/domain"
)

type TaskFilter struct {
	OwnerID int64
	Status  domain.TaskStatus
	Tag     string
	Limit   int
	Offset  int
}

// TaskRepository persists tasks keyed by (owner, id). Every mutating call is a
// single conditional write so concurrent callers cannot double-apply a transition.
type TaskRepository interface {
	Get(ctx context.Context, ownerID int64, id string) (*domain.Task, error)
	List(ctx context.Context, filter TaskFilter) ([]domain.Task, error)
	Create(ctx context.Context, task *domain.Task) error
	// Complete moves a pending task to done. It returns ErrTaskAlreadyCompleted
	// when the task is already done.
	Complete(ctx context.Context, ownerID int64, id string, at time.Time) (*domain.Task, error)
	// Reopen moves a done task back to pending and clears completedAt. It
	// undoes a completion whose side effects could not be applied.
	Reopen(ctx context.Context, ownerID int64, id string) (*domain.Task, error)
	// Reschedule sets a new remind time on a pending task and clears its notified flag.
	Reschedule(ctx context.Context, ownerID int64, id string, remindAt time.Time) (*domain.Task, error)
	// Delete removes the task and returns the record as it was.
	Delete(ctx context.Context, ownerID int64, id string) (*domain.Task, error)
	// MarkNotified flips notified false->true on a pending task and reports whether it did.
	MarkNotified(ctx context.Context, ownerID int64, id string) (bool, error)
	// ReleaseNotified undoes MarkNotified after a failed delivery.
	ReleaseNotified(ctx context.Context, ownerID int64, id string) error
}
