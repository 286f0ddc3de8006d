package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastygo/taskbot/domain"
	"github.com/fastygo/taskbot/repository"
)

const taskColumns = `owner_id, id, text, priority, tags, status, remind_at, created_at, completed_at, notified`

type taskRepository struct {
	pool *pgxpool.Pool
}

// NewTaskRepository returns a Postgres-backed implementation of TaskRepository.
func NewTaskRepository(pool *pgxpool.Pool) repository.TaskRepository {
	return &taskRepository{pool: pool}
}

func (r *taskRepository) Get(ctx context.Context, ownerID int64, id string) (*domain.Task, error) {
	const query = `SELECT ` + taskColumns + ` FROM tasks WHERE owner_id = $1 AND id = $2`
	row := r.pool.QueryRow(ctx, query, ownerID, id)
	return scanTask(row)
}

func (r *taskRepository) List(ctx context.Context, filter repository.TaskFilter) ([]domain.Task, error) {
	const query = `
	SELECT ` + taskColumns + `
	FROM tasks
	WHERE owner_id = $1
	  AND ($2 = '' OR status = $2)
	  AND ($3 = '' OR $3 = ANY(tags))
	ORDER BY remind_at ASC
	LIMIT $4 OFFSET $5
	`
	rows, err := r.pool.Query(ctx, query, filter.OwnerID, string(filter.Status), filter.Tag, clampLimit(filter.Limit), filter.Offset)
	if err != nil {
		return nil, domain.Upstream("list tasks", err)
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Upstream("list tasks", err)
	}
	return tasks, nil
}

func (r *taskRepository) Create(ctx context.Context, task *domain.Task) error {
	if task == nil || task.ID == "" {
		return domain.ErrInvalidPayload
	}

	const query = `
	INSERT INTO tasks (owner_id, id, text, priority, tags, status, remind_at, created_at, completed_at, notified)
	VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8, NOW()), $9, $10)
	RETURNING created_at
	`

	tags := task.Tags
	if tags == nil {
		tags = []string{}
	}

	if err := r.pool.QueryRow(ctx, query,
		task.OwnerID,
		task.ID,
		task.Text,
		string(task.Priority),
		tags,
		string(task.Status),
		task.RemindAt.UTC(),
		nullTime(task.CreatedAt),
		task.CompletedAt,
		task.Notified,
	).Scan(&task.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrTaskExists
		}
		return domain.Upstream("create task", err)
	}
	return nil
}

func (r *taskRepository) Complete(ctx context.Context, ownerID int64, id string, at time.Time) (*domain.Task, error) {
	const query = `
	UPDATE tasks
	SET status = 'done', completed_at = $3
	WHERE owner_id = $1 AND id = $2 AND status = 'pending'
	RETURNING ` + taskColumns

	task, err := scanTask(r.pool.QueryRow(ctx, query, ownerID, id, at.UTC()))
	if errors.Is(err, domain.ErrTaskNotFound) {
		return nil, r.explainMiss(ctx, ownerID, id)
	}
	return task, err
}

func (r *taskRepository) Reopen(ctx context.Context, ownerID int64, id string) (*domain.Task, error) {
	const query = `
	UPDATE tasks
	SET status = 'pending', completed_at = NULL
	WHERE owner_id = $1 AND id = $2 AND status = 'done'
	RETURNING ` + taskColumns

	return scanTask(r.pool.QueryRow(ctx, query, ownerID, id))
}

func (r *taskRepository) Reschedule(ctx context.Context, ownerID int64, id string, remindAt time.Time) (*domain.Task, error) {
	const query = `
	UPDATE tasks
	SET remind_at = $3, notified = FALSE
	WHERE owner_id = $1 AND id = $2 AND status = 'pending'
	RETURNING ` + taskColumns

	task, err := scanTask(r.pool.QueryRow(ctx, query, ownerID, id, remindAt.UTC()))
	if errors.Is(err, domain.ErrTaskNotFound) {
		return nil, r.explainMiss(ctx, ownerID, id)
	}
	return task, err
}

func (r *taskRepository) Delete(ctx context.Context, ownerID int64, id string) (*domain.Task, error) {
	const query = `DELETE FROM tasks WHERE owner_id = $1 AND id = $2 RETURNING ` + taskColumns
	return scanTask(r.pool.QueryRow(ctx, query, ownerID, id))
}

func (r *taskRepository) MarkNotified(ctx context.Context, ownerID int64, id string) (bool, error) {
	const query = `
	UPDATE tasks SET notified = TRUE
	WHERE owner_id = $1 AND id = $2 AND status = 'pending' AND notified = FALSE
	`
	tag, err := r.pool.Exec(ctx, query, ownerID, id)
	if err != nil {
		return false, domain.Upstream("mark task notified", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *taskRepository) ReleaseNotified(ctx context.Context, ownerID int64, id string) error {
	const query = `UPDATE tasks SET notified = FALSE WHERE owner_id = $1 AND id = $2`
	if _, err := r.pool.Exec(ctx, query, ownerID, id); err != nil {
		return domain.Upstream("release task notified", err)
	}
	return nil
}

// explainMiss tells a missing task apart from one that is no longer pending.
func (r *taskRepository) explainMiss(ctx context.Context, ownerID int64, id string) error {
	task, err := r.Get(ctx, ownerID, id)
	if err != nil {
		return err
	}
	if task.IsCompleted() {
		return domain.ErrTaskAlreadyCompleted
	}
	return domain.ErrTaskNotFound
}

func scanTask(row interface {
	Scan(dest ...interface{}) error
}) (*domain.Task, error) {
	var task domain.Task
	var (
		priority string
		status   string
	)

	if err := row.Scan(
		&task.OwnerID,
		&task.ID,
		&task.Text,
		&priority,
		&task.Tags,
		&status,
		&task.RemindAt,
		&task.CreatedAt,
		&task.CompletedAt,
		&task.Notified,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, domain.Upstream("scan task", err)
	}

	task.Priority = domain.ParsePriority(priority)
	task.Status = domain.TaskStatus(status)
	task.RemindAt = task.RemindAt.UTC()
	return &task, nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return 100
	case limit > 1000:
		return 1000
	default:
		return limit
	}
}
