package usecase

import (
	"context"
	"time"

	"github.com/fastygo/taskbot/domain"
)

// Messenger delivers chat messages to users.
type Messenger interface {
	Send(ctx context.Context, msg domain.OutboundMessage) error
}

// ReminderScheduler arms and cancels one-shot reminder triggers.
type ReminderScheduler interface {
	// Arm registers a single future callback for key, replacing any trigger
	// already armed under it. fireAt must be strictly after now, otherwise
	// domain.ErrReminderNotFuture is returned.
	Arm(ctx context.Context, key string, fireAt time.Time, payload domain.ReminderPayload) error
	// Cancel removes the trigger for key. Missing triggers are not an error.
	Cancel(ctx context.Context, key string) error
}

// TextGenerator turns a prompt into generated text.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// JobSearcher looks up job postings.
type JobSearcher interface {
	Search(ctx context.Context, query domain.JobQuery) ([]domain.JobPosting, error)
}
