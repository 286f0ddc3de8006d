package outbox

import (
	"time"

	"github.com/google/uuid"

	"github.com/fastygo/taskbot/domain"
)

// Entry is an outbound message parked until the messaging backend accepts it.
type Entry struct {
	ID       string                 `json:"id"`
	Message  domain.OutboundMessage `json:"message"`
	Priority int                    `json:"priority"`
	Attempts int                    `json:"attempts"`
	QueuedAt time.Time              `json:"queued_at"`
	LastErr  string                 `json:"last_error,omitempty"`

	key []byte
}

// kindPriority orders the drain: reminders first, broadcasts last.
var kindPriority = map[domain.MessageKind]int{
	domain.MessageReminder:  1,
	domain.MessageReply:     2,
	domain.MessageBroadcast: 3,
}

func (e *Entry) normalize(now time.Time) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Priority <= 0 {
		e.Priority = kindPriority[e.Message.Kind]
		if e.Priority == 0 {
			e.Priority = 2
		}
	}
	if e.QueuedAt.IsZero() {
		e.QueuedAt = now
	}
}
