package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/taskbot/domain"
	"github.com/fastygo/taskbot/internal/infrastructure/outbox"
)

type flakyMessenger struct {
	mu   sync.Mutex
	err  error
	sent []domain.OutboundMessage
}

func (m *flakyMessenger) Send(_ context.Context, msg domain.OutboundMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *flakyMessenger) setErr(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

func newProcessor(t *testing.T, next *flakyMessenger, maxAttempts int) *OutboxProcessor {
	t.Helper()
	store, err := outbox.Open(filepath.Join(t.TempDir(), "outbox.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return NewOutboxProcessor(store, next, nil, OutboxConfig{MaxAttempts: maxAttempts})
}

var errTelegramDown = domain.Upstream("telegram", errors.New("connection refused"))

func TestOutbox_DeliversImmediately(t *testing.T) {
	next := &flakyMessenger{}
	op := newProcessor(t, next, 3)

	require.NoError(t, op.Send(context.Background(), domain.OutboundMessage{ChatID: 1, Text: "hi"}))
	assert.Len(t, next.sent, 1)
	assert.Equal(t, 0, op.Size())
}

func TestOutbox_ParksTransientFailureAndDrains(t *testing.T) {
	next := &flakyMessenger{err: errTelegramDown}
	op := newProcessor(t, next, 3)
	ctx := context.Background()

	require.NoError(t, op.Send(ctx, domain.OutboundMessage{ChatID: 1, Text: "reminder", Kind: domain.MessageReminder}))
	assert.Equal(t, 1, op.Size())

	delivered, err := op.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, delivered)
	assert.Equal(t, 1, op.Size())

	next.setErr(nil)
	delivered, err = op.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, delivered)
	assert.Equal(t, 0, op.Size())
	require.Len(t, next.sent, 1)
	assert.Equal(t, "reminder", next.sent[0].Text)
}

func TestOutbox_PermanentFailureIsReturned(t *testing.T) {
	next := &flakyMessenger{err: domain.NewError(domain.ErrCodeForbidden, "bot was blocked by the user")}
	op := newProcessor(t, next, 3)

	err := op.Send(context.Background(), domain.OutboundMessage{ChatID: 1})
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeForbidden))
	assert.Equal(t, 0, op.Size())
}

func TestOutbox_DropsAfterMaxAttempts(t *testing.T) {
	next := &flakyMessenger{err: errTelegramDown}
	op := newProcessor(t, next, 3)
	ctx := context.Background()

	require.NoError(t, op.Send(ctx, domain.OutboundMessage{ChatID: 1}))
	_, err := op.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, op.Size())

	_, err = op.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, op.Size())
}
