package motivation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/taskbot/domain"
	"github.com/fastygo/taskbot/repository/memory"
	"github.com/fastygo/taskbot/usecase/gamification"
	"github.com/fastygo/taskbot/usecase/profile"
)

type recordingMessenger struct {
	mu     sync.Mutex
	sent   []domain.OutboundMessage
	failTo map[int64]bool
}

func (m *recordingMessenger) Send(_ context.Context, msg domain.OutboundMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failTo[msg.ChatID] {
		return errors.New("blocked")
	}
	m.sent = append(m.sent, msg)
	return nil
}

func TestRun_SendsOncePerDay(t *testing.T) {
	ctx := context.Background()
	clock := time.Now().UTC()
	repo := memory.NewProfileRepository()
	profiles := profile.New(repo, gamification.NewEngine(func() time.Time { return clock }), 0, nil)

	for _, id := range []int64{1, 2, 3} {
		_, err := profiles.SetMotivation(ctx, id, true)
		require.NoError(t, err)
	}
	_, err := profiles.SetMotivation(ctx, 4, false)
	require.NoError(t, err)

	messenger := &recordingMessenger{failTo: map[int64]bool{3: true}}
	b, err := New(profiles, messenger, Config{Concurrency: 2}, nil)
	require.NoError(t, err)
	b.now = func() time.Time { return clock }

	sent, err := b.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
	require.Len(t, messenger.sent, 2)
	for _, msg := range messenger.sent {
		assert.Equal(t, domain.MessageBroadcast, msg.Kind)
		assert.Contains(t, msg.Text, "Daily Motivation")
		assert.NotEqual(t, int64(4), msg.ChatID)
	}

	// User 3 failed and stays due; 1 and 2 were marked.
	messenger.failTo = nil
	sent, err = b.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, int64(3), messenger.sent[2].ChatID)
}

func TestNew_RejectsBadSchedule(t *testing.T) {
	_, err := New(nil, nil, Config{Schedule: "not a schedule"}, nil)
	assert.Error(t, err)
}

func TestPick_RotatesDaily(t *testing.T) {
	day := time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC)
	assert.NotEqual(t, Pick(7, day), Pick(7, day.AddDate(0, 0, 1)))
	assert.Equal(t, Pick(7, day), Pick(7, day))
}
