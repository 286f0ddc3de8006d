package outbox

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/taskbot/domain"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "nested", "outbox.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_DrainOrder(t *testing.T) {
	store := openStore(t)
	base := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	tick := 0
	store.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	require.NoError(t, store.Put(Entry{Message: domain.OutboundMessage{ChatID: 1, Kind: domain.MessageBroadcast}}))
	require.NoError(t, store.Put(Entry{Message: domain.OutboundMessage{ChatID: 2, Kind: domain.MessageReply}}))
	require.NoError(t, store.Put(Entry{Message: domain.OutboundMessage{ChatID: 3, Kind: domain.MessageReminder}}))
	require.NoError(t, store.Put(Entry{Message: domain.OutboundMessage{ChatID: 4, Kind: domain.MessageReminder}}))

	entries, err := store.Peek(10)
	require.NoError(t, err)
	var chats []int64
	for _, e := range entries {
		chats = append(chats, e.Message.ChatID)
	}
	assert.Equal(t, []int64{3, 4, 2, 1}, chats)

	size, err := store.Size()
	require.NoError(t, err)
	assert.Equal(t, 4, size)
}

func TestStore_RetryMovesBehindPeers(t *testing.T) {
	store := openStore(t)
	base := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	tick := 0
	store.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	require.NoError(t, store.Put(Entry{Message: domain.OutboundMessage{ChatID: 1, Kind: domain.MessageReply}}))
	require.NoError(t, store.Put(Entry{Message: domain.OutboundMessage{ChatID: 2, Kind: domain.MessageReply}}))

	entries, err := store.Peek(1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.NoError(t, store.Retry(entries[0], errors.New("timeout")))

	entries, err = store.Peek(10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(2), entries[0].Message.ChatID)
	assert.Equal(t, int64(1), entries[1].Message.ChatID)
	assert.Equal(t, 1, entries[1].Attempts)
	assert.Equal(t, "timeout", entries[1].LastErr)

	require.NoError(t, store.Remove(entries[0]))
	size, err := store.Size()
	require.NoError(t, err)
	assert.Equal(t, 1, size)
}

func TestStore_Expire(t *testing.T) {
	store := openStore(t)
	old := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	fresh := time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.Put(Entry{QueuedAt: old, Message: domain.OutboundMessage{ChatID: 1}}))
	require.NoError(t, store.Put(Entry{QueuedAt: old.Add(time.Hour), Message: domain.OutboundMessage{ChatID: 2}}))
	require.NoError(t, store.Put(Entry{QueuedAt: fresh, Message: domain.OutboundMessage{ChatID: 3}}))

	removed, err := store.Expire(fresh.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	entries, err := store.Peek(10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(3), entries[0].Message.ChatID)
}
