package monitor

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	redislib "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

type fixedSize int

func (f fixedSize) Size() int { return int(f) }

func TestMonitor_RefreshReportsProbes(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redislib.NewClient(&redislib.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	m := New(map[string]Probe{"redis": RedisProbe(client)}, fixedSize(3), 0, nil)
	assert.False(t, m.IsOnline(), "offline before the first check")

	m.Refresh()
	status := m.GetStatus()
	assert.True(t, status.Services["redis"])
	assert.Equal(t, 3, status.OutboxSize)
	assert.True(t, m.IsOnline())

	mr.Close()
	m.Refresh()
	assert.False(t, m.GetStatus().Services["redis"])
	assert.False(t, m.IsOnline())
}

func TestMonitor_NoProbesIsOnline(t *testing.T) {
	m := New(nil, nil, 0, nil)
	m.Refresh()
	assert.True(t, m.IsOnline())
}

func TestMonitor_FailingProbe(t *testing.T) {
	m := New(map[string]Probe{
		"ok":   func(context.Context) error { return nil },
		"down": func(context.Context) error { return errors.New("refused") },
	}, nil, 0, nil)
	m.Refresh()

	status := m.GetStatus()
	assert.True(t, status.Services["ok"])
	assert.False(t, status.Services["down"])
	assert.False(t, status.Online())

	m.Stop()
	m.Stop()
}
