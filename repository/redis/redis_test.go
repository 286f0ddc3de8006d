package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redislib "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/taskbot/domain"
	"github.com/fastygo/taskbot/repository"
)

func setupTestRedis(t *testing.T) (*redislib.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redislib.NewClient(&redislib.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestCounterRepository_StopsAtLimit(t *testing.T) {
	client, mr := setupTestRedis(t)
	repo := NewCounterRepository(client)
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		value, err := repo.IncrementBelow(ctx, "42:2026-10-18", 3, time.Hour)
		require.NoError(t, err)
		assert.Equal(t, i, value)
	}

	_, err := repo.IncrementBelow(ctx, "42:2026-10-18", 3, time.Hour)
	assert.ErrorIs(t, err, repository.ErrLimitReached)

	stored, err := mr.Get("ratelimit:42:2026-10-18")
	require.NoError(t, err)
	assert.Equal(t, "3", stored)
	assert.True(t, mr.TTL("ratelimit:42:2026-10-18") > 0)
}

func TestCounterRepository_ConcurrentCallersNeverOvershoot(t *testing.T) {
	client, mr := setupTestRedis(t)
	repo := NewCounterRepository(client)
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.IncrementBelow(ctx, "7:2026-10-18", 10, time.Hour); err == nil {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, allowed)
	stored, err := mr.Get("ratelimit:7:2026-10-18")
	require.NoError(t, err)
	assert.Equal(t, "10", stored)
}

func TestCounterRepository_BackendDown(t *testing.T) {
	client, mr := setupTestRedis(t)
	repo := NewCounterRepository(client)
	mr.Close()

	_, err := repo.IncrementBelow(context.Background(), "1:2026-10-18", 10, time.Hour)
	require.Error(t, err)
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeUpstream))
}

func TestLaunchTokenRepository_TakeOnce(t *testing.T) {
	client, mr := setupTestRedis(t)
	repo := NewLaunchTokenRepository(client, time.Minute)
	ctx := context.Background()

	token := &domain.LaunchToken{ID: "jti-1", UserID: 99, ExpiresAt: time.Now().Add(time.Minute)}
	require.NoError(t, repo.Save(ctx, token))
	assert.True(t, mr.Exists("launch:jti-1"))

	got, err := repo.Take(ctx, "jti-1")
	require.NoError(t, err)
	assert.Equal(t, int64(99), got.UserID)

	_, err = repo.Take(ctx, "jti-1")
	assert.ErrorIs(t, err, domain.ErrLaunchTokenNotFound)
}

func TestLaunchTokenRepository_Expires(t *testing.T) {
	client, mr := setupTestRedis(t)
	repo := NewLaunchTokenRepository(client, time.Minute)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, &domain.LaunchToken{ID: "jti-2", UserID: 1, ExpiresAt: time.Now().Add(30 * time.Second)}))
	mr.FastForward(time.Minute)

	_, err := repo.Take(ctx, "jti-2")
	assert.ErrorIs(t, err, domain.ErrLaunchTokenNotFound)
}

func TestLaunchTokenRepository_RejectsEmptyID(t *testing.T) {
	client, _ := setupTestRedis(t)
	repo := NewLaunchTokenRepository(client, time.Minute)

	err := repo.Save(context.Background(), &domain.LaunchToken{})
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)
}
