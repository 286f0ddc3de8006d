package redis

import (
	"context"
	"time"

	redislib "github.com/redis/go-redis/v9"

	"github.com/fastygo/taskbot/domain"
	"github.com/fastygo/taskbot/repository"
)

// incrementBelow increments KEYS[1] only when it is absent or below ARGV[1].
// It returns -1 without touching the key when the limit is reached.
var incrementBelow = redislib.NewScript(`
local current = tonumber(redis.call("GET", KEYS[1]) or "0")
if current >= tonumber(ARGV[1]) then
	return -1
end
local value = redis.call("INCR", KEYS[1])
if value == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return value
`)

type counterRepository struct {
	client *redislib.Client
	prefix string
}

// NewCounterRepository creates a Redis-backed counter store.
func NewCounterRepository(client *redislib.Client) repository.CounterRepository {
	return &counterRepository{
		client: client,
		prefix: "ratelimit:",
	}
}

func (r *counterRepository) IncrementBelow(ctx context.Context, key string, limit int64, ttl time.Duration) (int64, error) {
	if ttl <= 0 {
		ttl = 48 * time.Hour
	}
	value, err := incrementBelow.Run(ctx, r.client, []string{r.prefix + key}, limit, ttl.Milliseconds()).Int64()
	if err != nil {
		return 0, domain.Upstream("increment counter", err)
	}
	if value < 0 {
		return 0, repository.ErrLimitReached
	}
	return value, nil
}
