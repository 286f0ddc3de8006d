package reminder

import (
	"context"
	"encoding/json"
	"time"

	redislib "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fastygo/taskbot/domain"
)

const (
	dueKey      = "reminder:due"
	inflightKey = "reminder:inflight"
	payloadKey  = "reminder:payload"
	attemptsKey = "reminder:attempts"
)

// claimDue moves up to ARGV[3] triggers due by ARGV[1] to the inflight set
// with lease deadline ARGV[2].
var claimDue = redislib.NewScript(`
local keys = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", ARGV[1], "LIMIT", 0, tonumber(ARGV[3]))
for _, k in ipairs(keys) do
	redis.call("ZREM", KEYS[1], k)
	redis.call("ZADD", KEYS[2], ARGV[2], k)
end
return keys
`)

// recoverLeases moves inflight triggers whose lease expired by ARGV[1] back to due.
var recoverLeases = redislib.NewScript(`
local keys = redis.call("ZRANGEBYSCORE", KEYS[2], "-inf", ARGV[1], "LIMIT", 0, tonumber(ARGV[2]))
for _, k in ipairs(keys) do
	redis.call("ZREM", KEYS[2], k)
	redis.call("ZADD", KEYS[1], ARGV[1], k)
end
return #keys
`)

// ackTrigger drops a delivered trigger unless it was re-armed meanwhile.
var ackTrigger = redislib.NewScript(`
redis.call("ZREM", KEYS[2], ARGV[1])
if not redis.call("ZSCORE", KEYS[1], ARGV[1]) then
	redis.call("HDEL", KEYS[3], ARGV[1])
	redis.call("HDEL", KEYS[4], ARGV[1])
end
return 1
`)

// retryTrigger re-queues an inflight trigger at ARGV[2], or drops it once it
// failed ARGV[3] times. Returns 1 if kept, 0 if dropped, -1 if no longer inflight.
var retryTrigger = redislib.NewScript(`
if not redis.call("ZSCORE", KEYS[2], ARGV[1]) then
	return -1
end
redis.call("ZREM", KEYS[2], ARGV[1])
local attempts = redis.call("HINCRBY", KEYS[4], ARGV[1], 1)
if attempts >= tonumber(ARGV[3]) then
	redis.call("HDEL", KEYS[3], ARGV[1])
	redis.call("HDEL", KEYS[4], ARGV[1])
	return 0
end
redis.call("ZADD", KEYS[1], ARGV[2], ARGV[1])
return 1
`)

type redisStore struct {
	client *redislib.Client
	logger *zap.Logger
}

// NewRedis returns a scheduler persisting triggers in Redis.
func NewRedis(client *redislib.Client, cfg Config, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return newScheduler(&redisStore{client: client, logger: logger}, cfg, logger)
}

func (r *redisStore) keys() []string {
	return []string{dueKey, inflightKey, payloadKey, attemptsKey}
}

func (r *redisStore) arm(ctx context.Context, key string, fireAt time.Time, payload domain.ReminderPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redislib.Pipeliner) error {
		pipe.HSet(ctx, payloadKey, key, data)
		pipe.HDel(ctx, attemptsKey, key)
		pipe.ZRem(ctx, inflightKey, key)
		pipe.ZAdd(ctx, dueKey, redislib.Z{Score: float64(fireAt.UnixMilli()), Member: key})
		return nil
	})
	return domain.Upstream("arm reminder", err)
}

func (r *redisStore) cancel(ctx context.Context, key string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redislib.Pipeliner) error {
		pipe.ZRem(ctx, dueKey, key)
		pipe.ZRem(ctx, inflightKey, key)
		pipe.HDel(ctx, payloadKey, key)
		pipe.HDel(ctx, attemptsKey, key)
		return nil
	})
	return domain.Upstream("cancel reminder", err)
}

func (r *redisStore) recoverExpired(ctx context.Context, now time.Time, limit int) (int, error) {
	n, err := recoverLeases.Run(ctx, r.client, r.keys(), now.UnixMilli(), limit).Int()
	if err != nil {
		return 0, domain.Upstream("recover reminder leases", err)
	}
	return n, nil
}

func (r *redisStore) claim(ctx context.Context, now, leaseUntil time.Time, limit int) ([]claimed, error) {
	keys, err := claimDue.Run(ctx, r.client, r.keys(), now.UnixMilli(), leaseUntil.UnixMilli(), limit).StringSlice()
	if err != nil {
		return nil, domain.Upstream("claim reminders", err)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	values, err := r.client.HMGet(ctx, payloadKey, keys...).Result()
	if err != nil {
		return nil, domain.Upstream("read reminder payloads", err)
	}

	out := make([]claimed, 0, len(keys))
	for i, key := range keys {
		item := claimed{key: key}
		if raw, ok := values[i].(string); ok {
			if err := json.Unmarshal([]byte(raw), &item.payload); err != nil {
				r.logger.Warn("discarding undecodable reminder payload", zap.String("key", key), zap.Error(err))
			} else {
				item.found = true
			}
		}
		out = append(out, item)
	}
	return out, nil
}

func (r *redisStore) ack(ctx context.Context, key string) error {
	return domain.Upstream("ack reminder", ackTrigger.Run(ctx, r.client, r.keys(), key).Err())
}

func (r *redisStore) retry(ctx context.Context, key string, at time.Time, maxAttempts int) (bool, error) {
	result, err := retryTrigger.Run(ctx, r.client, r.keys(), key, at.UnixMilli(), maxAttempts).Int()
	if err != nil {
		return false, domain.Upstream("retry reminder", err)
	}
	return result != 0, nil
}
