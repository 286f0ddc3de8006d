package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redislib "github.com/redis/go-redis/v9"

	"github.com/fastygo/taskbot/domain"
	"github.com/fastygo/taskbot/repository"
)

type launchTokenRepository struct {
	client *redislib.Client
	prefix string
	ttl    time.Duration
}

// NewLaunchTokenRepository creates a Redis-backed launch token repository.
func NewLaunchTokenRepository(client *redislib.Client, ttl time.Duration) repository.LaunchTokenRepository {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &launchTokenRepository{
		client: client,
		prefix: "launch:",
		ttl:    ttl,
	}
}

func (r *launchTokenRepository) Take(ctx context.Context, id string) (*domain.LaunchToken, error) {
	result, err := r.client.GetDel(ctx, r.key(id)).Result()
	if err != nil {
		if err == redislib.Nil {
			return nil, domain.ErrLaunchTokenNotFound
		}
		return nil, domain.Upstream("take launch token", err)
	}

	var token domain.LaunchToken
	if err := json.Unmarshal([]byte(result), &token); err != nil {
		return nil, domain.Upstream("decode launch token", err)
	}
	return &token, nil
}

func (r *launchTokenRepository) Save(ctx context.Context, token *domain.LaunchToken) error {
	if token == nil || token.ID == "" {
		return domain.ErrInvalidPayload
	}

	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now()
	}
	if token.ExpiresAt.Before(token.CreatedAt) {
		token.ExpiresAt = token.CreatedAt.Add(r.ttl)
	}

	payload, err := json.Marshal(token)
	if err != nil {
		return err
	}

	ttl := time.Until(token.ExpiresAt)
	if ttl <= 0 {
		ttl = r.ttl
	}

	if err := r.client.Set(ctx, r.key(token.ID), payload, ttl).Err(); err != nil {
		return domain.Upstream("save launch token", err)
	}
	return nil
}

func (r *launchTokenRepository) key(id string) string {
	return fmt.Sprintf("%s%s", r.prefix, id)
}
