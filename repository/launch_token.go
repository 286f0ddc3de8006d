package repository

import (
	"context"

	"github.com/fastygo/taskbot/domain"
)

type LaunchTokenRepository interface {
	Save(ctx context.Context, token *domain.LaunchToken) error
	// Take returns the token and deletes it in one step so it can be redeemed once.
	Take(ctx context.Context, id string) (*domain.LaunchToken, error)
}
