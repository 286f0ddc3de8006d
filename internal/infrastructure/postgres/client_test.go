package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/taskbot/internal/config"
)

func TestPoolConfig(t *testing.T) {
	cfg, err := poolConfig(config.DatabaseConfig{
		URL:             "postgres://taskbot:secret@db:5432/taskbot?sslmode=disable",
		MaxOpenConns:    4,
		MaxIdleConns:    10,
		MaxConnLifetime: time.Minute,
	})
	require.NoError(t, err)

	assert.Equal(t, int32(4), cfg.MaxConns)
	assert.Equal(t, int32(4), cfg.MinConns, "min conns clamp to max")
	assert.Equal(t, time.Minute, cfg.MaxConnLifetime)
	assert.Equal(t, "db", cfg.ConnConfig.Host)
	assert.Equal(t, "taskbot", cfg.ConnConfig.RuntimeParams["application_name"])
}

func TestPoolConfig_InvalidURL(t *testing.T) {
	_, err := poolConfig(config.DatabaseConfig{URL: "postgres://%zz"})
	assert.Error(t, err)
}
