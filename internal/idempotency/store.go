// Package idempotency remembers which tasks have already been processed so
// that redelivered messages are not handled twice.
package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/sungwon/task-pipeline/internal/storage"
)

// Store records completed task ids. Implementations must be safe for
// concurrent use.
type Store interface {
	IsCompleted(ctx context.Context, taskID string) (bool, error)
	MarkCompleted(ctx context.Context, taskID string, ttl time.Duration) error
}

// Config selects and configures a Store.
type Config struct {
	// Type is one of none (default), memory, redis or postgres.
	Type      string         `mapstructure:"type"`
	TTL       time.Duration  `mapstructure:"ttl"`
	RedisAddr string         `mapstructure:"redis_addr"`
	Database  storage.Config `mapstructure:"database"`
}

// New builds the configured Store. It returns a nil Store for type none; the
// returned close function is always safe to call.
func New(ctx context.Context, cfg Config, log zerolog.Logger) (Store, func(), error) {
	noop := func() {}

	switch cfg.Type {
	case "", "none":
		return nil, noop, nil

	case "memory":
		return NewMemoryStore(), noop, nil

	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, noop, fmt.Errorf("ping redis: %w", err)
		}
		return NewRedisStore(client), func() { _ = client.Close() }, nil

	case "postgres":
		db, err := storage.Open(ctx, cfg.Database)
		if err != nil {
			return nil, noop, err
		}
		store, err := NewPostgresStore(ctx, db)
		if err != nil {
			db.Close()
			return nil, noop, err
		}
		log.Info().Msg("postgres idempotency store ready")
		return store, db.Close, nil

	default:
		return nil, noop, fmt.Errorf("unknown idempotency store type: %s", cfg.Type)
	}
}
