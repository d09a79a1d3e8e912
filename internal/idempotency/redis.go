package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps completed task ids as Redis keys with an expiry.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a RedisStore on the given client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: "processed:"}
}

// IsCompleted reports whether the task key exists.
func (s *RedisStore) IsCompleted(ctx context.Context, taskID string) (bool, error) {
	n, err := s.client.Exists(ctx, s.prefix+taskID).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists %s: %w", taskID, err)
	}
	return n == 1, nil
}

// MarkCompleted sets the task key unless it already exists. A ttl of zero
// keeps it forever.
func (s *RedisStore) MarkCompleted(ctx context.Context, taskID string, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := s.client.SetNX(ctx, s.prefix+taskID, 1, ttl).Err(); err != nil {
		return fmt.Errorf("redis setnx %s: %w", taskID, err)
	}
	return nil
}
