package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Backend bundles the sides of one channel binding.
type Backend struct {
	Provider Provider
	Consumer Consumer
	// DLQ is nil when no dead letter queue is configured.
	DLQ DeadLetterQueue

	closeFn func() error
	pingFn  func(ctx context.Context) error
}

// Ping reports whether the channel's backing service is reachable. Backends
// without a cheap health probe are always reachable.
func (b *Backend) Ping(ctx context.Context) error {
	if b.pingFn == nil {
		return nil
	}
	return b.pingFn(ctx)
}

// Close releases client resources held by the backend.
func (b *Backend) Close() error {
	if b.closeFn == nil {
		return nil
	}
	return b.closeFn()
}

// Open builds the Provider, Consumer and DeadLetterQueue for cfg.Type.
func Open(ctx context.Context, cfg Config, log zerolog.Logger) (*Backend, error) {
	switch cfg.Type {
	case "sqs", "":
		client, err := newAWSSQSClient(ctx, cfg.Region, cfg.Endpoint)
		if err != nil {
			return nil, fmt.Errorf("create sqs client: %w", err)
		}
		return openSQS(client, cfg, log)

	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		q := NewRedisQueue(client, cfg, log)
		return &Backend{
			Provider: q,
			Consumer: q,
			DLQ:      NewRedisDLQ(client, q),
			closeFn:  q.Close,
			pingFn:   func(ctx context.Context) error { return client.Ping(ctx).Err() },
		}, nil

	case "memory":
		opts := []MemoryOption{}
		if cfg.DedupWindow > 0 {
			opts = append(opts, WithDedupWindow(cfg.DedupWindow))
		}
		if cfg.VisibilityTimeout > 0 {
			opts = append(opts, WithVisibilityTimeout(time.Duration(cfg.VisibilityTimeout)*time.Second))
		}
		q := NewMemoryQueue(opts...)
		return &Backend{Provider: q, Consumer: q, DLQ: NewMemoryDLQ(q)}, nil

	default:
		return nil, fmt.Errorf("unknown queue type: %s", cfg.Type)
	}
}

func openSQS(client sqsAPI, cfg Config, log zerolog.Logger) (*Backend, error) {
	provider, err := NewSQSProvider(client, cfg.URL, cfg.RetryPolicy(), log)
	if err != nil {
		return nil, err
	}
	consumer, err := NewSQSConsumer(client, cfg.URL, cfg)
	if err != nil {
		return nil, err
	}

	b := &Backend{Provider: provider, Consumer: consumer}
	if cfg.DLQURL != "" {
		dlq, err := NewSQSDLQ(client, cfg.DLQURL, provider, log)
		if err != nil {
			return nil, err
		}
		b.DLQ = dlq
	}
	return b, nil
}
