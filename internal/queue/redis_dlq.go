package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisDLQ manages dead letter queue operations backed by a Redis stream.
type RedisDLQ struct {
	client  *redis.Client
	stream  string
	primary Provider
}

// NewRedisDLQ creates a new RedisDLQ. The primary provider is used by Redrive.
func NewRedisDLQ(client *redis.Client, primary Provider) *RedisDLQ {
	return &RedisDLQ{client: client, stream: dlqStreamKey(GroupKey), primary: primary}
}

// MoveToDLQ appends the failed delivery to the dead letter stream.
func (d *RedisDLQ) MoveToDLQ(ctx context.Context, del Delivery, reason string) error {
	data, err := json.Marshal(NewDLQMessage(del, reason))
	if err != nil {
		return fmt.Errorf("marshal dlq message: %w", err)
	}

	err = d.client.XAdd(ctx, &redis.XAddArgs{
		Stream: d.stream,
		Values: map[string]interface{}{
			"data": string(data),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd to dlq stream %s: %w", d.stream, err)
	}

	DLQMessagesTotal.WithLabelValues(reason).Inc()

	return nil
}

// Redrive sends up to max dead-lettered messages back to the primary
// provider, oldest first, deleting each one after it was accepted.
func (d *RedisDLQ) Redrive(ctx context.Context, max int) (int, error) {
	if max <= 0 {
		return 0, nil
	}

	entries, err := d.client.XRangeN(ctx, d.stream, "-", "+", int64(max)).Result()
	if err != nil {
		return 0, fmt.Errorf("xrange dlq stream %s: %w", d.stream, err)
	}

	redriven := 0
	for _, e := range entries {
		data, _ := e.Values["data"].(string)

		var dlqMsg DLQMessage
		if err := json.Unmarshal([]byte(data), &dlqMsg); err != nil {
			return redriven, fmt.Errorf("decode dlq entry %s: %w", e.ID, err)
		}

		if _, err := d.primary.Send(ctx, []byte(dlqMsg.Body), dlqMsg.RedriveKey()); err != nil {
			return redriven, fmt.Errorf("redrive message %s: %w", dlqMsg.SourceMessageID, err)
		}

		if err := d.client.XDel(ctx, d.stream, e.ID).Err(); err != nil {
			return redriven, fmt.Errorf("xdel dlq entry %s: %w", e.ID, err)
		}
		redriven++
	}

	return redriven, nil
}

// Len returns the number of entries in the dead letter stream.
func (d *RedisDLQ) Len(ctx context.Context) (int64, error) {
	return d.client.XLen(ctx, d.stream).Result()
}
