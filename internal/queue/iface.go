package queue

import (
	"context"
	"errors"
	"time"
)

// GroupKey is the ordering lane every task is submitted to. One lane gives a
// single global FIFO order at the cost of serialized delivery.
const GroupKey = "tasks"

var (
	// ErrSendFailed wraps every failure to hand a message to the channel.
	ErrSendFailed = errors.New("queue: send failed")
	// ErrMissingQueueURL is returned when a provider is built without an endpoint.
	ErrMissingQueueURL = errors.New("queue: queue url is required")
	// ErrMissingMessageID is returned when the channel acknowledges a send
	// without assigning a message identifier.
	ErrMissingMessageID = errors.New("queue: send acknowledged without message id")
)

// Receipt is the channel's acknowledgement of an accepted message.
type Receipt struct {
	Provider       string
	MessageID      string
	SequenceNumber string
}

// Provider sends messages to an ordered, deduplicating channel. Sends that
// share a dedup key within the channel's deduplication window collapse into
// one delivered message. Implementations must be safe for concurrent use.
type Provider interface {
	Send(ctx context.Context, payload []byte, dedupKey string) (Receipt, error)
	Name() string
}

// Delivery is one message handed out by a Consumer.
type Delivery struct {
	MessageID    string
	Receipt      string
	Body         []byte
	ReceiveCount int
}

// Consumer reads messages from the channel in lane order. A received message
// stays owned by the caller until it is acknowledged or released.
type Consumer interface {
	// Receive returns up to max messages, possibly none.
	Receive(ctx context.Context, max int) ([]Delivery, error)
	// Ack removes the messages from the channel.
	Ack(ctx context.Context, deliveries []Delivery) error
	// Release makes the messages deliverable again after delay.
	Release(ctx context.Context, deliveries []Delivery, delay time.Duration) error
}

// DeadLetterQueue holds messages that could not be processed.
type DeadLetterQueue interface {
	MoveToDLQ(ctx context.Context, d Delivery, reason string) error
	// Redrive sends up to max dead-lettered messages back to the primary
	// channel and returns how many were moved.
	Redrive(ctx context.Context, max int) (int, error)
}
