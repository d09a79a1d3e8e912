package queue

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// maxVisibilityTimeout is the SQS upper bound for ChangeMessageVisibility.
const maxVisibilityTimeout = 12 * time.Hour

// SQSConsumer long-polls an SQS FIFO queue. SQS keeps the group locked while
// any received message is in flight, so deliveries arrive in send order.
type SQSConsumer struct {
	client     sqsAPI
	queueURL   string
	waitTime   int32
	visTimeout int32
}

// NewSQSConsumer creates an SQSConsumer configured from the given Config.
func NewSQSConsumer(client sqsAPI, queueURL string, cfg Config) (*SQSConsumer, error) {
	if queueURL == "" {
		return nil, ErrMissingQueueURL
	}
	waitTime := cfg.WaitTime
	if waitTime == 0 {
		waitTime = 20
	}
	visTimeout := cfg.VisibilityTimeout
	if visTimeout == 0 {
		visTimeout = 180
	}
	return &SQSConsumer{
		client:     client,
		queueURL:   queueURL,
		waitTime:   waitTime,
		visTimeout: visTimeout,
	}, nil
}

// Receive long-polls for up to max messages. SQS caps a receive at 10.
func (c *SQSConsumer) Receive(ctx context.Context, max int) ([]Delivery, error) {
	if max < 1 {
		max = 1
	}
	if max > 10 {
		max = 10
	}

	out, err := c.client.ReceiveMessage(ctx, &sqsReceiveInput{
		QueueURL:            c.queueURL,
		MaxNumberOfMessages: int32(max),
		WaitTimeSeconds:     c.waitTime,
		VisibilityTimeout:   c.visTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("sqs receive message: %w", err)
	}

	deliveries := make([]Delivery, 0, len(out.Messages))
	for _, m := range out.Messages {
		deliveries = append(deliveries, Delivery{
			MessageID:    m.MessageID,
			Receipt:      m.ReceiptHandle,
			Body:         []byte(m.Body),
			ReceiveCount: m.ReceiveCount,
		})
	}
	return deliveries, nil
}

// Ack deletes every delivery. All deletes are attempted; failures are joined.
func (c *SQSConsumer) Ack(ctx context.Context, deliveries []Delivery) error {
	var errs []error
	for _, d := range deliveries {
		if err := c.client.DeleteMessage(ctx, &sqsDeleteInput{
			QueueURL:      c.queueURL,
			ReceiptHandle: d.Receipt,
		}); err != nil {
			errs = append(errs, fmt.Errorf("delete message %s: %w", d.MessageID, err))
		}
	}
	return errors.Join(errs...)
}

// Release makes the deliveries visible again once delay has passed.
func (c *SQSConsumer) Release(ctx context.Context, deliveries []Delivery, delay time.Duration) error {
	if delay < 0 {
		delay = 0
	}
	if delay > maxVisibilityTimeout {
		delay = maxVisibilityTimeout
	}
	seconds := int32(math.Ceil(delay.Seconds()))

	var errs []error
	for _, d := range deliveries {
		if err := c.client.ChangeMessageVisibility(ctx, &sqsChangeVisibilityInput{
			QueueURL:          c.queueURL,
			ReceiptHandle:     d.Receipt,
			VisibilityTimeout: seconds,
		}); err != nil {
			errs = append(errs, fmt.Errorf("change visibility %s: %w", d.MessageID, err))
		}
	}
	return errors.Join(errs...)
}
