// Package processor decodes delivered task messages and runs the domain
// handler on each of them in delivery order.
package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/sungwon/task-pipeline/internal/idempotency"
	"github.com/sungwon/task-pipeline/internal/task"
)

// Record is one raw message as delivered by the queue.
type Record struct {
	MessageID    string
	Body         []byte
	ReceiveCount int
}

// RecordError reports the record that stopped a batch. Records before Index
// were handled; records after it were not attempted.
type RecordError struct {
	Index     int
	MessageID string
	TaskID    string
	Err       error
}

func (e *RecordError) Error() string {
	if e.TaskID != "" {
		return fmt.Sprintf("record %d (message %s, task %s): %v", e.Index, e.MessageID, e.TaskID, e.Err)
	}
	return fmt.Sprintf("record %d (message %s): %v", e.Index, e.MessageID, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }

// Processor handles delivered batches.
type Processor struct {
	handler TaskHandler
	store   idempotency.Store
	ttl     time.Duration
	log     zerolog.Logger
}

// Option configures a Processor.
type Option func(*Processor)

// WithIdempotencyStore skips tasks the store reports as completed and marks
// each task completed after it was handled. ttl bounds how long a mark lives.
func WithIdempotencyStore(store idempotency.Store, ttl time.Duration) Option {
	return func(p *Processor) {
		p.store = store
		p.ttl = ttl
	}
}

// New creates a Processor running handler on every task.
func New(handler TaskHandler, log zerolog.Logger, opts ...Option) *Processor {
	p := &Processor{handler: handler, log: log}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Handle processes records in order. The first record that fails to decode,
// validate or handle aborts the batch and is returned as *RecordError so the
// whole batch is redelivered.
func (p *Processor) Handle(ctx context.Context, records []Record) error {
	start := time.Now()
	defer func() { BatchDuration.Observe(time.Since(start).Seconds()) }()

	for i, rec := range records {
		taskID, err := p.handleRecord(ctx, rec)
		if err != nil {
			RecordsTotal.WithLabelValues("failed").Inc()
			p.log.Error().Err(err).
				Int("index", i).
				Str("message_id", rec.MessageID).
				Str("task_id", taskID).
				Int("receive_count", rec.ReceiveCount).
				Msg("task processing failed")
			return &RecordError{Index: i, MessageID: rec.MessageID, TaskID: taskID, Err: err}
		}
	}
	return nil
}

// handleRecord returns the task id it found, if any, alongside any failure.
func (p *Processor) handleRecord(ctx context.Context, rec Record) (string, error) {
	payload, err := task.Decode(rec.Body)
	if err != nil {
		return peekTaskID(err, rec.Body), err
	}
	log := p.log.With().Str("task_id", payload.TaskID).Str("message_id", rec.MessageID).Logger()

	if p.store != nil {
		done, err := p.store.IsCompleted(ctx, payload.TaskID)
		if err != nil {
			return payload.TaskID, fmt.Errorf("check idempotency: %w", err)
		}
		if done {
			RecordsTotal.WithLabelValues("skipped").Inc()
			log.Info().Msg("task already processed, skipping")
			return payload.TaskID, nil
		}
	}

	if err := p.handler.HandleTask(ctx, payload); err != nil {
		return payload.TaskID, fmt.Errorf("handle task: %w", err)
	}

	if p.store != nil {
		if err := p.store.MarkCompleted(ctx, payload.TaskID, p.ttl); err != nil {
			return payload.TaskID, fmt.Errorf("mark completed: %w", err)
		}
	}

	RecordsTotal.WithLabelValues("processed").Inc()
	log.Info().
		Str("title", payload.Title).
		Str("priority", string(payload.Priority)).
		Msg("task processed")
	return payload.TaskID, nil
}

// peekTaskID returns the task id of a payload that parsed as JSON but failed
// validation, for logging.
func peekTaskID(err error, body []byte) string {
	var decErr *task.DecodeError
	if errors.As(err, &decErr) {
		return ""
	}
	var probe struct {
		TaskID string `json:"task_id"`
	}
	if json.Unmarshal(body, &probe) != nil {
		return ""
	}
	return probe.TaskID
}
