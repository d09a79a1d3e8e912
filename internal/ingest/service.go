// Package ingest accepts task requests and hands them to the ordered queue.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sungwon/task-pipeline/internal/logger"
	"github.com/sungwon/task-pipeline/internal/queue"
	"github.com/sungwon/task-pipeline/internal/task"
)

// ErrEnqueueFailed is matched by every error Create returns after a request
// passed validation but could not be handed to the queue.
var ErrEnqueueFailed = errors.New("Failed to enqueue task")

// EnqueueError is returned when the queue rejected a valid task. Its message
// is fixed; the cause is kept for logs and errors.As only.
type EnqueueError struct {
	TaskID string
	Err    error
}

func (e *EnqueueError) Error() string { return ErrEnqueueFailed.Error() }

func (e *EnqueueError) Unwrap() []error { return []error{ErrEnqueueFailed, e.Err} }

// Service validates task requests, assigns ids and enqueues them.
type Service struct {
	provider queue.Provider
	log      zerolog.Logger
	now      func() time.Time
	newID    func() (uuid.UUID, error)
}

// Option configures a Service.
type Option func(*Service)

// WithClock sets the clock used to validate due dates.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator replaces the task id source.
func WithIDGenerator(gen func() (uuid.UUID, error)) Option {
	return func(s *Service) { s.newID = gen }
}

// NewService creates a Service that sends to provider.
func NewService(provider queue.Provider, log zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		provider: provider,
		log:      log,
		now:      time.Now,
		newID:    uuid.NewRandom,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates req, assigns a fresh task id and sends the payload exactly
// once. Invalid requests return *task.ValidationError and nothing is sent.
// Any send failure returns *EnqueueError. Retries are the provider's job.
func (s *Service) Create(ctx context.Context, req task.Request) (string, error) {
	log := logger.Enrich(ctx, s.log)

	if err := req.Validate(s.now()); err != nil {
		ValidationFailuresTotal.Inc()
		return "", err
	}

	id, err := s.newID()
	if err != nil {
		EnqueueFailuresTotal.Inc()
		log.Error().Err(err).Msg("failed to generate task id")
		return "", &EnqueueError{Err: fmt.Errorf("generate task id: %w", err)}
	}
	taskID := id.String()

	body, err := task.Encode(task.NewPayload(taskID, req))
	if err != nil {
		EnqueueFailuresTotal.Inc()
		log.Error().Err(err).Str("task_id", taskID).Msg("failed to encode task payload")
		return "", &EnqueueError{TaskID: taskID, Err: err}
	}

	receipt, err := s.provider.Send(ctx, body, taskID)
	if err != nil {
		EnqueueFailuresTotal.Inc()
		log.Error().Err(err).
			Str("task_id", taskID).
			Str("provider", s.provider.Name()).
			Msg("failed to enqueue task")
		return "", &EnqueueError{TaskID: taskID, Err: err}
	}

	TasksCreatedTotal.WithLabelValues(string(req.Priority)).Inc()
	log.Info().
		Str("task_id", taskID).
		Str("provider", receipt.Provider).
		Str("message_id", receipt.MessageID).
		Str("priority", string(req.Priority)).
		Msg("task enqueued")

	return taskID, nil
}
