// Package worker feeds delivered queue messages to the task processor and
// settles each batch with the channel.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sungwon/task-pipeline/internal/processor"
	"github.com/sungwon/task-pipeline/internal/queue"
	"github.com/sungwon/task-pipeline/internal/task"
)

// BatchHandler processes one delivered batch. A returned
// *processor.RecordError names the record that failed.
type BatchHandler interface {
	Handle(ctx context.Context, records []processor.Record) error
}

// Config holds worker settings.
type Config struct {
	BatchSize       int           `mapstructure:"batch_size"`
	MaxReceiveCount int           `mapstructure:"max_receive_count"`
	ProcessTimeout  time.Duration `mapstructure:"process_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	ErrorBackoff    time.Duration `mapstructure:"error_backoff"`
}

// DefaultConfig returns one record per batch, five receives before
// dead-lettering and a 30 second processing budget.
func DefaultConfig() Config {
	return Config{
		BatchSize:       1,
		MaxReceiveCount: 5,
		ProcessTimeout:  30 * time.Second,
		ShutdownTimeout: 30 * time.Second,
		ErrorBackoff:    time.Second,
	}
}

// Worker long-polls a queue.Consumer and hands each batch to a BatchHandler.
// A batch is acked only when every record succeeded; otherwise it is
// released for redelivery as a whole.
type Worker struct {
	consumer queue.Consumer
	dlq      queue.DeadLetterQueue
	handler  BatchHandler
	retry    *queue.RetryStrategy
	cfg      Config
	log      zerolog.Logger

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New creates a Worker. dlq may be nil, in which case poison records are
// released for redelivery indefinitely.
func New(consumer queue.Consumer, handler BatchHandler, dlq queue.DeadLetterQueue, cfg Config, log zerolog.Logger) *Worker {
	def := DefaultConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.MaxReceiveCount <= 0 {
		cfg.MaxReceiveCount = def.MaxReceiveCount
	}
	if cfg.ProcessTimeout <= 0 {
		cfg.ProcessTimeout = def.ProcessTimeout
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = def.ErrorBackoff
	}

	return &Worker{
		consumer: consumer,
		dlq:      dlq,
		handler:  handler,
		retry:    queue.NewRetryStrategy(cfg.MaxReceiveCount),
		cfg:      cfg,
		log:      log.With().Str("component", "worker").Logger(),
	}
}

// WithRetryStrategy replaces the redelivery delay schedule.
func (w *Worker) WithRetryStrategy(r *queue.RetryStrategy) *Worker {
	w.retry = r
	return w
}

// Start launches the polling loop. The lane is strictly ordered, so a single
// loop is run.
func (w *Worker) Start(ctx context.Context) error {
	ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(1)
	go w.run(ctx)

	w.log.Info().
		Int("batch_size", w.cfg.BatchSize).
		Int("max_receive_count", w.cfg.MaxReceiveCount).
		Msg("worker started")
	return nil
}

// Stop cancels the polling loop and waits for the current batch to settle
// within the shutdown timeout or until ctx is done, whichever comes first.
func (w *Worker) Stop(ctx context.Context) error {
	if w.cancel == nil {
		return nil
	}
	w.cancel()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.log.Info().Msg("worker stopped gracefully")
		return nil
	case <-ctx.Done():
		w.log.Warn().Err(ctx.Err()).Msg("worker shutdown abandoned")
		return fmt.Errorf("shutdown: %w", ctx.Err())
	case <-time.After(w.cfg.ShutdownTimeout):
		w.log.Warn().Msg("worker shutdown timed out")
		return fmt.Errorf("shutdown timed out after %s", w.cfg.ShutdownTimeout)
	}
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if _, err := w.Poll(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			w.log.Error().Err(err).Msg("poll failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.cfg.ErrorBackoff):
			}
		}
	}
}

// Poll receives one batch, processes it and settles it with the channel. It
// returns the number of deliveries received.
func (w *Worker) Poll(ctx context.Context) (int, error) {
	deliveries, err := w.consumer.Receive(ctx, w.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("receive: %w", err)
	}
	if len(deliveries) == 0 {
		return 0, nil
	}

	records := make([]processor.Record, len(deliveries))
	for i, d := range deliveries {
		records[i] = processor.Record{MessageID: d.MessageID, Body: d.Body, ReceiveCount: d.ReceiveCount}
	}

	start := time.Now()
	// Settling must survive shutdown cancellation of the parent context.
	settleCtx := context.WithoutCancel(ctx)
	processCtx, cancel := context.WithTimeout(ctx, w.cfg.ProcessTimeout)
	herr := w.handler.Handle(processCtx, records)
	cancel()
	queue.BatchProcessingDuration.Observe(time.Since(start).Seconds())

	if herr == nil {
		if err := w.consumer.Ack(settleCtx, deliveries); err != nil {
			return len(deliveries), fmt.Errorf("ack batch: %w", err)
		}
		queue.BatchesProcessedTotal.WithLabelValues("acked").Inc()
		return len(deliveries), nil
	}

	return len(deliveries), w.settleFailure(settleCtx, deliveries, herr)
}

func (w *Worker) settleFailure(ctx context.Context, deliveries []queue.Delivery, herr error) error {
	var recErr *processor.RecordError
	if errors.As(herr, &recErr) && w.dlq != nil && recErr.Index < len(deliveries) {
		poison := deliveries[recErr.Index]
		if !w.retry.ShouldRetry(poison.ReceiveCount) {
			return w.deadLetter(ctx, deliveries, recErr.Index, herr)
		}
	}

	delay := w.retry.NextBackoff(maxReceiveCount(deliveries))
	if err := w.consumer.Release(ctx, deliveries, delay); err != nil {
		return fmt.Errorf("release batch: %w", err)
	}
	queue.BatchesProcessedTotal.WithLabelValues("released").Inc()

	w.log.Warn().Err(herr).
		Int("batch_size", len(deliveries)).
		Dur("redelivery_delay", delay).
		Msg("batch released for redelivery")
	return nil
}

// deadLetter moves the poison record to the DLQ and releases the rest of
// the batch immediately so the lane keeps moving.
func (w *Worker) deadLetter(ctx context.Context, deliveries []queue.Delivery, idx int, herr error) error {
	poison := deliveries[idx]
	reason := failureReason(herr)

	if err := w.dlq.MoveToDLQ(ctx, poison, reason); err != nil {
		if relErr := w.consumer.Release(ctx, deliveries, 0); relErr != nil {
			w.log.Error().Err(relErr).Msg("failed to release batch after dlq failure")
		}
		return fmt.Errorf("move to dlq: %w", err)
	}
	if err := w.consumer.Ack(ctx, []queue.Delivery{poison}); err != nil {
		return fmt.Errorf("ack dead-lettered message: %w", err)
	}

	rest := make([]queue.Delivery, 0, len(deliveries)-1)
	rest = append(rest, deliveries[:idx]...)
	rest = append(rest, deliveries[idx+1:]...)
	if len(rest) > 0 {
		if err := w.consumer.Release(ctx, rest, 0); err != nil {
			return fmt.Errorf("release rest of batch: %w", err)
		}
	}

	queue.BatchesProcessedTotal.WithLabelValues("dlq").Inc()
	w.log.Warn().Err(herr).
		Str("message_id", poison.MessageID).
		Int("receive_count", poison.ReceiveCount).
		Str("reason", reason).
		Msg("max receives exhausted, moved to DLQ")
	return nil
}

func failureReason(err error) string {
	var decErr *task.DecodeError
	var valErr *task.ValidationError
	switch {
	case errors.As(err, &decErr):
		return "decode"
	case errors.As(err, &valErr):
		return "validation"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "handler"
	}
}

func maxReceiveCount(deliveries []queue.Delivery) int {
	n := 0
	for _, d := range deliveries {
		n = max(n, d.ReceiveCount)
	}
	return n
}
