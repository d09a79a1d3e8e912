package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sungwon/task-pipeline/internal/config"
	"github.com/sungwon/task-pipeline/internal/idempotency"
	"github.com/sungwon/task-pipeline/internal/logger"
	"github.com/sungwon/task-pipeline/internal/processor"
	"github.com/sungwon/task-pipeline/internal/queue"
	"github.com/sungwon/task-pipeline/internal/worker"
)

func main() {
	cfg, err := config.Load("config")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewFromConfig(cfg.Logging.Logger("task-processor"))
	log.Info().Msg("starting task processor")

	ctx := context.Background()
	backend, err := queue.Open(ctx, cfg.Queue, log)
	if err != nil {
		log.Fatal().Err(err).Str("queue_type", cfg.Queue.Type).Msg("failed to open queue")
	}
	defer backend.Close()

	if cfg.Queue.Type == "memory" {
		log.Warn().Msg("memory queue is process-local; tasks sent by a separate API process are not visible here")
	}

	store, closeStore, err := idempotency.New(ctx, cfg.Idempotency, log)
	if err != nil {
		log.Fatal().Err(err).Str("store_type", cfg.Idempotency.Type).Msg("failed to open idempotency store")
	}
	defer closeStore()

	var opts []processor.Option
	if store != nil {
		opts = append(opts, processor.WithIdempotencyStore(store, cfg.Idempotency.TTL))
	}
	proc := processor.New(processor.NewAuditHandler(log), log, opts...)

	w := worker.New(backend.Consumer, proc, backend.DLQ, cfg.Worker, log)
	if err := w.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start worker")
	}
	log.Info().
		Str("queue_type", cfg.Queue.Type).
		Bool("dlq", backend.DLQ != nil).
		Str("idempotency", cfg.Idempotency.Type).
		Msg("task processor started")

	// Wait for interrupt signal for graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down task processor")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Worker.ShutdownTimeout)
	defer cancel()

	if err := w.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("worker forced to stop")
	}

	log.Info().Msg("task processor stopped")
}
