package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sungwon/task-pipeline/internal/api"
	"github.com/sungwon/task-pipeline/internal/config"
	"github.com/sungwon/task-pipeline/internal/ingest"
	"github.com/sungwon/task-pipeline/internal/logger"
	"github.com/sungwon/task-pipeline/internal/queue"
)

func main() {
	// Load configuration
	cfg, err := config.Load("config")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewFromConfig(cfg.Logging.Logger("task-api"))
	log.Info().Msg("starting task API")

	ctx := context.Background()
	backend, err := queue.Open(ctx, cfg.Queue, log)
	if err != nil {
		log.Fatal().Err(err).Str("queue_type", cfg.Queue.Type).Msg("failed to open queue")
	}
	defer backend.Close()

	log.Info().
		Str("queue_type", cfg.Queue.Type).
		Str("provider", backend.Provider.Name()).
		Bool("dlq", backend.DLQ != nil).
		Msg("queue ready")

	router := api.NewRouter(api.Deps{
		Tasks: ingest.NewService(backend.Provider, log),
		DLQ:   backend.DLQ,
		Ready: backend.Ping,
	}, log)

	// Configure HTTP server
	addr := cfg.API.Addr()
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.API.ReadTimeout,
		WriteTimeout: cfg.API.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("API server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info().Str("signal", sig.String()).Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.API.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
