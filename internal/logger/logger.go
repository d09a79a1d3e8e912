package logger

import (
	"context"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// LoggingConfig mirrors config.LoggingConfig to avoid a circular import.
type LoggingConfig struct {
	Level      string
	Format     string // json (default), console
	Output     string // stdout (default), stderr, file
	FilePath   string
	MaxSizeMB  int
	MaxFiles   int
	MaxAgeDays int
	// Service, when set, is attached to every line.
	Service string
}

type contextKey string

const (
	loggerKey        contextKey = "logger"
	correlationIDKey contextKey = "correlation_id"
)

// New creates a zerolog.Logger with the specified level and JSON output.
// If the level string is invalid, it defaults to info.
func New(level string) zerolog.Logger {
	return zerolog.New(os.Stdout).
		Level(parseLevel(level)).
		With().
		Timestamp().
		Logger()
}

// NewFromConfig creates a zerolog.Logger from a LoggingConfig, selecting the
// output writer based on cfg.Output:
//   - "file": rotating file via lumberjack
//   - "stderr": os.Stderr
//   - "stdout" or any other value: os.Stdout (default)
//
// Format "console" renders human-readable lines instead of JSON.
func NewFromConfig(cfg LoggingConfig) zerolog.Logger {
	var writer io.Writer
	switch cfg.Output {
	case "file":
		writer = NewFileWriter(FileConfig{
			Path:       cfg.FilePath,
			MaxSizeMB:  cfg.MaxSizeMB,
			MaxFiles:   cfg.MaxFiles,
			MaxAgeDays: cfg.MaxAgeDays,
		})
	case "stderr":
		writer = os.Stderr
	default:
		writer = os.Stdout
	}

	if cfg.Format == "console" {
		writer = zerolog.ConsoleWriter{Out: writer, TimeFormat: "15:04:05.000", NoColor: cfg.Output == "file"}
	}

	ctx := zerolog.New(writer).
		Level(parseLevel(cfg.Level)).
		With().
		Timestamp()
	if cfg.Service != "" {
		ctx = ctx.Str("service", cfg.Service)
	}
	return ctx.Logger()
}

func parseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

// WithLogger stores a logger in the context.
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// WithCorrelationID stores a correlation ID in the context.
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, correlationIDKey, correlationID)
}

// CorrelationIDFromContext retrieves the correlation ID from the context.
// Returns an empty string if not set.
func CorrelationIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDKey).(string); ok {
		return id
	}
	return ""
}

// FromContext retrieves the logger from the context. If a correlation ID is
// present, it is attached to the returned logger. If no logger is found
// in the context, a default info-level logger is returned.
func FromContext(ctx context.Context) zerolog.Logger {
	if l, ok := ctx.Value(loggerKey).(zerolog.Logger); ok {
		return Enrich(ctx, l)
	}
	return Enrich(ctx, New("info"))
}

// Enrich attaches the context's correlation ID, if any, to base.
func Enrich(ctx context.Context, base zerolog.Logger) zerolog.Logger {
	if id := CorrelationIDFromContext(ctx); id != "" {
		return base.With().Str("correlation_id", id).Logger()
	}
	return base
}

// NewCorrelationID generates a new UUID-based correlation ID.
func NewCorrelationID() string {
	return uuid.New().String()
}
