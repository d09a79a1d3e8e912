package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/sungwon/task-pipeline/internal/idempotency"
	"github.com/sungwon/task-pipeline/internal/logger"
	"github.com/sungwon/task-pipeline/internal/queue"
	"github.com/sungwon/task-pipeline/internal/worker"
)

// EnvPrefix prefixes every environment override, e.g. TASK_PIPELINE_API_PORT.
const EnvPrefix = "TASK_PIPELINE"

// Config holds all application configuration.
type Config struct {
	API         APIConfig          `mapstructure:"api"`
	Queue       queue.Config       `mapstructure:"queue"`
	Worker      worker.Config      `mapstructure:"worker"`
	Idempotency idempotency.Config `mapstructure:"idempotency"`
	Logging     LoggingConfig      `mapstructure:"logging"`
}

// APIConfig holds REST API server configuration.
type APIConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr returns the listen address.
func (c APIConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	FilePath   string `mapstructure:"file_path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxFiles   int    `mapstructure:"max_files"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// Logger converts the section into the logger package's config, tagging
// lines with service.
func (c LoggingConfig) Logger(service string) logger.LoggingConfig {
	return logger.LoggingConfig{
		Level:      c.Level,
		Format:     c.Format,
		Output:     c.Output,
		FilePath:   c.FilePath,
		MaxSizeMB:  c.MaxSizeMB,
		MaxFiles:   c.MaxFiles,
		MaxAgeDays: c.MaxAgeDays,
		Service:    service,
	}
}

// Load reads configuration from the given config directory path.
// It looks for an optional file named "config.yaml" in that directory.
// Environment variables with prefix TASK_PIPELINE_ override file values.
// For example, TASK_PIPELINE_QUEUE_TYPE overrides queue.type. QUEUE_URL and
// DLQ_URL are also accepted for queue.url and queue.dlq_url.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.BindEnv("queue.url", EnvPrefix+"_QUEUE_URL", "QUEUE_URL"); err != nil {
		return nil, fmt.Errorf("bind queue url: %w", err)
	}
	if err := v.BindEnv("queue.dlq_url", EnvPrefix+"_QUEUE_DLQ_URL", "DLQ_URL"); err != nil {
		return nil, fmt.Errorf("bind dlq url: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers every key so environment overrides reach Unmarshal
// even when no config file is present.
func setDefaults(v *viper.Viper) {
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.read_timeout", 10*time.Second)
	v.SetDefault("api.write_timeout", 10*time.Second)
	v.SetDefault("api.shutdown_timeout", 10*time.Second)

	q := queue.DefaultConfig()
	v.SetDefault("queue.type", q.Type)
	v.SetDefault("queue.url", q.URL)
	v.SetDefault("queue.dlq_url", q.DLQURL)
	v.SetDefault("queue.region", "us-east-1")
	v.SetDefault("queue.endpoint", q.Endpoint)
	v.SetDefault("queue.redis_addr", q.RedisAddr)
	v.SetDefault("queue.redis_password", q.RedisPassword)
	v.SetDefault("queue.redis_db", q.RedisDB)
	v.SetDefault("queue.dedup_window", q.DedupWindow)
	v.SetDefault("queue.send_max_attempts", q.SendMaxAttempts)
	v.SetDefault("queue.send_initial_backoff", q.SendInitialBackoff)
	v.SetDefault("queue.send_max_backoff", q.SendMaxBackoff)
	v.SetDefault("queue.wait_time", q.WaitTime)
	v.SetDefault("queue.visibility_timeout", q.VisibilityTimeout)

	w := worker.DefaultConfig()
	v.SetDefault("worker.batch_size", w.BatchSize)
	v.SetDefault("worker.max_receive_count", w.MaxReceiveCount)
	v.SetDefault("worker.process_timeout", w.ProcessTimeout)
	v.SetDefault("worker.shutdown_timeout", w.ShutdownTimeout)
	v.SetDefault("worker.error_backoff", w.ErrorBackoff)

	v.SetDefault("idempotency.type", "none")
	v.SetDefault("idempotency.ttl", 24*time.Hour)
	v.SetDefault("idempotency.redis_addr", q.RedisAddr)
	v.SetDefault("idempotency.database.url", "")
	v.SetDefault("idempotency.database.pool_min", 0)
	v.SetDefault("idempotency.database.pool_max", 4)
	v.SetDefault("idempotency.database.connect_timeout", 10*time.Second)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.file_path", "")
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_files", 5)
	v.SetDefault("logging.max_age_days", 30)
}

// Validate reports every setting that would keep the binaries from starting.
func (c *Config) Validate() error {
	var errs []error

	switch c.Queue.Type {
	case "", "sqs":
		if c.Queue.URL == "" {
			errs = append(errs, errors.New("queue.url is required for the sqs queue (set QUEUE_URL)"))
		}
	case "redis":
		if c.Queue.RedisAddr == "" {
			errs = append(errs, errors.New("queue.redis_addr is required for the redis queue"))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("queue.type %q is not one of sqs, redis, memory", c.Queue.Type))
	}

	if c.Worker.BatchSize < 1 || c.Worker.BatchSize > 10 {
		errs = append(errs, fmt.Errorf("worker.batch_size must be between 1 and 10, got %d", c.Worker.BatchSize))
	}
	if c.Worker.MaxReceiveCount < 1 {
		errs = append(errs, fmt.Errorf("worker.max_receive_count must be at least 1, got %d", c.Worker.MaxReceiveCount))
	}

	switch c.Idempotency.Type {
	case "", "none", "memory":
	case "redis":
		if c.Idempotency.RedisAddr == "" {
			errs = append(errs, errors.New("idempotency.redis_addr is required for the redis store"))
		}
	case "postgres":
		if c.Idempotency.Database.URL == "" {
			errs = append(errs, errors.New("idempotency.database.url is required for the postgres store"))
		}
	default:
		errs = append(errs, fmt.Errorf("idempotency.type %q is not one of none, memory, redis, postgres", c.Idempotency.Type))
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, fmt.Errorf("api.port must be between 1 and 65535, got %d", c.API.Port))
	}
	if c.Logging.Output == "file" && c.Logging.FilePath == "" {
		errs = append(errs, errors.New("logging.file_path is required when logging.output is file"))
	}

	return errors.Join(errs...)
}
