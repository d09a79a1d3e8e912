package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_ValidConfigFile(t *testing.T) {
	cfg, err := Load("../../config")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.API.Host != "0.0.0.0" {
		t.Errorf("expected API host 0.0.0.0, got %s", cfg.API.Host)
	}
	if cfg.API.Port != 8080 {
		t.Errorf("expected API port 8080, got %d", cfg.API.Port)
	}
	if cfg.API.ReadTimeout != 10*time.Second {
		t.Errorf("expected API read timeout 10s, got %v", cfg.API.ReadTimeout)
	}

	if cfg.Queue.Type != "sqs" {
		t.Errorf("expected queue type sqs, got %s", cfg.Queue.Type)
	}
	if cfg.Queue.DedupWindow != 5*time.Minute {
		t.Errorf("expected dedup window 5m, got %v", cfg.Queue.DedupWindow)
	}
	if cfg.Queue.SendInitialBackoff != 50*time.Millisecond {
		t.Errorf("expected initial backoff 50ms, got %v", cfg.Queue.SendInitialBackoff)
	}
	if cfg.Queue.WaitTime != 20 {
		t.Errorf("expected wait time 20, got %d", cfg.Queue.WaitTime)
	}

	if cfg.Worker.BatchSize != 1 {
		t.Errorf("expected batch size 1, got %d", cfg.Worker.BatchSize)
	}
	if cfg.Worker.MaxReceiveCount != 5 {
		t.Errorf("expected max receive count 5, got %d", cfg.Worker.MaxReceiveCount)
	}
	if cfg.Worker.ProcessTimeout != 30*time.Second {
		t.Errorf("expected process timeout 30s, got %v", cfg.Worker.ProcessTimeout)
	}

	if cfg.Idempotency.Type != "none" {
		t.Errorf("expected idempotency type none, got %s", cfg.Idempotency.Type)
	}
	if cfg.Idempotency.TTL != 24*time.Hour {
		t.Errorf("expected idempotency ttl 24h, got %v", cfg.Idempotency.TTL)
	}

	if cfg.Logging.Level != "info" {
		t.Errorf("expected log level info, got %s", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("expected log format json, got %s", cfg.Logging.Format)
	}
}

func TestLoad_QueueURLFromPlainEnv(t *testing.T) {
	t.Setenv("QUEUE_URL", "https://sqs.us-east-1.amazonaws.com/123456789012/tasks.fifo")
	t.Setenv("DLQ_URL", "https://sqs.us-east-1.amazonaws.com/123456789012/tasks-dlq.fifo")

	cfg, err := Load("../../config")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.Queue.URL != "https://sqs.us-east-1.amazonaws.com/123456789012/tasks.fifo" {
		t.Errorf("unexpected queue URL: %s", cfg.Queue.URL)
	}
	if cfg.Queue.DLQURL != "https://sqs.us-east-1.amazonaws.com/123456789012/tasks-dlq.fifo" {
		t.Errorf("unexpected DLQ URL: %s", cfg.Queue.DLQURL)
	}
}

func TestLoad_EnvironmentVariableOverride(t *testing.T) {
	t.Setenv("TASK_PIPELINE_QUEUE_TYPE", "redis")
	t.Setenv("TASK_PIPELINE_WORKER_BATCH_SIZE", "10")
	t.Setenv("TASK_PIPELINE_QUEUE_DEDUP_WINDOW", "90s")

	cfg, err := Load("../../config")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.Queue.Type != "redis" {
		t.Errorf("expected queue type redis, got %s", cfg.Queue.Type)
	}
	if cfg.Worker.BatchSize != 10 {
		t.Errorf("expected batch size 10, got %d", cfg.Worker.BatchSize)
	}
	if cfg.Queue.DedupWindow != 90*time.Second {
		t.Errorf("expected dedup window 90s, got %v", cfg.Queue.DedupWindow)
	}

	// Other values should still be from config file
	if cfg.API.Port != 8080 {
		t.Errorf("expected API port 8080, got %d", cfg.API.Port)
	}
}

func TestLoad_PartialConfig(t *testing.T) {
	tmpDir := t.TempDir()
	partialConfig := `
api:
  port: 9090
logging:
  level: debug
`
	err := os.WriteFile(filepath.Join(tmpDir, "config.yaml"), []byte(partialConfig), 0o644)
	if err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.API.Port != 9090 {
		t.Errorf("expected API port 9090, got %d", cfg.API.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level debug, got %s", cfg.Logging.Level)
	}

	// Defaults fill unset fields
	if cfg.API.Host != "0.0.0.0" {
		t.Errorf("expected default API host, got %s", cfg.API.Host)
	}
	if cfg.Worker.MaxReceiveCount != 5 {
		t.Errorf("expected default max receive count 5, got %d", cfg.Worker.MaxReceiveCount)
	}
}

func TestLoad_MissingConfigFileUsesDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("expected no error for missing config file, got %v", err)
	}
	if cfg.Queue.Type != "sqs" {
		t.Errorf("expected default queue type sqs, got %s", cfg.Queue.Type)
	}
	if cfg.Queue.VisibilityTimeout != 180 {
		t.Errorf("expected default visibility timeout 180, got %d", cfg.Queue.VisibilityTimeout)
	}
}

func TestLoad_MalformedConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmpDir, "config.yaml"), []byte("api: [unclosed"), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	if _, err := Load(tmpDir); err == nil {
		t.Error("expected error for malformed config file, got nil")
	}
}

func validConfig(t *testing.T) *Config {
	t.Helper()
	t.Setenv("QUEUE_URL", "https://sqs.us-east-1.amazonaws.com/123456789012/tasks.fifo")
	cfg, err := Load("../../config")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return cfg
}

func TestValidate_DefaultsWithQueueURL(t *testing.T) {
	if err := validConfig(t).Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing sqs url", func(c *Config) { c.Queue.URL = "" }, "queue.url"},
		{"missing redis addr", func(c *Config) { c.Queue.Type = "redis"; c.Queue.RedisAddr = "" }, "queue.redis_addr"},
		{"unknown queue type", func(c *Config) { c.Queue.Type = "kafka" }, "queue.type"},
		{"batch size zero", func(c *Config) { c.Worker.BatchSize = 0 }, "worker.batch_size"},
		{"batch size too large", func(c *Config) { c.Worker.BatchSize = 11 }, "worker.batch_size"},
		{"max receive zero", func(c *Config) { c.Worker.MaxReceiveCount = 0 }, "worker.max_receive_count"},
		{"postgres without url", func(c *Config) { c.Idempotency.Type = "postgres" }, "idempotency.database.url"},
		{"unknown store", func(c *Config) { c.Idempotency.Type = "etcd" }, "idempotency.type"},
		{"bad port", func(c *Config) { c.API.Port = 0 }, "api.port"},
		{"file output without path", func(c *Config) { c.Logging.Output = "file" }, "logging.file_path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestValidate_MemoryQueueNeedsNoURL(t *testing.T) {
	cfg := validConfig(t)
	cfg.Queue.Type = "memory"
	cfg.Queue.URL = ""

	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}
}

func TestLoggingConfig_Logger(t *testing.T) {
	lc := LoggingConfig{Level: "debug", Format: "console", Output: "file", FilePath: "/tmp/x.log", MaxFiles: 3}.
		Logger("task-api")

	if lc.Service != "task-api" || lc.Level != "debug" || lc.FilePath != "/tmp/x.log" || lc.MaxFiles != 3 {
		t.Errorf("unexpected logger config: %+v", lc)
	}
}
