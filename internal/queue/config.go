package queue

import "time"

// Config holds configuration for the queue backend.
type Config struct {
	// Type selects the backend: "sqs" (default), "redis" or "memory".
	Type     string `mapstructure:"type"`
	URL      string `mapstructure:"url"`
	DLQURL   string `mapstructure:"dlq_url"`
	Region   string `mapstructure:"region"`
	Endpoint string `mapstructure:"endpoint"` // LocalStack / ElasticMQ override

	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`

	DedupWindow        time.Duration `mapstructure:"dedup_window"`
	SendMaxAttempts    int           `mapstructure:"send_max_attempts"`
	SendInitialBackoff time.Duration `mapstructure:"send_initial_backoff"`
	SendMaxBackoff     time.Duration `mapstructure:"send_max_backoff"`

	WaitTime          int32 `mapstructure:"wait_time"`          // long poll seconds
	VisibilityTimeout int32 `mapstructure:"visibility_timeout"` // seconds
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Type:               "sqs",
		RedisAddr:          "localhost:6379",
		DedupWindow:        5 * time.Minute,
		SendMaxAttempts:    5,
		SendInitialBackoff: 50 * time.Millisecond,
		SendMaxBackoff:     2 * time.Second,
		WaitTime:           20,
		VisibilityTimeout:  180,
	}
}

// RetryPolicy returns the send retry policy described by the config.
func (c Config) RetryPolicy() *RetryPolicy {
	p := DefaultRetryPolicy()
	if c.SendMaxAttempts > 0 {
		p.MaxAttempts = c.SendMaxAttempts
	}
	if c.SendInitialBackoff > 0 {
		p.InitialInterval = c.SendInitialBackoff
	}
	if c.SendMaxBackoff > 0 {
		p.MaxInterval = c.SendMaxBackoff
	}
	return p
}
