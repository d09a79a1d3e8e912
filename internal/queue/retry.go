package queue

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Default redelivery schedule for failed batches.
var redeliverySchedule = []time.Duration{
	5 * time.Second,
	15 * time.Second,
	30 * time.Second,
	1 * time.Minute,
	2 * time.Minute,
}

// RetryStrategy decides how long a failed batch stays hidden before the
// channel hands it out again. It is indexed by how many times the batch has
// been received.
type RetryStrategy struct {
	MaxReceives int
	Schedule    []time.Duration
}

// NewRetryStrategy creates a RetryStrategy with the default schedule and the
// given maximum receive count.
func NewRetryStrategy(maxReceives int) *RetryStrategy {
	return &RetryStrategy{
		MaxReceives: maxReceives,
		Schedule:    redeliverySchedule,
	}
}

// ShouldRetry returns true if the message has not exhausted its receive budget.
func (r *RetryStrategy) ShouldRetry(receiveCount int) bool {
	return receiveCount < r.MaxReceives
}

// NextBackoff returns the redelivery delay after the given receive with
// jitter applied. Jitter is calculated as: base * (0.5 + rand * 0.5).
func (r *RetryStrategy) NextBackoff(receiveCount int) time.Duration {
	if len(r.Schedule) == 0 {
		return 0
	}
	idx := receiveCount - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(r.Schedule) {
		idx = len(r.Schedule) - 1
	}

	base := r.Schedule[idx]
	jitter := 0.5 + rand.Float64()*0.5
	return time.Duration(float64(base) * jitter)
}

// RetryPolicy bounds the attempts a provider makes for one send. Only errors
// accepted by Classify are retried; everything else fails on the first attempt.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	Classify        func(error) bool
	// Notify, when set, is called before each retry with the error and the
	// upcoming wait.
	Notify func(err error, wait time.Duration)
}

// DefaultRetryPolicy returns five attempts with exponential backoff and jitter.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts:     5,
		InitialInterval: 50 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		Multiplier:      2,
		Classify:        IsTransient,
	}
}

// Do runs op until it succeeds, returns a non-transient error, the context is
// done, or MaxAttempts is reached. It returns the number of attempts made.
func (p *RetryPolicy) Do(ctx context.Context, op func(ctx context.Context) error) (int, error) {
	classify := p.Classify
	if classify == nil {
		classify = IsTransient
	}
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.MaxInterval = p.MaxInterval
	b.RandomizationFactor = 0.5
	b.MaxElapsedTime = 0
	if p.Multiplier > 0 {
		b.Multiplier = p.Multiplier
	}

	attempts := 0
	operation := func() error {
		attempts++
		err := op(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || !classify(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		RetriesTotal.Inc()
		if p.Notify != nil {
			p.Notify(err, wait)
		}
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(maxAttempts-1)), ctx)
	err := backoff.RetryNotify(operation, policy, notify)
	return attempts, err
}
