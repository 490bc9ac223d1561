package errors

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// RetryPolicy defines how a gateway retries a failed delivery
type RetryPolicy interface {
	// ShouldRetry determines if an error should be retried after attempt (1-based)
	ShouldRetry(err error, attempt int) bool

	// RetryDelay calculates the delay before the next attempt
	RetryDelay(attempt int) time.Duration

	// MaxAttempts returns the maximum number of attempts including the first
	MaxAttempts() int
}

type noRetry struct{}

func (noRetry) ShouldRetry(error, int) bool  { return false }
func (noRetry) RetryDelay(int) time.Duration { return 0 }
func (noRetry) MaxAttempts() int             { return 1 }

// NoRetry performs a single attempt.
var NoRetry RetryPolicy = noRetry{}

// ExponentialBackoffPolicy implements exponential backoff with jitter.
// Only 5xx, 429 and transport failures are retried.
type ExponentialBackoffPolicy struct {
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
	Jitter     float64
	Attempts   int
}

// NewExponentialBackoffPolicy creates a new exponential backoff policy
func NewExponentialBackoffPolicy(baseDelay, maxDelay time.Duration, maxRetries int) *ExponentialBackoffPolicy {
	return &ExponentialBackoffPolicy{
		BaseDelay:  baseDelay,
		MaxDelay:   maxDelay,
		Multiplier: 2.0,
		Jitter:     0.1,
		Attempts:   maxRetries + 1,
	}
}

// ShouldRetry determines if an error should be retried
func (p *ExponentialBackoffPolicy) ShouldRetry(err error, attempt int) bool {
	if err == nil || attempt >= p.Attempts {
		return false
	}
	if IsTransport(err) {
		return true
	}
	var ne *NotifyError
	if As(err, &ne) {
		return ne.IsRetryable()
	}
	return false
}

// RetryDelay calculates the delay before the next retry
func (p *ExponentialBackoffPolicy) RetryDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	delay := float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(attempt-1))
	if p.Jitter > 0 {
		delay += delay * p.Jitter * (rand.Float64()*2 - 1)
	}
	if p.MaxDelay > 0 && time.Duration(delay) > p.MaxDelay {
		delay = float64(p.MaxDelay)
	}
	return time.Duration(delay)
}

// MaxAttempts returns the maximum number of attempts
func (p *ExponentialBackoffPolicy) MaxAttempts() int {
	return p.Attempts
}

// Retry runs op until it succeeds, the policy gives up, or ctx is done.
// The last error is returned.
func Retry(ctx context.Context, policy RetryPolicy, op func(ctx context.Context) error) error {
	if policy == nil {
		policy = NoRetry
	}
	var err error
	for attempt := 1; ; attempt++ {
		if err = op(ctx); err == nil {
			return nil
		}
		if !policy.ShouldRetry(err, attempt) {
			return err
		}
		timer := time.NewTimer(policy.RetryDelay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
}
