package generation

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// RetryPolicy bounds the retry loop around one generation request.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
}

// normalized returns the policy with unset fields replaced by safe values.
func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = time.Second
	}
	if p.Multiplier <= 0 {
		p.Multiplier = 2.0
	}
	return p
}

// Retry runs fn up to policy.MaxAttempts times with jittered exponential
// backoff between attempts (delay = base * multiplier^(attempt-1), ±10%).
// It returns nil on the first success, the last error once attempts are
// exhausted, or the context error if ctx is cancelled while waiting.
func Retry(ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) error) error {
	policy = policy.normalized()

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if attempt == policy.MaxAttempts {
			break
		}

		delay := float64(policy.BaseDelay) * math.Pow(policy.Multiplier, float64(attempt-1))
		jitter := delay * 0.1
		delay += jitter * (rand.Float64()*2 - 1)

		select {
		case <-time.After(time.Duration(delay)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}
