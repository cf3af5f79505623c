// Package retry wraps fallible operations with bounded
// exponential-backoff-and-jitter retries. It is orthogonal to the circuit
// breaker: the breaker is the cross-call circuit, retry is the within-call
// resilience, and callers compose the two.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// Policy bounds one retried operation.
type Policy struct {
	MaxRetries    int           // retries after the initial attempt
	BaseDelay     time.Duration // first backoff step
	MaxDelay      time.Duration // backoff cap
	BackoffFactor float64       // growth per attempt, default 1.5
}

// DefaultPolicy matches the per-fetch defaults.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:    3,
		BaseDelay:     500 * time.Millisecond,
		MaxDelay:      10 * time.Second,
		BackoffFactor: 1.5,
	}
}

// retryable is implemented by errors that may clear on retry.
type retryable interface {
	Retryable() bool
}

// hinted is implemented by rate-limit errors carrying a server wait hint.
type hinted interface {
	Hint() time.Duration
}

// IsRetryable reports whether err is worth retrying.
func IsRetryable(err error) bool {
	var r retryable
	if errors.As(err, &r) {
		return r.Retryable()
	}
	return false
}

// Do runs op, retrying retryable failures up to policy.MaxRetries times
// (MaxRetries+1 attempts total). Non-retryable errors and context
// cancellation propagate immediately; otherwise the last error is returned
// once the budget is exhausted.
func Do[T any](ctx context.Context, policy Policy, op func(context.Context) (T, error)) (T, error) {
	var zero T
	factor := policy.BackoffFactor
	if factor <= 1 {
		factor = 1.5
	}

	var lastErr error
	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, delayFor(policy, factor, attempt-1, lastErr)); err != nil {
				return zero, err
			}
		}

		value, err := op(ctx)
		if err == nil {
			return value, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		if !IsRetryable(err) {
			return zero, err
		}
	}
	return zero, lastErr
}

// delayFor computes the sleep before the (attempt+1)th retry. A rate-limit
// hint from the server overrides the computed backoff. Jitter is a uniform
// factor in [0.5, 1.5) so concurrent callers do not storm in lockstep.
func delayFor(policy Policy, factor float64, attempt int, err error) time.Duration {
	var h hinted
	if errors.As(err, &h) {
		if hint := h.Hint(); hint > 0 {
			return hint
		}
	}

	jitter := 0.5 + rand.Float64()
	d := time.Duration(float64(policy.BaseDelay) * math.Pow(factor, float64(attempt)) * jitter)
	if policy.MaxDelay > 0 && d > policy.MaxDelay {
		d = policy.MaxDelay
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
