package source

import (
	"fmt"
	"time"
)

// The fetch error taxonomy. Transient and rate-limited errors are retryable;
// permanent errors are not, but still count against the source's breaker
// because they indicate the source is unhealthy for this key.

// TransientError covers network failures, 5xx responses and anything else
// expected to clear on its own.
type TransientError struct {
	Platform string
	Err      error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: transient source error: %v", e.Platform, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// Retryable marks the error for the retry executor.
func (e *TransientError) Retryable() bool { return true }

// RateLimitedError is a 429 from the source. It carries the server's
// retry-after hint, which takes precedence over computed backoff.
type RateLimitedError struct {
	Platform   string
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("%s: rate limited (retry after %v)", e.Platform, e.RetryAfter)
}

func (e *RateLimitedError) Retryable() bool { return true }

// Hint returns the server-provided wait, zero when absent.
func (e *RateLimitedError) Hint() time.Duration { return e.RetryAfter }

// PermanentError covers non-429 4xx responses and malformed payloads.
// Retrying cannot help.
type PermanentError struct {
	Platform string
	Status   int
	Err      error
}

func (e *PermanentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: permanent source error (status %d): %v", e.Platform, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: permanent source error (status %d)", e.Platform, e.Status)
}

func (e *PermanentError) Unwrap() error { return e.Err }

func (e *PermanentError) Retryable() bool { return false }
