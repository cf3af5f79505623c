package scan

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a scan id is unknown or already reaped.
var ErrNotFound = errors.New("scan not found")

// ErrShuttingDown is returned by StartScan after Shutdown.
var ErrShuttingDown = errors.New("scanner is shutting down")

// ConfigurationError means a requested platform has no registered client.
// It is a precondition failure: the scan fails before any fetching starts,
// unlike per-fetch errors which only degrade that source.
type ConfigurationError struct {
	Platform string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("no data source client registered for platform %q", e.Platform)
}

// TimeoutError marks a scan that hit its deadline. Scan-level only; a
// per-fetch timeout surfaces as a transient source error instead.
type TimeoutError struct {
	ScanID string
	Limit  string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("scan %s timed out after %s", e.ScanID, e.Limit)
}
