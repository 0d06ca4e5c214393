package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrInvalidMaxRetries indicates a non-positive retry configuration.
var ErrInvalidMaxRetries = errors.New("max retries must be non-negative")

// ProviderError wraps an embedding provider failure with the HTTP-style
// status code (0 when the request never produced a response) so callers can
// distinguish transient from permanent failures.
type ProviderError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("embedding provider returned %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("embedding provider call failed: %s", e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Transient reports whether the failure is expected to succeed on retry.
// Rate limits and server-side errors are transient; client-side errors
// (auth, malformed request) are permanent. Failures with no status code are
// network-level and treated as transient.
func (e *ProviderError) Transient() bool {
	switch {
	case e.StatusCode == 0:
		return true
	case e.StatusCode == 429:
		return true
	case e.StatusCode >= 500:
		return true
	default:
		return false
	}
}

// IsTransient classifies an arbitrary error from an embedding call.
// Provider errors use their status code; timeouts and other network failures
// without a response are transient; anything else is permanent.
func IsTransient(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Transient()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	return false
}
