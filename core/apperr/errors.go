// Package apperr defines the error taxonomy shared by the core packages and
// the HTTP boundary.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput marks requests rejected before any repository or
	// provider call (missing mood, empty payload, out-of-range intensity).
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound is returned by repositories when a record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrNotConfigured matches every *ConfigurationError.
	ErrNotConfigured = errors.New("provider not configured")
)

// Invalid wraps ErrInvalidInput with a human readable reason.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// ConfigurationError means an external provider was selected but its
// credential or endpoint is missing. It is never downgraded to mock mode.
type ConfigurationError struct {
	Capability string
	Reason     string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Capability, e.Reason)
}

func (e *ConfigurationError) Is(target error) bool {
	return target == ErrNotConfigured
}

// ProviderError carries a non-success reply from the inference provider.
type ProviderError struct {
	Model      string
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error %d from %s: %s", e.StatusCode, e.Model, e.Body)
}
