package bgclient

import (
	"errors"
	"fmt"
)

// ErrUnknownService is wrapped by ConfigurationError so callers can test
// for the unknown-service case with errors.Is.
var ErrUnknownService = errors.New("unknown service")

// ConfigurationError reports a misconfigured or unknown logical service.
// It is fatal for the call it occurs on: it is surfaced immediately and
// never retried or failed over.
type ConfigurationError struct {
	Service ServiceName
	Reason  string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("service %q: %s", e.Service, e.Reason)
}

// Unwrap makes errors.Is(err, ErrUnknownService) work.
func (e *ConfigurationError) Unwrap() error {
	return ErrUnknownService
}

// HTTPError represents an error with an associated HTTP status code.
// Many HTTP client libraries provide errors that implement this interface.
type HTTPError interface {
	error
	StatusCode() int
}

// StatusCodeError wraps an error with an HTTP status code.
// Use this when surfacing a failed response as an error value so the
// classifier can still see the status.
type StatusCodeError struct {
	Err  error
	Code int
}

// Error implements the error interface.
func (e *StatusCodeError) Error() string {
	return e.Err.Error()
}

// Unwrap implements error unwrapping for errors.Is and errors.As.
func (e *StatusCodeError) Unwrap() error {
	return e.Err
}

// StatusCode returns the HTTP status code. This implements HTTPError.
func (e *StatusCodeError) StatusCode() int {
	return e.Code
}

// NewStatusCodeError creates a new StatusCodeError.
func NewStatusCodeError(statusCode int, err error) error {
	return &StatusCodeError{Code: statusCode, Err: err}
}

// extractStatusCode attempts to extract an HTTP status code from an error.
func extractStatusCode(err error) int {
	var httpErr HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode()
	}

	type httpStatusProvider interface {
		StatusCode() int
	}
	var statusProvider httpStatusProvider
	if errors.As(err, &statusProvider) {
		return statusProvider.StatusCode()
	}

	return 0
}
