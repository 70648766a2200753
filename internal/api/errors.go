package api

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrSessionExpired is returned when a 401 could not be recovered by
	// refreshing the credentials. Stored tokens have been cleared.
	ErrSessionExpired = errors.New("session expired")

	// ErrCanceled is returned when the caller's context was cancelled.
	// It is a silent completion, not a failure to report.
	ErrCanceled = errors.New("request canceled")
)

// StatusError is a non-2xx response from the backend.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d on %s %s: %s", e.StatusCode, e.Method, e.Path, e.Body)
}

// IsCanceled reports whether err is a cancellation rather than a failure.
func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled) || errors.Is(err, context.Canceled)
}

// IsStatus reports whether err carries the given HTTP status code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}
