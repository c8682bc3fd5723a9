package push

import (
	"errors"
	"fmt"
)

// Error taxonomy. The initialization controller retries transient failures
// (timeouts, network errors) and stops on terminal ones (denial, missing
// channel capability).
var (
	// ErrPermissionDenied means the user or OS refused notifications. Not
	// retried automatically; the UI explains how to re-enable.
	ErrPermissionDenied = errors.New("push: permission denied")

	// ErrTimeout means a bounded async step exceeded its deadline. A timeout
	// does not imply the user refused, so it stays retryable.
	ErrTimeout = errors.New("push: operation timed out")

	// ErrChannelUnavailable means the platform push capability is missing
	// entirely, e.g. an unsupported browser.
	ErrChannelUnavailable = errors.New("push: delivery channel unavailable")

	// ErrInvalidState means an operation requiring the active phase ran
	// before initialization completed.
	ErrInvalidState = errors.New("push: service not active")
)

// NetworkError wraps a failed backend call with enough context to decide on
// retry policy. StatusCode is zero for transport-level failures.
type NetworkError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("push: %s: backend returned %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("push: %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// IsTerminal reports whether err should stop the initialization retry loop.
func IsTerminal(err error) bool {
	return errors.Is(err, ErrPermissionDenied) || errors.Is(err, ErrChannelUnavailable)
}
