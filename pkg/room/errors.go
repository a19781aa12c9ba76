package room

import (
	"errors"
	"fmt"
)

// Sentinel errors for the room package.
var (
	// ErrMissingURL indicates no room server address was provided.
	ErrMissingURL = errors.New("room: server URL is required")

	// ErrNotConnected indicates the client is not connected.
	ErrNotConnected = errors.New("room: not connected")

	// ErrAlreadyConnected indicates Connect was called twice.
	ErrAlreadyConnected = errors.New("room: already connected")

	// ErrClosed indicates the client was closed.
	ErrClosed = errors.New("room: client closed")

	// ErrReconnectExhausted indicates the bounded reconnect loop gave up.
	ErrReconnectExhausted = errors.New("room: reconnect attempts exhausted")
)

// ConnectionError represents a websocket connection failure.
type ConnectionError struct {
	// Reason describes why the connection failed.
	Reason string

	// Cause is the underlying error.
	Cause error

	// Retryable indicates if reconnection should be attempted.
	Retryable bool
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("room: connection error: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("room: connection error: %s", e.Reason)
}

// Unwrap returns the underlying cause.
func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

// IsRetryable returns true if reconnection should be attempted.
func (e *ConnectionError) IsRetryable() bool {
	return e.Retryable
}

// IsRetryable returns true if the error can be retried.
func IsRetryable(err error) bool {
	var connErr *ConnectionError
	if errors.As(err, &connErr) {
		return connErr.IsRetryable()
	}
	return false
}
