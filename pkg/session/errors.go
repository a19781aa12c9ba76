package session

import (
	"errors"
	"fmt"
)

// Sentinel errors for the session package.
var (
	// ErrMissingBaseURL indicates no token endpoint was configured.
	ErrMissingBaseURL = errors.New("session: base URL is required")

	// ErrEmptyToken indicates the endpoint returned no usable token.
	ErrEmptyToken = errors.New("session: endpoint returned an empty token")
)

// APIError represents an error response from the token endpoint.
type APIError struct {
	// StatusCode is the HTTP status code.
	StatusCode int

	// Code is the error code from the API, when present.
	Code string

	// Message is the human-readable error message.
	Message string

	// Retryable indicates if the request can be retried.
	Retryable bool
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("session: API error [%s]: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("session: API error (HTTP %d): %s", e.StatusCode, e.Message)
}

// IsRetryable returns true if the error can be retried.
func (e *APIError) IsRetryable() bool {
	return e.Retryable
}

// NewAPIError creates a new APIError. Rate-limit and server errors are
// marked retryable.
func NewAPIError(statusCode int, code, message string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		Code:       code,
		Message:    message,
		Retryable:  statusCode == 429 || statusCode >= 500,
	}
}

// IsRetryable returns true if the error can be retried.
func IsRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsRetryable()
	}
	return false
}
