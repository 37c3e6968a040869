// Package common provides shared utilities and types used across the application.
package common

import (
	"context"
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Session errors.
	ErrNotAuthenticated  = errors.New("not authenticated")
	ErrInvalidCredential = errors.New("invalid credentials")

	// Fetch errors.
	ErrNetwork       = errors.New("network error")
	ErrBackend       = errors.New("backend error")
	ErrStaleResponse = errors.New("stale response")
	ErrCircuitOpen   = errors.New("backend unavailable")

	// Storage errors.
	ErrNotFound       = errors.New("not found")
	ErrDuplicateEntry = errors.New("duplicate entry")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// ErrorKind is the coarse classification a feed surfaces to its renderer.
type ErrorKind string

// Error kinds.
const (
	KindNone    ErrorKind = ""
	KindNetwork ErrorKind = "network"
	KindBackend ErrorKind = "backend"
	KindStale   ErrorKind = "stale"
)

// BackendError is a non-2xx response carrying the backend's message.
type BackendError struct {
	Message    string
	StatusCode int
}

func (e *BackendError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, e.Message)
}

// Unwrap lets errors.Is match ErrBackend.
func (e *BackendError) Unwrap() error {
	return ErrBackend
}

// Classify maps a fetch error onto an ErrorKind.
// Anything that is neither a backend answer nor a superseded response is a network failure.
func Classify(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrStaleResponse):
		return KindStale
	case errors.Is(err, ErrBackend):
		return KindBackend
	default:
		return KindNetwork
	}
}

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}

// IsRetryable determines if an error should trigger a retry.
func IsRetryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}

	var backendErr *BackendError
	if errors.As(err, &backendErr) {
		return backendErr.StatusCode >= 500
	}

	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}

	return errors.Is(err, ErrNetwork) || errors.Is(err, context.DeadlineExceeded)
}
