// Package common provides shared utilities and types used across the application.
package common

import (
	"context"
	"errors"
	"fmt"
)

// Error kinds. Callers wrap these with fmt.Errorf("...: %w") and test with errors.Is.
var (
	// ErrTransport indicates the oracle or a backend could not be reached or answered non-2xx.
	ErrTransport = errors.New("transport error")
	// ErrFormat indicates an oracle response could not be parsed into the expected structure.
	ErrFormat = errors.New("format error")
	// ErrValidation covers missing configuration keys, unknown categories and rejected statements.
	ErrValidation = errors.New("validation error")
	// ErrPersistence indicates a storage read or write failed.
	ErrPersistence = errors.New("persistence error")
	// ErrNotImplemented is returned for dialect tags with no backend.
	ErrNotImplemented = errors.New("not implemented")
	// ErrRetriesExhausted is returned once bounded retries give up.
	ErrRetriesExhausted = errors.New("retries exhausted")

	ErrNotFound      = errors.New("not found")
	ErrJobInProgress = errors.New("classification already in progress for this file")

	// ErrRateLimit indicates that the API rate limit has been exceeded.
	ErrRateLimit = errors.New("rate limit exceeded")
)

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

// UserMessage returns the message meant for callers, falling back to the error text.
func UserMessage(err error) string {
	var userErr *UserError
	if errors.As(err, &userErr) {
		return userErr.UserMessage
	}
	return err.Error()
}

// IsRetryable determines if an error should trigger a retry.
func IsRetryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}

	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}

	return errors.Is(err, ErrRateLimit) ||
		errors.Is(err, ErrTransport) ||
		errors.Is(err, context.DeadlineExceeded)
}
