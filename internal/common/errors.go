// Package common provides shared utilities and types used across the engine.
package common

import (
	"context"
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Database errors.
	ErrNotFound       = errors.New("not found")
	ErrDuplicateEntry = errors.New("duplicate entry")

	// Data-source errors.
	ErrActivitySource = errors.New("activity source unavailable")

	// Configuration errors.
	ErrMissingConfig     = errors.New("missing configuration")
	ErrInvalidThresholds = errors.New("invalid threshold configuration")

	// Issuance errors.
	ErrBadgeMint        = errors.New("badge mint failed")
	ErrArtifactDelivery = errors.New("artifact delivery failed")
	ErrDuplicateMint    = errors.New("badge already minted")
)

// UserError represents an error that should be shown to the operator.
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

// NewUserError creates a new operator-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}

// IsRetryable determines if an error should trigger a retry. Timeouts on
// data-source and issuance calls are retryable failures, not evidence that
// no transition occurred.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrActivitySource) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}

	return false
}
