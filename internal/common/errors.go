// Package common provides shared utilities and types used across the application.
package common

import (
	"context"
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Input errors.
	ErrMissingInput     = errors.New("missing input")
	ErrUnreadableInput  = errors.New("unreadable input")
	ErrMissingArtifact  = errors.New("missing stage artifact")
	ErrMalformedEvalSet = errors.New("malformed evaluation set")

	// Classification errors.
	ErrNoVendors            = errors.New("no vendors to classify")
	ErrClassificationFailed = errors.New("classification failed")
	ErrInvalidResponse      = errors.New("invalid classification response")

	// Configuration errors.
	ErrMissingConfig  = errors.New("missing configuration")
	ErrInvalidConfig  = errors.New("invalid configuration")
	ErrUnknownCompany = errors.New("unknown company")
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

// StageError names the pipeline stage, and the vendor when one is involved,
// that produced a fatal error.
type StageError struct {
	Err    error
	Stage  string
	Vendor string
}

func (e *StageError) Error() string {
	if e.Vendor != "" {
		return fmt.Sprintf("stage %s failed for vendor %q: %v", e.Stage, e.Vendor, e.Err)
	}
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// NewStageError wraps err with the stage that produced it.
func NewStageError(stage string, err error) error {
	if err == nil {
		return nil
	}
	var existing *StageError
	if errors.As(err, &existing) && existing.Stage == stage {
		return err
	}
	return &StageError{Stage: stage, Err: err}
}

// IsRetryable determines if an error should trigger a retry. An explicit
// Permanent or Transient mark wins over the wrapped sentinel.
func IsRetryable(err error) bool {
	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}

	return errors.Is(err, ErrRateLimit) ||
		errors.Is(err, ErrInvalidResponse) ||
		errors.Is(err, context.DeadlineExceeded)
}
