package common

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry(attempts int) RetryOptions {
	return RetryOptions{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2,
	}
}

func TestWithRetry(t *testing.T) {
	errBoom := errors.New("boom")

	tests := []struct {
		operation    func(attempt int) error
		wantErr      error
		name         string
		attempts     int
		wantAttempts int
	}{
		{
			name:         "succeeds first try",
			attempts:     3,
			operation:    func(int) error { return nil },
			wantAttempts: 1,
		},
		{
			name:     "succeeds after transient failures",
			attempts: 3,
			operation: func(attempt int) error {
				if attempt < 3 {
					return Transient(errBoom)
				}
				return nil
			},
			wantAttempts: 3,
		},
		{
			name:         "permanent error stops immediately",
			attempts:     3,
			operation:    func(int) error { return Permanent(errBoom) },
			wantErr:      errBoom,
			wantAttempts: 1,
		},
		{
			name:         "plain error is not retried",
			attempts:     3,
			operation:    func(int) error { return errBoom },
			wantErr:      errBoom,
			wantAttempts: 1,
		},
		{
			name:         "invalid response exhausts retries",
			attempts:     2,
			operation:    func(int) error { return fmt.Errorf("parse: %w", ErrInvalidResponse) },
			wantErr:      ErrMaxRetries,
			wantAttempts: 2,
		},
		{
			name:         "per-call timeout is retried",
			attempts:     2,
			operation:    func(int) error { return context.DeadlineExceeded },
			wantErr:      context.DeadlineExceeded,
			wantAttempts: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := WithRetry(context.Background(), func(attempt int) error {
				calls++
				assert.Equal(t, calls, attempt)
				return tt.operation(attempt)
			}, fastRetry(tt.attempts))

			assert.Equal(t, tt.wantAttempts, calls)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestWithRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := WithRetry(ctx, func(int) error {
		calls++
		cancel()
		return Transient(errors.New("flaky"))
	}, fastRetry(5))

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(ErrRateLimit))
	assert.True(t, IsRetryable(fmt.Errorf("wrapped: %w", ErrInvalidResponse)))
	assert.True(t, IsRetryable(Transient(errors.New("503"))))
	assert.False(t, IsRetryable(Permanent(ErrRateLimit)))
	assert.False(t, IsRetryable(errors.New("401 unauthorized")))
	assert.False(t, IsRetryable(context.Canceled))
}

func TestStageError(t *testing.T) {
	assert.NoError(t, NewStageError("prepare", nil))

	err := NewStageError("classify", &StageError{Stage: "classify", Vendor: "joes bar", Err: ErrClassificationFailed})
	assert.EqualError(t, err, `stage classify failed for vendor "joes bar": classification failed`)
	assert.ErrorIs(t, err, ErrClassificationFailed)

	err = NewStageError("evaluate", ErrMissingArtifact)
	assert.EqualError(t, err, "stage evaluate failed: missing stage artifact")

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, "evaluate", stageErr.Stage)
}
