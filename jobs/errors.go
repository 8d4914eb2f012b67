package jobs

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrJobNotFound      = errors.New("job not found")
	ErrNotClaimed       = errors.New("job is not running")
	ErrNotReplayable    = errors.New("only failed jobs can be replayed")
	ErrRetriesExhausted = errors.New("retries exhausted")
)

// RetryableError marks a handler failure as transient. Delay overrides the
// pool's default backoff when positive.
type RetryableError struct {
	Err   error
	Delay time.Duration
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable: %v", e.Err)
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// Retryable wraps err so the pool requeues the job instead of failing it
func Retryable(err error, delay time.Duration) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err, Delay: delay}
}

// AsRetryable reports whether err asks for a retry
func AsRetryable(err error) (*RetryableError, bool) {
	var r *RetryableError
	if errors.As(err, &r) {
		return r, true
	}
	return nil, false
}

type missingHandlerError struct{ TaskName string }

func (e *missingHandlerError) Error() string {
	return "no handler registered for task " + e.TaskName
}

type panicError struct{ Val any }

func (e *panicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Val)
}
