package bridge

import (
	"errors"
	"fmt"
)

var (
	ErrInsufficientValidators = errors.New("insufficient live validators to reach quorum")
	ErrNotRefundable          = errors.New("transaction is not refundable")
	ErrNotRetryable           = errors.New("transaction is not retryable")
	ErrRetryLimitReached      = fmt.Errorf("%w: retry limit reached", ErrNotRetryable)
	ErrNotCancellable         = errors.New("transaction is not cancellable")
	ErrExpired                = errors.New("expired")
	ErrConcurrentUpdate       = errors.New("transaction was modified concurrently")
	ErrClaimed                = errors.New("transaction is being processed by another worker")
)

// ValidationError rejects a request before any state is created.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// LockFailedError means the source chain rejected the transfer. Nothing entered custody.
type LockFailedError struct {
	TransactionID string
	Err           error
}

func (e *LockFailedError) Error() string {
	return fmt.Sprintf("lock failed for transaction %s: %s", e.TransactionID, e.Err)
}

func (e *LockFailedError) Unwrap() error {
	return e.Err
}
