package errors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("attachment not found")
	ErrForbidden          = errors.New("caller does not own this attachment")
	ErrStateConflict      = errors.New("attachment state changed concurrently")
	ErrScannerUnavailable = errors.New("malware scanner unavailable")
	ErrProberUnavailable  = errors.New("media prober unavailable")
	ErrWorkerPanic        = errors.New("worker panic")
)

// ErrNotUploaded is returned by confirm when the object has not been written
// yet. A ValidationError sentinel: callers can match it with errors.Is while
// IsValidation still classifies it as a content-side rejection.
var ErrNotUploaded = &ValidationError{Reason: "not uploaded"}

// ValidationError means the content itself was rejected: unknown format,
// executable signature, declared/detected mismatch, oversized, corrupt,
// malware. It is terminal and carries a reason safe to surface to the owner.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func Validation(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// TransientError means infrastructure failed, not content. The worker retries
// these with backoff and dead-letters once the attempt budget is spent.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

func Transient(op string, err error) error {
	return &TransientError{Op: op, Err: err}
}

func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}
