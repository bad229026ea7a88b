package faults

import (
	"errors"
	"fmt"
)

// ErrNotConfigured means a provider is missing credentials. The caller
// decides whether to disable the provider or degrade, it is never retried.
var ErrNotConfigured = errors.New("provider not configured")

// TransientError marks a provider failure worth retrying (timeout, 5xx,
// rate limit).
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError marks a provider failure that will not succeed on retry
// (4xx other than rate limit, unparseable response).
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Transient wraps err as retryable.
func Transient(format string, args ...interface{}) error {
	return &TransientError{Err: fmt.Errorf(format, args...)}
}

// Permanent wraps err as non-retryable.
func Permanent(format string, args ...interface{}) error {
	return &PermanentError{Err: fmt.Errorf(format, args...)}
}

// IsTransient reports whether err should be retried. Unclassified errors
// default to transient so network-level failures get the retry budget.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var perm *PermanentError
	if errors.As(err, &perm) {
		return false
	}
	return true
}

// IsPermanent reports whether err is explicitly non-retryable.
func IsPermanent(err error) bool {
	var perm *PermanentError
	return errors.As(err, &perm)
}
