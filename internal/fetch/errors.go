// Package fetch defines the error taxonomy shared by all external data
// clients, and a bounded retry helper for the transient class.
//
// Classes:
//   - TransientError: network failure or 5xx. Retry with backoff, bounded
//     attempts, then skip the unit of work and count it.
//   - ErrRateLimited: the source is throttling us. Never retried inside a
//     run; the caller aborts the remainder of the run instead.
//   - ParseError: malformed payload. Skip the single record, count it,
//     continue.
package fetch

import (
	"errors"
	"fmt"
)

// ErrRateLimited indicates the external source rejected the call because
// of rate limiting. Continuing the run would compound the block.
var ErrRateLimited = errors.New("rate limited by external source")

// TransientError wraps a retryable fetch failure (network error, 5xx).
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient fetch error: %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err as a TransientError.
func Transient(op string, err error) error {
	return &TransientError{Op: op, Err: err}
}

// IsTransient reports whether err is retryable.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// ParseError wraps a malformed or unexpected payload.
type ParseError struct {
	Op  string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error: %s: %v", e.Op, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parse wraps err as a ParseError.
func Parse(op string, err error) error {
	return &ParseError{Op: op, Err: err}
}
