package backend

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrNotFound is returned by Get and Delete for unknown keys.
var ErrNotFound = errors.New("record not found")

// TransientError marks a failure that is likely to succeed on retry, such as
// a network error, a timeout or a rate limit.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient backend error during %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err as a TransientError. A nil err stays nil.
func Transient(op string, err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Op: op, Err: err}
}

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// MismatchError reports a record stored in the wrong collection.
type MismatchError struct {
	Collection Collection
	Index      int
	Got        Collection
}

func (e *MismatchError) Error() string {
	if e.Got == "" {
		return fmt.Sprintf("nil record at index %d for collection %s", e.Index, e.Collection)
	}
	return fmt.Sprintf("record at index %d belongs to %s, not %s", e.Index, e.Got, e.Collection)
}
