package worker

import (
	"errors"
	"fmt"
)

// PermanentError marks a job failure that retrying cannot fix: unknown job or
// target types, missing target rows, malformed persisted state. Permanent
// failures dead-letter on first occurrence instead of burning the retry
// budget.
type PermanentError struct {
	Reason string
	Cause  error
}

func (e *PermanentError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Cause)
	}
	return e.Reason
}

func (e *PermanentError) Unwrap() error {
	return e.Cause
}

// Permanent wraps an error as a permanent failure.
func Permanent(reason string, cause error) error {
	return &PermanentError{Reason: reason, Cause: cause}
}

// IsPermanent reports whether err carries a permanent failure anywhere in its
// chain.
func IsPermanent(err error) bool {
	var perm *PermanentError
	return errors.As(err, &perm)
}
