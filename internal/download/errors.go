package download

import (
	"context"
	"errors"
	"fmt"
)

// DelegateError wraps a failure reported by the extraction delegate.
// Recoverable failures (network drops, transient extraction errors) are worth
// retrying; everything else is terminal on first sight.
type DelegateError struct {
	Recoverable bool
	Err         error
}

func (e *DelegateError) Error() string {
	if e.Recoverable {
		return fmt.Sprintf("delegate error (recoverable): %v", e.Err)
	}
	return fmt.Sprintf("delegate error: %v", e.Err)
}

func (e *DelegateError) Unwrap() error {
	return e.Err
}

// Recoverable marks err as a transient delegate failure.
func Recoverable(err error) error {
	if err == nil {
		return nil
	}
	return &DelegateError{Recoverable: true, Err: err}
}

// Fatal marks err as a terminal delegate failure.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &DelegateError{Err: err}
}

// IsRecoverable reports whether err should be retried. Context cancellation
// is never recoverable, regardless of how the delegate wrapped it.
func IsRecoverable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var de *DelegateError
	if errors.As(err, &de) {
		return de.Recoverable
	}
	return false
}
