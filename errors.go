package e2ekit

import "github.com/studytab/e2ekit/internal/sentinel"

// Sentinel errors for error inspection with errors.Is.
// These are immutable constants safe for use in wrapped error chain comparison.
const (
	// ErrPoolExhausted is returned by WaitAcquire when the context expires
	// before a free identity becomes available. The returned error wraps the
	// context's error as well, so both errors.Is(err, ErrPoolExhausted) and
	// errors.Is(err, context.DeadlineExceeded) hold.
	//
	// Acquire does not return this error: a full pool is an expected state
	// there and is reported through its boolean result instead.
	ErrPoolExhausted = sentinel.Error("user pool exhausted")
)
