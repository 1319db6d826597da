package e2ekit

import "time"

// Default configuration values for NewUserPool, SharedPool, NewTracker and
// WaitAcquire. These constants are exported so callers can reference the
// defaults when building custom configurations relative to them (e.g.,
// 2 * DefaultRetryDelay).
const (
	// DefaultPoolSize is the number of identities a pool is built with when
	// WithPoolSize is not given. Four matches the worker count most test
	// runners default to on CI machines.
	DefaultPoolSize = 4

	// DefaultEmailPattern is the pattern identity emails are generated from.
	// The "{n}" placeholder is replaced with the identity's 1-based position.
	DefaultEmailPattern = "testuser{n}@example.com"

	// DefaultPassword is the password assigned to every identity when
	// WithDefaultPassword is not given. It matches the credentials test
	// environments are commonly seeded with.
	DefaultPassword = "Test123!"

	// DefaultMaxAttempts is how many times Cleanup tries to delete each
	// resource before recording it as a failure.
	DefaultMaxAttempts = 3

	// DefaultRetryDelay is the fixed pause between consecutive delete
	// attempts on the same resource during Cleanup.
	DefaultRetryDelay = time.Second

	// DefaultWaitPollInterval is the interval WaitAcquire re-checks the pool
	// at when no identity is free. Kept short so a released identity is
	// picked up quickly without hammering the pool mutex.
	DefaultWaitPollInterval = 100 * time.Millisecond
)
