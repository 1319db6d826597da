package e2ekit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/studytab/e2ekit/internal/core"
)

// Singleton state for SharedPool. The first call creates the pool;
// subsequent calls return the same instance and log a warning.
//
// sharedMu protects both sharedPool and sharedOnce so that
// resetForTesting (used in tests) is concurrency-safe with SharedPool.
var (
	sharedMu   sync.Mutex
	sharedPool UserPool
	sharedOnce sync.Once
)

// Compile-time interface satisfaction checks.
var (
	_ UserPool = (*poolWrapper)(nil)
	_ Tracker  = (*trackerWrapper)(nil)
)

// poolWrapper wraps core.Pool to implement the UserPool interface.
// It is the concrete type returned by NewUserPool and SharedPool.
//
// The core.Pool is stored as a named (unexported) field rather than embedded
// to prevent callers from using type assertions to reach methods that may be
// added to core.Pool without being part of the public UserPool interface.
type poolWrapper struct {
	pool *core.Pool
}

// Acquire wraps core.Pool.Acquire.
func (w *poolWrapper) Acquire(workerID int) (Identity, bool) {
	return w.pool.Acquire(workerID)
}

// Release wraps core.Pool.Release.
func (w *poolWrapper) Release(identityID string) {
	w.pool.Release(identityID)
}

// ReleaseByOwner wraps core.Pool.ReleaseByOwner.
func (w *poolWrapper) ReleaseByOwner(workerID int) int {
	return w.pool.ReleaseByOwner(workerID)
}

// Status wraps core.Pool.Status.
func (w *poolWrapper) Status() PoolStatus {
	return w.pool.Status()
}

// Reset wraps core.Pool.Reset.
func (w *poolWrapper) Reset() {
	w.pool.Reset()
}

// trackerWrapper wraps core.Tracker to implement the Tracker interface.
//
// The core.Tracker is stored as a named (unexported) field for the same
// reason as poolWrapper.
type trackerWrapper struct {
	tr *core.Tracker
}

// Track wraps core.Tracker.Track.
func (w *trackerWrapper) Track(res TrackedResource) {
	w.tr.Track(res)
}

// All wraps core.Tracker.All.
func (w *trackerWrapper) All() []TrackedResource {
	return w.tr.All()
}

// Clear wraps core.Tracker.Clear.
func (w *trackerWrapper) Clear() {
	w.tr.Clear()
}

// Cleanup wraps core.Tracker.Cleanup.
func (w *trackerWrapper) Cleanup(ctx context.Context, api APIDeleter, ui UIDeleter) []FailedCleanup {
	return w.tr.Cleanup(ctx, api, ui)
}

// HasFailures wraps core.Tracker.HasFailures.
func (w *trackerWrapper) HasFailures() bool {
	return w.tr.HasFailures()
}

// Failures wraps core.Tracker.Failures.
func (w *trackerWrapper) Failures() []FailedCleanup {
	return w.tr.Failures()
}

// ClearFailures wraps core.Tracker.ClearFailures.
func (w *trackerWrapper) ClearFailures() {
	w.tr.ClearFailures()
}

// FailureReport wraps core.Tracker.FailureReport.
func (w *trackerWrapper) FailureReport() string {
	return w.tr.FailureReport()
}

// defaultPoolConfig returns a poolConfig populated with all default values.
// Both the constructors and test helpers use this to avoid duplicating the
// default field assignments.
func defaultPoolConfig() poolConfig {
	return poolConfig{core.PoolConfig{
		PoolSize:        DefaultPoolSize,
		EmailPattern:    DefaultEmailPattern,
		DefaultPassword: DefaultPassword,
	}}
}

// defaultTrackerConfig returns a trackerConfig populated with all default
// values. Project stays empty: resources carry their own project tag unless
// WithProject is given.
func defaultTrackerConfig() trackerConfig {
	return trackerConfig{core.TrackerConfig{
		MaxAttempts: DefaultMaxAttempts,
		RetryDelay:  DefaultRetryDelay,
	}}
}

// resetForTesting resets the singleton state so that the next call to
// SharedPool creates a fresh pool. This follows the Go stdlib pattern
// (e.g., net/http/internal) for enabling test isolation within a single
// binary. It must only be called from tests.
func resetForTesting() {
	sharedMu.Lock()
	defer sharedMu.Unlock()

	sharedPool = nil
	sharedOnce = sync.Once{}
}

// NewUserPool creates an independent fixed-size pool of test-user identities.
// All identities are built up front from the configured email pattern, and
// Acquire leases from that set without blocking. Use SharedPool instead when
// every suite in the process should lease from the same pool.
//
// Panics if any option receives an invalid value. See individual With*
// functions for constraints.
//
//nolint:ireturn // Returns UserPool interface by design for testability (mockable).
func NewUserPool(opts ...PoolOption) UserPool {
	cfg := defaultPoolConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &poolWrapper{pool: core.NewPool(cfg.toCoreConfig())}
}

// SharedPool returns the process-level singleton UserPool.
//
// The first call creates the pool with the given options and stores it.
// Subsequent calls return the same instance, options are ignored and a
// warning is logged. Parallel test workers in one binary coordinate through
// this pool without any of them owning its construction.
//
// Panics if any option receives an invalid value. See individual With*
// functions for constraints.
//
//nolint:ireturn // Returns UserPool interface by design for testability (mockable).
func SharedPool(opts ...PoolOption) UserPool {
	sharedMu.Lock()
	defer sharedMu.Unlock()

	// created is written inside the Do closure and read after Do returns.
	// sync.Once guarantees the closure completes (happens-before) Do returns,
	// so the write is visible here without additional synchronization.
	created := false
	sharedOnce.Do(func() {
		sharedPool = NewUserPool(opts...)
		created = true
	})
	if !created {
		core.Logger().Warn("SharedPool called more than once; returning existing pool (options ignored)")
	}
	return sharedPool
}

// NewTracker creates a Tracker for recording and cleaning up resources the
// tests create in the application under test. Trackers are independent;
// suites that share resources should share one tracker.
//
// Panics if any option receives an invalid value. See individual With*
// functions for constraints.
//
//nolint:ireturn // Returns Tracker interface by design for testability (mockable).
func NewTracker(opts ...TrackerOption) Tracker {
	cfg := defaultTrackerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &trackerWrapper{tr: core.NewTracker(cfg.toCoreConfig())}
}

// WaitAcquire repeatedly tries pool.Acquire for workerID until an identity
// becomes free or ctx is done, polling at pollInterval. It always makes at
// least one Acquire attempt, even when ctx is already done, so a free
// identity is never refused.
//
// On context expiry the returned error wraps both ErrPoolExhausted and the
// context error; callers can test for either with errors.Is.
//
// Panics if pool is nil or pollInterval <= 0.
func WaitAcquire(ctx context.Context, pool UserPool, workerID int, pollInterval time.Duration) (Identity, error) {
	if pool == nil {
		panic("e2ekit: WaitAcquire called with nil pool")
	}
	requirePositive("poll interval", pollInterval)

	// Single timer reused via Reset to avoid per-poll time.After leaks.
	timer := time.NewTimer(pollInterval)
	timer.Stop()
	defer timer.Stop()

	for {
		if id, ok := pool.Acquire(workerID); ok {
			return id, nil
		}

		timer.Reset(pollInterval)
		select {
		case <-ctx.Done():
			// Drain the timer to avoid leaking it after context cancellation.
			if !timer.Stop() {
				<-timer.C
			}
			return Identity{}, fmt.Errorf("%w for worker %d: %w", ErrPoolExhausted, workerID, ctx.Err())
		case <-timer.C:
		}
	}
}
