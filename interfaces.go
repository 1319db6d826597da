package e2ekit

import (
	"context"

	"github.com/studytab/e2ekit/internal/core"
)

// UserPool leases pre-provisioned test-user identities to parallel test
// workers, at most one worker per identity at a time.
//
// The pool is fixed-size: every identity exists from construction, and
// Acquire only ever hands out what Release (or Reset) has freed. All methods
// are safe for concurrent use by multiple goroutines.
type UserPool interface {
	// Acquire leases the first free identity to workerID and returns a copy
	// of it. The second return value is false when every identity is leased;
	// exhaustion is an expected state, not an error. Acquire never blocks.
	// Use WaitAcquire to poll for a free identity under a context.
	Acquire(workerID int) (Identity, bool)

	// Release frees the identity with the given ID. Releasing an identity
	// that is already free, or an ID the pool does not know, is a no-op, so
	// teardown paths can call it unconditionally.
	Release(identityID string)

	// ReleaseByOwner frees every identity leased to workerID and returns
	// how many it freed. Intended for worker teardown, where the worker may
	// hold several identities or none.
	ReleaseByOwner(workerID int) int

	// Status returns a point-in-time occupancy summary. Total is always
	// Available + InUse.
	Status() PoolStatus

	// Reset frees every identity without recreating them. Calling it while
	// workers still hold leases silently invalidates those leases; reserve
	// it for suite boundaries.
	Reset()
}

// Tracker records resources created in the application under test and
// deletes them in one cleanup pass afterwards, newest first.
//
// Deletion failures are data, not errors: Cleanup returns and records them
// in a ledger rather than aborting, because a cleanup pass that stops
// halfway leaks every remaining resource. All methods are safe for
// concurrent use by multiple goroutines.
type Tracker interface {
	// Track records a resource for later cleanup, stamping its TrackedAt
	// time. Duplicates are kept as-is. Panics if res.Via is not a
	// recognized DeleteVia value.
	Track(res TrackedResource)

	// All returns a copy of the currently tracked resources in tracking
	// order.
	All() []TrackedResource

	// Clear discards every tracked resource without any deletion calls.
	// The failure ledger is untouched.
	Clear()

	// Cleanup deletes the tracked resources newest first, one at a time,
	// retrying each with a fixed delay before recording it as failed. It
	// returns this batch's failures and consumes the batch: afterwards the
	// tracked list is empty, even when ctx was canceled mid-pass.
	//
	// API-channel resources are deleted through api; UI-channel resources
	// through ui, or skipped with a log line when ui is nil.
	Cleanup(ctx context.Context, api APIDeleter, ui UIDeleter) []FailedCleanup

	// HasFailures reports whether the failure ledger holds any entries.
	HasFailures() bool

	// Failures returns a copy of the failure ledger in recording order.
	// The ledger accumulates across Cleanup batches until ClearFailures.
	Failures() []FailedCleanup

	// ClearFailures empties the failure ledger. Tracked resources are
	// untouched.
	ClearFailures()

	// FailureReport renders the failure ledger as a human-readable
	// multi-line string for CI logs and teardown summaries.
	FailureReport() string
}

// APIDeleter deletes a tracked resource through the application's HTTP API.
// The apiclient package's Client satisfies this interface.
//
// APIDeleter is a type alias (not a named type) so that any implementation
// of [core.APIDeleter], including test fakes in other packages, satisfies
// it without conversion.
type APIDeleter = core.APIDeleter

// UIDeleter deletes a tracked resource by driving the application's
// interface. The browserfix package provides a Playwright-backed adapter.
//
// UIDeleter is a type alias for the same reason as [APIDeleter].
type UIDeleter = core.UIDeleter
