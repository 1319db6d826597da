package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// APIDeleter deletes a tracked resource through the application's HTTP API.
// The path and method come from the resource's tracking record; an empty
// method means DELETE.
type APIDeleter interface {
	DeleteResource(ctx context.Context, path, method string) error
}

// UIDeleter deletes a tracked resource by driving the application's
// interface. Implementations wrap whatever page automation the suite uses.
type UIDeleter interface {
	DeleteResource(ctx context.Context, res TrackedResource) error
}

// TrackedResource records one resource a test created in the application
// under test, with everything cleanup needs to delete it later.
type TrackedResource struct {
	// Kind is the application-level resource type, e.g. "deck" or "upload".
	Kind string
	// ID is the resource's identifier in the application under test.
	ID string
	// Name is an optional human-readable label carried into logs and the
	// failure report.
	Name string
	// Via selects the deletion channel.
	Via DeleteVia
	// Path is the deletion endpoint, required when Via is DeleteViaAPI.
	Path string
	// Method is the HTTP verb for the deletion call. Empty means DELETE;
	// some endpoints expose deletion as POST.
	Method string
	// Project tags which suite or area created the resource.
	Project string
	// TrackedAt is stamped by Track with the time the resource was recorded.
	TrackedAt time.Time
}

// FailedCleanup records one resource that survived every deletion attempt of
// a cleanup batch.
type FailedCleanup struct {
	Resource TrackedResource
	// Err is the terminal error from the last attempt, or the context error
	// when the batch was canceled before the resource was tried.
	Err      error
	FailedAt time.Time
	// Attempts is how many deletion attempts were actually made. Zero means
	// the batch was canceled before this resource's first attempt.
	Attempts int
}

// Tracker accumulates resources created during tests and deletes them in a
// single cleanup pass afterwards. Deletion runs newest-first, one resource
// at a time: children are typically created after their parents, so reverse
// order deletes dependents before the things they depend on, and sequential
// execution keeps the application from seeing its own teardown race.
//
// Deletion failures are recorded in a ledger instead of being returned as
// errors: cleanup runs in teardown, where an aborted pass would leak every
// remaining resource. Callers inspect the ledger via HasFailures, Failures
// and FailureReport.
//
// It is safe for concurrent use by multiple goroutines.
type Tracker struct {
	// mu protects resources and failures from concurrent access.
	mu sync.Mutex

	// resources is the current batch, in tracking order. Cleanup takes
	// ownership of the whole slice and processes it back to front.
	resources []TrackedResource

	// failures is the ledger of exhausted deletions. It accumulates across
	// cleanup batches until ClearFailures.
	failures []FailedCleanup

	cfg TrackerConfig
}

// NewTracker creates a Tracker with the given config.
// Panics if cfg is invalid, since invalid config is a programmer error.
func NewTracker(cfg TrackerConfig) *Tracker {
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("e2ekit: invalid tracker config: %v", err))
	}
	return &Tracker{cfg: cfg}
}

// Track records a resource for later cleanup. It stamps TrackedAt, applies
// the tracker's default project tag when the resource carries none, and
// appends. Duplicates are not detected, since tracking the same external
// resource twice only makes the second deletion a no-op worth retrying.
//
// Panics if res.Via is not a recognized DeleteVia value.
func (t *Tracker) Track(res TrackedResource) {
	if !res.Via.IsValid() {
		panic(fmt.Sprintf("e2ekit: Track called with invalid delete channel %v", res.Via))
	}

	res.TrackedAt = time.Now()
	if res.Project == "" {
		res.Project = t.cfg.Project
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.resources = append(t.resources, res)
	Logger().Debug("resource tracked",
		"kind", res.Kind, "id", res.ID, "via", res.Via, "tracked", len(t.resources))
}

// All returns a copy of the currently tracked resources in tracking order.
func (t *Tracker) All() []TrackedResource {
	t.mu.Lock()
	defer t.mu.Unlock()
	cp := make([]TrackedResource, len(t.resources))
	copy(cp, t.resources)
	return cp
}

// Clear discards every tracked resource without attempting any deletion.
// The failure ledger is untouched.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n := len(t.resources); n > 0 {
		Logger().Debug("tracked resources discarded", "count", n)
	}
	t.resources = nil
}

// Cleanup deletes every tracked resource, newest first, and returns the
// resources that survived all attempts. Each resource gets up to
// cfg.MaxAttempts tries with a fixed cfg.RetryDelay pause in between; a
// resource that exhausts its attempts is recorded in the failure ledger and
// the pass moves on; one stubborn resource never blocks the rest.
//
// API-channel resources are deleted through api; UI-channel resources
// through ui, or skipped with a log line when ui is nil (driving the
// interface is the suite's concern, not the tracker's).
//
// Cleanup takes ownership of the current batch up front: resources tracked
// while it runs belong to the next batch, and the batch is consumed even
// when ctx is canceled mid-pass. On cancellation the resource being tried
// keeps its attempt count and every untried resource is recorded with the
// context error and zero attempts.
//
// The returned slice holds this batch's failures only; the ledger keeps
// accumulating across batches until ClearFailures.
func (t *Tracker) Cleanup(ctx context.Context, api APIDeleter, ui UIDeleter) []FailedCleanup {
	t.mu.Lock()
	batch := t.resources
	t.resources = nil
	t.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	batchID := uuid.NewString()
	log := Logger().With("batch", batchID)
	log.Info("cleanup started", "resources", len(batch))

	// Single timer reused via Reset to avoid per-retry time.After leaks.
	retryTimer := time.NewTimer(t.cfg.RetryDelay)
	retryTimer.Stop()
	defer retryTimer.Stop()

	var failed []FailedCleanup
	deleted := 0

	for i := len(batch) - 1; i >= 0; i-- {
		res := batch[i]

		if err := ctx.Err(); err != nil {
			failed = append(failed, FailedCleanup{
				Resource: res,
				Err:      fmt.Errorf("cleanup canceled before attempt: %w", err),
				FailedAt: time.Now(),
				Attempts: 0,
			})
			continue
		}

		attempts := 0
		var lastErr error
		for attempts < t.cfg.MaxAttempts {
			attempts++
			lastErr = t.deleteOne(ctx, api, ui, res)
			if lastErr == nil {
				break
			}
			log.Warn("cleanup attempt failed",
				"kind", res.Kind, "id", res.ID,
				"attempt", attempts, "max_attempts", t.cfg.MaxAttempts,
				"error", lastErr)
			if attempts == t.cfg.MaxAttempts {
				break
			}
			if waitErr := waitRetry(ctx, retryTimer, t.cfg.RetryDelay); waitErr != nil {
				// Context done mid-resource: stop retrying, record what we
				// know. Remaining resources are drained by the ctx check at
				// the top of the loop.
				break
			}
		}

		if lastErr != nil {
			failed = append(failed, FailedCleanup{
				Resource: res,
				Err:      lastErr,
				FailedAt: time.Now(),
				Attempts: attempts,
			})
			continue
		}
		deleted++
	}

	if len(failed) > 0 {
		t.mu.Lock()
		t.failures = append(t.failures, failed...)
		t.mu.Unlock()
	}

	log.Info("cleanup finished", "deleted", deleted, "failed", len(failed))
	return failed
}

// deleteOne routes a single deletion attempt to the resource's channel.
func (t *Tracker) deleteOne(ctx context.Context, api APIDeleter, ui UIDeleter, res TrackedResource) error {
	switch res.Via {
	case DeleteViaAPI:
		if api == nil {
			return fmt.Errorf("no API deleter configured for %s %q", res.Kind, res.ID)
		}
		method := res.Method
		if method == "" {
			method = "DELETE"
		}
		if err := api.DeleteResource(ctx, res.Path, method); err != nil {
			return err
		}
		Logger().Debug("resource deleted via api", "kind", res.Kind, "id", res.ID, "path", res.Path)
		return nil

	case DeleteViaUI:
		if ui == nil {
			// Not a failure: the suite chose not to wire a UI deleter, so
			// the resource is left for manual teardown.
			Logger().Info("resource requires manual UI cleanup",
				"kind", res.Kind, "id", res.ID, "name", res.Name)
			return nil
		}
		if err := ui.DeleteResource(ctx, res); err != nil {
			return err
		}
		Logger().Debug("resource deleted via ui", "kind", res.Kind, "id", res.ID)
		return nil

	default:
		// Track validates Via, so this only triggers for hand-built batches.
		return fmt.Errorf("unknown delete channel %v for %s %q", res.Via, res.Kind, res.ID)
	}
}

// waitRetry pauses for d using the shared timer, returning early with the
// context error if ctx is done first.
func waitRetry(ctx context.Context, timer *time.Timer, d time.Duration) error {
	timer.Reset(d)
	select {
	case <-ctx.Done():
		// Drain the timer to avoid leaking it after context cancellation.
		if !timer.Stop() {
			<-timer.C
		}
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// HasFailures reports whether the failure ledger holds any entries.
func (t *Tracker) HasFailures() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.failures) > 0
}

// Failures returns a copy of the failure ledger in recording order.
func (t *Tracker) Failures() []FailedCleanup {
	t.mu.Lock()
	defer t.mu.Unlock()
	cp := make([]FailedCleanup, len(t.failures))
	copy(cp, t.failures)
	return cp
}

// ClearFailures empties the failure ledger. Tracked resources are untouched.
func (t *Tracker) ClearFailures() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failures = nil
}

// FailureReport renders the failure ledger as a human-readable multi-line
// string for CI logs and teardown summaries.
func (t *Tracker) FailureReport() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.failures) == 0 {
		return "no cleanup failures"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d cleanup failure(s):\n", len(t.failures))
	for i, f := range t.failures {
		fmt.Fprintf(&b, "  %d. %s %q", i+1, f.Resource.Kind, f.Resource.ID)
		if f.Resource.Name != "" {
			fmt.Fprintf(&b, " (%s)", f.Resource.Name)
		}
		if f.Resource.Project != "" {
			fmt.Fprintf(&b, " [project %s]", f.Resource.Project)
		}
		fmt.Fprintf(&b, " via %s, %d attempt(s) at %s: %v\n",
			f.Resource.Via, f.Attempts, f.FailedAt.Format(time.RFC3339), f.Err)
	}
	return strings.TrimSuffix(b.String(), "\n")
}
