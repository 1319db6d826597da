package e2ekit

import "github.com/studytab/e2ekit/internal/core"

// DeleteVia selects the channel a tracked resource is deleted through during
// Cleanup. See the individual constant documentation for when to choose each
// channel.
//
// DeleteVia is a type alias (not a named type) so that the underlying
// [core.DeleteVia] methods are part of the public API:
//
//   - IsValid reports whether the value is a recognized channel.
//   - String returns the channel name (implements [fmt.Stringer]).
//
// This is intentional: callers can validate and print channel values without
// the public package needing to redeclare these methods.
//
// Audit: new methods added to core.DeleteVia automatically become part of
// the public API through this alias.
type DeleteVia = core.DeleteVia

const (
	// DeleteViaAPI deletes the resource with a direct HTTP call through the
	// configured APIDeleter, using the Path and Method recorded at Track
	// time. This is the default channel and the right choice whenever the
	// backend exposes a delete endpoint: it is fast and does not need a
	// browser.
	DeleteViaAPI = core.DeleteViaAPI

	// DeleteViaUI deletes the resource by driving the application's own
	// interface through the configured UIDeleter. Use it for resources that
	// have no delete endpoint or whose deletion triggers UI-only side
	// effects. When Cleanup runs without a UIDeleter these resources are
	// logged for manual cleanup and are not recorded as failures.
	DeleteViaUI = core.DeleteViaUI
)
