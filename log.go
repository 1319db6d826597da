package e2ekit

import (
	"log/slog"

	"github.com/studytab/e2ekit/internal/core"
)

// SetLogger replaces the package-level logger used by e2ekit.
// This allows test suites to integrate e2ekit logging with their own
// logging infrastructure. The provided logger should already have any
// desired attributes; e2ekit will not add additional attributes.
//
// If l is nil, the logger resets to the default: slog.Default() with
// "component" attribute, re-derived on the next Logger() call and then
// cached. Call SetLogger(nil) after slog.SetDefault() to pick up changes.
//
// Thread safety: SetLogger is safe to call concurrently with other e2ekit
// operations. Both the custom logger and the cached default are stored as
// atomic pointers, so loads and stores are data-race-free. A concurrent
// Logger call during SetLogger always returns a valid *slog.Logger, though
// it may briefly return the previous logger until both atomic stores
// complete. For a strict happens-before guarantee, call SetLogger before
// starting goroutines that use the library (e.g., in TestMain before m.Run).
//
// Example:
//
//	e2ekit.SetLogger(myLogger.With("component", "e2e"))
func SetLogger(l *slog.Logger) {
	core.SetLogger(l)
}
