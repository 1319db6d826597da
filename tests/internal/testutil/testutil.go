//go:build integration

// Package testutil provides shared helpers for integration test packages.
package testutil

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"sync/atomic"

	"github.com/studytab/e2ekit"
)

// nameCounter is an atomic counter used by UniqueName to generate resource
// names that are unique across parallel test goroutines.
var nameCounter atomic.Int64

// UniqueName returns a resource name that is unique across all parallel tests.
// It combines the given prefix with a monotonically increasing counter value.
// Use it for any resource created in the application under test.
func UniqueName(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, nameCounter.Add(1))
}

// workerCounter backs WorkerID.
var workerCounter atomic.Int64

// WorkerID returns a worker identifier that is unique across all parallel
// tests, for use as the owner in pool Acquire calls.
func WorkerID() int {
	return int(workerCounter.Add(1))
}

// TestParallel returns the effective -test.parallel value for the current test
// binary. This mirrors Go's own default: if the flag is unset or unparseable,
// it falls back to GOMAXPROCS.
func TestParallel() int {
	f := flag.Lookup("test.parallel")
	if f == nil {
		n := runtime.GOMAXPROCS(0)
		slog.Info("test.parallel flag not found, falling back to GOMAXPROCS", "parallel", n)

		return n
	}

	n, err := strconv.Atoi(f.Value.String())
	if err != nil || n < 1 {
		fallback := runtime.GOMAXPROCS(0)
		slog.Warn("test.parallel flag unparseable, falling back to GOMAXPROCS",
			"raw", f.Value.String(), "error", err, "parallel", fallback)

		return fallback
	}

	slog.Info("using test.parallel flag value", "parallel", n)

	return n
}

// SetupTestLogging configures slog based on the E2EKIT_LOG_LEVEL environment
// variable. This only affects test runs: the library itself inherits the
// application's logging config.
func SetupTestLogging() {
	levelStr := os.Getenv("E2EKIT_LOG_LEVEL")
	if levelStr == "" {
		levelStr = "INFO"
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(levelStr)); err != nil {
		level = slog.LevelInfo
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))

	e2ekit.SetLogger(slog.Default().With("component", "e2ekit"))
}
