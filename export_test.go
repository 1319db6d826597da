package e2ekit

import "time"

// ResetForTesting resets the shared pool singleton state so that the next
// call to SharedPool creates a fresh pool. This is exported only for use in
// test packages (package e2ekit_test).
func ResetForTesting() { resetForTesting() }

// PoolConfigSnapshot holds a copy of poolConfig fields for test assertions.
// Exported only via export_test.go so that the _test package can verify
// option closures actually mutate the config without accessing internals.
type PoolConfigSnapshot struct {
	PoolSize        int
	EmailPattern    string
	DefaultPassword string
}

// ApplyPoolOptionsForTesting creates a default poolConfig, applies the given
// options, and returns a PoolConfigSnapshot of the result. This tests the
// option closures directly without constructing a pool.
func ApplyPoolOptionsForTesting(opts ...PoolOption) PoolConfigSnapshot {
	cfg := defaultPoolConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return PoolConfigSnapshot{
		PoolSize:        cfg.PoolSize,
		EmailPattern:    cfg.EmailPattern,
		DefaultPassword: cfg.DefaultPassword,
	}
}

// TrackerConfigSnapshot holds a copy of trackerConfig fields for test
// assertions, mirroring PoolConfigSnapshot.
type TrackerConfigSnapshot struct {
	MaxAttempts int
	RetryDelay  time.Duration
	Project     string
}

// ApplyTrackerOptionsForTesting creates a default trackerConfig, applies the
// given options, and returns a TrackerConfigSnapshot of the result.
func ApplyTrackerOptionsForTesting(opts ...TrackerOption) TrackerConfigSnapshot {
	cfg := defaultTrackerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return TrackerConfigSnapshot{
		MaxAttempts: cfg.MaxAttempts,
		RetryDelay:  cfg.RetryDelay,
		Project:     cfg.Project,
	}
}
