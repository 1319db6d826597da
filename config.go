package e2ekit

import "github.com/studytab/e2ekit/internal/core"

// poolConfig holds configuration for a UserPool. This unexported type wraps
// core.PoolConfig via embedding, keeping internal/core types out of the
// public API signature while avoiding field-by-field duplication.
type poolConfig struct {
	core.PoolConfig
}

// toCoreConfig returns the embedded core.PoolConfig.
func (c poolConfig) toCoreConfig() core.PoolConfig {
	return c.PoolConfig
}

// trackerConfig holds configuration for a Tracker, wrapping core.TrackerConfig
// the same way poolConfig wraps core.PoolConfig.
type trackerConfig struct {
	core.TrackerConfig
}

// toCoreConfig returns the embedded core.TrackerConfig.
func (c trackerConfig) toCoreConfig() core.TrackerConfig {
	return c.TrackerConfig
}
