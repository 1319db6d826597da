package e2ekit

import (
	"fmt"
	"strings"
	"time"

	"github.com/studytab/e2ekit/internal/core"
)

// requirePositive panics if v <= 0 with a descriptive message.
func requirePositive[T int | time.Duration](name string, v T) {
	if v <= 0 {
		panic(fmt.Sprintf("e2ekit: %s must be greater than 0, got %v", name, v))
	}
}

// requireNonEmpty panics if s is empty with a descriptive message.
func requireNonEmpty(name, s string) {
	if s == "" {
		panic(fmt.Sprintf("e2ekit: %s must not be empty", name))
	}
}

// PoolOption configures a UserPool during construction via NewUserPool or
// SharedPool. Each With* function returns a PoolOption that sets a specific
// field.
//
// Several With* functions panic on invalid input (non-positive sizes, empty
// or malformed patterns). These panics are intentional: option values are
// typically compile-time constants or package-level variables, so an invalid
// value indicates a programmer error rather than a runtime condition. The
// pattern mirrors [regexp.MustCompile], fail fast during initialization
// instead of returning errors that would be universally fatal anyway.
type PoolOption func(*poolConfig)

// WithPoolSize sets the number of identities the pool is built with. The
// pool is fixed-size: all identities are created up front and Acquire leases
// from that set, so size also caps how many tests can hold an identity at
// the same time.
//
// Default: 4.
//
// Panics if size <= 0.
func WithPoolSize(size int) PoolOption {
	requirePositive("pool size", size)
	return func(c *poolConfig) {
		c.PoolSize = size
	}
}

// WithEmailPattern sets the pattern identity email addresses are generated
// from. The pattern must contain the placeholder "{n}", which is replaced
// with the identity's 1-based position, e.g. "testuser{n}@example.com"
// yields testuser1@example.com, testuser2@example.com, and so on.
//
// Default: "testuser{n}@example.com".
//
// Panics if pattern is empty or does not contain "{n}".
func WithEmailPattern(pattern string) PoolOption {
	requireNonEmpty("email pattern", pattern)
	if !strings.Contains(pattern, core.EmailPlaceholder) {
		panic(fmt.Sprintf("e2ekit: email pattern must contain %q, got %q", core.EmailPlaceholder, pattern))
	}
	return func(c *poolConfig) {
		c.EmailPattern = pattern
	}
}

// WithDefaultPassword sets the password assigned to every identity in the
// pool. Test environments typically provision all seeded users with one
// shared password.
//
// Panics if password is empty.
func WithDefaultPassword(password string) PoolOption {
	requireNonEmpty("default password", password)
	return func(c *poolConfig) {
		c.DefaultPassword = password
	}
}

// TrackerOption configures a Tracker during construction via NewTracker.
// The same panic-on-invalid-input contract as PoolOption applies.
type TrackerOption func(*trackerConfig)

// WithMaxAttempts sets how many times Cleanup tries to delete each resource
// before recording it as a failure.
//
// Default: 3.
//
// Panics if n <= 0.
func WithMaxAttempts(n int) TrackerOption {
	requirePositive("max attempts", n)
	return func(c *trackerConfig) {
		c.MaxAttempts = n
	}
}

// WithRetryDelay sets the fixed pause between consecutive delete attempts on
// the same resource. Cleanup waits this long after every failed attempt
// except the last one.
//
// Default: 1 second.
//
// Panics if d <= 0.
func WithRetryDelay(d time.Duration) TrackerOption {
	requirePositive("retry delay", d)
	return func(c *trackerConfig) {
		c.RetryDelay = d
	}
}

// WithProject sets the project label applied to tracked resources that do
// not carry one of their own. Useful when a whole suite runs against a
// single tenant and call sites should not repeat it.
//
// Panics if project is empty; omit the option instead.
func WithProject(project string) TrackerOption {
	requireNonEmpty("project", project)
	return func(c *trackerConfig) {
		c.Project = project
	}
}
