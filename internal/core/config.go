package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DeleteVia selects the channel through which a tracked resource is deleted
// during cleanup.
type DeleteVia int

const (
	// DeleteViaAPI removes the resource with a direct HTTP call against the
	// application's API, using the resource's Path and Method. This is the
	// fast path and the default: no browser session is involved, and the
	// call either succeeds or fails with a concrete transport or status
	// error that the retry loop can act on.
	DeleteViaAPI DeleteVia = iota

	// DeleteViaUI removes the resource by driving the application's
	// interface, for resources that expose no deletion endpoint. Cleanup
	// delegates these to the caller-provided UI deleter; when none is
	// provided the resource is skipped with a log line, since leaving a
	// leftover behind is preferable to failing the whole batch.
	DeleteViaUI
)

// IsValid reports whether v is a recognized DeleteVia value.
func (v DeleteVia) IsValid() bool {
	switch v {
	case DeleteViaAPI, DeleteViaUI:
		return true
	default:
		return false
	}
}

// String returns the short channel name used in logs and failure reports.
func (v DeleteVia) String() string {
	switch v {
	case DeleteViaAPI:
		return "api"
	case DeleteViaUI:
		return "ui"
	default:
		return fmt.Sprintf("DeleteVia(%d)", int(v))
	}
}

// EmailPlaceholder is the substring of PoolConfig.EmailPattern replaced by
// the identity's 1-based index.
const EmailPlaceholder = "{n}"

// PoolConfig holds configuration for UserPool instances.
//
// Concurrency contract: all fields are immutable after construction via
// NewUserPool. Pool methods read them without synchronization, relying on
// this guarantee.
type PoolConfig struct {
	// PoolSize is the fixed number of identities the pool creates up front.
	// The pool never grows or shrinks afterwards. Default: 4.
	PoolSize int

	// EmailPattern is the template for identity emails. It must contain the
	// {n} placeholder, which is replaced with the identity's 1-based index:
	// "testuser{n}@example.com" yields testuser1@example.com and so on.
	EmailPattern string

	// DefaultPassword is assigned to every identity. Pool identities are
	// pre-provisioned accounts of the application under test, so a single
	// shared password is the norm.
	DefaultPassword string
}

// Validate checks all PoolConfig invariants and returns an error describing
// every violation found. It uses errors.Join to report multiple issues at
// once, allowing callers to fix all problems in a single pass.
//
// Validate is called by NewUserPool (which panics on error, since invalid
// config is a programmer error).
func (c PoolConfig) Validate() error {
	var errs []error

	if c.PoolSize <= 0 {
		errs = append(errs, fmt.Errorf("pool size must be greater than 0, got %d", c.PoolSize))
	}
	if c.EmailPattern == "" {
		errs = append(errs, errors.New("email pattern must not be empty"))
	} else if !strings.Contains(c.EmailPattern, EmailPlaceholder) {
		errs = append(errs, fmt.Errorf("email pattern must contain the %s placeholder, got %q", EmailPlaceholder, c.EmailPattern))
	}
	if c.DefaultPassword == "" {
		errs = append(errs, errors.New("default password must not be empty"))
	}

	return errors.Join(errs...)
}

// TrackerConfig holds configuration for Tracker instances.
//
// Concurrency contract: all fields are immutable after construction via
// NewTracker. Cleanup reads MaxAttempts and RetryDelay without
// synchronization, relying on this guarantee.
type TrackerConfig struct {
	// MaxAttempts is the total number of deletion attempts per resource
	// (first try included) before it is recorded as failed. Default: 3.
	MaxAttempts int

	// RetryDelay is the fixed pause between deletion attempts for the same
	// resource. There is no backoff: cleanup runs after tests against an
	// application that is otherwise idle, so a flat delay is enough.
	// Default: 1 second.
	RetryDelay time.Duration

	// Project is stamped onto tracked resources that carry no project tag
	// of their own. Optional; empty means resources keep whatever tag they
	// were tracked with.
	Project string
}

// Validate checks all TrackerConfig invariants and returns an error
// describing every violation found, joined with errors.Join.
//
// Validate is called by NewTracker (which panics on error, since invalid
// config is a programmer error).
func (c TrackerConfig) Validate() error {
	var errs []error

	if c.MaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("max attempts must be greater than 0, got %d", c.MaxAttempts))
	}
	if c.RetryDelay <= 0 {
		errs = append(errs, fmt.Errorf("retry delay must be greater than 0, got %s", c.RetryDelay))
	}

	return errors.Join(errs...)
}
