// Package process provides utilities for managing external process lifecycle.
//
// It defines Supervisor for common process start/stop behavior, the Stoppable
// interface, StopCloseAndNil for atomic cleanup, WaitReady for polling-based
// readiness checks, and LogFiles for managing process stdout/stderr log files.
// The apphost package builds on it to boot the application under test.
package process
