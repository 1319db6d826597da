package process

import (
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"github.com/studytab/e2ekit/internal/sentinel"
)

// ErrAlreadyStarted is returned when Start is called on a supervisor whose
// process is already running. Callers must Stop the process before starting
// it again.
const ErrAlreadyStarted = sentinel.Error("process already started")

// ErrNilCmd is returned when Start is called with a nil *exec.Cmd.
const ErrNilCmd = sentinel.Error("cmd must not be nil")

// ErrEmptyCmdPath is returned when Start is called with an empty cmd.Path.
const ErrEmptyCmdPath = sentinel.Error("cmd.Path must not be empty")

// ErrEmptyDataDir is returned when Start is called with an empty data directory.
const ErrEmptyDataDir = sentinel.Error("data directory must not be empty")

// Supervisor owns the lifecycle of a single external process. Embed it in
// higher-level types (such as apphost.App) to reuse the Start, Stop, and
// Close machinery.
//
// Supervisor is not safe for concurrent use. Callers must serialize access
// to all methods, including Start, Stop, Close, and Running. In practice,
// the apphost.App that embeds a Supervisor serializes access with its own
// mutex.
type Supervisor struct {
	cmd         *exec.Cmd
	waitDone    <-chan error    // receives cmd.Wait result; started once in Start
	exited      <-chan struct{} // closed when process exits; readable by multiple goroutines
	logFiles    LogFiles
	name        string        // Process name for logging and log file names (e.g., "app")
	log         *slog.Logger  // Logger for operational messages
	stopTimeout time.Duration // Timeout for auto-stop in Close; zero uses DefaultStopTimeout
}

// NewSupervisor creates a Supervisor with the given name, logger, and stop
// timeout. The stopTimeout is used by Close as a safety-net timeout when
// auto-stopping a process that was not explicitly stopped. If stopTimeout is
// zero, DefaultStopTimeout is used as a fallback. If logger is nil,
// slog.Default() is used. Panics if name is empty, since an empty name
// produces confusing error messages throughout the process lifecycle (Stop,
// Close, log entries).
func NewSupervisor(name string, logger *slog.Logger, stopTimeout time.Duration) Supervisor {
	if name == "" {
		panic("e2ekit: process name must not be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return Supervisor{name: name, log: logger, stopTimeout: stopTimeout}
}

// Stop terminates the process with the given timeout.
// After Stop returns, Running reports false regardless of whether the stop
// succeeded, because the process is no longer in a known-running state.
// Safe to call when cmd is nil or cmd.Process is nil (e.g., if Start was
// never called, the OS failed to assign a process, or Stop was already
// called); returns nil immediately in those cases.
func (s *Supervisor) Stop(timeout time.Duration) error {
	if s.cmd == nil || s.cmd.Process == nil {
		s.cmd = nil
		s.waitDone = nil
		s.exited = nil
		return nil
	}
	pid := s.cmd.Process.Pid
	err := terminate(s.cmd, s.waitDone, timeout, s.name)
	if err != nil {
		s.log.Warn("process stop failed; process may be orphaned",
			"process", s.name, "pid", pid, "error", err)
	}
	s.cmd = nil
	s.waitDone = nil
	s.exited = nil
	return err
}

// Close closes log file handles. If the process is still running (Stop was not
// called first), Close logs a warning and stops the process automatically to
// prevent resource leaks. Callers should always call Stop before Close; the
// auto-stop is a safety net, not an intended code path.
//
// The auto-stop uses the stopTimeout provided to NewSupervisor, falling back
// to DefaultStopTimeout when zero.
//
// If the auto-stop fails, Close still closes log files. This means a process
// that could not be stopped may continue running with its stdout/stderr file
// handles closed, causing its subsequent writes to fail with EBADF.
func (s *Supervisor) Close() {
	if s.cmd != nil {
		s.log.Warn("process.Close called without Stop; stopping automatically",
			"process", s.name)
		// Best-effort stop; log but do not propagate the error since Close
		// has no error return and changing the signature would break the
		// Stoppable interface contract.
		timeout := s.stopTimeout
		if timeout <= 0 {
			timeout = DefaultStopTimeout
		}
		if err := s.Stop(timeout); err != nil {
			s.log.Warn("auto-stop during Close failed",
				"process", s.name, "error", err)
		}
	}
	s.logFiles.Close()
}

// Logger returns the logger used by this supervisor.
func (s *Supervisor) Logger() *slog.Logger {
	return s.log
}

// Exited returns a channel that is closed when the process exits. It is safe
// to select on from any number of goroutines. Returns nil if the process has
// not been started or has already been stopped.
func (s *Supervisor) Exited() <-chan struct{} {
	return s.exited
}

// Running reports whether the process has been started and not yet stopped.
func (s *Supervisor) Running() bool {
	return s.cmd != nil
}

// Start creates log files, wires up stdout/stderr, and starts the command.
// The cmd must already have its Path and Args set. Start sets Dir, Stdout,
// Stderr and calls cmd.Start(). On success, cmd, waitDone, and logFiles are
// populated.
//
// A single goroutine calling cmd.Wait is started here so that exactly one Wait
// call is made per process. The resulting channel is consumed by Stop.
//
// Returns ErrAlreadyStarted if the process is already running. Callers must
// Stop and Close the process before calling Start again.
func (s *Supervisor) Start(cmd *exec.Cmd, dataDir string) error {
	if cmd == nil {
		return ErrNilCmd
	}
	if cmd.Path == "" {
		return ErrEmptyCmdPath
	}
	if dataDir == "" {
		return ErrEmptyDataDir
	}
	if s.cmd != nil {
		return ErrAlreadyStarted
	}

	cmd.Dir = dataDir
	configureSysProcAttr(cmd)

	logFiles, err := launch(cmd, dataDir, s.name)
	if err != nil {
		return fmt.Errorf("start command: %w", err)
	}
	s.cmd = cmd
	s.logFiles = logFiles

	// Start the single cmd.Wait goroutine. cmd.Wait must be called exactly
	// once per started process; calling it a second time is undefined
	// behavior and may block indefinitely. By starting the goroutine here,
	// we guarantee the invariant and provide a done channel for Stop.
	//
	// Two channels are created:
	//   - done (buffered 1): receives the Wait error, consumed once by Stop.
	//   - exited (unbuffered, closed): broadcast signal readable by any number
	//     of goroutines (e.g., WaitReady polling loops) to detect early exit.
	done := make(chan error, 1)
	exited := make(chan struct{})
	go func() {
		done <- cmd.Wait()
		close(exited)
	}()
	s.waitDone = done
	s.exited = exited

	return nil
}
