package process

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"testing"
	"time"
)

// TestFilterSignalExit verifies which cmd.Wait errors count as clean stops.
func TestFilterSignalExit(t *testing.T) {
	t.Parallel()

	type testCase struct {
		err     error
		signal  syscall.Signal
		wantErr bool
	}

	tests := map[string]testCase{
		"nil error returns nil": {
			wantErr: false,
		},
		"SIGTERM exit is expected": {
			signal:  syscall.SIGTERM,
			wantErr: false,
		},
		"SIGKILL exit is expected": {
			signal:  syscall.SIGKILL,
			wantErr: false,
		},
		"other signal is unexpected": {
			signal:  syscall.SIGINT,
			wantErr: true,
		},
		"non-ExitError is unexpected": {
			err:     errors.New("some other error"),
			wantErr: true,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			inputErr := tc.err
			if inputErr == nil && tc.signal != 0 {
				inputErr = makeSignalExitError(t, tc.signal)
			}

			got := filterSignalExit(inputErr, "test-proc")

			if tc.wantErr && got == nil {
				t.Fatal("expected error, got nil")
			}
			if !tc.wantErr && got != nil {
				t.Fatalf("expected nil, got %v", got)
			}
		})
	}
}

// TestFilterSignalExitWrapsProcessName verifies unexpected errors carry the
// process name for log readability.
func TestFilterSignalExitWrapsProcessName(t *testing.T) {
	t.Parallel()

	err := filterSignalExit(errors.New("connection refused"), "my-app")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if got := err.Error(); got != "my-app: connection refused" {
		t.Errorf("error = %q, want %q", got, "my-app: connection refused")
	}
}

// TestDrainWait verifies the three possible outcomes of draining the Wait
// channel: value delivered, error delivered, and timeout.
func TestDrainWait(t *testing.T) {
	t.Parallel()

	t.Run("receives value", func(t *testing.T) {
		t.Parallel()
		done := make(chan error, 1)
		done <- nil

		ok, err := drainWait(done, time.Second)
		if !ok {
			t.Fatal("expected ok=true when channel has a value")
		}
		if err != nil {
			t.Fatalf("expected nil error, got %v", err)
		}
	})

	t.Run("receives error", func(t *testing.T) {
		t.Parallel()
		done := make(chan error, 1)
		want := errors.New("process crashed")
		done <- want

		ok, err := drainWait(done, time.Second)
		if !ok {
			t.Fatal("expected ok=true when channel has a value")
		}
		if !errors.Is(err, want) {
			t.Fatalf("expected %v, got %v", want, err)
		}
	})

	t.Run("times out on empty channel", func(t *testing.T) {
		t.Parallel()
		done := make(chan error) // unbuffered, never written to

		ok, err := drainWait(done, 10*time.Millisecond)
		if ok {
			t.Fatal("expected ok=false when timeout elapses")
		}
		if err != nil {
			t.Fatalf("expected nil error on timeout, got %v", err)
		}
	})
}

// TestLogFilesPaths verifies log file path construction from name and dir.
func TestLogFilesPaths(t *testing.T) {
	t.Parallel()

	lf := LogFiles{dataDir: "/tmp/e2e/app-1", stdoutName: "app-stdout.log", stderrName: "app-stderr.log"}
	if got, want := lf.StdoutPath(), "/tmp/e2e/app-1/app-stdout.log"; got != want {
		t.Errorf("StdoutPath() = %q, want %q", got, want)
	}
	if got, want := lf.StderrPath(), "/tmp/e2e/app-1/app-stderr.log"; got != want {
		t.Errorf("StderrPath() = %q, want %q", got, want)
	}
}

// TestLogFilesCloseNilHandles verifies Close tolerates never-created files.
func TestLogFilesCloseNilHandles(t *testing.T) {
	t.Parallel()

	lf := LogFiles{}
	lf.Close()
}

// TestNewLogFilesCreatesFiles verifies both log files exist on disk after
// NewLogFiles succeeds.
func TestNewLogFilesCreatesFiles(t *testing.T) {
	t.Parallel()

	dataDir := t.TempDir()
	lf, err := NewLogFiles(dataDir, "app")
	if err != nil {
		t.Fatalf("NewLogFiles() error: %v", err)
	}
	defer lf.Close()

	for _, path := range []string{
		filepath.Join(dataDir, "app-stdout.log"),
		filepath.Join(dataDir, "app-stderr.log"),
	} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("stat %s: %v", path, err)
		}
	}
}

// TestLaunchClosesLogsOnStartFailure verifies log handles do not leak when
// the binary cannot be started.
func TestLaunchClosesLogsOnStartFailure(t *testing.T) {
	t.Parallel()

	cmd := exec.Command("/nonexistent/e2ekit-missing-binary")
	_, err := launch(cmd, t.TempDir(), "app")
	if err == nil {
		t.Fatal("expected error for missing binary, got nil")
	}
}

// makeSignalExitError creates an *exec.ExitError with the given signal.
// It uses a real process to generate an authentic WaitStatus.
// Calls t.Fatalf if the process cannot be started, signaled, or does not
// produce an ExitError, since all conditions indicate a broken test environment.
func makeSignalExitError(tb testing.TB, sig syscall.Signal) *exec.ExitError {
	tb.Helper()

	cmd := exec.Command("sleep", "60")
	if err := cmd.Start(); err != nil {
		tb.Fatalf("test setup: start sleep: %v", err)
	}

	if err := cmd.Process.Signal(sig); err != nil {
		// Kill the process to avoid leaking it, then fail.
		_ = cmd.Process.Kill() // best-effort cleanup
		tb.Fatalf("test setup: signal process with %v: %v", sig, err)
	}

	err := cmd.Wait()

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		tb.Fatalf("test setup: expected *exec.ExitError from signaled process, got %v", err)
	}

	return exitErr
}
