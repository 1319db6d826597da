// Package apphost boots and supervises the application under test.
//
// End-to-end suites that exercise a real binary need the same plumbing every
// time: a free port, a scratch data directory, captured stdout/stderr,
// polling until the app accepts traffic, and a SIGTERM-then-SIGKILL shutdown
// that never leaks the process. App bundles that plumbing behind a small
// lifecycle: New, Start, WaitReady, Stop, Close.
//
// The {port} placeholder in Args and Env expands to the port the app was
// given, so the same Config works whether the port is fixed or allocated:
//
//	app, err := apphost.New(apphost.Config{
//		Binary:     "./bin/shopd",
//		Args:       []string{"--listen=127.0.0.1:{port}"},
//		DataDir:    dataDir,
//		HealthPath: "/healthz",
//	})
package apphost

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/studytab/e2ekit/internal/fileutil"
	"github.com/studytab/e2ekit/internal/netutil"
	"github.com/studytab/e2ekit/internal/process"
)

// Errors returned by App lifecycle methods. These are the process package
// sentinels re-exported so callers outside the module can match them with
// errors.Is.
const (
	// ErrAlreadyStarted is returned by Start when the app is already running.
	ErrAlreadyStarted = process.ErrAlreadyStarted

	// ErrProcessExited is returned by WaitReady when the app exits before
	// becoming ready (e.g., a port bind failure or bad flag).
	ErrProcessExited = process.ErrProcessExited
)

// portPlaceholder is replaced in Args and Env values with the port the
// application was assigned.
const portPlaceholder = "{port}"

// readinessDialTimeout is the per-attempt timeout for the TCP dial and HTTP
// request used in readiness checks. 1 second is generous for a localhost
// connection; early attempts that fail because the app is not yet listening
// return immediately with a connection-refused error, so this timeout only
// guards against pathological cases (e.g., SYN sent but no SYN-ACK).
const readinessDialTimeout = time.Second

// Defaults applied by New for zero-valued optional Config fields.
const (
	DefaultReadyInterval = 100 * time.Millisecond
	DefaultReadyTimeout  = 30 * time.Second
)

// ports tracks every port handed out by this process so that concurrently
// starting Apps never receive the same one.
var ports = netutil.NewPortRegistry(nil)

// Config holds the configuration for an application under test.
type Config struct {
	// Binary is the path to the application binary. Required.
	Binary string

	// Args are the command-line arguments passed to the binary. Any {port}
	// placeholder is replaced with the app's listen port.
	Args []string

	// Env holds extra KEY=VALUE entries appended to the inherited
	// environment. Any {port} placeholder is replaced with the app's
	// listen port.
	Env []string

	// DataDir is the working directory of the app. It is created if
	// missing and receives the <name>-stdout.log and <name>-stderr.log
	// files. Required.
	DataDir string

	// Port is the port the app listens on. Zero means a free port is
	// allocated at Start and released again at Stop.
	Port int

	// HealthPath is the HTTP path polled by WaitReady (e.g., "/healthz").
	// A 2xx response means ready. Empty means WaitReady only dials the
	// TCP port.
	HealthPath string

	// ReadyInterval is the poll interval used by WaitReady.
	// Default: DefaultReadyInterval.
	ReadyInterval time.Duration

	// ReadyTimeout is the overall budget for WaitReady.
	// Default: DefaultReadyTimeout.
	ReadyTimeout time.Duration

	// StopTimeout bounds the graceful-stop sequence when Close has to stop
	// the app itself. Default: process.DefaultStopTimeout.
	StopTimeout time.Duration

	// Logger receives operational messages. Optional, defaults to
	// slog.Default().
	Logger *slog.Logger
}

// validate checks all Config invariants and returns an error describing
// every violation found, joined with errors.Join.
func (c Config) validate() error {
	var errs []error

	if c.Binary == "" {
		errs = append(errs, errors.New("binary path must not be empty"))
	}
	if c.DataDir == "" {
		errs = append(errs, errors.New("data dir must not be empty"))
	}
	if c.Port < 0 {
		errs = append(errs, fmt.Errorf("port must not be negative, got %d", c.Port))
	}
	if c.HealthPath != "" && !strings.HasPrefix(c.HealthPath, "/") {
		errs = append(errs, fmt.Errorf("health path must start with /, got %q", c.HealthPath))
	}
	if c.ReadyInterval < 0 {
		errs = append(errs, fmt.Errorf("ready interval must not be negative, got %s", c.ReadyInterval))
	}
	if c.ReadyTimeout < 0 {
		errs = append(errs, fmt.Errorf("ready timeout must not be negative, got %s", c.ReadyTimeout))
	}
	if c.StopTimeout < 0 {
		errs = append(errs, fmt.Errorf("stop timeout must not be negative, got %s", c.StopTimeout))
	}

	return errors.Join(errs...)
}

// Compile-time interface satisfaction check.
var _ process.Stoppable = (*App)(nil)

// App manages the lifecycle of one application-under-test process.
// All methods are safe for concurrent use.
type App struct {
	mu        sync.Mutex
	config    Config
	name      string // for logging and log file names; base name of the binary
	base      process.Supervisor
	port      int
	ownedPort bool // port came from the registry and must be released on Stop
}

// New creates a new App with the given configuration.
// It returns an error if any required field is missing or invalid.
// New performs no I/O; all side effects (port allocation, data directory
// creation, spawning the process) are deferred to Start.
func New(cfg Config) (*App, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid app config: %w", err)
	}
	if cfg.ReadyInterval == 0 {
		cfg.ReadyInterval = DefaultReadyInterval
	}
	if cfg.ReadyTimeout == 0 {
		cfg.ReadyTimeout = DefaultReadyTimeout
	}
	if cfg.StopTimeout == 0 {
		cfg.StopTimeout = process.DefaultStopTimeout
	}

	name := filepath.Base(cfg.Binary)
	return &App{
		config: cfg,
		name:   name,
		base:   process.NewSupervisor(name, cfg.Logger, cfg.StopTimeout),
	}, nil
}

// Start launches the application process. If Config.Port is zero, a free
// port is allocated first; the data directory is created if missing.
//
// The context governs the lifetime of the launched process, not just the
// startup: canceling it kills the process (see exec.CommandContext). Pass a
// long-lived context for apps that must outlive the calling function.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.base.Running() {
		return ErrAlreadyStarted
	}

	port := a.config.Port
	owned := false
	if port == 0 {
		p, err := ports.Allocate()
		if err != nil {
			return fmt.Errorf("allocate app port: %w", err)
		}
		port, owned = p, true
	}

	if err := fileutil.EnsureDir(a.config.DataDir); err != nil {
		if owned {
			ports.Release(port)
		}
		return fmt.Errorf("ensure data dir: %w", err)
	}

	cmd := exec.CommandContext(ctx, a.config.Binary, expandPort(a.config.Args, port)...)
	if len(a.config.Env) > 0 {
		cmd.Env = append(os.Environ(), expandPort(a.config.Env, port)...)
	}

	if err := a.base.Start(cmd, a.config.DataDir); err != nil {
		if owned {
			ports.Release(port)
		}
		return fmt.Errorf("start application process: %w", err)
	}
	a.port = port
	a.ownedPort = owned
	return nil
}

// WaitReady polls until the application accepts traffic. With HealthPath
// set, an HTTP GET must return a 2xx status; otherwise a TCP dial to the
// app's port must succeed. Returns ErrProcessExited (wrapped) as soon as
// the process dies, rather than polling out the full timeout.
func (a *App) WaitReady(ctx context.Context) error {
	a.mu.Lock()
	port := a.port
	exited := a.base.Exited()
	log := a.base.Logger()
	a.mu.Unlock()

	if port == 0 {
		return errors.New("wait ready: app not started")
	}

	check := tcpCheck(port, log)
	if a.config.HealthPath != "" {
		check = httpCheck(port, a.config.HealthPath, log)
	}

	if err := process.WaitReady(ctx, process.WaitReadyConfig{
		Interval:      a.config.ReadyInterval,
		Timeout:       a.config.ReadyTimeout,
		Name:          a.name,
		Port:          port,
		Logger:        log,
		ProcessExited: exited,
	}, check); err != nil {
		return fmt.Errorf("app not ready: %w", err)
	}
	return nil
}

// tcpCheck reports readiness as soon as the port accepts a TCP connection.
func tcpCheck(port int, log *slog.Logger) process.ReadinessCheck {
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	dialer := &net.Dialer{Timeout: readinessDialTimeout}
	return func(checkCtx context.Context, attempt int) (bool, error) {
		conn, err := dialer.DialContext(checkCtx, "tcp", addr)
		if err != nil {
			log.Debug("readiness dial attempt", "port", port, "attempt", attempt, "error", err)
			return false, nil // Not ready yet
		}
		_ = conn.Close() // best-effort close of readiness check connection
		return true, nil
	}
}

// httpCheck reports readiness when a GET on the health path returns 2xx.
func httpCheck(port int, path string, log *slog.Logger) process.ReadinessCheck {
	url := fmt.Sprintf("http://127.0.0.1:%d%s", port, path)
	client := &http.Client{Timeout: readinessDialTimeout}
	return func(checkCtx context.Context, attempt int) (bool, error) {
		req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, url, nil)
		if err != nil {
			// Malformed URL cannot heal between attempts; abort polling.
			return false, fmt.Errorf("build readiness request: %w", err)
		}
		resp, err := client.Do(req)
		if err != nil {
			log.Debug("readiness http attempt", "port", port, "attempt", attempt, "error", err)
			return false, nil // Not ready yet
		}
		// Drain so the keep-alive connection can be reused between polls.
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			log.Debug("readiness http attempt", "port", port, "attempt", attempt, "status", resp.StatusCode)
			return false, nil
		}
		return true, nil
	}
}

// BaseURL returns the http URL of the running application, or the empty
// string when the app is not started.
func (a *App) BaseURL() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.port == 0 {
		return ""
	}
	return fmt.Sprintf("http://127.0.0.1:%d", a.port)
}

// Port returns the port the application was given, or zero when the app is
// not started.
func (a *App) Port() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.port
}

// Running reports whether the application has been started and not yet
// stopped.
func (a *App) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.base.Running()
}

// Stop terminates the application with the given timeout and releases its
// port. Safe to call when the app was never started.
func (a *App) Stop(timeout time.Duration) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	err := a.base.Stop(timeout)
	a.releasePortLocked()
	return err
}

// Close releases log file handles and the app's port. If the app is still
// running, it is stopped first with the configured StopTimeout. Callers
// should always call Stop before Close; the auto-stop is a safety net.
func (a *App) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.base.Close()
	a.releasePortLocked()
}

// releasePortLocked returns an allocated port to the registry and clears the
// port field. Callers must hold a.mu.
func (a *App) releasePortLocked() {
	if a.ownedPort {
		ports.Release(a.port)
		a.ownedPort = false
	}
	a.port = 0
}

// expandPort replaces the {port} placeholder in every element of values.
// Returns nil for an empty input so cmd.Args and cmd.Env stay nil when
// unused.
func expandPort(values []string, port int) []string {
	if len(values) == 0 {
		return nil
	}
	p := strconv.Itoa(port)
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.ReplaceAll(v, portPlaceholder, p)
	}
	return out
}
