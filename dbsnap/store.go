// Package dbsnap snapshots and restores application databases around
// destructive end-to-end suites.
//
// A Store manages a directory of named snapshot files. PostgreSQL databases
// are captured with pg_dump and rebuilt through an administrative connection
// (terminate sessions, drop, create, pg_restore); SQLite databases are
// captured with VACUUM INTO and restored by an atomic file copy. Snapshot
// creation is guarded by per-snapshot file locks, so concurrent test workers
// (or separate processes sharing the directory) cannot produce torn files.
//
// Restores are destructive: the target database is replaced wholesale.
// Callers must quiesce the application under test before restoring.
package dbsnap

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/studytab/e2ekit/internal/fileutil"
	"github.com/studytab/e2ekit/internal/sentinel"
)

// ErrSnapshotNotFound is returned when a restore or removal names a snapshot
// that does not exist in the store directory.
const ErrSnapshotNotFound = sentinel.Error("snapshot not found")

// ErrSnapshotExists is returned when a snapshot is captured under a name that
// is already taken. Snapshots are immutable once written; remove the old one
// first to recapture.
const ErrSnapshotExists = sentinel.Error("snapshot already exists")

// lockRetryInterval is the interval between consecutive attempts to acquire a
// snapshot file lock. 50ms balances responsiveness (low wait after the holder
// releases) against CPU overhead from busy-polling.
const lockRetryInterval = 50 * time.Millisecond

// Engine identifies the database engine a snapshot was taken from. The engine
// determines both the capture mechanism and the snapshot file extension.
type Engine int

const (
	// EnginePostgres marks a snapshot taken with pg_dump from a PostgreSQL
	// server. Restoring requires the server to be reachable and the
	// connection role to be allowed to drop and create the database.
	EnginePostgres Engine = iota

	// EngineSQLite marks a snapshot taken with VACUUM INTO from a SQLite
	// database file. Restoring replaces the file on disk.
	EngineSQLite
)

// IsValid reports whether e is a recognized Engine value.
func (e Engine) IsValid() bool {
	switch e {
	case EnginePostgres, EngineSQLite:
		return true
	default:
		return false
	}
}

// String returns a short lowercase label for logs and error messages.
func (e Engine) String() string {
	switch e {
	case EnginePostgres:
		return "postgres"
	case EngineSQLite:
		return "sqlite"
	default:
		return fmt.Sprintf("unknown(%d)", int(e))
	}
}

// ext returns the file extension snapshots of this engine are stored under.
func (e Engine) ext() string {
	switch e {
	case EnginePostgres:
		return ".pgdump"
	case EngineSQLite:
		return ".sqlite"
	default:
		return ""
	}
}

// Snapshot describes one snapshot file in the store directory.
type Snapshot struct {
	Name      string
	Engine    Engine
	SizeBytes int64
	CreatedAt time.Time
}

// Target names one database for the batch operations SnapshotAll and
// RestoreAll. DSN is a connection URL for EnginePostgres and a file path for
// EngineSQLite.
type Target struct {
	Name   string
	Engine Engine
	DSN    string
}

// Store manages a directory of database snapshots. A Store is safe for
// concurrent use; snapshot creation for the same name is additionally
// serialized across processes via file locks.
type Store struct {
	dir       string
	pgDump    string
	pgRestore string
	logger    *slog.Logger
}

// Option customizes a Store.
type Option func(*Store)

// WithLogger sets the logger for operational messages. Defaults to
// slog.Default(). Panics if l is nil.
func WithLogger(l *slog.Logger) Option {
	if l == nil {
		panic("dbsnap: logger must not be nil")
	}
	return func(s *Store) {
		s.logger = l
	}
}

// WithPgDumpBinary overrides the pg_dump binary used to capture PostgreSQL
// snapshots. Defaults to "pg_dump", resolved through PATH. Panics if path is
// empty.
func WithPgDumpBinary(path string) Option {
	if path == "" {
		panic("dbsnap: pg_dump binary must not be empty")
	}
	return func(s *Store) {
		s.pgDump = path
	}
}

// WithPgRestoreBinary overrides the pg_restore binary used to rebuild
// PostgreSQL databases. Defaults to "pg_restore", resolved through PATH.
// Panics if path is empty.
func WithPgRestoreBinary(path string) Option {
	if path == "" {
		panic("dbsnap: pg_restore binary must not be empty")
	}
	return func(s *Store) {
		s.pgRestore = path
	}
}

// NewStore opens a snapshot store rooted at dir, creating the directory if it
// does not exist.
func NewStore(dir string, opts ...Option) (*Store, error) {
	if dir == "" {
		return nil, errors.New("snapshot directory must not be empty")
	}
	if err := fileutil.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("prepare snapshot directory: %w", err)
	}

	s := &Store{
		dir:       dir,
		pgDump:    "pg_dump",
		pgRestore: "pg_restore",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Dir returns the directory the store keeps its snapshot files in.
func (s *Store) Dir() string {
	return s.dir
}

// log returns the configured logger, falling back to slog.Default().
func (s *Store) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}

// List returns the snapshots currently in the store, sorted by name. Files
// that do not carry a known snapshot extension (lock files, temp files,
// unrelated clutter) are ignored.
func (s *Store) List() ([]Snapshot, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read snapshot directory: %w", err)
	}

	snaps := make([]Snapshot, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		engine, ok := engineForFile(entry.Name())
		if !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("stat snapshot file %s: %w", entry.Name(), err)
		}
		snaps = append(snaps, Snapshot{
			Name:      strings.TrimSuffix(entry.Name(), engine.ext()),
			Engine:    engine,
			SizeBytes: info.Size(),
			CreatedAt: info.ModTime(),
		})
	}

	slices.SortFunc(snaps, func(a, b Snapshot) int {
		return strings.Compare(a.Name, b.Name)
	})
	return snaps, nil
}

// Remove deletes the named snapshot from the store. Returns
// ErrSnapshotNotFound if no snapshot carries that name.
func (s *Store) Remove(name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	path, _, err := s.find(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("remove snapshot %q: %w", name, err)
	}
	s.log().Debug("snapshot removed", "name", name, "path", path)
	return nil
}

// engineForFile maps a snapshot file name to its engine by extension.
func engineForFile(fileName string) (Engine, bool) {
	for _, engine := range []Engine{EnginePostgres, EngineSQLite} {
		if strings.HasSuffix(fileName, engine.ext()) {
			return engine, true
		}
	}
	return 0, false
}

// validateName rejects snapshot names that would escape the store directory
// or collide with the store's own lock and temp files.
func validateName(name string) error {
	switch {
	case name == "":
		return errors.New("snapshot name must not be empty")
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("snapshot name %q must not contain path separators", name)
	case strings.HasPrefix(name, "."):
		return fmt.Errorf("snapshot name %q must not start with a dot", name)
	default:
		return nil
	}
}

// snapshotPath returns the file path the named snapshot lives at.
func (s *Store) snapshotPath(name string, engine Engine) string {
	return filepath.Join(s.dir, name+engine.ext())
}

// find locates the named snapshot regardless of engine.
func (s *Store) find(name string) (string, Engine, error) {
	for _, engine := range []Engine{EnginePostgres, EngineSQLite} {
		path := s.snapshotPath(name, engine)
		_, err := os.Stat(path)
		if err == nil {
			return path, engine, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", 0, fmt.Errorf("stat snapshot %q: %w", name, err)
		}
	}
	return "", 0, fmt.Errorf("%w: %q", ErrSnapshotNotFound, name)
}

// createSnapshot writes a new snapshot file under an exclusive file lock.
// build must write the complete snapshot image to tmpPath; on success the
// file is renamed into place, so readers never observe a partial snapshot.
func (s *Store) createSnapshot(ctx context.Context, name string, engine Engine, build func(ctx context.Context, tmpPath string) error) error {
	if err := validateName(name); err != nil {
		return err
	}
	path := s.snapshotPath(name, engine)

	// Cheap existence check before taking the lock.
	exists, err := fileExists(path)
	if err != nil {
		return fmt.Errorf("stat snapshot %q: %w", name, err)
	}
	if exists {
		return fmt.Errorf("%w: %q", ErrSnapshotExists, name)
	}

	fl, err := s.acquireLock(ctx, path)
	if err != nil {
		return err
	}
	defer s.releaseLock(fl)

	// Re-check under the lock: another worker may have written the
	// snapshot while this one was waiting.
	exists, err = fileExists(path)
	if err != nil {
		return fmt.Errorf("stat snapshot %q: %w", name, err)
	}
	if exists {
		return fmt.Errorf("%w: %q", ErrSnapshotExists, name)
	}

	tmpPath := path + ".tmp"
	if err := os.Remove(tmpPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove stale temp file %s: %w", tmpPath, err)
	}
	if err := build(ctx, tmpPath); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("finalize snapshot %q: %w", name, err)
	}

	s.log().Debug("snapshot created", "name", name, "engine", engine, "path", path)
	return nil
}

// fileExists reports whether path exists, distinguishing absence from stat
// failures such as permission errors.
func fileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// acquireLock acquires an exclusive lock guarding the snapshot file at path.
// Acquisition is retried at lockRetryInterval until it succeeds or the
// context is done.
func (s *Store) acquireLock(ctx context.Context, path string) (*flock.Flock, error) {
	fl := flock.New(path + ".lock")

	locked, err := fl.TryLockContext(ctx, lockRetryInterval)
	if err != nil {
		return nil, fmt.Errorf("acquiring snapshot lock %s: %w", fl.Path(), err)
	}
	if !locked {
		// TryLockContext should return an error when it fails, but handle
		// the case where it returns (false, nil) unexpectedly.
		if ctx.Err() != nil {
			return nil, fmt.Errorf("acquiring snapshot lock %s: %w", fl.Path(), ctx.Err())
		}
		return nil, fmt.Errorf("acquiring snapshot lock %s: lock not acquired", fl.Path())
	}
	return fl, nil
}

// releaseLock releases the snapshot lock and closes its file descriptor. The
// lock file is intentionally left on disk: removing it could invalidate a
// lock concurrently acquired on the same path by another process. Close()
// unlocks internally, and errors are logged rather than returned since this
// is best-effort cleanup.
func (s *Store) releaseLock(fl *flock.Flock) {
	if fl == nil {
		return
	}
	if err := fl.Close(); err != nil {
		s.log().Debug("failed to release snapshot lock", "path", fl.Path(), "err", err)
	}
}
