package dbsnap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	// Register the pure-Go SQLite driver (no CGO required).
	_ "modernc.org/sqlite"

	"github.com/studytab/e2ekit/internal/fileutil"
)

// SnapshotSQLite copies the SQLite database at dbPath into the store under
// name. The image is taken with VACUUM INTO, which produces a consistent,
// compacted single-file copy even while other connections hold the database
// open; it also folds WAL content in, so the snapshot needs no sidecar files.
// Returns ErrSnapshotExists if the name is already taken.
func (s *Store) SnapshotSQLite(ctx context.Context, name, dbPath string) error {
	if dbPath == "" {
		return errors.New("database path must not be empty")
	}
	return s.createSnapshot(ctx, name, EngineSQLite, func(ctx context.Context, tmpPath string) error {
		// sql.Open is lazy and SQLite creates missing files on first
		// write, so a typo'd path would silently snapshot a brand-new
		// empty database. Catch that here.
		if _, err := os.Stat(dbPath); err != nil {
			return fmt.Errorf("stat database %s: %w", dbPath, err)
		}

		db, err := openSQLite(dbPath)
		if err != nil {
			return err
		}
		defer func() {
			if err := db.Close(); err != nil {
				s.log().Warn("failed to close sqlite database", "path", dbPath, "err", err)
			}
		}()

		if _, err := db.ExecContext(ctx, "VACUUM INTO ?", tmpPath); err != nil {
			return fmt.Errorf("vacuum %s into snapshot: %w", dbPath, err)
		}
		return nil
	})
}

// RestoreSQLite replaces the SQLite database at dbPath with the named
// snapshot. The snapshot is integrity-checked first, then copied into place
// atomically. Stale -wal and -shm sidecar files next to dbPath are removed,
// since leftover journal state would rewind or corrupt the restored image.
//
// Callers must close every connection to dbPath before restoring; SQLite has
// no server through which sessions could be terminated.
func (s *Store) RestoreSQLite(ctx context.Context, name, dbPath string) error {
	if dbPath == "" {
		return errors.New("database path must not be empty")
	}
	if err := validateName(name); err != nil {
		return err
	}

	path := s.snapshotPath(name, EngineSQLite)
	exists, err := fileExists(path)
	if err != nil {
		return fmt.Errorf("stat snapshot %q: %w", name, err)
	}
	if !exists {
		return fmt.Errorf("%w: %q", ErrSnapshotNotFound, name)
	}

	if err := s.quickCheck(ctx, path); err != nil {
		return fmt.Errorf("snapshot %q failed integrity check: %w", name, err)
	}

	if err := fileutil.EnsureDirForFile(dbPath); err != nil {
		return fmt.Errorf("prepare database directory: %w", err)
	}
	mode := os.FileMode(0o600)
	if err := fileutil.CopyFile(path, dbPath, &fileutil.CopyFileOptions{Mode: &mode, Sync: true, Atomic: true}); err != nil {
		return fmt.Errorf("copy snapshot %q into place: %w", name, err)
	}
	for _, sidecar := range []string{dbPath + "-wal", dbPath + "-shm"} {
		if err := os.Remove(sidecar); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove stale sidecar %s: %w", sidecar, err)
		}
	}

	s.log().Debug("snapshot restored", "name", name, "engine", EngineSQLite, "path", dbPath)
	return nil
}

// quickCheck runs PRAGMA quick_check against the snapshot file, opened
// read-only. quick_check reports "ok" in its first row on a healthy
// database and a description of the first problem otherwise.
func (s *Store) quickCheck(ctx context.Context, path string) error {
	dsn := fmt.Sprintf("file:%s?mode=ro", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("open snapshot: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			s.log().Warn("failed to close snapshot database", "path", path, "err", err)
		}
	}()
	db.SetMaxOpenConns(1)

	var result string
	if err := db.QueryRowContext(ctx, "PRAGMA quick_check(1)").Scan(&result); err != nil {
		return fmt.Errorf("quick_check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("quick_check reported %q", result)
	}
	return nil
}

// openSQLite opens dbPath with a generous busy timeout, so the snapshot does
// not fail immediately when the application under test holds short write
// locks. A single connection keeps the timeout meaningful; concurrent
// connections from one *sql.DB would contend with each other.
func openSQLite(dbPath string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(30000)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database %s: %w", dbPath, err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}
