package dbsnap

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/jackc/pgx/v5"
)

// SnapshotPostgres dumps the PostgreSQL database at dbURL into the store
// under name, using pg_dump's custom format (compressed, suitable for
// selective and parallel pg_restore). Returns ErrSnapshotExists if the name
// is already taken.
//
// The dump runs against a live server and does not block other sessions;
// pg_dump takes a consistent MVCC view of the database.
func (s *Store) SnapshotPostgres(ctx context.Context, name, dbURL string) error {
	if dbURL == "" {
		return errors.New("database URL must not be empty")
	}
	return s.createSnapshot(ctx, name, EnginePostgres, func(ctx context.Context, tmpPath string) error {
		if err := s.runPgTool(ctx, s.pgDump, pgDumpArgs(tmpPath, dbURL)); err != nil {
			return fmt.Errorf("dump database for snapshot %q: %w", name, err)
		}
		return nil
	})
}

// RestorePostgres rebuilds the database at dbURL from the named snapshot.
// The target database is dropped and created fresh through an administrative
// connection, so every object and row present before the restore is lost.
// Sessions still attached to the target database are terminated first.
//
// The connection role must be allowed to drop and create the database, and
// the server's maintenance database (postgres) must accept connections from
// it. Callers must quiesce the application under test before restoring;
// terminated sessions observe connection errors, not a clean shutdown.
func (s *Store) RestorePostgres(ctx context.Context, name, dbURL string) error {
	if dbURL == "" {
		return errors.New("database URL must not be empty")
	}
	if err := validateName(name); err != nil {
		return err
	}

	path := s.snapshotPath(name, EnginePostgres)
	exists, err := fileExists(path)
	if err != nil {
		return fmt.Errorf("stat snapshot %q: %w", name, err)
	}
	if !exists {
		return fmt.Errorf("%w: %q", ErrSnapshotNotFound, name)
	}

	if err := s.recreateDatabase(ctx, dbURL); err != nil {
		return fmt.Errorf("recreate database for snapshot %q: %w", name, err)
	}

	if err := s.runPgTool(ctx, s.pgRestore, pgRestoreArgs(path, dbURL)); err != nil {
		return fmt.Errorf("restore snapshot %q: %w", name, err)
	}

	s.log().Debug("snapshot restored", "name", name, "engine", EnginePostgres)
	return nil
}

// pgDumpArgs builds the pg_dump invocation for writing a snapshot to
// dumpPath. Custom format keeps dumps compressed and restorable in parallel;
// ownership and privilege statements are stripped because the restore role
// rarely matches the dump role on test servers.
func pgDumpArgs(dumpPath, dbURL string) []string {
	return []string{
		"--format=custom",
		"--no-owner",
		"--no-privileges",
		"--file", dumpPath,
		dbURL,
	}
}

// pgRestoreArgs builds the pg_restore invocation for loading snapshotPath
// into the database at dbURL. --exit-on-error makes a partial restore fail
// loudly instead of leaving a half-populated database for the suite to
// misdiagnose.
func pgRestoreArgs(snapshotPath, dbURL string) []string {
	return []string{
		"--dbname", dbURL,
		"--no-owner",
		"--no-privileges",
		"--exit-on-error",
		snapshotPath,
	}
}

// recreateDatabase drops and recreates the database named in dbURL through an
// administrative connection to the maintenance database on the same server.
func (s *Store) recreateDatabase(ctx context.Context, dbURL string) error {
	dbName, adminURL, err := splitAdminURL(dbURL)
	if err != nil {
		return err
	}

	conn, err := pgx.Connect(ctx, adminURL)
	if err != nil {
		return fmt.Errorf("failed to connect to maintenance database: %w", err)
	}
	defer func() {
		if err := conn.Close(ctx); err != nil {
			s.log().Warn("failed to close maintenance connection", "err", err)
		}
	}()

	// DROP DATABASE fails while any session is attached, so kick them out
	// first. The predicate excludes this connection, which is attached to
	// the maintenance database anyway.
	_, err = conn.Exec(ctx,
		"SELECT pg_terminate_backend(pid) FROM pg_stat_activity WHERE datname = $1 AND pid <> pg_backend_pid()",
		dbName,
	)
	if err != nil {
		return fmt.Errorf("failed to terminate sessions for %q: %w", dbName, err)
	}

	// DDL cannot take bind parameters; Sanitize quotes the identifier.
	ident := pgx.Identifier{dbName}.Sanitize()
	if _, err := conn.Exec(ctx, "DROP DATABASE IF EXISTS "+ident); err != nil {
		return fmt.Errorf("failed to drop database %q: %w", dbName, err)
	}
	if _, err := conn.Exec(ctx, "CREATE DATABASE "+ident); err != nil {
		return fmt.Errorf("failed to create database %q: %w", dbName, err)
	}
	return nil
}

// splitAdminURL splits a PostgreSQL connection URL into the database name it
// targets and a URL for the maintenance database (postgres) on the same
// server. Credentials and query parameters such as sslmode are preserved.
func splitAdminURL(dbURL string) (dbName, adminURL string, err error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return "", "", fmt.Errorf("parse database URL: %w", err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return "", "", fmt.Errorf("unsupported database URL scheme %q", u.Scheme)
	}

	dbName = strings.TrimPrefix(u.Path, "/")
	if dbName == "" {
		return "", "", errors.New("database URL must name a database")
	}
	if strings.Contains(dbName, "/") {
		return "", "", fmt.Errorf("database URL path %q must name a single database", u.Path)
	}

	u.Path = "/postgres"
	return dbName, u.String(), nil
}

// runPgTool runs a PostgreSQL client tool to completion, folding its stderr
// into the returned error. Stderr is where pg_dump and pg_restore explain
// failures; without it the exit status alone ("exit status 1") is useless.
// Arguments are not logged because connection URLs embed credentials.
func (s *Store) runPgTool(ctx context.Context, bin string, args []string) error {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stdout = io.Discard
	cmd.Stderr = &stderr

	s.log().Debug("running postgres client tool", "binary", bin)
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s: %w: %s", filepath.Base(bin), err, msg)
		}
		return fmt.Errorf("%s: %w", filepath.Base(bin), err)
	}
	return nil
}
