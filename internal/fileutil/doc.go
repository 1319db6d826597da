// Package fileutil provides file operation utilities for directory and file management.
//
// EnsureDir creates directories recursively, and CopyFile copies files with
// support for explicit permissions, fsync, and atomic writes via temp-file-then-rename.
// These are used throughout e2ekit for preparing app data directories and
// restoring database snapshots.
package fileutil
