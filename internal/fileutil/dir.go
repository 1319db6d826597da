package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
)

// dirMode is the permission for directories this package creates.
const dirMode os.FileMode = 0o755

// EnsureDir creates path and any missing parents. It is a no-op when the
// directory already exists.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, dirMode); err != nil {
		return fmt.Errorf("create directory %s: %w", path, err)
	}
	return nil
}

// EnsureDirForFile creates the parent directory of filePath, so the file can
// then be created without a missing-directory error.
func EnsureDirForFile(filePath string) error {
	if err := EnsureDir(filepath.Dir(filePath)); err != nil {
		return fmt.Errorf("ensure dir for %s: %w", filePath, err)
	}
	return nil
}
