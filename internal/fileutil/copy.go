package fileutil

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/studytab/e2ekit/internal/sentinel"
)

// ErrEmptySrc is returned when a source path is empty.
const ErrEmptySrc = sentinel.Error("source path must not be empty")

// ErrEmptyDst is returned when a destination path is empty.
const ErrEmptyDst = sentinel.Error("destination path must not be empty")

// defaultFileMode is used for copies that do not request explicit permissions.
const defaultFileMode os.FileMode = 0o644

// CopyFileOptions configures CopyFile.
type CopyFileOptions struct {
	// Mode sets the destination's permissions. Nil means 0644.
	Mode *os.FileMode

	// Sync flushes the destination to stable storage before it is closed.
	Sync bool

	// Atomic writes to a temporary file next to dst and renames it into
	// place, so concurrent readers never observe a partial copy.
	Atomic bool
}

// CopyFile copies src to dst, creating dst's parent directories as needed.
// A nil opts copies with the defaults: mode 0644, no fsync, non-atomic.
//
// When src and dst name the same file, CopyFile returns nil without touching
// it; truncating the destination first would destroy the source. Snapshot
// restores hit this when a caller passes the stored snapshot itself as the
// live database path.
//
// The destination is created with its final permissions up front, so the file
// never exists with broader permissions than requested. With Atomic set, the
// data is fsynced before the rename; a crash in between leaves dst untouched
// instead of truncated.
func CopyFile(src, dst string, opts *CopyFileOptions) (retErr error) {
	if src == "" {
		return ErrEmptySrc
	}
	if dst == "" {
		return ErrEmptyDst
	}

	if err := EnsureDirForFile(dst); err != nil {
		return fmt.Errorf("prepare destination: %w", err)
	}

	same, err := sameFile(src, dst)
	if err != nil {
		return err
	}
	if same {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer func() {
		if closeErr := in.Close(); closeErr != nil && retErr == nil {
			retErr = fmt.Errorf("close source: %w", closeErr)
		}
	}()

	var o CopyFileOptions
	if opts != nil {
		o = *opts
	}
	mode := defaultFileMode
	if o.Mode != nil {
		mode = *o.Mode
	}

	out, workPath, err := stageTarget(dst, mode, o.Atomic)
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			_ = os.Remove(workPath)
		}
	}()

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy: %w", err)
	}

	return commit(out, workPath, dst, o.Sync || o.Atomic)
}

// sameFile reports whether src and dst already name the same file. A missing
// destination is not an error; it simply is not the same file.
func sameFile(src, dst string) (bool, error) {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return false, fmt.Errorf("stat source: %w", err)
	}
	dstInfo, err := os.Stat(dst)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat destination: %w", err)
	}
	return os.SameFile(srcInfo, dstInfo), nil
}

// stageTarget opens the file the copy writes into: dst itself, or a temporary
// sibling when the copy is atomic. The returned path is where the bytes
// actually land, so a failed copy can remove them.
func stageTarget(dst string, mode os.FileMode, atomic bool) (*os.File, string, error) {
	if !atomic {
		f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
		if err != nil {
			return nil, "", fmt.Errorf("create destination: %w", err)
		}
		return f, dst, nil
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".tmp-copy-*")
	if err != nil {
		return nil, "", fmt.Errorf("create temp file: %w", err)
	}
	// CreateTemp always uses 0600; adjust to the requested mode.
	if err := tmp.Chmod(mode); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return nil, "", fmt.Errorf("chmod temp file: %w", err)
	}
	return tmp, tmp.Name(), nil
}

// commit flushes, closes, and (for atomic copies) renames the staged file
// into place. The rename must come after a successful close.
func commit(out *os.File, workPath, dst string, sync bool) error {
	if sync {
		if err := out.Sync(); err != nil {
			_ = out.Close()
			return fmt.Errorf("sync: %w", err)
		}
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close destination: %w", err)
	}
	if workPath != dst {
		if err := os.Rename(workPath, dst); err != nil {
			return fmt.Errorf("rename temp file to destination: %w", err)
		}
	}
	return nil
}
