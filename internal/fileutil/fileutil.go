// Package fileutil holds small file helpers shared by the planner and the
// torrent writer.
package fileutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"oats/internal/staging"
)

// CopyFile copies src to dst with the source's permission bits. The data is
// staged in a sibling temp file and renamed into place, so dst is either the
// old file or a complete copy.
func CopyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}
	return CopyFileMode(src, dst, info.Mode().Perm())
}

// CopyFileMode copies src to dst, setting mode on dst.
func CopyFileMode(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	return WriteAtomic(dst, mode, func(w io.Writer) error {
		written, err := io.Copy(w, in)
		if err != nil {
			return err
		}
		if info, err := in.Stat(); err == nil && info.Size() != written {
			return fmt.Errorf("copy size mismatch: source %d bytes, copied %d bytes", info.Size(), written)
		}
		return nil
	})
}

// WriteAtomic creates dst's directory, streams fill into a temp file next to
// dst and renames it into place. On any error the temp file is removed and
// dst is untouched.
func WriteAtomic(dst string, mode os.FileMode, fill func(io.Writer) error) error {
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, staging.TempPrefix+"write-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if err := fill(tmp); err != nil {
		return err
	}
	if err := tmp.Chmod(mode); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	committed = true
	return nil
}

// Exists reports whether path exists. Errors other than not-exist count as
// existing so callers never overwrite something they could not inspect.
func Exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil || !os.IsNotExist(err)
}
