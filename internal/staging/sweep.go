package staging

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"oats/internal/logging"
)

// TempPrefix starts the name of every temporary file OATS creates next to
// its outputs: decoded WAVs, staged encodes, tag remuxes and atomic writes.
const TempPrefix = ".oats-"

// SweepResult reports what a sweep removed and what it could not.
type SweepResult struct {
	Removed []string
	Errors  []SweepError
}

// SweepError pairs a path with the error encountered removing it.
type SweepError struct {
	Path  string
	Error error
}

// SweepTemps removes TempPrefix files under root whose modification time is
// older than minAge. Callers hold the batch lock on root, so anything it
// finds was left behind by an interrupted run. The lock file itself does
// not carry the prefix and is never touched.
func SweepTemps(ctx context.Context, root string, minAge time.Duration, logger *slog.Logger) SweepResult {
	result := SweepResult{}

	root = strings.TrimSpace(root)
	if root == "" {
		return result
	}
	if _, err := os.Stat(root); err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, SweepError{Path: root, Error: err})
		}
		return result
	}

	cutoff := time.Now().Add(-minAge)
	walkErr := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			result.Errors = append(result.Errors, SweepError{Path: path, Error: err})
			if entry != nil && entry.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !entry.Type().IsRegular() || !strings.HasPrefix(entry.Name(), TempPrefix) {
			return nil
		}
		info, err := entry.Info()
		if err != nil {
			result.Errors = append(result.Errors, SweepError{Path: path, Error: err})
			return nil
		}
		if !info.ModTime().Before(cutoff) {
			return nil
		}
		if err := os.Remove(path); err != nil {
			result.Errors = append(result.Errors, SweepError{Path: path, Error: err})
			if logger != nil {
				logger.Warn("failed to remove stale temp file",
					logging.String("path", path),
					logging.Error(err),
					logging.String(logging.FieldEventType, "temp_sweep_failed"),
					logging.String(logging.FieldErrorHint, "check output_dir permissions"),
					logging.String(logging.FieldImpact, "disk space not reclaimed"),
				)
			}
			return nil
		}
		result.Removed = append(result.Removed, path)
		if logger != nil {
			logger.Info("removed stale temp file",
				logging.String("path", path),
				logging.Duration("age", time.Since(info.ModTime())),
				logging.String(logging.FieldEventType, "temp_sweep"),
			)
		}
		return nil
	})
	if walkErr != nil {
		result.Errors = append(result.Errors, SweepError{Path: root, Error: walkErr})
	}
	return result
}
