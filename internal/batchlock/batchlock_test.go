package batchlock_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"oats/internal/batchlock"
)

func TestAcquireIsExclusive(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")

	first, err := batchlock.Acquire(dir)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if first.Path() != filepath.Join(dir, batchlock.FileName) {
		t.Fatalf("unexpected lock path %q", first.Path())
	}

	if _, err := batchlock.Acquire(dir); !errors.Is(err, batchlock.ErrHeld) {
		t.Fatalf("expected ErrHeld while locked, got %v", err)
	}

	if err := first.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if _, err := os.Stat(first.Path()); !os.IsNotExist(err) {
		t.Fatalf("expected lock file removed, stat err=%v", err)
	}
	if err := first.Release(); err != nil {
		t.Fatalf("second Release should be a no-op, got %v", err)
	}

	again, err := batchlock.Acquire(dir)
	if err != nil {
		t.Fatalf("re-acquire failed: %v", err)
	}
	_ = again.Release()
}
