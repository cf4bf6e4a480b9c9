package staging

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"oats/internal/logging"
)

func touch(t *testing.T, path string, age time.Duration) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	stamp := time.Now().Add(-age)
	if err := os.Chtimes(path, stamp, stamp); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
}

func TestSweepTempsInvalidPaths(t *testing.T) {
	for _, dir := range []string{"", "   ", "/nonexistent/path/12345"} {
		result := SweepTemps(context.Background(), dir, 0, logging.NewNop())
		if len(result.Removed) != 0 || len(result.Errors) != 0 {
			t.Errorf("expected empty result for path %q", dir)
		}
	}
}

func TestSweepTempsRemovesOnlyOldPrefixedFiles(t *testing.T) {
	root := t.TempDir()
	stale := filepath.Join(root, "Album [MP3 CBR 320]", TempPrefix+"encode-123.mp3")
	fresh := filepath.Join(root, "Album [MP3 CBR 320]", TempPrefix+"decode-456.wav")
	output := filepath.Join(root, "Album [MP3 CBR 320]", "01 Intro.mp3")
	lock := filepath.Join(root, ".oats.lock")
	touch(t, stale, 2*time.Hour)
	touch(t, fresh, 0)
	touch(t, output, 2*time.Hour)
	touch(t, lock, 2*time.Hour)

	result := SweepTemps(context.Background(), root, time.Hour, logging.NewNop())
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected errors: %+v", result.Errors)
	}
	if len(result.Removed) != 1 || result.Removed[0] != stale {
		t.Fatalf("unexpected removals: %v", result.Removed)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatal("stale temp should have been removed")
	}
	for _, keep := range []string{fresh, output, lock} {
		if _, err := os.Stat(keep); err != nil {
			t.Fatalf("%s should remain: %v", keep, err)
		}
	}
}

func TestSweepTempsHonorsCancellation(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, TempPrefix+"write-1"), time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result := SweepTemps(ctx, root, 0, logging.NewNop())
	if len(result.Removed) != 0 {
		t.Fatalf("cancelled sweep removed files: %v", result.Removed)
	}
	if len(result.Errors) != 1 {
		t.Fatalf("expected cancellation error, got %+v", result.Errors)
	}
}
