package preflight

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"oats/internal/config"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckCreatableDirectory(t *testing.T) {
	base := t.TempDir()
	result := CheckCreatableDirectory("out", filepath.Join(base, "a", "b"))
	if !result.Passed || !strings.Contains(result.Detail, "will be created") {
		t.Fatalf("expected creatable dir to pass, got %+v", result)
	}

	file := filepath.Join(base, "file")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result = CheckCreatableDirectory("out", filepath.Join(file, "sub"))
	if result.Passed {
		t.Fatal("expected failure when an ancestor is a regular file")
	}
}

func TestCheckFreeSpace(t *testing.T) {
	dir := t.TempDir()
	if result := CheckFreeSpace("free", filepath.Join(dir, "missing"), 1); !result.Passed {
		t.Fatalf("expected at least one free byte, got %+v", result)
	}
	result := CheckFreeSpace("free", dir, ^uint64(0))
	if result.Passed {
		t.Fatal("expected impossible free-space requirement to fail")
	}
	if !result.Advisory || !strings.Contains(result.Detail, "need") {
		t.Fatalf("unexpected detail %q", result.Detail)
	}
}

func TestRunAllGatesTorrentDirectory(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.OutputDir = filepath.Join(base, "out")
	cfg.Paths.TorrentDir = filepath.Join(base, "torrents")
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.History.Enabled = false

	names := func(results []Result) string {
		var out []string
		for _, r := range results {
			out = append(out, r.Name)
		}
		return strings.Join(out, ",")
	}

	cfg.Torrent.Enabled = false
	if got := names(RunAll(&cfg)); got != "Output directory,Output free space" {
		t.Fatalf("unexpected checks without torrents: %s", got)
	}
	cfg.Torrent.Enabled = true
	cfg.History.Enabled = true
	if got := names(RunAll(&cfg)); got != "Output directory,Output free space,Torrent directory,State directory" {
		t.Fatalf("unexpected checks with torrents: %s", got)
	}
	if RunAll(nil) != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestFailedAndBlockingFilters(t *testing.T) {
	results := []Result{{Name: "a", Passed: true}, {Name: "b"}, {Name: "c", Advisory: true}}
	failed := Failed(results)
	if len(failed) != 2 || failed[0].Name != "b" || failed[1].Name != "c" {
		t.Fatalf("unexpected failed results %+v", failed)
	}
	blocking := Blocking(results)
	if len(blocking) != 1 || blocking[0].Name != "b" {
		t.Fatalf("unexpected blocking results %+v", blocking)
	}
}

func TestCheckSystemDepsReportsOptionalFFprobe(t *testing.T) {
	cfg := config.Default()
	cfg.Transcode.FFprobe = ""
	statuses := CheckSystemDeps(&cfg)
	if len(statuses) != 1 || statuses[0].Available || !statuses[0].Optional {
		t.Fatalf("unexpected statuses %+v", statuses)
	}
}
