package procexec

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tool")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func TestRunSuccessCapturesStdout(t *testing.T) {
	script := writeScript(t, `echo "out $1"; echo "note" >&2; exit 0`)
	var lines []string
	cmd := New(Options{OnStdout: func(line string) { lines = append(lines, line) }})

	result, err := cmd.Run(context.Background(), script, []string{"arg"})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if result.ExitCode != 0 {
		t.Fatalf("expected exit 0, got %d", result.ExitCode)
	}
	if len(lines) != 1 || lines[0] != "out arg" {
		t.Fatalf("unexpected stdout lines: %v", lines)
	}
	if result.Stderr() != "note" {
		t.Fatalf("unexpected stderr tail: %q", result.Stderr())
	}
}

func TestRunNonZeroExitReturnsExitError(t *testing.T) {
	script := writeScript(t, `i=0; while [ $i -lt 30 ]; do echo "line $i" >&2; i=$((i+1)); done; exit 3`)

	result, err := New(Options{TailLines: 5}).Run(context.Background(), script, nil)
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected ExitError, got %v", err)
	}
	if result.ExitCode != 3 || exitErr.Result.ExitCode != 3 {
		t.Fatalf("expected exit code 3, got %d", result.ExitCode)
	}
	if len(result.StderrTail) != 5 {
		t.Fatalf("expected 5 tail lines, got %d: %v", len(result.StderrTail), result.StderrTail)
	}
	if result.StderrTail[4] != "line 29" || result.StderrTail[0] != "line 25" {
		t.Fatalf("unexpected tail window: %v", result.StderrTail)
	}
	if !strings.Contains(err.Error(), "status 3") || !strings.Contains(err.Error(), "line 29") {
		t.Fatalf("unexpected error text: %v", err)
	}
}

func TestRunMissingBinary(t *testing.T) {
	result, err := Run(context.Background(), filepath.Join(t.TempDir(), "absent"), nil)
	if err == nil {
		t.Fatal("expected start error")
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		t.Fatalf("start failure should not be ExitError: %v", err)
	}
	if result.ExitCode != -1 {
		t.Fatalf("expected exit code -1, got %d", result.ExitCode)
	}
}

func TestRunHonorsCancellation(t *testing.T) {
	script := writeScript(t, `exec sleep 5`)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := Run(ctx, script, nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > 3*time.Second {
		t.Fatalf("cancellation took too long: %s", time.Since(start))
	}
}

func readPID(t *testing.T, path string) int {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		data, err := os.ReadFile(path)
		if err == nil {
			if pid, convErr := strconv.Atoi(strings.TrimSpace(string(data))); convErr == nil && pid > 0 {
				return pid
			}
		}
		if time.Now().After(deadline) {
			t.Fatalf("pid file %s not written", path)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// processGone reports whether pid has exited. A zombie awaiting its reaper
// counts as gone.
func processGone(pid int) bool {
	if err := unix.Kill(pid, 0); err != nil {
		return true
	}
	stat, err := os.ReadFile(filepath.Join("/proc", strconv.Itoa(pid), "stat"))
	if err != nil {
		return true
	}
	fields := strings.Fields(string(stat[strings.LastIndexByte(string(stat), ')')+1:]))
	return len(fields) > 0 && fields[0] == "Z"
}

func TestRunCancellationKillsDescendants(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "child.pid")
	script := writeScript(t, `sleep 30 &
echo $! > "$1"
wait`)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := Run(ctx, script, []string{pidFile})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Fatalf("cancellation waited for the descendant: %s", elapsed)
	}

	pid := readPID(t, pidFile)
	deadline := time.Now().Add(2 * time.Second)
	for !processGone(pid) {
		if time.Now().After(deadline) {
			_ = unix.Kill(pid, unix.SIGKILL)
			t.Fatalf("descendant %d survived cancellation", pid)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestRunDoesNotHangOnBackgroundDescendant(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "child.pid")
	script := writeScript(t, `sleep 30 &
echo $! > "$1"
echo finished >&2
exit 0`)

	start := time.Now()
	result, err := Run(context.Background(), script, []string{pidFile})
	pid := readPID(t, pidFile)
	t.Cleanup(func() { _ = unix.Kill(pid, unix.SIGKILL) })
	if err != nil {
		t.Fatalf("expected success once the tool exited, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > waitDelay+3*time.Second {
		t.Fatalf("Run blocked on the descendant's pipes for %s", elapsed)
	}
	if result.Stderr() != "finished" {
		t.Fatalf("unexpected stderr tail: %q", result.Stderr())
	}
}

func TestLineWriterSplitsAcrossWrites(t *testing.T) {
	var lines []string
	w := &lineWriter{emit: func(line string) { lines = append(lines, line) }}
	for _, chunk := range []string{"fir", "st\nsec", "ond\n", "tail"} {
		if _, err := w.Write([]byte(chunk)); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	w.flush()
	if strings.Join(lines, "|") != "first|second|tail" {
		t.Fatalf("unexpected lines: %q", lines)
	}
}
