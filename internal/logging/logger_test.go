package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"oats/internal/config"
	"oats/internal/logging"
	"oats/internal/services"
)

func TestNewJSONWritesStructuredRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "oats.log")
	logger, err := logging.New(logging.Options{Level: "debug", Format: "json", OutputPaths: []string{path}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("job finished", logging.String(logging.FieldFormat, "MP3 CBR 320"), logging.Int64(logging.FieldJobID, 4))

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	var record map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &record); err != nil {
		t.Fatalf("decode log line %q: %v", data, err)
	}
	if record["msg"] != "job finished" {
		t.Fatalf("unexpected msg: %v", record["msg"])
	}
	if record["level"] != "info" {
		t.Fatalf("unexpected level: %v", record["level"])
	}
	if record[logging.FieldFormat] != "MP3 CBR 320" {
		t.Fatalf("missing format field: %v", record)
	}
	if _, ok := record["ts"]; !ok {
		t.Fatalf("expected ts field: %v", record)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml", OutputPaths: []string{filepath.Join(t.TempDir(), "x.log")}}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestConsoleHandlerRendersSubject(t *testing.T) {
	path := filepath.Join(t.TempDir(), "console.log")
	logger, err := logging.New(logging.Options{Level: "info", Format: "console", OutputPaths: []string{path}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := services.WithBatchID(context.Background(), "0123456789abcdef")
	ctx = services.WithJobID(ctx, int64(7))
	ctx = services.WithStage(ctx, "encode")
	logger = logging.NewComponentLogger(logger, "transcode")
	logging.WithContext(ctx, logger).Info("encoding track", logging.String("tool", "lame"))
	logger.Debug("hidden")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	line := string(data)
	for _, want := range []string{"INFO", "transcode: ", "[Batch 01234567 · Job #7 (encode)]", "encoding track", "tool=lame"} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %q in %q", want, line)
		}
	}
	if strings.Contains(line, "hidden") {
		t.Fatalf("debug record should be filtered at info level: %q", line)
	}
}

func TestNewFromConfigCreatesLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = filepath.Join(t.TempDir(), "logs")
	cfg.Logging.Format = "json"

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Warn("disk nearly full")

	data, err := os.ReadFile(cfg.LogPath())
	if err != nil {
		t.Fatalf("expected log file at %s: %v", cfg.LogPath(), err)
	}
	if !strings.Contains(string(data), "disk nearly full") {
		t.Fatalf("log file missing record: %q", data)
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	logging.WarnWithContext(logger, "tagging skipped", "tag_write_failed", logging.String(logging.FieldImpact, "output has no tags"))

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if record[logging.FieldEventType] != "tag_write_failed" {
		t.Fatalf("unexpected event type: %v", record)
	}
	if record[logging.FieldImpact] != "output has no tags" {
		t.Fatalf("impact should not be overwritten: %v", record)
	}
	if record[logging.FieldErrorHint] == nil {
		t.Fatalf("expected default error hint: %v", record)
	}
}

func TestSubjectString(t *testing.T) {
	cases := []struct {
		subject logging.Subject
		want    string
	}{
		{logging.Subject{}, ""},
		{logging.Subject{Batch: "abc"}, "Batch abc"},
		{logging.Subject{Job: "3"}, "Job #3"},
		{logging.Subject{Stage: "torrent"}, "torrent"},
		{logging.Subject{Batch: "abcdefghij", Job: "2", Stage: "probe"}, "Batch abcdefgh · Job #2 (probe)"},
		{logging.Subject{Job: "5", Format: "Opus VBR 128"}, "Job #5 · Opus VBR 128"},
	}
	for _, tc := range cases {
		if got := tc.subject.String(); got != tc.want {
			t.Fatalf("%+v.String() = %q, want %q", tc.subject, got, tc.want)
		}
	}
}

func TestConsoleHandlerPrintsLineBlocks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "console.log")
	logger, err := logging.New(logging.Options{Format: "console", OutputPaths: []string{path}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Error("job failed",
		logging.String(logging.FieldFormat, "MP3 CBR 320"),
		logging.Int("exit_code", 2),
		logging.Lines(logging.FieldStderrTail, []string{"warming up", "fatal: bad header"}),
	)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected record plus two block lines, got %q", lines)
	}
	if !strings.Contains(lines[0], "[MP3 CBR 320] job failed exit_code=2") {
		t.Fatalf("unexpected record line: %q", lines[0])
	}
	if strings.Contains(lines[0], logging.FieldStderrTail) {
		t.Fatalf("line block should not be inlined: %q", lines[0])
	}
	if lines[1] != "    | warming up" || lines[2] != "    | fatal: bad header" {
		t.Fatalf("unexpected block lines: %q", lines[1:])
	}
	if strings.Contains(string(data), "\x1b[") {
		t.Fatalf("file output must not be colored: %q", data)
	}
}

func TestJSONEncodesLineBlocksAsArrays(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "json", Stderr: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Warn("tail", logging.Lines(logging.FieldStderrTail, []string{"a", "b"}))

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	tail, ok := record[logging.FieldStderrTail].([]any)
	if !ok || len(tail) != 2 || tail[1] != "b" {
		t.Fatalf("expected stderr tail array, got %v", record[logging.FieldStderrTail])
	}
}

func TestFanoutWritesEverySink(t *testing.T) {
	var console bytes.Buffer
	path := filepath.Join(t.TempDir(), "oats.log")
	logger, err := logging.New(logging.Options{Format: "console", OutputPaths: []string{"stderr", path}, Stderr: &console})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.With(logging.String(logging.FieldComponent, "cli")).Info("batch started", logging.Int("jobs", 3))

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	for name, out := range map[string]string{"console": console.String(), "file": string(data)} {
		if !strings.Contains(out, "cli: batch started jobs=3") {
			t.Fatalf("%s sink missing record: %q", name, out)
		}
	}
}
