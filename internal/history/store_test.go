package history_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"oats/internal/codec"
	"oats/internal/history"
	"oats/internal/procexec"
	"oats/internal/testsupport"
	"oats/internal/transcode"
)

func openStore(t *testing.T) *history.Store {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store, err := history.Open(cfg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func mp3Descriptor() codec.Descriptor {
	return codec.Descriptor{Codec: codec.MP3, Mode: codec.CBR, Parameter: 320, HasParameter: true}
}

func TestBatchLifecycle(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	batch, err := store.BeginBatch(ctx, []string{"/music/Album"}, []string{"MP3 CBR 320", "FLAC"}, "/out")
	if err != nil {
		t.Fatalf("BeginBatch failed: %v", err)
	}
	if len(batch.ID) != 36 || batch.Status != history.BatchRunning {
		t.Fatalf("unexpected batch %+v", batch)
	}

	ok := transcode.NewJob(1, "/music/Album/01.flac", mp3Descriptor(), "/out/Album [MP3 CBR 320]/01.mp3")
	ok.Status = transcode.StatusSucceeded
	ok.Tool = "lame"
	ok.Warnings = []string{"tagging skipped", "second warning"}
	ok.Elapsed = 1500 * time.Millisecond

	bad := transcode.NewJob(2, "/music/Album/02.flac", mp3Descriptor(), "/out/Album [MP3 CBR 320]/02.mp3")
	bad.Status = transcode.StatusFailed
	bad.Failure = &transcode.Failure{
		Reason: transcode.ReasonEncodeToolError,
		Tool:   "lame",
		Result: &procexec.Result{ExitCode: 2, StderrTail: []string{"bad header", "giving up"}},
		Err:    errors.New("lame exited with status 2"),
	}

	records := []history.Job{
		history.JobFromTranscode(batch.ID, bad),
		history.JobFromTranscode(batch.ID, ok),
	}
	if err := store.RecordJobs(ctx, records); err != nil {
		t.Fatalf("RecordJobs failed: %v", err)
	}
	if err := store.FinishBatch(ctx, batch.ID, history.Summary{Succeeded: 1, Failed: 1, Warnings: 2, Torrents: 1}); err != nil {
		t.Fatalf("FinishBatch failed: %v", err)
	}

	found, err := store.FindBatch(ctx, batch.ShortID())
	if err != nil {
		t.Fatalf("FindBatch failed: %v", err)
	}
	if found.Status != history.BatchFailed || found.Succeeded != 1 || found.Failed != 1 || found.Torrents != 1 {
		t.Fatalf("unexpected finished batch %+v", found)
	}
	if len(found.Formats) != 2 || found.Formats[1] != "FLAC" || found.OutputDir != "/out" {
		t.Fatalf("unexpected batch fields %+v", found)
	}
	if found.FinishedAt.IsZero() || found.Elapsed() < 0 {
		t.Fatalf("expected finish time, got %+v", found)
	}

	jobs, err := store.Jobs(ctx, batch.ID)
	if err != nil {
		t.Fatalf("Jobs failed: %v", err)
	}
	if len(jobs) != 2 || jobs[0].JobID != 1 || jobs[1].JobID != 2 {
		t.Fatalf("expected jobs ordered by id, got %+v", jobs)
	}
	if jobs[0].Format != "MP3 CBR 320" || len(jobs[0].Warnings) != 2 || jobs[0].Elapsed != 1500*time.Millisecond {
		t.Fatalf("unexpected success record %+v", jobs[0])
	}
	if jobs[0].ExitCode != nil {
		t.Fatalf("expected no exit code for success, got %d", *jobs[0].ExitCode)
	}
	failed := jobs[1]
	if failed.Reason != "EncodeToolError" || failed.ExitCode == nil || *failed.ExitCode != 2 {
		t.Fatalf("unexpected failure record %+v", failed)
	}
	if failed.StderrTail != "bad header\ngiving up" || failed.Error != "lame exited with status 2" {
		t.Fatalf("unexpected failure detail %+v", failed)
	}
}

func TestRecentOrdersNewestFirst(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		batch, err := store.BeginBatch(ctx, nil, []string{"FLAC"}, "/out")
		if err != nil {
			t.Fatalf("BeginBatch failed: %v", err)
		}
		ids = append(ids, batch.ID)
		time.Sleep(2 * time.Millisecond)
	}
	if err := store.FinishBatch(ctx, ids[0], history.Summary{Succeeded: 4}); err != nil {
		t.Fatalf("FinishBatch failed: %v", err)
	}
	if err := store.AbortBatch(ctx, ids[1], errors.New("lock held")); err != nil {
		t.Fatalf("AbortBatch failed: %v", err)
	}

	recent, err := store.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(recent) != 2 || recent[0].ID != ids[2] || recent[1].ID != ids[1] {
		t.Fatalf("unexpected recent order: %+v", recent)
	}
	if recent[0].Status != history.BatchRunning || recent[1].Status != history.BatchAborted || recent[1].Error != "lock held" {
		t.Fatalf("unexpected statuses: %+v", recent)
	}
	if recent[0].Targets != nil {
		t.Fatalf("expected nil targets, got %v", recent[0].Targets)
	}

	all, err := store.Recent(ctx, 0)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(all) != 3 || all[2].Status != history.BatchCompleted {
		t.Fatalf("unexpected batches: %+v", all)
	}
}

func TestFindBatchErrors(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	if _, err := store.FindBatch(ctx, "deadbeef"); !errors.Is(err, history.ErrBatchNotFound) {
		t.Fatalf("expected ErrBatchNotFound, got %v", err)
	}
	if _, err := store.FindBatch(ctx, "  "); !errors.Is(err, history.ErrBatchNotFound) {
		t.Fatalf("expected ErrBatchNotFound for empty id, got %v", err)
	}
	if err := store.FinishBatch(ctx, "missing", history.Summary{}); !errors.Is(err, history.ErrBatchNotFound) {
		t.Fatalf("expected ErrBatchNotFound on finish, got %v", err)
	}
}

func TestOpenRejectsSchemaMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := history.OpenPath(path)
	if err != nil {
		t.Fatalf("OpenPath failed: %v", err)
	}
	_ = store.Close()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	if _, err := db.Exec("PRAGMA user_version = 99"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	_ = db.Close()

	if _, err := history.OpenPath(path); !errors.Is(err, history.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}
