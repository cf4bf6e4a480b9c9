package history

import (
	"strings"
	"time"

	"oats/internal/transcode"
)

// BatchStatus is the lifecycle state of a recorded batch.
type BatchStatus string

const (
	BatchRunning   BatchStatus = "running"
	BatchCompleted BatchStatus = "completed"
	BatchFailed    BatchStatus = "failed"
	BatchAborted   BatchStatus = "aborted"
)

// Batch is one invocation of the transcoder.
type Batch struct {
	ID         string
	Status     BatchStatus
	Targets    []string
	Formats    []string
	OutputDir  string
	Succeeded  int
	Failed     int
	Warnings   int
	Torrents   int
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// ShortID returns the first eight characters of the batch ID.
func (b Batch) ShortID() string {
	if len(b.ID) > 8 {
		return b.ID[:8]
	}
	return b.ID
}

// Elapsed returns the batch duration, or zero while it is still running.
func (b Batch) Elapsed() time.Duration {
	if b.FinishedAt.IsZero() {
		return 0
	}
	return b.FinishedAt.Sub(b.StartedAt)
}

// Summary carries the counters written when a batch finishes.
type Summary struct {
	Succeeded int
	Failed    int
	Warnings  int
	Torrents  int
	Error     string
}

// Job is the persisted outcome of one transcode job.
type Job struct {
	BatchID    string
	JobID      int64
	Source     string
	Output     string
	Format     string
	Tool       string
	Status     string
	Reason     string
	Error      string
	ExitCode   *int
	StderrTail string
	Warnings   []string
	Elapsed    time.Duration
}

// JobFromTranscode converts a terminal transcode job into its record form.
func JobFromTranscode(batchID string, job *transcode.Job) Job {
	rec := Job{
		BatchID:  batchID,
		JobID:    job.ID,
		Source:   job.Source,
		Output:   job.Output,
		Format:   job.Format.Label(),
		Tool:     job.Tool,
		Status:   string(job.Status),
		Warnings: append([]string(nil), job.Warnings...),
		Elapsed:  job.Elapsed,
	}
	if f := job.Failure; f != nil {
		rec.Reason = string(f.Reason)
		if f.Err != nil {
			rec.Error = f.Err.Error()
		}
		if f.Tool != "" {
			rec.Tool = f.Tool
		}
		if f.Result != nil {
			code := f.Result.ExitCode
			rec.ExitCode = &code
			rec.StderrTail = f.Result.Stderr()
		}
	}
	return rec
}

const listSeparator = "\n"

func joinList(values []string) string {
	return strings.Join(values, listSeparator)
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	return strings.Split(value, listSeparator)
}
