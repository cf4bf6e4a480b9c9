package transcode

import (
	"fmt"
	"strings"
	"time"

	"oats/internal/codec"
	"oats/internal/media/tags"
	"oats/internal/procexec"
)

// Status is a job lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusProbing   Status = "probing"
	StatusEncoding  Status = "encoding"
	StatusTagging   Status = "tagging"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

var transitions = map[Status][]Status{
	StatusPending:  {StatusProbing, StatusFailed},
	StatusProbing:  {StatusEncoding, StatusFailed},
	StatusEncoding: {StatusTagging, StatusFailed},
	StatusTagging:  {StatusSucceeded, StatusFailed},
}

// Reason classifies a job failure.
type Reason string

const (
	ReasonSourceUnreadable Reason = "SourceUnreadable"
	ReasonEncodeToolError  Reason = "EncodeToolError"
	ReasonToolUnavailable  Reason = "ToolUnavailable"
	ReasonOutputError      Reason = "OutputError"
	ReasonCanceled         Reason = "Canceled"
)

// Failure records why a job failed. Result is set for EncodeToolError when
// the external process ran.
type Failure struct {
	Reason Reason
	Tool   string
	Result *procexec.Result
	Err    error
}

func (f *Failure) Error() string {
	var b strings.Builder
	b.WriteString(string(f.Reason))
	if f.Tool != "" {
		b.WriteString(" (" + f.Tool + ")")
	}
	if f.Err != nil {
		b.WriteString(": " + f.Err.Error())
	}
	return b.String()
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Job is one (source, format, output) unit of work. A job is owned by a
// single worker until it reaches a terminal state.
type Job struct {
	ID     int64
	Source string
	Format codec.Descriptor
	Output string

	Status   Status
	Failure  *Failure
	Warnings []string

	Tool     string
	Decoder  string
	Tags     tags.Tags
	Picture  *tags.Picture
	Duration float64
	Started  time.Time
	Elapsed  time.Duration
}

// NewJob returns a pending job.
func NewJob(id int64, source string, format codec.Descriptor, output string) *Job {
	return &Job{ID: id, Source: source, Format: format, Output: output, Status: StatusPending}
}

func (j *Job) transition(to Status) error {
	if j.Status == "" {
		j.Status = StatusPending
	}
	for _, allowed := range transitions[j.Status] {
		if allowed == to {
			j.Status = to
			return nil
		}
	}
	return fmt.Errorf("job %d: invalid transition %s -> %s", j.ID, j.Status, to)
}

func (j *Job) fail(f *Failure) *Failure {
	if j.Status.Terminal() {
		return j.Failure
	}
	j.Status = StatusFailed
	j.Failure = f
	return f
}

func (j *Job) warn(format string, args ...any) {
	j.Warnings = append(j.Warnings, fmt.Sprintf(format, args...))
}
