package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrBatchNotFound reports an unknown batch ID or prefix.
var ErrBatchNotFound = errors.New("batch not found")

const batchColumns = "id, status, targets, formats, output_dir, succeeded, failed, warnings, torrents, error_message, started_at, finished_at"

// BeginBatch records a new running batch and returns it with a fresh ID.
func (s *Store) BeginBatch(ctx context.Context, targets, formats []string, outputDir string) (Batch, error) {
	batch := Batch{
		ID:        uuid.NewString(),
		Status:    BatchRunning,
		Targets:   append([]string(nil), targets...),
		Formats:   append([]string(nil), formats...),
		OutputDir: outputDir,
		StartedAt: time.Now().UTC(),
	}
	_, err := s.exec(ctx,
		`INSERT INTO batches (id, status, targets, formats, output_dir, started_at) VALUES (?, ?, ?, ?, ?, ?)`,
		batch.ID, string(batch.Status), joinList(batch.Targets), joinList(batch.Formats), batch.OutputDir, formatTime(batch.StartedAt),
	)
	if err != nil {
		return Batch{}, fmt.Errorf("insert batch: %w", err)
	}
	return batch, nil
}

// RecordJobs stores job outcomes for a batch in one transaction. Re-recording
// a job replaces the earlier row.
func (s *Store) RecordJobs(ctx context.Context, jobs []Job) error {
	if len(jobs) == 0 {
		return nil
	}
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin jobs tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO jobs
			(batch_id, job_id, source_path, output_path, format, tool, status, reason, error_message, exit_code, stderr_tail, warnings, elapsed_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare job insert: %w", err)
		}
		defer stmt.Close()

		for _, job := range jobs {
			var exitCode any
			if job.ExitCode != nil {
				exitCode = *job.ExitCode
			}
			if _, err := stmt.ExecContext(ctx,
				job.BatchID, job.JobID, job.Source, job.Output, job.Format,
				nullableString(job.Tool), job.Status, nullableString(job.Reason), nullableString(job.Error),
				exitCode, nullableString(job.StderrTail), nullableString(joinList(job.Warnings)),
				job.Elapsed.Milliseconds(),
			); err != nil {
				return fmt.Errorf("insert job %d: %w", job.JobID, err)
			}
		}
		return tx.Commit()
	})
}

// FinishBatch stores the final counters. The status is failed when any job
// failed or summary.Error is set.
func (s *Store) FinishBatch(ctx context.Context, id string, summary Summary) error {
	status := BatchCompleted
	if summary.Failed > 0 || summary.Error != "" {
		status = BatchFailed
	}
	return s.finish(ctx, id, status, summary)
}

// AbortBatch marks a batch that stopped before producing a report.
func (s *Store) AbortBatch(ctx context.Context, id string, cause error) error {
	summary := Summary{}
	if cause != nil {
		summary.Error = cause.Error()
	}
	return s.finish(ctx, id, BatchAborted, summary)
}

func (s *Store) finish(ctx context.Context, id string, status BatchStatus, summary Summary) error {
	res, err := s.exec(ctx,
		`UPDATE batches SET status = ?, succeeded = ?, failed = ?, warnings = ?, torrents = ?, error_message = ?, finished_at = ? WHERE id = ?`,
		string(status), summary.Succeeded, summary.Failed, summary.Warnings, summary.Torrents,
		nullableString(summary.Error), formatTime(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("update batch: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrBatchNotFound, id)
	}
	return nil
}

// Recent returns up to limit batches, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Batch, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+batchColumns+` FROM batches ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	defer rows.Close()

	var batches []Batch
	for rows.Next() {
		batch, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, batch)
	}
	return batches, rows.Err()
}

// FindBatch returns the batch whose ID equals or starts with idOrPrefix.
// An ambiguous prefix is an error.
func (s *Store) FindBatch(ctx context.Context, idOrPrefix string) (Batch, error) {
	idOrPrefix = strings.TrimSpace(idOrPrefix)
	if idOrPrefix == "" {
		return Batch{}, fmt.Errorf("%w: empty id", ErrBatchNotFound)
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+batchColumns+` FROM batches WHERE id = ? OR id LIKE ? ORDER BY started_at DESC LIMIT 2`,
		idOrPrefix, stripLikeWildcards(idOrPrefix)+"%")
	if err != nil {
		return Batch{}, fmt.Errorf("find batch: %w", err)
	}
	defer rows.Close()

	var matches []Batch
	for rows.Next() {
		batch, err := scanBatch(rows)
		if err != nil {
			return Batch{}, err
		}
		if batch.ID == idOrPrefix {
			return batch, nil
		}
		matches = append(matches, batch)
	}
	if err := rows.Err(); err != nil {
		return Batch{}, err
	}
	switch len(matches) {
	case 0:
		return Batch{}, fmt.Errorf("%w: %s", ErrBatchNotFound, idOrPrefix)
	case 1:
		return matches[0], nil
	default:
		return Batch{}, fmt.Errorf("batch prefix %q is ambiguous", idOrPrefix)
	}
}

// Jobs returns the recorded jobs of a batch ordered by job ID.
func (s *Store) Jobs(ctx context.Context, batchID string) ([]Job, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT batch_id, job_id, source_path, output_path, format, tool, status, reason, error_message, exit_code, stderr_tail, warnings, elapsed_ms
		FROM jobs WHERE batch_id = ? ORDER BY job_id`, batchID)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var (
			job        Job
			tool       sql.NullString
			reason     sql.NullString
			errMsg     sql.NullString
			exitCode   sql.NullInt64
			stderrTail sql.NullString
			warnings   sql.NullString
			elapsedMS  int64
		)
		if err := rows.Scan(&job.BatchID, &job.JobID, &job.Source, &job.Output, &job.Format,
			&tool, &job.Status, &reason, &errMsg, &exitCode, &stderrTail, &warnings, &elapsedMS); err != nil {
			return nil, err
		}
		job.Tool = tool.String
		job.Reason = reason.String
		job.Error = errMsg.String
		job.StderrTail = stderrTail.String
		job.Warnings = splitList(warnings.String)
		job.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		if exitCode.Valid {
			code := int(exitCode.Int64)
			job.ExitCode = &code
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func scanBatch(scanner interface{ Scan(dest ...any) error }) (Batch, error) {
	var (
		batch       Batch
		status      string
		targets     string
		formats     string
		errMsg      sql.NullString
		startedRaw  string
		finishedRaw sql.NullString
	)
	if err := scanner.Scan(&batch.ID, &status, &targets, &formats, &batch.OutputDir,
		&batch.Succeeded, &batch.Failed, &batch.Warnings, &batch.Torrents,
		&errMsg, &startedRaw, &finishedRaw); err != nil {
		return Batch{}, err
	}
	batch.Status = BatchStatus(status)
	batch.Targets = splitList(targets)
	batch.Formats = splitList(formats)
	batch.Error = errMsg.String
	if started, err := parseTime(startedRaw); err == nil {
		batch.StartedAt = started
	}
	if finishedRaw.Valid {
		if finished, err := parseTime(finishedRaw.String); err == nil {
			batch.FinishedAt = finished
		}
	}
	return batch, nil
}

func stripLikeWildcards(value string) string {
	r := strings.NewReplacer("%", "", "_", "")
	return r.Replace(value)
}
