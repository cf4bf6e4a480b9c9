package transcode

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"

	"oats/internal/logging"
)

// BatchOptions tunes RunBatch.
type BatchOptions struct {
	// Concurrency bounds parallel jobs; values below 1 use DefaultConcurrency.
	Concurrency int
	// OnJobDone is called from the collecting goroutine after each job
	// reaches a terminal state, in completion order.
	OnJobDone func(done, total int, job *Job)
}

// Report aggregates the outcome of a batch.
type Report struct {
	Jobs      []*Job
	Succeeded int
	Failed    int
	Warnings  int
	Elapsed   time.Duration
}

// OK reports whether every job succeeded.
func (r Report) OK() bool {
	return r.Failed == 0
}

// Failures returns failed jobs ordered by ID.
func (r Report) Failures() []*Job {
	var out []*Job
	for _, job := range r.Jobs {
		if job.Status == StatusFailed {
			out = append(out, job)
		}
	}
	return out
}

// DefaultConcurrency returns the host's logical CPU count.
func DefaultConcurrency() int {
	if n, err := cpu.Counts(true); err == nil && n > 0 {
		return n
	}
	return runtime.NumCPU()
}

// RunBatch executes jobs on a bounded worker pool. A failed job never cancels
// its siblings; every job is terminal when RunBatch returns. Report.Jobs is
// ordered by job ID.
func (p *Pipeline) RunBatch(ctx context.Context, jobs []*Job, opts BatchOptions) Report {
	started := time.Now()
	workers := opts.Concurrency
	if workers < 1 {
		workers = DefaultConcurrency()
	}
	if workers > len(jobs) {
		workers = len(jobs)
	}

	logger := logging.WithContext(ctx, logging.NewComponentLogger(p.Logger, "transcode"))
	logger.Info("batch started", logging.Int("jobs", len(jobs)), logging.Int("workers", workers))

	queue := make(chan *Job)
	results := make(chan *Job, len(jobs))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range queue {
				_ = p.Run(ctx, job)
				results <- job
			}
		}()
	}

	go func() {
		for _, job := range jobs {
			queue <- job
		}
		close(queue)
		wg.Wait()
		close(results)
	}()

	report := Report{Jobs: make([]*Job, 0, len(jobs))}
	done := 0
	for job := range results {
		done++
		report.Jobs = append(report.Jobs, job)
		switch job.Status {
		case StatusSucceeded:
			report.Succeeded++
		default:
			report.Failed++
		}
		if len(job.Warnings) > 0 {
			report.Warnings++
		}
		if opts.OnJobDone != nil {
			opts.OnJobDone(done, len(jobs), job)
		}
	}
	sort.SliceStable(report.Jobs, func(i, j int) bool {
		return report.Jobs[i].ID < report.Jobs[j].ID
	})
	report.Elapsed = time.Since(started)

	logger.Info("batch finished",
		logging.Int("succeeded", report.Succeeded),
		logging.Int("failed", report.Failed),
		logging.Duration("elapsed", report.Elapsed),
	)
	return report
}
