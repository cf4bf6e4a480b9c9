package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"oats/internal/batchlock"
	"oats/internal/codec"
	"oats/internal/config"
	"oats/internal/deps"
	"oats/internal/format"
	"oats/internal/history"
	"oats/internal/logging"
	"oats/internal/media/tags"
	"oats/internal/notifications"
	"oats/internal/plan"
	"oats/internal/preflight"
	"oats/internal/services"
	"oats/internal/staging"
	"oats/internal/torrent"
	"oats/internal/transcode"
)

// errJobsFailed marks a batch that ran but did not fully succeed. The
// summary has already been printed when it is returned.
var errJobsFailed = errors.New("one or more jobs failed")

// staleTempAge keeps the sweep away from temp files a concurrent
// 'oats torrent make' may still be writing.
const staleTempAge = time.Minute

type transcodeOptions struct {
	formats     []string
	outputDir   string
	processes   int
	listFile    bool
	torrent     bool
	announceURL string
	torrentDir  string
	source      string
	dryRun      bool
}

func (o *transcodeOptions) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringSliceVarP(&o.formats, "formats", "f", nil, `Comma separated formats, e.g. "MP3 CBR 320,FLAC"`)
	flags.StringVarP(&o.outputDir, "output-dir", "o", "", "Directory that receives the output trees")
	flags.IntVarP(&o.processes, "processes", "p", 0, "Parallel encoder processes (0 = logical CPUs)")
	flags.BoolVarP(&o.listFile, "list-file", "l", false, "Treat arguments as files listing one target per line")
	flags.BoolVarP(&o.torrent, "torrent", "T", false, "Create a .torrent for every output tree")
	flags.StringVarP(&o.announceURL, "announce-url", "a", "", "Tracker announce URL")
	flags.StringVarP(&o.torrentDir, "torrent-dir", "t", "", "Directory that receives .torrent files")
	flags.StringVarP(&o.source, "source", "s", "", "Source tag written into the torrent info dictionary")
	flags.BoolVar(&o.dryRun, "dry-run", false, "Print the plan without encoding anything")
}

// apply overlays explicitly set flags on cfg and re-validates it.
func (o *transcodeOptions) apply(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("formats") {
		cfg.Transcode.Formats = cleanList(o.formats)
	}
	if flags.Changed("output-dir") {
		dir, err := config.ExpandPath(strings.TrimSpace(o.outputDir))
		if err != nil {
			return fmt.Errorf("resolve output dir: %w", err)
		}
		cfg.Paths.OutputDir = dir
	}
	if flags.Changed("processes") {
		cfg.Transcode.Processes = o.processes
	}
	if flags.Changed("list-file") {
		cfg.Transcode.ListFile = o.listFile
	}
	if flags.Changed("torrent") {
		cfg.Torrent.Enabled = o.torrent
	}
	if flags.Changed("announce-url") {
		cfg.Torrent.AnnounceURL = strings.TrimSpace(o.announceURL)
	}
	if flags.Changed("torrent-dir") {
		dir, err := config.ExpandPath(strings.TrimSpace(o.torrentDir))
		if err != nil {
			return fmt.Errorf("resolve torrent dir: %w", err)
		}
		cfg.Paths.TorrentDir = dir
	}
	if flags.Changed("source") {
		cfg.Torrent.Source = strings.TrimSpace(o.source)
	}
	return cfg.Validate()
}

func cleanList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.Join(strings.Fields(v), " "); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func runTranscode(cmd *cobra.Command, cctx *commandContext, opts *transcodeOptions, args []string) error {
	cfg, err := cctx.configCopy()
	if err != nil {
		return err
	}
	if err := opts.apply(cmd, cfg); err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	stderr := cmd.ErrOrStderr()

	baseLogger, err := newLogger(cfg, stderr)
	if err != nil {
		return err
	}
	logger := logging.NewComponentLogger(baseLogger, "cli")

	reg := newRegistry(cfg)
	resolution, err := format.ResolveAll(cfg.Transcode.Formats, reg)
	if err != nil {
		return err
	}
	for _, perr := range resolution.Unavailable {
		logging.WarnWithContext(logger, "format skipped", "format_unavailable",
			logging.String(logging.FieldFormat, perr.Input),
			logging.Error(perr),
			logging.String(logging.FieldErrorHint, "install a tool for this codec or run 'oats tools'"),
			logging.String(logging.FieldImpact, "no output tree for this format"),
		)
	}

	targets, err := plan.ExpandTargets(args, cfg.Transcode.ListFile)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		return services.Wrap(services.ErrValidation, "plan", "targets", "no targets given", nil)
	}
	batchPlan, err := plan.Build(targets, resolution.Formats, plan.Options{
		OutputDir:  cfg.Paths.OutputDir,
		CopyExtras: cfg.Transcode.CopyExtras,
	})
	if err != nil {
		return err
	}
	for _, skip := range batchPlan.Skipped {
		logger.Warn("source skipped",
			logging.String("source", skip.Path),
			logging.String("reason", skip.Reason),
			logging.String(logging.FieldEventType, "source_skipped"),
		)
	}

	if opts.dryRun {
		printPlan(out, batchPlan)
		return nil
	}

	if blocking := preflight.Blocking(preflight.RunAll(cfg)); len(blocking) > 0 {
		var parts []string
		for _, r := range blocking {
			parts = append(parts, r.Name+": "+r.Detail)
		}
		return services.Wrap(services.ErrConfiguration, "preflight", "check", strings.Join(parts, "; "), nil)
	}

	lock, err := batchlock.Acquire(cfg.Paths.OutputDir)
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logger.Warn("failed to release batch lock", logging.Error(err))
		}
	}()
	staging.SweepTemps(cmd.Context(), cfg.Paths.OutputDir, staleTempAge, logger)

	batchID := uuid.NewString()
	store := openHistory(cfg, logger)
	if store != nil {
		batch, err := store.BeginBatch(cmd.Context(), targets, descriptorLabels(resolution.Formats), cfg.Paths.OutputDir)
		if err != nil {
			logger.Warn("history unavailable", logging.Error(err))
			_ = store.Close()
			store = nil
		} else {
			batchID = batch.ID
			defer store.Close()
		}
	}

	ctx := services.WithBatchID(cmd.Context(), batchID)
	logger = logging.WithContext(ctx, logger)
	logger.Info("batch started",
		logging.Int("jobs", len(batchPlan.Jobs)),
		logging.Int("targets", len(targets)),
		logging.Strings("formats", descriptorLabels(resolution.Formats)),
		logging.String("output_dir", cfg.Paths.OutputDir),
	)

	if err := batchPlan.CopyExtras(); err != nil {
		logging.WarnWithContext(logger, "extra files not copied", "copy_extras_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "output trees may lack artwork or logs"),
		)
	}

	pipeline := &transcode.Pipeline{
		Registry: reg,
		FFprobe:  resolveOptional(cfg.Transcode.FFprobe),
		Tagger:   tags.Writer{FFmpeg: reg.Path("ffmpeg")},
		Logger:   baseLogger,
	}
	bar := newProgress(stderr, len(batchPlan.Jobs), "transcoding")
	report := pipeline.RunBatch(ctx, batchPlan.Jobs, transcode.BatchOptions{
		Concurrency: cfg.Transcode.Processes,
		OnJobDone: func(done, total int, job *transcode.Job) {
			if bar != nil {
				_ = bar.Add(1)
			}
		},
	})
	if bar != nil {
		_ = bar.Finish()
	}

	var torrents []torrent.Result
	var torrentErrs []error
	if cfg.Torrent.Enabled && ctx.Err() == nil {
		torrents, torrentErrs = buildTorrents(ctx, cfg, batchPlan, logger)
	}

	printSummary(out, report, torrents, torrentErrs)

	if store != nil {
		records := make([]history.Job, 0, len(report.Jobs))
		for _, job := range report.Jobs {
			records = append(records, history.JobFromTranscode(batchID, job))
		}
		summary := history.Summary{
			Succeeded: report.Succeeded,
			Failed:    report.Failed,
			Warnings:  report.Warnings,
			Torrents:  len(torrents),
		}
		if len(torrentErrs) > 0 {
			summary.Error = errors.Join(torrentErrs...).Error()
		}
		// Recording outlives an interrupted batch.
		recordCtx := context.WithoutCancel(ctx)
		if err := store.RecordJobs(recordCtx, records); err != nil {
			logger.Warn("failed to record jobs", logging.Error(err))
		}
		if ctx.Err() != nil {
			err = store.AbortBatch(recordCtx, batchID, ctx.Err())
		} else {
			err = store.FinishBatch(recordCtx, batchID, summary)
		}
		if err != nil {
			logger.Warn("failed to finish batch record", logging.Error(err))
		}
	}

	logger.Info("batch finished",
		logging.Int("succeeded", report.Succeeded),
		logging.Int("failed", report.Failed),
		logging.Int("warnings", report.Warnings),
		logging.Int("torrents", len(torrents)),
		logging.Duration("elapsed", report.Elapsed),
	)

	if err := ctx.Err(); err != nil {
		return err
	}
	notifyBatch(ctx, cfg, logger, report, len(torrents), descriptorLabels(resolution.Formats), torrentErrs)
	if !report.OK() || len(torrentErrs) > 0 {
		return errJobsFailed
	}
	return nil
}

func notifyBatch(ctx context.Context, cfg *config.Config, logger *slog.Logger, report transcode.Report, torrents int, formats []string, torrentErrs []error) {
	notifier := notifications.NewService(cfg)
	outcome := notifications.BatchOutcome{
		Succeeded: report.Succeeded,
		Failed:    report.Failed,
		Warnings:  report.Warnings,
		Torrents:  torrents,
		Formats:   formats,
		Elapsed:   report.Elapsed,
	}
	if err := notifier.NotifyBatchCompleted(ctx, outcome); err != nil {
		logger.Warn("batch notification failed", logging.Error(err))
	}
	if len(torrentErrs) > 0 {
		if err := notifier.NotifyError(ctx, errors.Join(torrentErrs...), "torrent creation"); err != nil {
			logger.Warn("error notification failed", logging.Error(err))
		}
	}
}

// buildTorrents creates one torrent per destination whose jobs all
// succeeded. Failures are returned, never fatal to the transcodes.
func buildTorrents(ctx context.Context, cfg *config.Config, p *plan.Plan, logger *slog.Logger) ([]torrent.Result, []error) {
	var results []torrent.Result
	var errs []error
	for _, dest := range p.Destinations {
		if failed := failedJobs(dest.Jobs); failed > 0 {
			logging.WarnWithContext(logger, "torrent skipped", "torrent_skipped",
				logging.String("destination", dest.Dir),
				logging.Int("failed_jobs", failed),
				logging.String(logging.FieldImpact, "incomplete output trees are not published"),
			)
			continue
		}
		if _, err := os.Stat(dest.Dir); err != nil {
			continue
		}
		res, err := torrent.MakeTorrent(ctx, dest.Dir, cfg.Paths.TorrentDir, torrentOptions(cfg), cfg.Torrent.Overwrite)
		if err != nil {
			logging.ErrorWithContext(logger, "torrent creation failed", "torrent_failed",
				logging.String("destination", dest.Dir),
				logging.Error(err),
			)
			errs = append(errs, fmt.Errorf("%s: %w", filepath.Base(dest.Dir), err))
			continue
		}
		logger.Info("torrent written",
			logging.String("path", res.Path),
			logging.String("info_hash", res.InfoHash),
			logging.Int("pieces", len(res.Meta.Pieces)),
		)
		results = append(results, res)
	}
	return results, errs
}

func failedJobs(jobs []*transcode.Job) int {
	n := 0
	for _, job := range jobs {
		if job.Status == transcode.StatusFailed {
			n++
		}
	}
	return n
}

func torrentOptions(cfg *config.Config) torrent.Options {
	return torrent.Options{
		AnnounceURLs: cfg.Trackers(),
		Source:       cfg.Torrent.Source,
		Private:      cfg.Torrent.Private,
		PieceLength:  cfg.Torrent.PieceLength,
		MaxPieces:    cfg.Torrent.MaxPieces,
		CreatedBy:    "oats",
	}
}

func openHistory(cfg *config.Config, logger *slog.Logger) *history.Store {
	if !cfg.History.Enabled {
		return nil
	}
	store, err := history.Open(cfg)
	if err != nil {
		logger.Warn("history unavailable", logging.Error(err))
		return nil
	}
	return store
}

func resolveOptional(command string) string {
	if strings.TrimSpace(command) == "" {
		return ""
	}
	path, err := deps.Resolve(command)
	if err != nil {
		return ""
	}
	return path
}

func descriptorLabels(formats []codec.Descriptor) []string {
	labels := make([]string, len(formats))
	for i, f := range formats {
		labels[i] = f.Label()
	}
	return labels
}

func printPlan(w io.Writer, p *plan.Plan) {
	rows := make([][]string, 0, len(p.Destinations))
	for _, dest := range p.Destinations {
		copies := 0
		prefix := dest.Dir + string(filepath.Separator)
		for _, c := range p.Copies {
			if strings.HasPrefix(c.Dest, prefix) {
				copies++
			}
		}
		rows = append(rows, []string{dest.Format.Label(), dest.Dir, strconv.Itoa(len(dest.Jobs)), strconv.Itoa(copies)})
	}
	fmt.Fprintln(w, renderTable("Plan", []string{"Format", "Destination", "Jobs", "Copies"}, rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight}))
	for _, skip := range p.Skipped {
		fmt.Fprintf(w, "skip %s (%s)\n", skip.Path, skip.Reason)
	}
	fmt.Fprintf(w, "%d jobs planned\n", len(p.Jobs))
}

func printSummary(w io.Writer, report transcode.Report, torrents []torrent.Result, torrentErrs []error) {
	colors := newPalette(w)
	if failures := report.Failures(); len(failures) > 0 {
		rows := make([][]string, 0, len(failures))
		for _, job := range failures {
			reason, detail := "", ""
			if job.Failure != nil {
				reason = string(job.Failure.Reason)
				if job.Failure.Err != nil {
					detail = job.Failure.Err.Error()
				}
				if res := job.Failure.Result; res != nil && len(res.StderrTail) > 0 {
					detail = res.StderrTail[len(res.StderrTail)-1]
				}
			}
			rows = append(rows, []string{strconv.FormatInt(job.ID, 10), job.Source, job.Format.Label(), reason, detail})
		}
		fmt.Fprintln(w, renderTable("Failed jobs", []string{"Job", "Source", "Format", "Reason", "Detail"}, rows,
			[]columnAlignment{alignRight}))
	}
	for _, job := range report.Jobs {
		for _, warning := range job.Warnings {
			fmt.Fprintf(w, "%s job %d (%s): %s\n", colors.warn.Sprint("warning"), job.ID, filepath.Base(job.Output), warning)
		}
	}
	for _, res := range torrents {
		fmt.Fprintf(w, "torrent %s (%d pieces)\n", res.Path, len(res.Meta.Pieces))
	}
	for _, err := range torrentErrs {
		fmt.Fprintf(w, "%s torrent: %v\n", colors.fail.Sprint("error"), err)
	}

	status := colors.status(true, "OK")
	if !report.OK() {
		status = colors.status(false, "FAILED")
	}
	fmt.Fprintf(w, "%s  succeeded: %d  failed: %d  warnings: %d  elapsed: %s\n",
		status, report.Succeeded, report.Failed, report.Warnings, report.Elapsed.Round(time.Millisecond))
}
