package transcode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"oats/internal/codec"
	"oats/internal/logging"
	"oats/internal/media/ffprobe"
	"oats/internal/media/tags"
	"oats/internal/procexec"
	"oats/internal/services"
	"oats/internal/staging"
)

// TagWriter applies probed tags and cover art to an encoded output.
type TagWriter interface {
	Write(ctx context.Context, path string, m tags.Metadata) error
}

// Pipeline executes jobs against a registry. It holds no per-job state and
// is safe for concurrent use.
type Pipeline struct {
	Registry *codec.Registry
	// FFprobe enables duration probing when set.
	FFprobe string
	Runner  procexec.Runner
	Tagger  TagWriter
	Logger  *slog.Logger
}

func (p *Pipeline) runner() procexec.Runner {
	if p.Runner != nil {
		return p.Runner
	}
	return procexec.New(procexec.Options{})
}

// Run drives job through every stage and returns its failure, if any. The
// job is always left in a terminal state.
func (p *Pipeline) Run(ctx context.Context, job *Job) error {
	if job.Status.Terminal() {
		return fmt.Errorf("job %d already %s", job.ID, job.Status)
	}
	job.Started = time.Now()
	defer func() {
		job.Elapsed = time.Since(job.Started)
	}()

	ctx = services.WithFormat(services.WithJobID(ctx, job.ID), job.Format.Label())
	logger := logging.WithContext(ctx, logging.NewComponentLogger(p.Logger, "transcode"))

	if err := ctx.Err(); err != nil {
		return job.fail(&Failure{Reason: ReasonCanceled, Err: err})
	}

	if f := p.probe(services.WithStage(ctx, string(StatusProbing)), job); f != nil {
		p.logFailure(logger, job, f)
		return f
	}
	if f := p.encode(services.WithStage(ctx, string(StatusEncoding)), job); f != nil {
		p.logFailure(logger, job, f)
		return f
	}
	p.tag(services.WithStage(ctx, string(StatusTagging)), logger, job)

	if err := job.transition(StatusSucceeded); err != nil {
		return job.fail(&Failure{Reason: ReasonOutputError, Err: err})
	}
	logger.Info("job succeeded",
		logging.String(logging.FieldTool, job.Tool),
		logging.String("output", job.Output),
		logging.Duration("elapsed", time.Since(job.Started)),
	)
	return nil
}

func (p *Pipeline) probe(ctx context.Context, job *Job) *Failure {
	if err := job.transition(StatusProbing); err != nil {
		return job.fail(&Failure{Reason: ReasonSourceUnreadable, Err: err})
	}
	info, err := os.Stat(job.Source)
	if err != nil {
		marker := services.ErrValidation
		if errors.Is(err, os.ErrNotExist) {
			marker = services.ErrNotFound
		}
		return job.fail(&Failure{
			Reason: ReasonSourceUnreadable,
			Err:    services.Wrap(marker, "probe", "stat source", job.Source, err),
		})
	}
	if !info.Mode().IsRegular() {
		return job.fail(&Failure{
			Reason: ReasonSourceUnreadable,
			Err:    services.Wrap(services.ErrValidation, "probe", "stat source", job.Source+" is not a regular file", nil),
		})
	}

	meta, err := tags.Read(job.Source)
	if err != nil {
		return job.fail(&Failure{
			Reason: ReasonSourceUnreadable,
			Err:    services.Wrap(services.ErrValidation, "probe", "read tags", job.Source, err),
		})
	}
	job.Tags = meta.Tags
	job.Picture = meta.Picture

	if p.FFprobe != "" {
		result, err := ffprobe.Inspect(ctx, p.FFprobe, job.Source)
		if err != nil {
			return job.fail(&Failure{
				Reason: ReasonSourceUnreadable,
				Tool:   "ffprobe",
				Err:    services.Wrap(services.ErrValidation, "probe", "ffprobe", job.Source, err),
			})
		}
		if result.AudioStreamCount() == 0 {
			return job.fail(&Failure{
				Reason: ReasonSourceUnreadable,
				Tool:   "ffprobe",
				Err:    services.Wrap(services.ErrValidation, "probe", "ffprobe", job.Source+" has no audio stream", nil),
			})
		}
		job.Duration = result.DurationSeconds()
		// Containers the tag reader does not understand still report tags
		// through ffprobe.
		if job.Tags.Empty() {
			job.Tags = tags.Tags(result.Tags())
		}
	}
	return nil
}

func (p *Pipeline) encode(ctx context.Context, job *Job) *Failure {
	if err := job.transition(StatusEncoding); err != nil {
		return job.fail(&Failure{Reason: ReasonEncodeToolError, Err: err})
	}
	if p.Registry == nil {
		return job.fail(&Failure{Reason: ReasonToolUnavailable, Err: errors.New("no tool registry configured")})
	}
	sel, err := p.Registry.Select(job.Format)
	if err != nil {
		return job.fail(&Failure{Reason: ReasonToolUnavailable, Err: err})
	}
	job.Tool = sel.Tool.ID

	outDir := filepath.Dir(job.Output)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return job.fail(&Failure{Reason: ReasonOutputError, Err: fmt.Errorf("create output directory: %w", err)})
	}

	input := job.Source
	if !sel.Tool.CanRead(job.Source) {
		dec, err := p.Registry.Decoder(job.Source)
		if err != nil {
			return job.fail(&Failure{Reason: ReasonToolUnavailable, Tool: sel.Tool.ID, Err: err})
		}
		job.Decoder = dec.Tool.ID
		wav, err := tempSibling(outDir, staging.TempPrefix+"decode-*.wav")
		if err != nil {
			return job.fail(&Failure{Reason: ReasonOutputError, Err: err})
		}
		defer os.Remove(wav)
		if f := p.exec(ctx, dec, dec.Tool.Decode(job.Source, wav)); f != nil {
			return job.fail(f)
		}
		input = wav
	}

	staged, err := tempSibling(outDir, staging.TempPrefix+"encode-*"+filepath.Ext(job.Output))
	if err != nil {
		return job.fail(&Failure{Reason: ReasonOutputError, Err: err})
	}
	placed := false
	defer func() {
		if !placed {
			_ = os.Remove(staged)
		}
	}()

	if f := p.exec(ctx, sel, sel.Tool.Encode(job.Format, input, staged)); f != nil {
		return job.fail(f)
	}
	if info, err := os.Stat(staged); err != nil || info.Size() == 0 {
		return job.fail(&Failure{
			Reason: ReasonEncodeToolError,
			Tool:   sel.Tool.ID,
			Err:    services.Wrap(services.ErrExternalTool, "encode", sel.Tool.ID, "produced no output", err),
		})
	}
	if err := os.Rename(staged, job.Output); err != nil {
		return job.fail(&Failure{Reason: ReasonOutputError, Err: fmt.Errorf("place output: %w", err)})
	}
	placed = true
	return nil
}

func (p *Pipeline) exec(ctx context.Context, sel codec.Selection, args []string) *Failure {
	binary := sel.Path
	if binary == "" {
		binary = sel.Tool.Executable
	}
	result, err := p.runner().Run(ctx, binary, args)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return &Failure{Reason: ReasonCanceled, Tool: sel.Tool.ID, Err: ctx.Err()}
	}
	return &Failure{
		Reason: ReasonEncodeToolError,
		Tool:   sel.Tool.ID,
		Result: &result,
		Err:    services.Wrap(services.ErrExternalTool, "encode", sel.Tool.ID, "", err),
	}
}

func (p *Pipeline) tag(ctx context.Context, logger *slog.Logger, job *Job) {
	if err := job.transition(StatusTagging); err != nil {
		return
	}
	meta := tags.Metadata{Tags: job.Tags, Picture: job.Picture}
	if meta.Empty() {
		return
	}
	if p.Tagger == nil {
		job.warn("tags not written: no tag writer available")
		return
	}
	if err := p.Tagger.Write(ctx, job.Output, meta); err != nil {
		job.warn("tags not written: %v", err)
		logging.WarnWithContext(logger, "tag transfer failed", "tag_write_failed",
			logging.String("output", job.Output),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check that ffmpeg supports the output container"),
			logging.String(logging.FieldImpact, "output kept without tags"),
		)
	}
}

func (p *Pipeline) logFailure(logger *slog.Logger, job *Job, f *Failure) {
	attrs := []logging.Attr{
		logging.String("source", job.Source),
		logging.String("reason", string(f.Reason)),
		logging.Error(f.Err),
	}
	if f.Tool != "" {
		attrs = append(attrs, logging.String(logging.FieldTool, f.Tool))
	}
	if f.Result != nil {
		attrs = append(attrs, logging.Int("exit_code", f.Result.ExitCode))
		if len(f.Result.StderrTail) > 0 {
			attrs = append(attrs, logging.Lines(logging.FieldStderrTail, f.Result.StderrTail))
		}
	}
	logging.ErrorWithContext(logger, "job failed", "job_failed", attrs...)
}

func tempSibling(dir, pattern string) (string, error) {
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		_ = os.Remove(name)
		return "", fmt.Errorf("close temp file: %w", err)
	}
	return name, nil
}
