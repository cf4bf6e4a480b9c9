package services

import "context"

type contextKey int

const (
	batchIDKey contextKey = iota
	jobIDKey
	stageKey
	formatKey
)

// WithBatchID annotates context with the batch identifier.
func WithBatchID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, batchIDKey, id)
}

// BatchIDFromContext extracts the batch identifier if present.
func BatchIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(batchIDKey).(string)
	return id, ok && id != ""
}

// WithJobID annotates context with the transcode job identifier.
func WithJobID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, jobIDKey, id)
}

// JobIDFromContext extracts the job identifier if present.
func JobIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(jobIDKey).(int64)
	return id, ok
}

// WithStage annotates context with the job stage (probing, encoding, ...).
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	stage, ok := ctx.Value(stageKey).(string)
	return stage, ok && stage != ""
}

// WithFormat annotates context with the label of the format being produced,
// e.g. "MP3 CBR 320".
func WithFormat(ctx context.Context, label string) context.Context {
	if label == "" {
		return ctx
	}
	return context.WithValue(ctx, formatKey, label)
}

// FormatFromContext returns the format label if present.
func FormatFromContext(ctx context.Context) (string, bool) {
	label, ok := ctx.Value(formatKey).(string)
	return label, ok && label != ""
}
