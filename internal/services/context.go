package services

import "context"

type contextKey string

const (
	stageKey  contextKey = "stage"
	sourceKey contextKey = "source"
	runIDKey  contextKey = "run_id"
	chunkKey  contextKey = "chunk"
)

// WithStage annotates context with the pipeline stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	return stringValue(ctx, stageKey)
}

// WithSource annotates context with the source identifier (video id or
// local fingerprint) being processed.
func WithSource(ctx context.Context, source string) context.Context {
	if source == "" {
		return ctx
	}
	return context.WithValue(ctx, sourceKey, source)
}

// SourceFromContext returns the source identifier if present.
func SourceFromContext(ctx context.Context) (string, bool) {
	return stringValue(ctx, sourceKey)
}

// WithRunID annotates context with the identifier of one pipeline run.
func WithRunID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext extracts the run identifier if present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	return stringValue(ctx, runIDKey)
}

// WithChunk annotates context with the index of the transcript chunk being
// extracted. Negative indices are ignored.
func WithChunk(ctx context.Context, index int) context.Context {
	if index < 0 {
		return ctx
	}
	return context.WithValue(ctx, chunkKey, index)
}

// ChunkFromContext returns the chunk index if present.
func ChunkFromContext(ctx context.Context) (int, bool) {
	v, ok := ctx.Value(chunkKey).(int)
	return v, ok
}

func stringValue(ctx context.Context, key contextKey) (string, bool) {
	if v, ok := ctx.Value(key).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
