package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"ytsummarize/internal/acquire"
	"ytsummarize/internal/cache"
	"ytsummarize/internal/chunker"
	"ytsummarize/internal/costs"
	"ytsummarize/internal/logging"
	"ytsummarize/internal/retry"
	"ytsummarize/internal/schema"
	"ytsummarize/internal/services"
	"ytsummarize/internal/summarize"
	"ytsummarize/internal/tokens"
)

// Output file names inside a run directory.
const (
	MetaFile       = "meta.json"
	TranscriptFile = "transcript.txt"
	MarkdownFile   = "summary.md"
	JSONFile       = "summary.json"
)

// Output formats.
const (
	FormatMarkdown = "md"
	FormatJSON     = "json"
)

// StageOutput is recorded on failures writing or finalizing outputs.
const StageOutput = "OUTPUT"

// Resolver obtains transcripts.
type Resolver interface {
	Resolve(ctx context.Context, src acquire.SourceRef, opts acquire.Options) (acquire.Result, error)
}

// Summarizer condenses chunked transcripts.
type Summarizer interface {
	Summarize(ctx context.Context, in summarize.Input, opts summarize.Options) (summarize.Result, error)
}

// Options controls one run.
type Options struct {
	OutputDir string
	// Title overrides the resolved title for the directory name and summary.
	Title           string
	Formats         []string
	LocalOnly       bool
	Force           bool
	Language        string
	MaxMinutes      int
	AudioFallback   bool
	TranscribeModel string
	Model           string
	ChunkTokens     int
	Concurrency     int
	PartialReduce   bool
	Synthesize      bool
	Temperature     float64
	AcquireRetry    retry.Policy
	SummarizeRetry  retry.Policy
}

// Meta is the content of meta.json. It only carries facts from the
// transcript record, so reruns without --force write identical bytes.
type Meta struct {
	SourceURL string    `json:"source_url"`
	VideoID   string    `json:"video_id"`
	FilePath  string    `json:"file_path,omitempty"`
	Title     string    `json:"title"`
	Channel   string    `json:"channel"`
	FetchedAt time.Time `json:"fetched_at"`
	Method    string    `json:"method"`
	Lang      string    `json:"lang"`
	Gaps      []int     `json:"gaps,omitempty"`
}

// Result describes a finished run.
type Result struct {
	RunID      string
	Dir        string
	Files      []string
	Meta       Meta
	Transcript acquire.Result
	Summary    *summarize.Result
	// Violations is set when the summary failed validation in Markdown-only
	// mode; the Markdown is still written.
	Violations error
}

// Pipeline wires acquisition, chunking, summarization and output.
type Pipeline struct {
	resolver   Resolver
	summarizer Summarizer
	logger     *slog.Logger
	newRunID   func() string
}

// New constructs a pipeline. summarizer may be nil when only local-only runs
// are expected.
func New(resolver Resolver, summarizer Summarizer, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		resolver:   resolver,
		summarizer: summarizer,
		logger:     logging.NewComponentLogger(logger, "pipeline"),
		newRunID:   uuid.NewString,
	}
}

// Run summarizes src into opts.OutputDir. Outputs are staged in a
// provisional directory that is renamed to the title once every file is
// written, and removed if the run fails.
func (p *Pipeline) Run(ctx context.Context, src acquire.SourceRef, opts Options) (res Result, err error) {
	if strings.TrimSpace(opts.OutputDir) == "" {
		return Result{}, services.Wrap(services.ErrConfiguration, StageOutput, "run", "output directory required", nil)
	}
	if !opts.LocalOnly && p.summarizer == nil {
		return Result{}, services.Wrap(services.ErrConfiguration, summarize.StageMap, "run", "no summarizer configured", nil)
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	res.RunID = p.newRunID()
	ctx = services.WithRunID(ctx, res.RunID)
	logger := logging.WithContext(ctx, p.logger)
	started := time.Now()

	handle, err := newRunHandle(opts.OutputDir, src.Identifier(), res.RunID)
	if err != nil {
		return Result{}, services.Wrap(services.ErrConfiguration, StageOutput, "run", "prepare output directory", err)
	}
	defer func() {
		if err == nil {
			return
		}
		if rmErr := handle.discard(); rmErr != nil {
			logger.Warn("failed to remove incomplete run directory",
				logging.String("path", handle.dir),
				logging.Error(rmErr),
				logging.String(logging.FieldEventType, "run_cleanup_failed"),
				logging.String(logging.FieldImpact, "an incomplete .partial directory remains"))
		}
	}()

	logger.Info("run started",
		logging.String(logging.FieldEventType, "run_start"),
		logging.String("source", src.Raw),
		logging.String("kind", src.Kind.String()))

	transcript, err := p.resolver.Resolve(ctx, src, acquire.Options{
		Language:        opts.Language,
		MaxMinutes:      opts.MaxMinutes,
		AudioFallback:   opts.AudioFallback,
		Force:           opts.Force,
		TranscribeModel: opts.TranscribeModel,
		Retry:           opts.AcquireRetry,
	})
	if err != nil {
		return Result{}, err
	}
	res.Transcript = transcript
	record := transcript.Record

	title := strings.TrimSpace(opts.Title)
	if title == "" {
		title = record.Meta.Title
	}
	res.Meta = buildMeta(record, title)
	if err := p.writeMeta(handle, res.Meta); err != nil {
		return Result{}, err
	}
	if err := handle.write(TranscriptFile, []byte(record.Text+"\n")); err != nil {
		return Result{}, services.Wrap(services.ErrExternalTool, StageOutput, "write", "transcript", err)
	}
	res.Files = append(res.Files, MetaFile, TranscriptFile)

	if !opts.LocalOnly {
		if err := p.summarizeInto(ctx, handle, transcript, title, opts, &res); err != nil {
			return Result{}, err
		}
	}

	dir, err := handle.finalize(title, func(existing string) bool { return sameSource(existing, res.Meta) })
	if errors.Is(err, errNoFreeName) {
		return Result{}, services.Wrap(services.ErrValidation, StageOutput, "finalize", title, err)
	}
	if err != nil && dir == "" {
		return Result{}, services.Wrap(services.ErrExternalTool, StageOutput, "finalize", title, err)
	}
	if err != nil {
		logger.Warn("previous output not fully removed", logging.Error(err),
			logging.String(logging.FieldEventType, "run_cleanup_failed"),
			logging.String(logging.FieldImpact, "a .partial-previous directory remains"))
	}
	res.Dir = dir
	logger.Info("run completed",
		logging.String(logging.FieldEventType, "run_complete"),
		logging.String("output_dir", dir),
		logging.Any("files", res.Files),
		logging.Bool("transcript_cached", transcript.Cached),
		logging.Duration("elapsed", time.Since(started)))
	return res, nil
}

func (p *Pipeline) summarizeInto(ctx context.Context, handle *runHandle, transcript acquire.Result, title string, opts Options, res *Result) error {
	logger := logging.WithContext(ctx, p.logger)
	record := transcript.Record

	est := tokens.ForModel(opts.Model)
	chunks, err := chunker.New(opts.ChunkTokens, est).Split(record.Text)
	if err != nil {
		return err
	}
	tokenCount := est.Estimate(record.Text)
	costs.LogSummarization(logger, tokenCount, costs.EstimateSummarization(tokenCount, opts.ChunkTokens, opts.Model))

	summary, err := p.summarizer.Summarize(ctx, summarize.Input{
		TranscriptKey:   transcript.Key,
		Chunks:          chunks,
		Title:           title,
		SourceURL:       record.Meta.SourceURL,
		DurationSeconds: record.DurationSeconds,
		Labels: cache.Labels{
			Source: sourceLabel(record),
			Title:  title,
			Method: string(record.Method),
		},
	}, summarize.Options{
		Model:         opts.Model,
		ChunkTokens:   opts.ChunkTokens,
		Concurrency:   opts.Concurrency,
		Force:         opts.Force,
		PartialReduce: opts.PartialReduce,
		Synthesize:    opts.Synthesize,
		Temperature:   opts.Temperature,
		Retry:         opts.SummarizeRetry,
	})
	if err != nil {
		return err
	}
	res.Summary = &summary

	if len(summary.Gaps) > 0 {
		res.Meta.Gaps = summary.Gaps
		if err := p.writeMeta(handle, res.Meta); err != nil {
			return err
		}
	}

	wantJSON := slices.Contains(opts.Formats, FormatJSON)
	violations := schema.Validate(summary.Summary, schema.ValidateOptions{AvailableActionItems: summary.AvailableActionItems})
	if violations != nil {
		if wantJSON {
			return services.Wrap(services.ErrSchemaViolation, schema.Stage, "validate", "summary.json not written", violations)
		}
		res.Violations = violations
		logging.WarnWithContext(logger, "summary failed validation; writing markdown only", "schema_violation",
			logging.Error(violations),
			logging.String(logging.FieldImpact, "summary.md is rendered from the fields present"))
	}

	markdown := schema.RenderMarkdown(schema.Document{
		Summary:  summary.Summary,
		Meta:     record.Meta,
		Glossary: summary.Glossary,
		Gaps:     summary.Gaps,
	})
	if err := handle.write(MarkdownFile, []byte(markdown)); err != nil {
		return services.Wrap(services.ErrExternalTool, StageOutput, "write", "summary markdown", err)
	}
	res.Files = append(res.Files, MarkdownFile)

	if wantJSON {
		data, err := schema.EncodeJSON(summary.Summary)
		if err != nil {
			return services.Wrap(services.ErrExternalTool, StageOutput, "encode", "summary json", err)
		}
		if err := handle.write(JSONFile, data); err != nil {
			return services.Wrap(services.ErrExternalTool, StageOutput, "write", "summary json", err)
		}
		res.Files = append(res.Files, JSONFile)
	}
	return nil
}

func (p *Pipeline) writeMeta(handle *runHandle, meta Meta) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return services.Wrap(services.ErrExternalTool, StageOutput, "encode", "meta", err)
	}
	if err := handle.write(MetaFile, append(data, '\n')); err != nil {
		return services.Wrap(services.ErrExternalTool, StageOutput, "write", "meta", err)
	}
	return nil
}

func buildMeta(record acquire.TranscriptRecord, title string) Meta {
	return Meta{
		SourceURL: record.Meta.SourceURL,
		VideoID:   record.Meta.VideoID,
		FilePath:  record.Meta.FilePath,
		Title:     title,
		Channel:   record.Meta.Channel,
		FetchedAt: record.FetchedAt.UTC(),
		Method:    string(record.Method),
		Lang:      record.Language,
	}
}

// sameSource reports whether dir holds the output of an earlier run for the
// source described by meta. Directories without a readable meta.json are
// never treated as ours.
func sameSource(dir string, meta Meta) bool {
	prev, err := ReadMeta(dir)
	if err != nil {
		return false
	}
	if meta.VideoID != "" {
		return prev.VideoID == meta.VideoID
	}
	return meta.FilePath != "" && prev.VideoID == "" && prev.FilePath == meta.FilePath
}

func sourceLabel(record acquire.TranscriptRecord) string {
	if record.Meta.VideoID != "" {
		return record.Meta.VideoID
	}
	return record.Meta.FilePath
}

// ReadMeta loads meta.json from a finished run directory.
func ReadMeta(dir string) (Meta, error) {
	var meta Meta
	data, err := os.ReadFile(filepath.Join(dir, MetaFile))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return meta, fmt.Errorf("decode %s: %w", MetaFile, err)
	}
	return meta, nil
}
