package summarize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"ytsummarize/internal/cache"
	"ytsummarize/internal/chunker"
	"ytsummarize/internal/logging"
	"ytsummarize/internal/retry"
	"ytsummarize/internal/schema"
	"ytsummarize/internal/services"
)

// Summarization stages.
const (
	StageMap    = "MAP_EXTRACTION"
	StageReduce = "REDUCE"
)

const defaultConcurrency = 4

// Options controls one summarization.
type Options struct {
	Model string
	// ChunkTokens is the budget the chunks were cut with; it is part of
	// every chunk-map and summary cache key.
	ChunkTokens   int
	Concurrency   int
	Force         bool
	PartialReduce bool
	Synthesize    bool
	// Temperature is the sampling temperature of the extractor; it is part
	// of the summary cache key.
	Temperature float64
	Retry       retry.Policy
}

// Input is a chunked transcript plus the facts the reduce needs about it.
type Input struct {
	TranscriptKey   cache.Key
	Chunks          []chunker.Chunk
	Title           string
	SourceURL       string
	DurationSeconds float64
	Labels          cache.Labels
}

// Result is the final summary and the material rendered around it. It is
// the payload of the summary cache entry.
type Result struct {
	Summary              schema.Summary `json:"summary"`
	Glossary             []schema.Term  `json:"glossary"`
	Gaps                 []int          `json:"gaps,omitempty"`
	AvailableActionItems int            `json:"available_action_items"`
	Synthesized          bool           `json:"synthesized"`

	Key          cache.Key `json:"-"`
	Cached       bool      `json:"-"`
	CachedChunks int       `json:"-"`
}

// ChunkError identifies the chunk whose extraction failed.
type ChunkError struct {
	Index int
	Err   error
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("chunk %d: %v", e.Index, e.Err)
}

func (e *ChunkError) Unwrap() error { return e.Err }

// Summarizer runs the map-reduce pass.
type Summarizer struct {
	cache     *cache.Store
	extractor Extractor
	synth     Synthesizer
	logger    *slog.Logger
}

// New constructs a summarizer. synth may be nil, which disables synthesis.
func New(store *cache.Store, extractor Extractor, synth Synthesizer, logger *slog.Logger) *Summarizer {
	return &Summarizer{
		cache:     store,
		extractor: extractor,
		synth:     synth,
		logger:    logging.NewComponentLogger(logger, "summarize"),
	}
}

// Summarize produces the summary for in, consulting the summary cache and
// then the per-chunk cache unless opts.Force is set.
func (s *Summarizer) Summarize(ctx context.Context, in Input, opts Options) (Result, error) {
	if len(in.Chunks) == 0 {
		return Result{}, services.Wrap(services.ErrEmptyTranscript, chunker.Stage, "summarize", "transcript produced no chunks", nil)
	}
	if strings.TrimSpace(opts.Model) == "" {
		return Result{}, services.Wrap(services.ErrConfiguration, StageMap, "summarize", "model required", nil)
	}
	if s.extractor == nil {
		return Result{}, services.Wrap(services.ErrConfiguration, StageMap, "summarize", "no extractor configured", nil)
	}
	logger := logging.WithContext(ctx, s.logger)
	key := cache.SummaryKey(in.TranscriptKey, opts.ChunkTokens, opts.Model, opts.Synthesize, opts.Temperature)

	if !opts.Force {
		cached, ok, err := cache.GetJSON[Result](ctx, s.cache, key, cache.KindSummary)
		if err != nil {
			logger.Debug("summary cache read failed", logging.CacheKey(key), logging.Error(err))
		}
		if ok {
			if in.Title != "" {
				cached.Summary.Title = in.Title
			}
			cached.Summary.SourceURL = in.SourceURL
			cached.Key = key
			cached.Cached = true
			logger.Info("summary cache hit", logging.CacheKey(key))
			return cached, nil
		}
	}

	started := time.Now()
	results, gaps, cachedChunks, err := s.mapPhase(ctx, in, opts)
	if err != nil {
		return Result{}, err
	}
	logger.Info("map phase complete",
		logging.Int("chunks", len(in.Chunks)),
		logging.Int("cached_chunks", cachedChunks),
		logging.Int("gaps", len(gaps)),
		logging.Duration("elapsed", time.Since(started)))

	d := reduce(results, newLayout(in.Chunks, in.DurationSeconds), in.Title, in.SourceURL)
	res := Result{
		Summary:              d.Summary,
		Glossary:             d.Glossary,
		Gaps:                 gaps,
		AvailableActionItems: d.AvailableActionItems,
		Key:                  key,
		CachedChunks:         cachedChunks,
	}

	if opts.Synthesize && s.synth != nil {
		synthesized, err := s.synthesize(ctx, in, opts, results, d)
		switch {
		case err == nil:
			res.Summary = synthesized
			res.Synthesized = true
		case ctx.Err() != nil:
			return Result{}, ctx.Err()
		default:
			logging.WarnWithContext(logger, "synthesis failed; using deterministic merge", "synthesis_fallback",
				logging.String(logging.FieldStage, StageReduce),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check llm connectivity or set summarize.synthesize = false"),
				logging.String(logging.FieldImpact, "summary built from merged chunk extractions only"))
		}
	}

	// A summary with gaps is not cached, so a rerun retries the failed
	// chunks while reusing the cached ones.
	if len(gaps) == 0 {
		labels := in.Labels
		labels.Model = opts.Model
		if err := cache.PutJSON(ctx, s.cache, key, cache.KindSummary, res, labels); err != nil {
			logging.WarnWithContext(logger, "summary cache write failed", "cache_write_failed",
				logging.CacheKey(key),
				logging.Error(err),
				logging.String(logging.FieldImpact, "the next run will re-run the reduce phase"))
		}
	}
	return res, nil
}

// mapPhase extracts every chunk with bounded concurrency and returns the
// successful results in chunk order.
func (s *Summarizer) mapPhase(ctx context.Context, in Input, opts Options) ([]MapResult, []int, int, error) {
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	results := make([]MapResult, len(in.Chunks))
	failures := make([]error, len(in.Chunks))
	fromCache := make([]bool, len(in.Chunks))

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(concurrency)
	for i, chunk := range in.Chunks {
		group.Go(func() error {
			result, hit, err := s.mapChunk(gctx, in, chunk, opts)
			if err != nil {
				failures[i] = err
				if opts.PartialReduce {
					return nil
				}
				return err
			}
			results[i] = result
			fromCache[i] = hit
			return nil
		})
	}
	_ = group.Wait()
	if err := ctx.Err(); err != nil {
		return nil, nil, 0, err
	}

	var gaps []int
	var first *ChunkError
	for i, err := range failures {
		if err == nil {
			continue
		}
		// Siblings cancelled after the first failure are not failures of
		// their own.
		if errors.Is(err, context.Canceled) {
			continue
		}
		gaps = append(gaps, in.Chunks[i].Index)
		if first == nil {
			first = &ChunkError{Index: in.Chunks[i].Index, Err: err}
		}
	}
	if first != nil && (!opts.PartialReduce || len(gaps) == len(in.Chunks)) {
		message := "extraction failed"
		if opts.PartialReduce {
			message = "every chunk failed"
		}
		return nil, nil, 0, services.Wrap(services.ErrSummarizationFailed, StageMap,
			fmt.Sprintf("chunk %d of %d", first.Index+1, len(in.Chunks)), message, first)
	}
	if len(gaps) > 0 {
		logging.WarnWithContext(logging.WithContext(ctx, s.logger), "reducing over partial map results", "map_partial_failure",
			logging.Any("gaps", gaps),
			logging.Error(first),
			logging.String(logging.FieldImpact, "summary omits the failed chunks"))
	}

	ordered := make([]MapResult, 0, len(results))
	cached := 0
	for i := range results {
		if failures[i] != nil {
			continue
		}
		ordered = append(ordered, results[i])
		if fromCache[i] {
			cached++
		}
	}
	return ordered, gaps, cached, nil
}

func (s *Summarizer) mapChunk(ctx context.Context, in Input, chunk chunker.Chunk, opts Options) (MapResult, bool, error) {
	key := cache.ChunkMapKey(in.TranscriptKey, chunk.Index, opts.ChunkTokens, opts.Model)
	ctx = services.WithChunk(ctx, chunk.Index)
	logger := logging.WithContext(ctx, s.logger)
	if !opts.Force {
		cached, ok, err := cache.GetJSON[MapResult](ctx, s.cache, key, cache.KindChunkMap)
		if err != nil {
			logger.Debug("chunk cache read failed", logging.CacheKey(key), logging.Error(err))
		}
		if ok {
			cached.ChunkIndex = chunk.Index
			return cached, true, nil
		}
	}

	policy := opts.Retry
	if policy.OnRetry == nil {
		policy.OnRetry = func(attempt int, delay time.Duration, err error) {
			logger.Warn("chunk extraction failed; retrying",
				logging.Int("attempt", attempt),
				logging.Duration("delay", delay),
				logging.Error(err))
		}
	}
	result, err := retry.Do(ctx, policy, fmt.Sprintf("extract chunk %d", chunk.Index), services.IsTransient,
		func(ctx context.Context) (MapResult, error) {
			return s.extractor.ExtractChunk(ctx, chunk, opts.Model)
		})
	if err != nil {
		return MapResult{}, false, err
	}
	result.ChunkIndex = chunk.Index

	labels := in.Labels
	labels.Model = opts.Model
	if err := cache.PutJSON(ctx, s.cache, key, cache.KindChunkMap, result, labels); err != nil {
		logging.WarnWithContext(logger, "chunk cache write failed", "cache_write_failed",
			logging.CacheKey(key),
			logging.Error(err),
			logging.String(logging.FieldImpact, "chunk will be re-extracted next run"))
	}
	return result, false, nil
}

func (s *Summarizer) synthesize(ctx context.Context, in Input, opts Options, results []MapResult, d draft) (schema.Summary, error) {
	logger := logging.WithContext(services.WithStage(ctx, StageReduce), s.logger)
	input := SynthesisInput{
		Title:     in.Title,
		SourceURL: in.SourceURL,
		Results:   results,
		Draft:     d.Summary,
	}
	policy := opts.Retry
	if policy.OnRetry == nil {
		policy.OnRetry = func(attempt int, delay time.Duration, err error) {
			logger.Warn("synthesis failed; retrying",
				logging.Int("attempt", attempt),
				logging.Duration("delay", delay),
				logging.Error(err))
		}
	}
	summary, err := retry.Do(ctx, policy, "synthesize summary", services.IsTransient,
		func(ctx context.Context) (schema.Summary, error) {
			return s.synth.SynthesizeSummary(ctx, input, opts.Model)
		})
	if err != nil {
		return schema.Summary{}, err
	}
	return normalizeSynthesis(summary, d), nil
}
