package acquire

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ytsummarize/internal/cache"
	"ytsummarize/internal/costs"
	"ytsummarize/internal/language"
	"ytsummarize/internal/logging"
	"ytsummarize/internal/retry"
	"ytsummarize/internal/services"
)

// Acquisition stages, in the order the resolver visits them.
const (
	StageCaptions  = "CAPTIONS_LOOKUP"
	StageSubtitles = "SUBTITLE_EXTRACTION"
	StageDuration  = "DURATION_CHECK"
	StageAudio     = "AUDIO_ACQUISITION"
	StageSpeech    = "SPEECH_TO_TEXT"
	StageLocal     = "LOCAL_FILE"
)

const (
	unknownChannel   = "Unknown"
	wordsPerMinute   = 150
	minutesToSeconds = 60
)

// Options controls one resolution.
type Options struct {
	// Language is a requested language code or "auto".
	Language        string
	MaxMinutes      int
	AudioFallback   bool
	Force           bool
	TranscribeModel string
	Retry           retry.Policy
}

// Result is a resolved transcript and the cache key it lives under.
type Result struct {
	Record TranscriptRecord
	Key    cache.Key
	Cached bool
}

// Resolver obtains a transcript by the cheapest available method, consulting
// the cache first.
type Resolver struct {
	cache   *cache.Store
	caps    Capabilities
	tempDir string
	logger  *slog.Logger
	now     func() time.Time
}

// NewResolver constructs a resolver. Downloaded audio is staged under
// tempDir/<video id> and removed once transcribed.
func NewResolver(store *cache.Store, caps Capabilities, tempDir string, logger *slog.Logger) *Resolver {
	if tempDir == "" {
		tempDir = filepath.Join(os.TempDir(), "ytsummarize")
	}
	return &Resolver{
		cache:   store,
		caps:    caps,
		tempDir: tempDir,
		logger:  logging.NewComponentLogger(logger, "acquire"),
		now:     time.Now,
	}
}

// Resolve returns the transcript for src.
func (r *Resolver) Resolve(ctx context.Context, src SourceRef, opts Options) (Result, error) {
	lang, err := language.Normalize(opts.Language)
	if err != nil {
		return Result{}, services.Wrap(services.ErrValidation, "", "resolve", "invalid language", err)
	}
	opts.Language = lang
	if src.Kind == SourceLocal {
		return r.resolveLocal(ctx, src, opts)
	}
	return r.resolveRemote(ctx, src.VideoID, opts)
}

// remoteRun carries per-resolution state for a remote video.
type remoteRun struct {
	r        *Resolver
	videoID  string
	opts     Options
	info     *MediaInfo
	infoErr  error
	infoDone bool
}

func (r *Resolver) resolveRemote(ctx context.Context, videoID string, opts Options) (Result, error) {
	ctx = services.WithSource(ctx, videoID)
	logger := logging.WithContext(ctx, r.logger)

	if !opts.Force {
		for _, method := range remoteMethods {
			key := cache.RemoteKey(videoID, opts.Language, string(method))
			record, ok, err := cache.GetJSON[TranscriptRecord](ctx, r.cache, key, cache.KindTranscript)
			if err != nil {
				logger.Debug("transcript cache read failed", logging.CacheKey(key), logging.Error(err))
				continue
			}
			if ok && strings.TrimSpace(record.Text) != "" {
				logger.Info("transcript cache hit",
					logging.CacheKey(key),
					logging.String("method", string(record.Method)))
				return Result{Record: record, Key: key, Cached: true}, nil
			}
		}
	}

	run := &remoteRun{r: r, videoID: videoID, opts: opts}

	text, captionsErr := run.captions(ctx)
	if captionsErr == nil {
		return run.finish(ctx, MethodCaptions, text)
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	logger.Info("captions unavailable; trying subtitles",
		logging.String(logging.FieldStage, StageCaptions),
		logging.String("reason", captionsErr.Error()))

	text, subtitlesErr := run.subtitles(ctx)
	if subtitlesErr == nil {
		return run.finish(ctx, MethodSubtitles, text)
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if errors.Is(subtitlesErr, services.ErrSourceUnavailable) {
		return Result{}, services.Wrap(services.ErrSourceUnavailable, StageSubtitles, "subtitles", videoID, subtitlesErr)
	}
	if !opts.AudioFallback {
		return Result{}, services.Wrap(services.ErrNoCaptionsAvailable, StageSubtitles, "subtitles",
			fmt.Sprintf("no captions or subtitles for %s and audio fallback is disabled", videoID), subtitlesErr)
	}
	logger.Info("subtitles unavailable; falling back to audio transcription",
		logging.String(logging.FieldStage, StageSubtitles),
		logging.String("reason", subtitlesErr.Error()))

	info, err := run.checkDuration(ctx)
	if err != nil {
		return Result{}, err
	}
	audio, cleanup, err := run.downloadAudio(ctx)
	if err != nil {
		return Result{}, err
	}
	defer cleanup()

	costs.LogTranscription(logger, costs.EstimateTranscription(info.DurationSeconds, opts.TranscribeModel))
	text, err = run.transcribe(ctx, audio)
	if err != nil {
		return Result{}, err
	}
	return run.finish(ctx, MethodSpeechToText, text)
}

func (run *remoteRun) captions(ctx context.Context) (Text, error) {
	if run.r.caps.Captions == nil {
		return Text{}, services.NotAvailable("captions lookup not configured")
	}
	ctx = services.WithStage(ctx, StageCaptions)
	text, err := attempt(ctx, run.r, run.opts.Retry, "captions lookup", func(ctx context.Context) (Text, error) {
		return run.r.caps.Captions.LookupCaptions(ctx, run.videoID, run.opts.Language)
	})
	if err != nil {
		return Text{}, err
	}
	if strings.TrimSpace(text.Text) == "" {
		return Text{}, services.NotAvailable("captions for %s are empty", run.videoID)
	}
	return text, nil
}

func (run *remoteRun) subtitles(ctx context.Context) (Text, error) {
	if run.r.caps.Subtitles == nil {
		return Text{}, services.NotAvailable("subtitle extraction not configured")
	}
	ctx = services.WithStage(ctx, StageSubtitles)
	text, err := attempt(ctx, run.r, run.opts.Retry, "subtitle extraction", func(ctx context.Context) (Text, error) {
		return run.r.caps.Subtitles.ExtractSubtitles(ctx, run.videoID, run.opts.Language)
	})
	if err != nil {
		return Text{}, err
	}
	if strings.TrimSpace(text.Text) == "" {
		return Text{}, services.NotAvailable("subtitles for %s are empty", run.videoID)
	}
	return text, nil
}

// metadata fetches media info once per resolution.
func (run *remoteRun) metadata(ctx context.Context) (*MediaInfo, error) {
	if run.infoDone {
		return run.info, run.infoErr
	}
	run.infoDone = true
	if run.r.caps.Metadata == nil {
		run.infoErr = services.NotAvailable("media metadata not configured")
		return nil, run.infoErr
	}
	info, err := attempt(ctx, run.r, run.opts.Retry, "media metadata", func(ctx context.Context) (MediaInfo, error) {
		return run.r.caps.Metadata.Metadata(ctx, run.videoID)
	})
	if err != nil {
		run.infoErr = err
		return nil, err
	}
	run.info = &info
	return run.info, nil
}

func (run *remoteRun) checkDuration(ctx context.Context) (*MediaInfo, error) {
	ctx = services.WithStage(ctx, StageDuration)
	info, err := run.metadata(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, services.Wrap(services.ErrSourceUnavailable, StageDuration, "metadata", run.videoID, err)
	}
	limit := float64(run.opts.MaxMinutes * minutesToSeconds)
	if run.opts.MaxMinutes > 0 && info.DurationSeconds > limit {
		return nil, services.Wrap(services.ErrDurationExceeded, StageDuration, "",
			fmt.Sprintf("video is %.0f min, limit is %d min", info.DurationSeconds/minutesToSeconds, run.opts.MaxMinutes), nil)
	}
	if info.DurationSeconds <= 0 {
		logging.WarnWithContext(logging.WithContext(ctx, run.r.logger), "video duration unknown; proceeding with audio download", "duration_unknown",
			logging.String(logging.FieldErrorHint, "the duration limit cannot be enforced for this video"),
			logging.String(logging.FieldImpact, "transcription cost cannot be estimated"))
	}
	return info, nil
}

func (run *remoteRun) downloadAudio(ctx context.Context) (AudioRef, func(), error) {
	ctx = services.WithStage(ctx, StageAudio)
	noop := func() {}
	if run.r.caps.Audio == nil {
		return AudioRef{}, noop, services.Wrap(services.ErrSourceUnavailable, StageAudio, "download", "audio download not configured", nil)
	}
	dir := filepath.Join(run.r.tempDir, run.videoID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return AudioRef{}, noop, fmt.Errorf("create audio directory: %w", err)
	}
	cleanup := func() {
		if err := os.RemoveAll(dir); err != nil {
			run.r.logger.Debug("remove audio directory failed", logging.String("dir", dir), logging.Error(err))
		}
	}
	audio, err := attempt(ctx, run.r, run.opts.Retry, "audio download", func(ctx context.Context) (AudioRef, error) {
		return run.r.caps.Audio.DownloadAudio(ctx, run.videoID, dir)
	})
	if err != nil {
		cleanup()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return AudioRef{}, noop, ctxErr
		}
		return AudioRef{}, noop, services.Wrap(services.ErrSourceUnavailable, StageAudio, "download", run.videoID, err)
	}
	return audio, cleanup, nil
}

func (run *remoteRun) transcribe(ctx context.Context, audio AudioRef) (Text, error) {
	ctx = services.WithStage(ctx, StageSpeech)
	if run.r.caps.SpeechToText == nil {
		return Text{}, services.Wrap(services.ErrTranscriptionFailed, StageSpeech, "transcribe", "speech-to-text not configured", nil)
	}
	text, err := attempt(ctx, run.r, run.opts.Retry, "speech to text", func(ctx context.Context) (Text, error) {
		return run.r.caps.SpeechToText.Transcribe(ctx, audio, run.opts.TranscribeModel, run.opts.Language)
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Text{}, ctxErr
		}
		return Text{}, services.Wrap(services.ErrTranscriptionFailed, StageSpeech, "transcribe", run.videoID, err)
	}
	if strings.TrimSpace(text.Text) == "" {
		return Text{}, services.Wrap(services.ErrEmptyTranscript, StageSpeech, "transcribe", "transcription returned no text", nil)
	}
	return text, nil
}

// finish builds the record, filling title, channel and duration from metadata.
// Metadata failures after a text source succeeded degrade to the video id as
// title and a word-count duration estimate.
func (run *remoteRun) finish(ctx context.Context, method Method, text Text) (Result, error) {
	logger := logging.WithContext(ctx, run.r.logger)
	record := TranscriptRecord{
		Text:      strings.TrimSpace(text.Text),
		Language:  trackLanguage(text.Language, run.opts.Language),
		Method:    method,
		FetchedAt: run.r.now().UTC(),
		Meta: SourceMeta{
			SourceURL: WatchURL(run.videoID),
			VideoID:   run.videoID,
			Title:     run.videoID,
			Channel:   unknownChannel,
		},
	}

	info, err := run.metadata(ctx)
	switch {
	case err != nil:
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, ctxErr
		}
		logging.WarnWithContext(logger, "video metadata unavailable; using video id as title", "metadata_unavailable",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "pass --title to name the output directory"),
			logging.String(logging.FieldImpact, "title and channel are placeholders"))
		record.DurationSeconds = EstimateDuration(record.Text)
		record.Meta.DurationEstimated = true
	default:
		if t := strings.TrimSpace(info.Title); t != "" {
			record.Meta.Title = t
		}
		if c := strings.TrimSpace(info.Channel); c != "" {
			record.Meta.Channel = c
		}
		record.DurationSeconds = info.DurationSeconds
		if record.DurationSeconds <= 0 {
			record.DurationSeconds = EstimateDuration(record.Text)
			record.Meta.DurationEstimated = true
		}
	}

	key := cache.RemoteKey(run.videoID, run.opts.Language, string(method))
	run.r.store(ctx, key, record)
	logger.Info("transcript acquired",
		logging.String("method", string(method)),
		logging.String("language", record.Language),
		logging.String("title", record.Meta.Title),
		logging.Float64("duration_seconds", record.DurationSeconds))
	return Result{Record: record, Key: key}, nil
}

func (r *Resolver) store(ctx context.Context, key cache.Key, record TranscriptRecord) {
	labels := cache.Labels{
		Source: record.Meta.VideoID,
		Title:  record.Meta.Title,
		Method: string(record.Method),
	}
	if labels.Source == "" {
		labels.Source = record.Meta.FilePath
	}
	if err := cache.PutJSON(ctx, r.cache, key, cache.KindTranscript, record, labels); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, r.logger), "transcript cache write failed", "cache_write_failed",
			logging.CacheKey(key),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check cache directory permissions"),
			logging.String(logging.FieldImpact, "the next run acquires the transcript again"))
	}
}

// attempt runs fn under the retry envelope, retrying only transient failures.
func attempt[T any](ctx context.Context, r *Resolver, policy retry.Policy, operation string, fn func(context.Context) (T, error)) (T, error) {
	logger := logging.WithContext(ctx, r.logger)
	policy.OnRetry = func(n int, delay time.Duration, err error) {
		logger.Warn("transient failure; retrying",
			logging.String("operation", operation),
			logging.Int("attempt", n),
			logging.Duration("delay", delay),
			logging.Error(err),
			logging.String(logging.FieldEventType, "retry"))
	}
	return retry.Do(ctx, policy, operation, services.IsTransient, fn)
}

func trackLanguage(reported, requested string) string {
	if base := language.Base(reported); base != "" {
		return base
	}
	return requested
}

// EstimateDuration approximates spoken duration in seconds from word count.
func EstimateDuration(text string) float64 {
	words := len(strings.Fields(text))
	return float64(words) / wordsPerMinute * minutesToSeconds
}
