package main

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"ytsummarize/internal/acquire"
	"ytsummarize/internal/cache"
	"ytsummarize/internal/config"
	"ytsummarize/internal/deps"
	"ytsummarize/internal/language"
	"ytsummarize/internal/pipeline"
	"ytsummarize/internal/services"
	"ytsummarize/internal/services/captions"
	"ytsummarize/internal/services/llm"
	"ytsummarize/internal/services/stt"
	"ytsummarize/internal/services/ytdlp"
	"ytsummarize/internal/summarize"
)

// staleRunAge is how old an unfinalized run directory must be before a new
// run removes it.
const staleRunAge = 24 * time.Hour

type summarizeFlags struct {
	out             string
	lang            string
	format          string
	force           bool
	noAudioFallback bool
	maxMinutes      int
	model           string
	transcribeModel string
	chunkTokens     int
	concurrency     int
	title           string
	localOnly       bool
}

func (f *summarizeFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVarP(&f.out, "out", "o", "", "Output directory (default from config)")
	fs.StringVarP(&f.lang, "lang", "l", "", `Transcript language code or "auto"`)
	fs.StringVarP(&f.format, "format", "f", "", "Output formats: md (default), json or md,json")
	fs.BoolVar(&f.force, "force", false, "Bypass every cache entry for this run")
	fs.BoolVar(&f.noAudioFallback, "no-audio-fallback", false, "Never download audio for speech-to-text")
	fs.IntVar(&f.maxMinutes, "max-minutes", 0, "Refuse audio fallback for videos longer than this")
	fs.StringVarP(&f.model, "model", "m", "", "Chat completion model")
	fs.StringVar(&f.transcribeModel, "transcribe-model", "", "Speech-to-text model")
	fs.IntVar(&f.chunkTokens, "chunk-tokens", 0, "Token budget per transcript chunk")
	fs.IntVar(&f.concurrency, "concurrency", 0, "Concurrent chunk extractions")
	fs.StringVarP(&f.title, "title", "t", "", "Title for the output directory and summary")
	fs.BoolVar(&f.localOnly, "local-only", false, "Stop after the transcript; skip summarization")
}

// apply overrides cfg with the flags the user set and revalidates it.
func (f *summarizeFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	changed := cmd.Flags().Changed
	if changed("out") {
		out, err := config.ExpandPath(f.out)
		if err != nil {
			return configError(err)
		}
		cfg.Paths.OutputDir = out
	}
	if changed("lang") {
		cfg.Acquisition.Language = f.lang
	}
	if changed("format") {
		formats, err := config.ParseFormats(f.format)
		if err != nil {
			return services.Wrap(services.ErrValidation, "", "", "--format", err)
		}
		cfg.Summarize.Formats = formats
	}
	if f.noAudioFallback {
		cfg.Acquisition.AudioFallback = false
	}
	if changed("max-minutes") {
		cfg.Acquisition.MaxMinutes = f.maxMinutes
	}
	if changed("model") {
		cfg.LLM.Model = f.model
	}
	if changed("transcribe-model") {
		cfg.Transcription.Model = f.transcribeModel
	}
	if changed("chunk-tokens") {
		cfg.Summarize.ChunkTokens = f.chunkTokens
	}
	if changed("concurrency") {
		cfg.Summarize.Concurrency = f.concurrency
	}
	if err := cfg.Validate(); err != nil {
		return services.Wrap(services.ErrValidation, "", "", "flags", err)
	}
	return nil
}

func runSummarize(cmd *cobra.Command, ctx *commandContext, raw string, flags *summarizeFlags) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	if err := flags.apply(cmd, cfg); err != nil {
		return err
	}
	src, err := acquire.ParseSource(raw)
	if err != nil {
		return err
	}

	store, logger, err := ctx.openCache()
	if err != nil {
		return err
	}
	defer store.Close()

	p, client := buildPipeline(cfg, store, logger)
	pipeline.CleanStale(cmd.Context(), cfg.Paths.OutputDir, staleRunAge, logger)

	res, err := p.Run(cmd.Context(), src, pipeline.Options{
		OutputDir:       cfg.Paths.OutputDir,
		Title:           flags.title,
		Formats:         cfg.Summarize.Formats,
		LocalOnly:       flags.localOnly,
		Force:           flags.force,
		Language:        cfg.Acquisition.Language,
		MaxMinutes:      cfg.Acquisition.MaxMinutes,
		AudioFallback:   cfg.Acquisition.AudioFallback,
		TranscribeModel: cfg.Transcription.Model,
		Model:           cfg.LLM.Model,
		ChunkTokens:     cfg.Summarize.ChunkTokens,
		Concurrency:     cfg.Summarize.Concurrency,
		PartialReduce:   cfg.PartialReduce(),
		Synthesize:      cfg.Summarize.Synthesize,
		Temperature:     cfg.LLM.Temperature,
		AcquireRetry:    retryPolicy(cfg.Acquisition.RetryAttempts, cfg.Acquisition.RetryBaseMillis, cfg.Acquisition.RetryMaxMillis),
		SummarizeRetry:  retryPolicy(cfg.Summarize.RetryAttempts, cfg.Summarize.RetryBaseMillis, cfg.Summarize.RetryMaxMillis),
	})
	if err != nil {
		return err
	}
	printRunResult(cmd.OutOrStdout(), cmd.ErrOrStderr(), res)
	printUsage(cmd.OutOrStdout(), client.Model(), client.Usage())
	return nil
}

// buildPipeline wires the acquisition capabilities and the summarizer from
// configuration. Construction makes no network calls or process launches.
func buildPipeline(cfg *config.Config, store *cache.Store, logger *slog.Logger) (*pipeline.Pipeline, *llm.Client) {
	ffmpeg := cfg.FFmpegBinary()
	if status := deps.ResolveFFmpeg(ffmpeg, cfg.YtDlpBinary()); status.Available {
		ffmpeg = status.Command
	}

	yt := ytdlp.New(ytdlp.Config{
		Binary:       cfg.YtDlpBinary(),
		FFmpegBinary: ffmpeg,
		Timeout:      time.Duration(cfg.Acquisition.CommandTimeoutSeconds) * time.Second,
		TempDir:      cfg.Paths.TempDir,
	}, logger)

	tc := cfg.GetTranscription()
	speech := stt.New(stt.Config{
		APIKey:         tc.APIKey,
		BaseURL:        tc.BaseURL,
		Model:          tc.Model,
		Timeout:        time.Duration(tc.TimeoutSeconds) * time.Second,
		MaxUploadBytes: tc.MaxUploadBytes,
		SegmentSeconds: tc.SegmentSeconds,
		FFmpegBinary:   ffmpeg,
	}, logger)

	resolver := acquire.NewResolver(store, acquire.Capabilities{
		Captions:     captions.New(captions.Config{}, logger),
		Subtitles:    yt,
		Metadata:     yt,
		Audio:        yt,
		SpeechToText: speech,
	}, cfg.Paths.TempDir, logger)

	lc := cfg.GetLLM()
	client := llm.NewClient(llm.Config{
		APIKey:            lc.APIKey,
		BaseURL:           lc.BaseURL,
		Model:             lc.Model,
		Temperature:       lc.Temperature,
		Referer:           lc.Referer,
		Title:             lc.Title,
		TimeoutSeconds:    lc.TimeoutSeconds,
		RequestsPerMinute: lc.RequestsPerMinute,
	}, llm.WithLogger(logger))
	var synth summarize.Synthesizer
	if cfg.Summarize.Synthesize {
		synth = client
	}

	return pipeline.New(resolver, summarize.New(store, client, synth, logger), logger), client
}

func printRunResult(out, errOut io.Writer, res pipeline.Result) {
	source := "fetched"
	if res.Transcript.Cached {
		source = "cached"
	}
	fmt.Fprintf(out, "Transcript: %s (%s, %s)\n", res.Meta.Method, language.DisplayName(res.Meta.Lang), source)
	if res.Summary != nil && res.Summary.Cached {
		fmt.Fprintln(out, "Summary: cached")
	}
	if gaps := res.Meta.Gaps; len(gaps) > 0 {
		fmt.Fprintf(errOut, "Warning: chunks %v failed and were left out of the summary\n", gaps)
	}
	if res.Violations != nil {
		fmt.Fprintf(errOut, "Warning: summary failed validation: %v\n", res.Violations)
	}
	fmt.Fprintf(out, "Wrote %s\n", res.Dir)
	for _, name := range res.Files {
		fmt.Fprintf(out, "  %s\n", filepath.Join(res.Dir, name))
	}
}

// printUsage reports model token usage; silent when every call was cached.
func printUsage(out io.Writer, model string, usage llm.Usage) {
	if usage.Requests == 0 {
		return
	}
	fmt.Fprintf(out, "Model: %s, %d request(s), %d prompt + %d completion tokens\n",
		model, usage.Requests, usage.PromptTokens, usage.CompletionTokens)
}
