package pipeline_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"ytsummarize/internal/acquire"
	"ytsummarize/internal/cache"
	"ytsummarize/internal/chunker"
	"ytsummarize/internal/config"
	"ytsummarize/internal/logging"
	"ytsummarize/internal/pipeline"
	"ytsummarize/internal/retry"
	"ytsummarize/internal/schema"
	"ytsummarize/internal/services"
	"ytsummarize/internal/summarize"
	"ytsummarize/internal/testsupport"
)

const videoID = "dQw4w9WgXcQ"

type captionsOnly struct {
	calls atomic.Int32
	text  string
}

func (c *captionsOnly) LookupCaptions(context.Context, string, string) (acquire.Text, error) {
	c.calls.Add(1)
	return acquire.Text{Text: c.text, Language: "en"}, nil
}

func (c *captionsOnly) Metadata(context.Context, string) (acquire.MediaInfo, error) {
	c.calls.Add(1)
	return acquire.MediaInfo{DurationSeconds: 600, Title: "Caching: A Deep Dive?", Channel: "Systems"}, nil
}

type extractor struct {
	calls atomic.Int32
}

func (e *extractor) ExtractChunk(_ context.Context, chunk chunker.Chunk, _ string) (summarize.MapResult, error) {
	e.calls.Add(1)
	return summarize.MapResult{
		Bullets: []summarize.Bullet{
			{Text: "Caches trade memory for latency", Importance: 5},
			{Text: "Eviction policies decide what survives", Importance: 4},
			{Text: "Measure hit ratios before tuning", Importance: 3},
		},
		Chapters:    []summarize.CandidateChapter{{Start: "00:00", Heading: "Why caches exist"}},
		Quotes:      []string{"Every cache is a bet on the future."},
		Terms:       []schema.Term{{Term: "LRU", Definition: "Least recently used"}},
		ActionItems: []string{"Profile the hot path", "Record hit ratios", "Set explicit expiry"},
	}, nil
}

type harness struct {
	pipeline *pipeline.Pipeline
	caps     *captionsOnly
	extract  *extractor
	out      string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenCache(t, cfg)
	caps := &captionsOnly{text: testsupport.Transcript(12)}
	resolver := acquire.NewResolver(store, acquire.Capabilities{Captions: caps, Metadata: caps}, cfg.Paths.TempDir, logging.NewNop())
	ext := &extractor{}
	summarizer := summarize.New(store, ext, nil, logging.NewNop())
	return &harness{
		pipeline: pipeline.New(resolver, summarizer, logging.NewNop()),
		caps:     caps,
		extract:  ext,
		out:      cfg.Paths.OutputDir,
	}
}

func (h *harness) options() pipeline.Options {
	return pipeline.Options{
		OutputDir:      h.out,
		Formats:        []string{pipeline.FormatMarkdown, pipeline.FormatJSON},
		Language:       "en",
		MaxMinutes:     180,
		AudioFallback:  true,
		Model:          "demo-model",
		ChunkTokens:    3000,
		Concurrency:    2,
		AcquireRetry:   retry.Policy{Attempts: 2, Sleep: retry.NoSleep},
		SummarizeRetry: retry.Policy{Attempts: 2, Sleep: retry.NoSleep},
	}
}

func remoteSource() acquire.SourceRef {
	return acquire.SourceRef{Kind: acquire.SourceRemote, Raw: videoID, VideoID: videoID}
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir %s: %v", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestRunWritesAllOutputsUnderTitle(t *testing.T) {
	h := newHarness(t)
	res, err := h.pipeline.Run(context.Background(), remoteSource(), h.options())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	wantDir := filepath.Join(h.out, "Caching- A Deep Dive")
	if res.Dir != wantDir {
		t.Fatalf("expected output dir %q, got %q", wantDir, res.Dir)
	}
	if got := strings.Join(listDir(t, res.Dir), ","); got != "meta.json,summary.json,summary.md,transcript.txt" {
		t.Fatalf("unexpected files %s", got)
	}
	if got := listDir(t, h.out); len(got) != 1 {
		t.Fatalf("expected only the finalized directory, got %v", got)
	}

	meta, err := pipeline.ReadMeta(res.Dir)
	if err != nil {
		t.Fatalf("ReadMeta: %v", err)
	}
	if meta.VideoID != videoID || meta.Method != "captions" || meta.Lang != "en" || meta.Channel != "Systems" {
		t.Fatalf("unexpected meta %+v", meta)
	}
	if meta.SourceURL != acquire.WatchURL(videoID) {
		t.Fatalf("unexpected source url %q", meta.SourceURL)
	}

	md, err := os.ReadFile(filepath.Join(res.Dir, pipeline.MarkdownFile))
	if err != nil {
		t.Fatalf("read markdown: %v", err)
	}
	if !strings.HasPrefix(string(md), "# Caching: A Deep Dive?") {
		t.Fatalf("markdown should open with the title, got %q", string(md[:40]))
	}
	if res.Violations != nil {
		t.Fatalf("unexpected violations: %v", res.Violations)
	}
}

func TestRerunIsIdempotentWithoutCapabilityCalls(t *testing.T) {
	h := newHarness(t)
	first, err := h.pipeline.Run(context.Background(), remoteSource(), h.options())
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	firstMeta, err := os.ReadFile(filepath.Join(first.Dir, pipeline.MetaFile))
	if err != nil {
		t.Fatalf("read meta: %v", err)
	}
	callsBefore, extractsBefore := h.caps.calls.Load(), h.extract.calls.Load()

	second, err := h.pipeline.Run(context.Background(), remoteSource(), h.options())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	secondMeta, err := os.ReadFile(filepath.Join(second.Dir, pipeline.MetaFile))
	if err != nil {
		t.Fatalf("read meta: %v", err)
	}
	if !bytes.Equal(firstMeta, secondMeta) {
		t.Fatalf("meta.json changed between runs:\n%s\n%s", firstMeta, secondMeta)
	}
	if first.Transcript.Key != second.Transcript.Key || first.Summary.Key != second.Summary.Key {
		t.Fatalf("cache keys changed between runs")
	}
	if h.caps.calls.Load() != callsBefore || h.extract.calls.Load() != extractsBefore {
		t.Fatalf("second run made capability calls: caps %d->%d, extract %d->%d",
			callsBefore, h.caps.calls.Load(), extractsBefore, h.extract.calls.Load())
	}
	if !second.Transcript.Cached || !second.Summary.Cached {
		t.Fatalf("expected cache hits on rerun")
	}
	if got := listDir(t, h.out); len(got) != 1 {
		t.Fatalf("rerun should replace the previous output, got %v", got)
	}
}

func TestForceRerunCallsCapabilitiesAgain(t *testing.T) {
	h := newHarness(t)
	if _, err := h.pipeline.Run(context.Background(), remoteSource(), h.options()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	before := h.extract.calls.Load()
	opts := h.options()
	opts.Force = true
	res, err := h.pipeline.Run(context.Background(), remoteSource(), opts)
	if err != nil {
		t.Fatalf("forced run: %v", err)
	}
	if res.Transcript.Cached || res.Summary.Cached || h.extract.calls.Load() == before {
		t.Fatalf("force must bypass every cache")
	}
}

func TestLocalOnlyStopsAfterAcquisition(t *testing.T) {
	h := newHarness(t)
	path := testsupport.WriteText(t, filepath.Join(t.TempDir(), "talk notes.txt"), testsupport.Transcript(8))
	src, err := acquire.ParseSource(path)
	if err != nil {
		t.Fatalf("ParseSource: %v", err)
	}
	opts := h.options()
	opts.LocalOnly = true
	res, err := h.pipeline.Run(context.Background(), src, opts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := strings.Join(listDir(t, res.Dir), ","); got != "meta.json,transcript.txt" {
		t.Fatalf("local-only run should write only meta and transcript, got %s", got)
	}
	if filepath.Base(res.Dir) != "talk notes" {
		t.Fatalf("expected directory named after the file, got %q", res.Dir)
	}
	if h.extract.calls.Load() != 0 {
		t.Fatalf("local-only run must not summarize")
	}
	if res.Meta.Method != string(acquire.MethodLocal) {
		t.Fatalf("unexpected method %q", res.Meta.Method)
	}
}

func TestTitleOverrideNamesDirectory(t *testing.T) {
	h := newHarness(t)
	opts := h.options()
	opts.Title = "My Notes"
	res, err := h.pipeline.Run(context.Background(), remoteSource(), opts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if filepath.Base(res.Dir) != "My Notes" || res.Meta.Title != "My Notes" || res.Summary.Summary.Title != "My Notes" {
		t.Fatalf("title override not applied: dir=%q meta=%q", res.Dir, res.Meta.Title)
	}
}

type stubResolver struct {
	result acquire.Result
	err    error
}

func (s stubResolver) Resolve(context.Context, acquire.SourceRef, acquire.Options) (acquire.Result, error) {
	return s.result, s.err
}

type stubSummarizer struct {
	result summarize.Result
	err    error
}

func (s stubSummarizer) Summarize(context.Context, summarize.Input, summarize.Options) (summarize.Result, error) {
	return s.result, s.err
}

func stubTranscript() acquire.Result {
	return acquire.Result{
		Key: cache.RemoteKey(videoID, "en", "captions"),
		Record: acquire.TranscriptRecord{
			Text:            testsupport.Transcript(6),
			Language:        "en",
			Method:          acquire.MethodCaptions,
			DurationSeconds: 120,
			FetchedAt:       time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
			Meta:            acquire.SourceMeta{SourceURL: acquire.WatchURL(videoID), VideoID: videoID, Title: "Stub", Channel: "Chan"},
		},
	}
}

func invalidSummary() summarize.Result {
	return summarize.Result{Summary: schema.Summary{Title: "Stub", TLDR: []string{"only one"}}}
}

func TestFailedRunLeavesNoOutput(t *testing.T) {
	out := t.TempDir()
	p := pipeline.New(stubResolver{result: stubTranscript()},
		stubSummarizer{err: services.Wrap(services.ErrSummarizationFailed, summarize.StageMap, "chunk 1 of 1", "extraction failed", nil)},
		logging.NewNop())
	_, err := p.Run(context.Background(), remoteSource(), pipeline.Options{OutputDir: out, ChunkTokens: 3000, Model: "m"})
	if !errors.Is(err, services.ErrSummarizationFailed) {
		t.Fatalf("expected summarization failure, got %v", err)
	}
	if got := listDir(t, out); len(got) != 0 {
		t.Fatalf("failed run left files behind: %v", got)
	}
}

func TestAcquisitionFailureLeavesNoOutput(t *testing.T) {
	out := t.TempDir()
	p := pipeline.New(stubResolver{err: services.Wrap(services.ErrDurationExceeded, acquire.StageDuration, "check", "too long", nil)},
		stubSummarizer{}, logging.NewNop())
	_, err := p.Run(context.Background(), remoteSource(), pipeline.Options{OutputDir: out})
	if !errors.Is(err, services.ErrDurationExceeded) || services.StageOf(err) != acquire.StageDuration {
		t.Fatalf("expected duration exceeded at %s, got %v", acquire.StageDuration, err)
	}
	if got := listDir(t, out); len(got) != 0 {
		t.Fatalf("failed run left files behind: %v", got)
	}
}

func TestSchemaViolationIsFatalForJSON(t *testing.T) {
	out := t.TempDir()
	p := pipeline.New(stubResolver{result: stubTranscript()}, stubSummarizer{result: invalidSummary()}, logging.NewNop())
	_, err := p.Run(context.Background(), remoteSource(), pipeline.Options{
		OutputDir:   out,
		Formats:     []string{pipeline.FormatMarkdown, pipeline.FormatJSON},
		ChunkTokens: 3000,
		Model:       "m",
	})
	if !errors.Is(err, services.ErrSchemaViolation) {
		t.Fatalf("expected schema violation, got %v", err)
	}
	if got := listDir(t, out); len(got) != 0 {
		t.Fatalf("failed run left files behind: %v", got)
	}
}

func TestSchemaViolationStillRendersMarkdown(t *testing.T) {
	out := t.TempDir()
	p := pipeline.New(stubResolver{result: stubTranscript()}, stubSummarizer{result: invalidSummary()}, logging.NewNop())
	res, err := p.Run(context.Background(), remoteSource(), pipeline.Options{
		OutputDir:   out,
		Formats:     []string{pipeline.FormatMarkdown},
		ChunkTokens: 3000,
		Model:       "m",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !errors.Is(res.Violations, services.ErrSchemaViolation) {
		t.Fatalf("expected violations to be reported, got %v", res.Violations)
	}
	if got := strings.Join(listDir(t, res.Dir), ","); got != "meta.json,summary.md,transcript.txt" {
		t.Fatalf("unexpected files %s", got)
	}
}

func TestGapsRecordedInMeta(t *testing.T) {
	out := t.TempDir()
	summary := summarize.Result{
		Summary: schema.Summary{Title: "Stub", TLDR: []string{"Alpha point", "Bravo point", "Charlie point"}},
		Gaps:    []int{1, 3},
	}
	p := pipeline.New(stubResolver{result: stubTranscript()}, stubSummarizer{result: summary}, logging.NewNop())
	res, err := p.Run(context.Background(), remoteSource(), pipeline.Options{OutputDir: out, ChunkTokens: 3000, Model: "m"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	meta, err := pipeline.ReadMeta(res.Dir)
	if err != nil {
		t.Fatalf("ReadMeta: %v", err)
	}
	if len(meta.Gaps) != 2 || meta.Gaps[0] != 1 || meta.Gaps[1] != 3 {
		t.Fatalf("expected gaps in meta.json, got %v", meta.Gaps)
	}
	md, _ := os.ReadFile(filepath.Join(res.Dir, pipeline.MarkdownFile))
	if !strings.Contains(string(md), "chunks 2, 4") {
		t.Fatalf("expected gap note in markdown, got %s", md)
	}
}

func TestCleanStaleRemovesOnlyOldPartials(t *testing.T) {
	out := t.TempDir()
	old := filepath.Join(out, ".partial-abc-12345678")
	fresh := filepath.Join(out, ".partial-def-87654321")
	done := filepath.Join(out, "Finished Talk")
	for _, dir := range []string{old, fresh, done} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}
	past := time.Now().Add(-48 * time.Hour)
	for _, dir := range []string{old, done} {
		if err := os.Chtimes(dir, past, past); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}

	result := pipeline.CleanStale(context.Background(), out, 24*time.Hour, logging.NewNop())
	if len(result.Removed) != 1 || result.Removed[0] != old {
		t.Fatalf("expected only %s removed, got %v (errors %v)", old, result.Removed, result.Errors)
	}
	if got := strings.Join(listDir(t, out), ","); got != ".partial-def-87654321,Finished Talk" {
		t.Fatalf("unexpected remaining entries %s", got)
	}
}

func TestFinalizeKeepsUnrelatedDirectory(t *testing.T) {
	out := t.TempDir()
	userFile := filepath.Join(out, "Stub", "thesis.docx")
	testsupport.WriteText(t, userFile, "mine")

	p := pipeline.New(stubResolver{result: stubTranscript()}, nil, logging.NewNop())
	res, err := p.Run(context.Background(), remoteSource(), pipeline.Options{OutputDir: out, LocalOnly: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := filepath.Join(out, "Stub (2)"); res.Dir != want {
		t.Fatalf("expected output in %q, got %q", want, res.Dir)
	}
	if data, err := os.ReadFile(userFile); err != nil || string(data) != "mine" {
		t.Fatalf("user file changed: %q (%v)", data, err)
	}

	if _, err := p.Run(context.Background(), remoteSource(), pipeline.Options{OutputDir: out, LocalOnly: true}); err != nil {
		t.Fatalf("rerun: %v", err)
	}
	if got := strings.Join(listDir(t, out), ","); got != "Stub,Stub (2)" {
		t.Fatalf("rerun should replace its own directory, got %s", got)
	}
}

func TestFinalizeDoesNotReplaceOtherSource(t *testing.T) {
	out := t.TempDir()
	first := pipeline.New(stubResolver{result: stubTranscript()}, nil, logging.NewNop())
	if _, err := first.Run(context.Background(), remoteSource(), pipeline.Options{OutputDir: out, LocalOnly: true}); err != nil {
		t.Fatalf("first Run: %v", err)
	}

	other := stubTranscript()
	other.Record.Meta.VideoID = "aaaaaaaaaaa"
	other.Record.Meta.SourceURL = acquire.WatchURL("aaaaaaaaaaa")
	second := pipeline.New(stubResolver{result: other}, nil, logging.NewNop())
	res, err := second.Run(context.Background(), remoteSource(), pipeline.Options{OutputDir: out, LocalOnly: true})
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if filepath.Base(res.Dir) != "Stub (2)" {
		t.Fatalf("expected a suffixed directory, got %s", res.Dir)
	}
	meta, err := pipeline.ReadMeta(filepath.Join(out, "Stub"))
	if err != nil || meta.VideoID != videoID {
		t.Fatalf("first run output replaced: %+v (%v)", meta, err)
	}
}

func TestDefaultFormatsKeepShortSummaries(t *testing.T) {
	out := t.TempDir()
	short := summarize.Result{Summary: schema.Summary{Title: "Stub", TLDR: []string{"First point", "Second point"}}}
	p := pipeline.New(stubResolver{result: stubTranscript()}, stubSummarizer{result: short}, logging.NewNop())
	res, err := p.Run(context.Background(), remoteSource(), pipeline.Options{
		OutputDir:   out,
		Formats:     config.Default().Summarize.Formats,
		ChunkTokens: 3000,
		Model:       "m",
	})
	if err != nil {
		t.Fatalf("Run with default formats: %v", err)
	}
	if got := strings.Join(listDir(t, res.Dir), ","); got != "meta.json,summary.md,transcript.txt" {
		t.Fatalf("unexpected files %s", got)
	}
	if res.Violations == nil {
		t.Fatal("expected the short summary to be reported as a violation")
	}
}
