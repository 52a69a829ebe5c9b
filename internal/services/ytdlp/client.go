package ytdlp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"ytsummarize/internal/acquire"
	"ytsummarize/internal/language"
	"ytsummarize/internal/logging"
	"ytsummarize/internal/services"
)

// DefaultBinary is the yt-dlp command name.
const DefaultBinary = "yt-dlp"

const defaultTimeout = 10 * time.Minute

// Config captures runtime settings for yt-dlp invocations.
type Config struct {
	Binary       string
	FFmpegBinary string
	// Timeout bounds each invocation.
	Timeout time.Duration
	// TempDir hosts per-call working directories for subtitle files.
	TempDir string
}

// CommandRunner executes name with args and returns stdout. A failing
// command returns an error that includes its stderr.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Client implements acquire.SubtitleExtraction, acquire.MediaMetadata and
// acquire.AudioDownload.
type Client struct {
	cfg    Config
	runner CommandRunner
	logger *slog.Logger
}

var (
	_ acquire.SubtitleExtraction = (*Client)(nil)
	_ acquire.MediaMetadata      = (*Client)(nil)
	_ acquire.AudioDownload      = (*Client)(nil)
)

// New creates a yt-dlp client.
func New(cfg Config, logger *slog.Logger) *Client {
	if cfg.Binary == "" {
		cfg.Binary = DefaultBinary
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	return &Client{cfg: cfg, runner: execRunner, logger: logging.NewComponentLogger(logger, "ytdlp")}
}

// WithCommandRunner sets a custom command runner (for testing).
func (c *Client) WithCommandRunner(runner CommandRunner) {
	c.runner = runner
}

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return stdout.Bytes(), fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

func (c *Client) run(ctx context.Context, operation string, args ...string) ([]byte, error) {
	runCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()
	if c.cfg.FFmpegBinary != "" && strings.ContainsRune(c.cfg.FFmpegBinary, os.PathSeparator) {
		args = append([]string{"--ffmpeg-location", c.cfg.FFmpegBinary}, args...)
	}
	c.logger.Debug("running yt-dlp", logging.String("operation", operation), logging.Any("args", args))
	out, err := c.runner(runCtx, c.cfg.Binary, args...)
	if err == nil {
		return out, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return nil, services.Transient(fmt.Errorf("yt-dlp %s timed out after %s: %w", operation, c.cfg.Timeout, err))
	}
	return nil, classify(operation, err)
}

type videoInfo struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Channel  string  `json:"channel"`
	Uploader string  `json:"uploader"`
	Duration float64 `json:"duration"`
}

// Metadata returns duration, title and channel without downloading media.
func (c *Client) Metadata(ctx context.Context, videoID string) (acquire.MediaInfo, error) {
	out, err := c.run(ctx, "metadata", "--dump-json", "--no-download", "--no-playlist", acquire.WatchURL(videoID))
	if err != nil {
		return acquire.MediaInfo{}, err
	}
	var info videoInfo
	if err := json.Unmarshal(out, &info); err != nil {
		return acquire.MediaInfo{}, services.Wrap(services.ErrExternalTool, "", "yt-dlp metadata", "decode --dump-json output", err)
	}
	channel := info.Channel
	if channel == "" {
		channel = info.Uploader
	}
	return acquire.MediaInfo{DurationSeconds: info.Duration, Title: info.Title, Channel: channel}, nil
}

var subtitleLangPattern = regexp.MustCompile(`\.([A-Za-z]{2,3}(?:[-_][A-Za-z0-9]+)*)\.vtt$`)

// ExtractSubtitles downloads subtitle files only (manual subtitles are
// preferred over auto-generated ones for the same language) and returns the
// cleaned text.
func (c *Client) ExtractSubtitles(ctx context.Context, videoID, lang string) (acquire.Text, error) {
	if err := os.MkdirAll(c.cfg.TempDir, 0o755); err != nil {
		return acquire.Text{}, fmt.Errorf("create temp dir: %w", err)
	}
	workDir, err := os.MkdirTemp(c.cfg.TempDir, "subs-"+videoID+"-")
	if err != nil {
		return acquire.Text{}, fmt.Errorf("create subtitle work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	_, err = c.run(ctx, "subtitles",
		"--skip-download",
		"--no-playlist",
		"--write-subs",
		"--write-auto-subs",
		"--sub-langs", language.SubtitlePatterns(lang),
		"--sub-format", "vtt",
		"--convert-subs", "vtt",
		"-o", filepath.Join(workDir, "%(id)s.%(ext)s"),
		acquire.WatchURL(videoID),
	)
	if err != nil {
		if errors.Is(err, services.ErrExternalTool) && !errors.Is(err, services.ErrSourceUnavailable) && !services.IsTransient(err) {
			return acquire.Text{}, fmt.Errorf("%w: %w", services.ErrNotAvailable, err)
		}
		return acquire.Text{}, err
	}

	path, trackLang := pickSubtitleFile(workDir, videoID, lang)
	if path == "" {
		return acquire.Text{}, services.NotAvailable("no subtitles found for %s", videoID)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return acquire.Text{}, fmt.Errorf("read subtitles: %w", err)
	}
	text := CleanVTT(string(raw))
	if text == "" {
		return acquire.Text{}, services.NotAvailable("subtitle file for %s was empty", videoID)
	}
	c.logger.Debug("subtitles extracted", logging.String("file", filepath.Base(path)), logging.String("language", trackLang))
	return acquire.Text{Text: text, Language: trackLang}, nil
}

// pickSubtitleFile chooses the downloaded track closest to lang: an exact
// language match, then any regional variant, then the first file.
func pickSubtitleFile(dir, videoID, lang string) (string, string) {
	matches, _ := filepath.Glob(filepath.Join(dir, videoID+"*.vtt"))
	if len(matches) == 0 {
		return "", ""
	}
	sort.Strings(matches)
	want := language.Preferred(lang)
	trackOf := func(path string) string {
		if m := subtitleLangPattern.FindStringSubmatch(filepath.Base(path)); m != nil {
			return m[1]
		}
		return ""
	}
	for _, path := range matches {
		if strings.EqualFold(trackOf(path), want) {
			return path, trackOf(path)
		}
	}
	for _, path := range matches {
		if language.Matches(trackOf(path), want) {
			return path, trackOf(path)
		}
	}
	return matches[0], trackOf(matches[0])
}

var audioExtensions = map[string]bool{".mp3": true, ".m4a": true, ".webm": true, ".opus": true, ".ogg": true, ".wav": true}

// DownloadAudio extracts the best audio stream as mp3 into dir.
func (c *Client) DownloadAudio(ctx context.Context, videoID, dir string) (acquire.AudioRef, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return acquire.AudioRef{}, fmt.Errorf("create audio dir: %w", err)
	}
	_, err := c.run(ctx, "audio",
		"-x",
		"--audio-format", "mp3",
		"--audio-quality", "0",
		"--no-playlist",
		"-o", filepath.Join(dir, "%(id)s.%(ext)s"),
		acquire.WatchURL(videoID),
	)
	if err != nil {
		return acquire.AudioRef{}, err
	}
	matches, _ := filepath.Glob(filepath.Join(dir, videoID+".*"))
	sort.Strings(matches)
	for _, path := range matches {
		ext := strings.ToLower(filepath.Ext(path))
		if !audioExtensions[ext] {
			continue
		}
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		c.logger.Info("audio downloaded",
			logging.String("file", filepath.Base(path)),
			logging.Int64("bytes", info.Size()))
		return acquire.AudioRef{Path: path, Format: strings.TrimPrefix(ext, "."), Bytes: info.Size()}, nil
	}
	return acquire.AudioRef{}, services.Wrap(services.ErrExternalTool, "", "yt-dlp audio", "audio file not found after download", nil)
}
