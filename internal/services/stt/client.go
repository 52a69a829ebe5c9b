package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ytsummarize/internal/acquire"
	"ytsummarize/internal/language"
	"ytsummarize/internal/logging"
	"ytsummarize/internal/services"
)

const (
	// DefaultEndpoint is the OpenAI transcription endpoint.
	DefaultEndpoint = "https://api.openai.com/v1/audio/transcriptions"
	// DefaultModel is used when neither the call nor the config names one.
	DefaultModel = "whisper-1"
	// DefaultMaxUploadBytes is the provider's upload limit.
	DefaultMaxUploadBytes int64 = 25 * 1024 * 1024

	defaultTimeout        = 10 * time.Minute
	defaultSegmentSeconds = 600
	maxResponseBytes      = 16 << 20
)

var supportedFormats = map[string]bool{
	"mp3":  true,
	"mp4":  true,
	"mpeg": true,
	"mpga": true,
	"m4a":  true,
	"wav":  true,
	"webm": true,
	"ogg":  true,
	"flac": true,
}

// Config captures the transcription provider settings.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	Timeout        time.Duration
	MaxUploadBytes int64
	SegmentSeconds int
	FFmpegBinary   string
}

// CommandRunner executes name with args. A failing command returns an error
// that includes its stderr.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Client implements acquire.SpeechToText.
type Client struct {
	cfg    Config
	http   *http.Client
	runner CommandRunner
	logger *slog.Logger
}

var _ acquire.SpeechToText = (*Client)(nil)

// New constructs a transcription client.
func New(cfg Config, logger *slog.Logger) *Client {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = DefaultEndpoint
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if cfg.SegmentSeconds <= 0 {
		cfg.SegmentSeconds = defaultSegmentSeconds
	}
	if cfg.FFmpegBinary == "" {
		cfg.FFmpegBinary = "ffmpeg"
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		runner: execRunner,
		logger: logging.NewComponentLogger(logger, "stt"),
	}
}

// WithHTTPClient overrides the HTTP client (for testing).
func (c *Client) WithHTTPClient(client *http.Client) {
	if client != nil {
		c.http = client
	}
}

// WithCommandRunner sets a custom ffmpeg runner (for testing).
func (c *Client) WithCommandRunner(runner CommandRunner) {
	c.runner = runner
}

type transcriptionResponse struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

// Transcribe uploads audio, splitting it first when it exceeds the upload
// limit. An empty model selects the configured one; lang "auto" lets the
// provider detect the language.
func (c *Client) Transcribe(ctx context.Context, audio acquire.AudioRef, model, lang string) (acquire.Text, error) {
	if c.cfg.APIKey == "" {
		return acquire.Text{}, fmt.Errorf("%w: transcription api key required", services.ErrConfiguration)
	}
	format := audioFormat(audio)
	if !supportedFormats[format] {
		return acquire.Text{}, fmt.Errorf("%w: unsupported audio format %q", services.ErrValidation, format)
	}
	if strings.TrimSpace(model) == "" {
		model = c.cfg.Model
	}
	size := audio.Bytes
	if size <= 0 {
		info, err := os.Stat(audio.Path)
		if err != nil {
			return acquire.Text{}, fmt.Errorf("stat audio: %w", err)
		}
		size = info.Size()
	}
	if size <= c.cfg.MaxUploadBytes {
		return c.upload(ctx, audio.Path, model, lang)
	}

	c.logger.Info("audio exceeds upload limit; splitting",
		logging.Int64("bytes", size),
		logging.Int64("limit_bytes", c.cfg.MaxUploadBytes),
		logging.Int("segment_seconds", c.cfg.SegmentSeconds))
	parts, cleanup, err := c.split(ctx, audio.Path, format)
	if err != nil {
		return acquire.Text{}, err
	}
	defer cleanup()

	texts := make([]string, 0, len(parts))
	var detected string
	for i, part := range parts {
		result, err := c.upload(ctx, part, model, lang)
		if err != nil {
			return acquire.Text{}, fmt.Errorf("segment %d/%d: %w", i+1, len(parts), err)
		}
		if text := strings.TrimSpace(result.Text); text != "" {
			texts = append(texts, text)
		}
		if detected == "" {
			detected = result.Language
		}
	}
	return acquire.Text{Text: strings.Join(texts, " "), Language: detected}, nil
}

func (c *Client) upload(ctx context.Context, path, model, lang string) (acquire.Text, error) {
	body, contentType, err := buildForm(path, model, lang)
	if err != nil {
		return acquire.Text{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, body)
	if err != nil {
		return acquire.Text{}, fmt.Errorf("stt request: new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", contentType)

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return acquire.Text{}, ctx.Err()
		}
		return acquire.Text{}, services.Transient(fmt.Errorf("stt request (timeout=%s): %w", c.cfg.Timeout, err))
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return acquire.Text{}, services.Transient(fmt.Errorf("stt request: read body: %w", err))
	}
	if err := services.CheckStatus("stt", resp, payload); err != nil {
		return acquire.Text{}, err
	}
	var parsed transcriptionResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return acquire.Text{}, fmt.Errorf("%w: stt request: decode response: %w", services.ErrExternalTool, err)
	}
	c.logger.Debug("transcribed audio",
		logging.String("file", filepath.Base(path)),
		logging.String("model", model),
		logging.Duration("elapsed", time.Since(started)),
		logging.Int("chars", len(parsed.Text)))
	return acquire.Text{
		Text:     strings.TrimSpace(parsed.Text),
		Language: language.Base(parsed.Language),
	}, nil
}

func buildForm(path, model, lang string) (*bytes.Buffer, string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("open audio file: %w", err)
	}
	defer file.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, "", fmt.Errorf("copy audio data: %w", err)
	}
	fields := [][2]string{{"model", model}, {"response_format", "json"}}
	if code := language.Base(lang); code != "" && lang != language.Auto {
		fields = append(fields, [2]string{"language", code})
	}
	for _, field := range fields {
		if err := w.WriteField(field[0], field[1]); err != nil {
			return nil, "", fmt.Errorf("write form field %s: %w", field[0], err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

func audioFormat(audio acquire.AudioRef) string {
	format := strings.ToLower(strings.TrimSpace(audio.Format))
	if format == "" {
		format = strings.ToLower(strings.TrimPrefix(filepath.Ext(audio.Path), "."))
	}
	return format
}
