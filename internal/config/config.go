package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths groups filesystem locations.
type Paths struct {
	CacheDir  string `toml:"cache_dir"`
	OutputDir string `toml:"output_dir"`
	TempDir   string `toml:"temp_dir"`
	LogDir    string `toml:"log_dir"`
}

// Acquisition controls the transcript fallback chain.
type Acquisition struct {
	Language              string `toml:"language"`
	MaxMinutes            int    `toml:"max_minutes"`
	AudioFallback         bool   `toml:"audio_fallback"`
	YtDlpBinary           string `toml:"ytdlp_binary"`
	FFmpegBinary          string `toml:"ffmpeg_binary"`
	CommandTimeoutSeconds int    `toml:"command_timeout_seconds"`
	RetryAttempts         int    `toml:"retry_attempts"`
	RetryBaseMillis       int    `toml:"retry_base_ms"`
	RetryMaxMillis        int    `toml:"retry_max_ms"`
}

// LLM configures the chat completion provider used for extraction and synthesis.
type LLM struct {
	APIKey            string  `toml:"api_key"`
	BaseURL           string  `toml:"base_url"`
	Model             string  `toml:"model"`
	Temperature       float64 `toml:"temperature"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
	RequestsPerMinute int     `toml:"requests_per_minute"`
	Referer           string  `toml:"referer"`
	Title             string  `toml:"title"`
}

// Transcription configures the speech-to-text provider.
type Transcription struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	MaxUploadMB    int    `toml:"max_upload_mb"`
	SegmentSeconds int    `toml:"segment_seconds"`
}

// Summarize controls chunking and the map-reduce engine.
type Summarize struct {
	ChunkTokens     int      `toml:"chunk_tokens"`
	Concurrency     int      `toml:"concurrency"`
	RetryAttempts   int      `toml:"retry_attempts"`
	RetryBaseMillis int      `toml:"retry_base_ms"`
	RetryMaxMillis  int      `toml:"retry_max_ms"`
	PartialFailure  string   `toml:"partial_failure"`
	Synthesize      bool     `toml:"synthesize"`
	Formats         []string `toml:"formats"`
}

// Logging controls log level and handler format.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Config is the complete application configuration.
type Config struct {
	Paths         Paths         `toml:"paths"`
	Acquisition   Acquisition   `toml:"acquisition"`
	LLM           LLM           `toml:"llm"`
	Transcription Transcription `toml:"transcription"`
	Summarize     Summarize     `toml:"summarize"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the per-user configuration location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/ytsummarize/config.toml")
}

// Load reads configuration from path (or the default search locations when
// path is empty), applies defaults, normalizes and validates it. It returns
// the resolved path and whether a file existed there.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("ytsummarize.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the cache, output and temp directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.CacheDir, c.Paths.OutputDir, c.Paths.TempDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.LogDir) != "" {
		if err := os.MkdirAll(c.Paths.LogDir, 0o755); err != nil {
			return fmt.Errorf("create log directory %q: %w", c.Paths.LogDir, err)
		}
	}
	return nil
}

// Encode renders the configuration as TOML.
func (c *Config) Encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	enc.SetIndentTables(true)
	if err := enc.Encode(c); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return buf.Bytes(), nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath expands a leading tilde and returns an absolute path.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func defaultCacheDir() string {
	if base, ok := os.LookupEnv("XDG_CACHE_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "ytsummarize")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "~/.cache/ytsummarize"
	}
	return filepath.Join(home, ".cache", "ytsummarize")
}

// CreateSample writes the embedded sample configuration to path. Unless
// overwrite is set, an existing file is left alone and the returned error
// matches fs.ErrExist.
func CreateSample(path string, overwrite bool) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !overwrite {
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return fmt.Errorf("create sample config: %w", err)
	}
	if _, err := f.WriteString(sampleConfig); err != nil {
		_ = f.Close()
		return fmt.Errorf("write sample config: %w", err)
	}
	return f.Close()
}

// LLMConfig is the resolved chat completion client configuration.
type LLMConfig struct {
	APIKey            string
	BaseURL           string
	Model             string
	Temperature       float64
	Referer           string
	Title             string
	TimeoutSeconds    int
	RequestsPerMinute int
}

// GetLLM returns the chat completion settings.
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		APIKey:            strings.TrimSpace(c.LLM.APIKey),
		BaseURL:           strings.TrimSpace(c.LLM.BaseURL),
		Model:             strings.TrimSpace(c.LLM.Model),
		Temperature:       c.LLM.Temperature,
		Referer:           strings.TrimSpace(c.LLM.Referer),
		Title:             strings.TrimSpace(c.LLM.Title),
		TimeoutSeconds:    c.LLM.TimeoutSeconds,
		RequestsPerMinute: c.LLM.RequestsPerMinute,
	}
}

// TranscriptionConfig is the resolved speech-to-text client configuration.
type TranscriptionConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	TimeoutSeconds int
	MaxUploadBytes int64
	SegmentSeconds int
	FFmpegBinary   string
}

// GetTranscription returns the speech-to-text settings. The API key falls
// back to the LLM key when the providers share credentials.
func (c *Config) GetTranscription() TranscriptionConfig {
	key := strings.TrimSpace(c.Transcription.APIKey)
	if key == "" && strings.Contains(c.LLM.BaseURL, openAIHost) {
		key = strings.TrimSpace(c.LLM.APIKey)
	}
	return TranscriptionConfig{
		APIKey:         key,
		BaseURL:        strings.TrimSpace(c.Transcription.BaseURL),
		Model:          strings.TrimSpace(c.Transcription.Model),
		TimeoutSeconds: c.Transcription.TimeoutSeconds,
		MaxUploadBytes: int64(c.Transcription.MaxUploadMB) * 1024 * 1024,
		SegmentSeconds: c.Transcription.SegmentSeconds,
		FFmpegBinary:   c.FFmpegBinary(),
	}
}

// YtDlpBinary returns the configured yt-dlp command.
func (c *Config) YtDlpBinary() string {
	if v := strings.TrimSpace(c.Acquisition.YtDlpBinary); v != "" {
		return v
	}
	return defaultYtDlpBinary
}

// FFmpegBinary returns the configured ffmpeg command.
func (c *Config) FFmpegBinary() string {
	if v := strings.TrimSpace(c.Acquisition.FFmpegBinary); v != "" {
		return v
	}
	return defaultFFmpegBinary
}

// PartialReduce reports whether the summarizer should reduce over the
// successful chunks when some map extractions fail permanently.
func (c *Config) PartialReduce() bool {
	return c.Summarize.PartialFailure == PartialFailureReduce
}
