package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeAcquisition()
	c.normalizeLLM()
	c.normalizeTranscription()
	c.normalizeSummarize()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	if value, ok := os.LookupEnv("YTSUMMARIZE_CACHE_DIR"); ok && strings.TrimSpace(value) != "" {
		c.Paths.CacheDir = value
	}
	if strings.TrimSpace(c.Paths.CacheDir) == "" {
		c.Paths.CacheDir = defaultCacheDir()
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaultOutputDir
	}
	if strings.TrimSpace(c.Paths.TempDir) == "" {
		c.Paths.TempDir = filepath.Join(os.TempDir(), "ytsummarize")
	}

	var err error
	if c.Paths.CacheDir, err = expandPath(c.Paths.CacheDir); err != nil {
		return fmt.Errorf("paths.cache_dir: %w", err)
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.TempDir, err = expandPath(c.Paths.TempDir); err != nil {
		return fmt.Errorf("paths.temp_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeAcquisition() {
	c.Acquisition.Language = strings.ToLower(strings.TrimSpace(c.Acquisition.Language))
	if c.Acquisition.Language == "" {
		c.Acquisition.Language = defaultLanguage
	}
	c.Acquisition.YtDlpBinary = strings.TrimSpace(c.Acquisition.YtDlpBinary)
	c.Acquisition.FFmpegBinary = strings.TrimSpace(c.Acquisition.FFmpegBinary)
	if c.Acquisition.CommandTimeoutSeconds <= 0 {
		c.Acquisition.CommandTimeoutSeconds = defaultCommandTimeoutSeconds
	}
	if c.Acquisition.RetryAttempts <= 0 {
		c.Acquisition.RetryAttempts = defaultRetryAttempts
	}
	if c.Acquisition.RetryBaseMillis <= 0 {
		c.Acquisition.RetryBaseMillis = defaultRetryBaseMillis
	}
	if c.Acquisition.RetryMaxMillis <= 0 {
		c.Acquisition.RetryMaxMillis = defaultRetryMaxMillis
	}
}

func (c *Config) normalizeLLM() {
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	if strings.TrimSpace(c.LLM.APIKey) == "" {
		envKey := "OPENAI_API_KEY"
		if strings.Contains(c.LLM.BaseURL, openRouterHost) {
			envKey = "OPENROUTER_API_KEY"
		}
		if value, ok := os.LookupEnv(envKey); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		}
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
}

func (c *Config) normalizeTranscription() {
	c.Transcription.BaseURL = strings.TrimSpace(c.Transcription.BaseURL)
	if c.Transcription.BaseURL == "" {
		c.Transcription.BaseURL = defaultTranscriptionBaseURL
	}
	c.Transcription.Model = strings.TrimSpace(c.Transcription.Model)
	if c.Transcription.Model == "" {
		c.Transcription.Model = defaultTranscriptionModel
	}
	if strings.TrimSpace(c.Transcription.APIKey) == "" && strings.Contains(c.Transcription.BaseURL, openAIHost) {
		if value, ok := os.LookupEnv("OPENAI_API_KEY"); ok {
			c.Transcription.APIKey = strings.TrimSpace(value)
		}
	}
	if c.Transcription.TimeoutSeconds <= 0 {
		c.Transcription.TimeoutSeconds = defaultTranscriptionTimeout
	}
	if c.Transcription.MaxUploadMB <= 0 {
		c.Transcription.MaxUploadMB = defaultMaxUploadMB
	}
	if c.Transcription.SegmentSeconds <= 0 {
		c.Transcription.SegmentSeconds = defaultSegmentSeconds
	}
}

func (c *Config) normalizeSummarize() {
	if c.Summarize.ChunkTokens <= 0 {
		c.Summarize.ChunkTokens = defaultChunkTokens
	}
	if c.Summarize.Concurrency <= 0 {
		c.Summarize.Concurrency = defaultConcurrency
	}
	if c.Summarize.RetryAttempts <= 0 {
		c.Summarize.RetryAttempts = defaultRetryAttempts
	}
	if c.Summarize.RetryBaseMillis <= 0 {
		c.Summarize.RetryBaseMillis = defaultRetryBaseMillis
	}
	if c.Summarize.RetryMaxMillis <= 0 {
		c.Summarize.RetryMaxMillis = defaultRetryMaxMillis
	}
	c.Summarize.PartialFailure = strings.ToLower(strings.TrimSpace(c.Summarize.PartialFailure))
	if c.Summarize.PartialFailure == "" {
		c.Summarize.PartialFailure = PartialFailureFail
	}
	formats, err := ParseFormats(strings.Join(c.Summarize.Formats, ","))
	if err != nil || len(formats) == 0 {
		// Validate reports the original value.
		return
	}
	c.Summarize.Formats = formats
}

func (c *Config) normalizeLogging() {
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
}

// ParseFormats parses a comma separated output format list such as "md,json"
// into its canonical, deduplicated form.
func ParseFormats(value string) ([]string, error) {
	var out []string
	seen := map[string]bool{}
	for _, part := range strings.Split(value, ",") {
		format := strings.ToLower(strings.TrimSpace(part))
		switch format {
		case "":
			continue
		case "markdown":
			format = FormatMarkdown
		case FormatMarkdown, FormatJSON:
		default:
			return nil, fmt.Errorf("unsupported output format %q (want md, json or md,json)", part)
		}
		if seen[format] {
			continue
		}
		seen[format] = true
		out = append(out, format)
	}
	return out, nil
}
