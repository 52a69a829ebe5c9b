package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable. Credentials are checked by the
// clients that need them so cached and local-only runs work without keys.
func (c *Config) Validate() error {
	if err := c.validateAcquisition(); err != nil {
		return err
	}
	if err := c.validateLLM(); err != nil {
		return err
	}
	if err := c.validateTranscription(); err != nil {
		return err
	}
	if err := c.validateSummarize(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateAcquisition() error {
	if c.Acquisition.MaxMinutes <= 0 {
		return errors.New("acquisition.max_minutes must be positive")
	}
	if c.Acquisition.RetryMaxMillis < c.Acquisition.RetryBaseMillis {
		return errors.New("acquisition.retry_max_ms must be >= acquisition.retry_base_ms")
	}
	return nil
}

func (c *Config) validateLLM() error {
	if !strings.HasPrefix(c.LLM.BaseURL, "http://") && !strings.HasPrefix(c.LLM.BaseURL, "https://") {
		return fmt.Errorf("llm.base_url must be an http(s) URL, got %q", c.LLM.BaseURL)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return errors.New("llm.temperature must be between 0 and 2")
	}
	if c.LLM.RequestsPerMinute < 0 {
		return errors.New("llm.requests_per_minute must be >= 0")
	}
	return nil
}

func (c *Config) validateTranscription() error {
	if !strings.HasPrefix(c.Transcription.BaseURL, "http://") && !strings.HasPrefix(c.Transcription.BaseURL, "https://") {
		return fmt.Errorf("transcription.base_url must be an http(s) URL, got %q", c.Transcription.BaseURL)
	}
	if c.Transcription.SegmentSeconds < 60 {
		return errors.New("transcription.segment_seconds must be at least 60")
	}
	return nil
}

func (c *Config) validateSummarize() error {
	if c.Summarize.ChunkTokens < minChunkTokens {
		return fmt.Errorf("summarize.chunk_tokens must be at least %d", minChunkTokens)
	}
	if c.Summarize.Concurrency > maxConcurrency {
		return fmt.Errorf("summarize.concurrency must be at most %d", maxConcurrency)
	}
	if c.Summarize.RetryMaxMillis < c.Summarize.RetryBaseMillis {
		return errors.New("summarize.retry_max_ms must be >= summarize.retry_base_ms")
	}
	switch c.Summarize.PartialFailure {
	case PartialFailureFail, PartialFailureReduce:
	default:
		return fmt.Errorf("summarize.partial_failure must be %q or %q", PartialFailureFail, PartialFailureReduce)
	}
	formats, err := ParseFormats(strings.Join(c.Summarize.Formats, ","))
	if err != nil {
		return fmt.Errorf("summarize.formats: %w", err)
	}
	if len(formats) == 0 {
		return errors.New("summarize.formats must list at least one format")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}
