package config

const (
	defaultOutputDir             = "./summaries"
	defaultLanguage              = "auto"
	defaultMaxMinutes            = 180
	defaultYtDlpBinary           = "yt-dlp"
	defaultFFmpegBinary          = "ffmpeg"
	defaultCommandTimeoutSeconds = 600
	defaultRetryAttempts         = 3
	defaultRetryBaseMillis       = 1000
	defaultRetryMaxMillis        = 10000
	defaultLLMBaseURL            = "https://api.openai.com/v1/chat/completions"
	defaultLLMModel              = "gpt-4o-mini"
	defaultLLMTimeoutSeconds     = 120
	defaultTranscriptionBaseURL  = "https://api.openai.com/v1/audio/transcriptions"
	defaultTranscriptionModel    = "gpt-4o-mini-transcribe"
	defaultTranscriptionTimeout  = 600
	defaultMaxUploadMB           = 25
	defaultSegmentSeconds        = 600
	defaultChunkTokens           = 3000
	defaultConcurrency           = 4
	defaultLogLevel              = "info"
	defaultLogFormat             = "console"
	openRouterHost               = "openrouter.ai"
	openAIHost                   = "api.openai.com"
	minChunkTokens               = 200
	maxConcurrency               = 32
)

// Partial failure policies for the map phase.
const (
	PartialFailureFail   = "fail"
	PartialFailureReduce = "reduce"
)

// Output formats.
const (
	FormatMarkdown = "md"
	FormatJSON     = "json"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			CacheDir:  defaultCacheDir(),
			OutputDir: defaultOutputDir,
		},
		Acquisition: Acquisition{
			Language:              defaultLanguage,
			MaxMinutes:            defaultMaxMinutes,
			AudioFallback:         true,
			YtDlpBinary:           defaultYtDlpBinary,
			FFmpegBinary:          defaultFFmpegBinary,
			CommandTimeoutSeconds: defaultCommandTimeoutSeconds,
			RetryAttempts:         defaultRetryAttempts,
			RetryBaseMillis:       defaultRetryBaseMillis,
			RetryMaxMillis:        defaultRetryMaxMillis,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Temperature:    0,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Transcription: Transcription{
			BaseURL:        defaultTranscriptionBaseURL,
			Model:          defaultTranscriptionModel,
			TimeoutSeconds: defaultTranscriptionTimeout,
			MaxUploadMB:    defaultMaxUploadMB,
			SegmentSeconds: defaultSegmentSeconds,
		},
		Summarize: Summarize{
			ChunkTokens:     defaultChunkTokens,
			Concurrency:     defaultConcurrency,
			RetryAttempts:   defaultRetryAttempts,
			RetryBaseMillis: defaultRetryBaseMillis,
			RetryMaxMillis:  defaultRetryMaxMillis,
			PartialFailure:  PartialFailureFail,
			Synthesize:      true,
			Formats:         []string{FormatMarkdown},
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}
