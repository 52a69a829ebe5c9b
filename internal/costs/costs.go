// Package costs estimates provider spend for summarization and speech-to-text
// and logs a warning when a run crosses the configured thresholds.
package costs

import (
	"fmt"
	"log/slog"
	"strings"

	"ytsummarize/internal/logging"
)

// Warning thresholds.
const (
	WarnTranscriptTokens = 50_000
	WarnAudioMinutes     = 30
	WarnEstimatedCost    = 0.50
)

// Per-call overheads used by the summarization estimate.
const (
	mapPromptTokens    = 500
	mapOutputTokens    = 200
	reducePromptTokens = 1000
	reduceOutputTokens = 2000
)

type tokenPrice struct {
	input  float64
	output float64
}

// USD per 1M tokens.
var chatPrices = map[string]tokenPrice{
	"gpt-4o-mini":  {input: 0.15, output: 0.60},
	"gpt-4o":       {input: 2.50, output: 10.00},
	"gpt-4-turbo":  {input: 10.00, output: 30.00},
	"gpt-4.1-mini": {input: 0.40, output: 1.60},
	"gpt-4.1":      {input: 2.00, output: 8.00},
	"gpt-5-mini":   {input: 0.25, output: 2.00},
}

// USD per audio minute.
var transcriptionPrices = map[string]float64{
	"whisper-1":              0.006,
	"gpt-4o-transcribe":      0.006,
	"gpt-4o-mini-transcribe": 0.003,
}

const (
	fallbackChatModel          = "gpt-4o-mini"
	fallbackTranscriptionModel = "whisper-1"
)

// Summarization is the estimate for one map-reduce run.
type Summarization struct {
	Model        string
	Chunks       int
	InputTokens  int
	OutputTokens int
	Cost         float64
	ShouldWarn   bool
}

// Transcription is the estimate for one speech-to-text run.
type Transcription struct {
	Model   string
	Minutes float64
	Cost    float64
	// ShouldWarn is set when the audio or the cost crosses a threshold.
	ShouldWarn bool
}

// EstimateSummarization prices a transcript of tokenCount tokens split into
// chunkTokens-sized chunks. Unknown models are priced as gpt-4o-mini.
func EstimateSummarization(tokenCount, chunkTokens int, model string) Summarization {
	price, ok := chatPrices[priceKey(model)]
	if !ok {
		price = chatPrices[fallbackChatModel]
	}
	if chunkTokens <= 0 {
		chunkTokens = 1
	}
	chunks := max(1, tokenCount/chunkTokens)

	mapInput := chunks * (chunkTokens + mapPromptTokens)
	mapOutput := chunks * mapOutputTokens
	reduceInput := chunks*mapOutputTokens + reducePromptTokens

	input := mapInput + reduceInput
	output := mapOutput + reduceOutputTokens
	cost := float64(input)/1_000_000*price.input + float64(output)/1_000_000*price.output

	return Summarization{
		Model:        model,
		Chunks:       chunks,
		InputTokens:  input,
		OutputTokens: output,
		Cost:         cost,
		ShouldWarn:   tokenCount > WarnTranscriptTokens || cost > WarnEstimatedCost,
	}
}

// EstimateTranscription prices durationSeconds of audio. Unknown models are
// priced as whisper-1.
func EstimateTranscription(durationSeconds float64, model string) Transcription {
	perMinute, ok := transcriptionPrices[priceKey(model)]
	if !ok {
		perMinute = transcriptionPrices[fallbackTranscriptionModel]
	}
	minutes := durationSeconds / 60
	cost := minutes * perMinute
	return Transcription{
		Model:      model,
		Minutes:    minutes,
		Cost:       cost,
		ShouldWarn: minutes > WarnAudioMinutes || cost > WarnEstimatedCost,
	}
}

// priceKey strips provider prefixes such as "openai/".
func priceKey(model string) string {
	model = strings.ToLower(strings.TrimSpace(model))
	if idx := strings.LastIndex(model, "/"); idx >= 0 {
		model = model[idx+1:]
	}
	return model
}

// FormatWarning renders a one-line cost notice.
func FormatWarning(operation string, cost float64, details string) string {
	msg := fmt.Sprintf("%s may cost approximately $%.3f", operation, cost)
	if details != "" {
		msg += " (" + details + ")"
	}
	return msg
}

// LogSummarization logs the estimate at debug level, or as a warning when it
// crosses a threshold.
func LogSummarization(logger *slog.Logger, tokenCount int, est Summarization) {
	if logger == nil {
		return
	}
	attrs := []logging.Attr{
		logging.String("model", est.Model),
		logging.Int("transcript_tokens", tokenCount),
		logging.Int("chunks", est.Chunks),
		logging.Float64("estimated_cost_usd", est.Cost),
	}
	if !est.ShouldWarn {
		logger.Debug("summarization cost estimate", logging.Args(attrs...)...)
		return
	}
	details := fmt.Sprintf("%d tokens, %d chunks", tokenCount, est.Chunks)
	attrs = append(attrs,
		logging.String(logging.FieldErrorHint, "use a smaller model or a larger chunk size to reduce cost"),
		logging.String(logging.FieldImpact, "provider charges apply"))
	logging.WarnWithContext(logger, FormatWarning("Summarization", est.Cost, details), "cost_threshold", attrs...)
}

// LogTranscription logs the estimate at debug level, or as a warning when it
// crosses a threshold.
func LogTranscription(logger *slog.Logger, est Transcription) {
	if logger == nil {
		return
	}
	attrs := []logging.Attr{
		logging.String("model", est.Model),
		logging.Float64("audio_minutes", est.Minutes),
		logging.Float64("estimated_cost_usd", est.Cost),
	}
	if !est.ShouldWarn {
		logger.Debug("transcription cost estimate", logging.Args(attrs...)...)
		return
	}
	details := fmt.Sprintf("%.0f minutes of audio", est.Minutes)
	attrs = append(attrs,
		logging.String(logging.FieldErrorHint, "pass --no-audio-fallback to skip paid transcription"),
		logging.String(logging.FieldImpact, "provider charges apply"))
	logging.WarnWithContext(logger, FormatWarning("Transcription", est.Cost, details), "cost_threshold", attrs...)
}
