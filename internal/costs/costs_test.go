package costs

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestEstimateSummarization(t *testing.T) {
	small := EstimateSummarization(1000, 3000, "gpt-4o-mini")
	if small.Chunks != 1 || small.Cost <= 0 || small.ShouldWarn {
		t.Fatalf("unexpected small estimate: %+v", small)
	}

	large := EstimateSummarization(WarnTranscriptTokens+10000, 3000, "gpt-4o-mini")
	if large.Chunks <= 10 || !large.ShouldWarn {
		t.Fatalf("large transcript should warn: %+v", large)
	}

	cheap := EstimateSummarization(10000, 3000, "gpt-4o-mini")
	expensive := EstimateSummarization(10000, 3000, "openai/gpt-4o")
	if expensive.Cost <= cheap.Cost {
		t.Fatalf("gpt-4o should cost more: %v <= %v", expensive.Cost, cheap.Cost)
	}

	unknown := EstimateSummarization(10000, 3000, "someone/custom-model")
	if unknown.Cost != cheap.Cost {
		t.Fatalf("unknown model should use fallback pricing: %v vs %v", unknown.Cost, cheap.Cost)
	}
}

func TestEstimateTranscription(t *testing.T) {
	short := EstimateTranscription(300, "whisper-1")
	if short.Minutes != 5 || short.Cost <= 0 || short.ShouldWarn {
		t.Fatalf("unexpected short estimate: %+v", short)
	}
	long := EstimateTranscription((WarnAudioMinutes+10)*60, "whisper-1")
	if !long.ShouldWarn {
		t.Fatalf("long audio should warn: %+v", long)
	}
	mini := EstimateTranscription(600, "gpt-4o-mini-transcribe")
	full := EstimateTranscription(600, "gpt-4o-transcribe")
	if mini.Cost >= full.Cost {
		t.Fatalf("mini transcription should be cheaper: %v >= %v", mini.Cost, full.Cost)
	}
}

func TestFormatWarning(t *testing.T) {
	msg := FormatWarning("Test operation", 0.5, "")
	if !strings.Contains(msg, "Test operation") || !strings.Contains(msg, "$0.500") {
		t.Fatalf("unexpected message %q", msg)
	}
	msg = FormatWarning("Test", 1.25, "100 tokens")
	if !strings.Contains(msg, "100 tokens") || !strings.Contains(msg, "$1.250") {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestLogTranscriptionWarnsOverThreshold(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))

	LogTranscription(logger, EstimateTranscription(60, "whisper-1"))
	if buf.Len() != 0 {
		t.Fatalf("short audio should not warn: %s", buf.String())
	}

	LogTranscription(logger, EstimateTranscription(3600, "whisper-1"))
	out := buf.String()
	if !strings.Contains(out, "event_type=cost_threshold") || !strings.Contains(out, "Transcription may cost") {
		t.Fatalf("expected cost warning, got %s", out)
	}
}
