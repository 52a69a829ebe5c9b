package tokens

import (
	"strings"
	"testing"
)

func TestForModelUsesEncoding(t *testing.T) {
	for _, model := range []string{"gpt-4", "openai/gpt-3.5-turbo", "llama3.1:8b", ""} {
		est := ForModel(model)
		if _, ok := est.(BPE); !ok {
			t.Fatalf("ForModel(%q) = %T, want BPE", model, est)
		}
	}
}

func TestBPEEstimate(t *testing.T) {
	est := ForModel("gpt-4")
	if got := est.Estimate("  \n "); got != 0 {
		t.Fatalf("whitespace estimate = %d, want 0", got)
	}
	if got := est.Estimate("hello world"); got != 2 {
		t.Fatalf("Estimate(hello world) = %d, want 2", got)
	}
	// BPE merges common words, so long English prose costs fewer tokens than
	// the rune heuristic.
	prose := strings.Repeat("The transcript is split into chunks. ", 50)
	if bpe, rough := est.Estimate(prose), Estimate(prose); bpe == 0 || bpe > rough {
		t.Fatalf("bpe estimate %d, heuristic %d", bpe, rough)
	}
}

func TestForModelCachesEstimators(t *testing.T) {
	a := ForModel("gpt-4")
	b := ForModel("openai/gpt-4")
	if a != b {
		t.Fatal("expected the same estimator for a prefixed model name")
	}
}
