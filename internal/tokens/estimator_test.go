package tokens

import (
	"strings"
	"testing"
)

func TestEstimate(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"empty", "", 0},
		{"whitespace", " \n\t ", 0},
		{"short word", "go", 1},
		{"four letters", "fast", 1},
		{"five letters", "quick", 2},
		{"punctuation", "Hello, world!", 6},
		{"cjk", "日本語", 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Estimate(tt.text); got != tt.want {
				t.Fatalf("Estimate(%q) = %d, want %d", tt.text, got, tt.want)
			}
		})
	}
}

func TestEstimateIsMonotonicUnderConcatenation(t *testing.T) {
	a := "The transcript is split into chunks."
	b := " Each chunk fits the budget."
	if Estimate(a+b) < Estimate(a) || Estimate(a+b) < Estimate(b) {
		t.Fatalf("expected concatenation to never shrink the estimate")
	}
	long := strings.Repeat("word ", 1000)
	if got := Estimate(long); got != 1000 {
		t.Fatalf("Estimate(1000 words) = %d, want 1000", got)
	}
}

func TestHeuristicImplementsEstimator(t *testing.T) {
	var e Estimator = Heuristic{}
	if e.Estimate("abc def") != 2 {
		t.Fatalf("unexpected estimate %d", e.Estimate("abc def"))
	}
}
