package textutil

import (
	"strings"
	"testing"
)

func TestFingerprintSimilarity(t *testing.T) {
	text := "The quick brown fox jumps over the lazy dog"
	tests := []struct {
		name string
		a, b *Fingerprint
		min  float64
		max  float64
	}{
		{"both nil", nil, nil, 0, 0},
		{"receiver nil", nil, NewFingerprint("hello world"), 0, 0},
		{"other nil", NewFingerprint("hello world"), nil, 0, 0},
		{"identical", NewFingerprint(text), NewFingerprint(text), 0.9999, 1.0001},
		{"disjoint", NewFingerprint("apple banana cherry"), NewFingerprint("dog elephant frog"), 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Similarity(tt.b); got < tt.min || got > tt.max {
				t.Errorf("Similarity() = %v, want in [%v, %v]", got, tt.min, tt.max)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  Hello,   World! ", "hello world"},
		{"STRASSE", "strasse"},
		{"Straße", "strasse"},
		{"ﬁle — name", "file name"},
		{"", ""},
		{"...", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Fatalf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNearDuplicate(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{"case and punctuation", "Use a cache for transcripts.", "use a cache for transcripts", true},
		{"reworded overlap", "Caching transcripts saves real money on repeated runs", "Caching transcripts saves money on repeated runs", true},
		{"different", "Chunk the transcript by sentences", "Render markdown with a glossary", false},
		{"both empty", "", "", true},
		{"one empty", "", "x", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NearDuplicate(tt.a, tt.b, 0.8); got != tt.want {
				t.Fatalf("NearDuplicate(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestTokenizeKeepsNonLatinRuns(t *testing.T) {
	tokens := Tokenize("Go 言語 is fun")
	joined := strings.Join(tokens, ",")
	if joined != "言語,fun" {
		t.Fatalf("unexpected tokens %q", joined)
	}
}

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"What is Go? A/B testing: part 1", "What is Go A-B testing- part 1"},
		{"  ..hidden.. ", "hidden"},
		{"a  \t b", "a b"},
	}
	for _, tt := range tests {
		if got := SanitizeFileName(tt.in); got != tt.want {
			t.Fatalf("SanitizeFileName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
	long := strings.Repeat("x", 300)
	if got := SanitizeFileName(long); len([]rune(got)) != maxFileNameRunes {
		t.Fatalf("expected truncation to %d runes, got %d", maxFileNameRunes, len(got))
	}
}

func TestSanitizeToken(t *testing.T) {
	if got := SanitizeToken("en-US"); got != "en-us" {
		t.Fatalf("SanitizeToken = %q", got)
	}
	if got := SanitizeToken("  "); got != "unknown" {
		t.Fatalf("SanitizeToken(blank) = %q", got)
	}
	if got := SanitizeToken("gpt-4o/mini"); got != "gpt-4o_mini" {
		t.Fatalf("SanitizeToken = %q", got)
	}
	if got := SanitizeToken("Café"); got != "caf" {
		t.Fatalf("SanitizeToken(non-ascii) = %q", got)
	}
}
