// Package tokens counts model tokens.
//
// ForModel returns a tiktoken BPE estimator for the configured model, using
// the offline encoding tables. Heuristic is the fallback when no encoding
// can be loaded: it is deterministic and additive over runes, roughly four
// characters per token for Latin letters and digits, one token per
// punctuation mark, and one token per rune for other scripts. Whitespace is
// free.
package tokens

import "unicode"

// Estimator approximates token counts for a text span.
type Estimator interface {
	Estimate(text string) int
}

// Heuristic is the rune-based fallback Estimator.
type Heuristic struct{}

// Estimate returns the approximate token count of text.
func (Heuristic) Estimate(text string) int {
	return Estimate(text)
}

// Estimate returns the approximate token count of text using the default
// heuristic.
func Estimate(text string) int {
	total := 0
	run := 0
	flush := func() {
		if run > 0 {
			total += (run + 3) / 4
			run = 0
		}
	}
	for _, r := range text {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			run++
		case unicode.IsSpace(r):
			flush()
		case r <= unicode.MaxLatin1 && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			run++
		default:
			flush()
			total++
		}
	}
	flush()
	return total
}
