package textutil

import (
	"math"
	"strings"
	"unicode"
)

// Fingerprint represents a term-frequency vector for text similarity comparison.
type Fingerprint struct {
	tokens map[string]float64
	norm   float64
}

// NewFingerprint creates a fingerprint from the provided text.
// Returns nil if the text produces no valid tokens.
func NewFingerprint(text string) *Fingerprint {
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return nil
	}
	counts := make(map[string]float64, len(tokens))
	for _, token := range tokens {
		counts[token]++
	}
	var norm float64
	for _, count := range counts {
		norm += count * count
	}
	return &Fingerprint{
		tokens: counts,
		norm:   math.Sqrt(norm),
	}
}

// Tokenize folds text with Normalize and splits it into letter/digit runs,
// dropping tokens shorter than 3 runes. Runs of non-Latin script (where
// words are rarely space separated) are kept regardless of length.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(Normalize(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	terms := make([]string, 0, len(fields))
	for _, token := range fields {
		if len([]rune(token)) < 3 && isLatin(token) {
			continue
		}
		terms = append(terms, token)
	}
	return terms
}

// Similarity returns the cosine similarity of f and other, or 0 when either
// is nil.
func (f *Fingerprint) Similarity(other *Fingerprint) float64 {
	if f == nil || other == nil || f.norm == 0 || other.norm == 0 {
		return 0
	}
	small, large := f.tokens, other.tokens
	if len(small) > len(large) {
		small, large = large, small
	}
	var dot float64
	for token, count := range small {
		dot += count * large[token]
	}
	return dot / (f.norm * other.norm)
}

// NearDuplicate reports whether a and b say the same thing: equal after
// Normalize, or fingerprints at least threshold similar.
func NearDuplicate(a, b string, threshold float64) bool {
	na, nb := Normalize(a), Normalize(b)
	if na == nb {
		return true
	}
	if na == "" || nb == "" {
		return false
	}
	return NewFingerprint(a).Similarity(NewFingerprint(b)) >= threshold
}

// TokenCount returns the number of unique tokens in the fingerprint.
func (f *Fingerprint) TokenCount() int {
	if f == nil {
		return 0
	}
	return len(f.tokens)
}

func isLatin(token string) bool {
	for _, r := range token {
		if r > unicode.MaxLatin1 {
			return false
		}
	}
	return true
}
