package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var folder = cases.Fold()

// Normalize returns the comparison form of s: NFKC-normalized, case-folded,
// punctuation and symbols removed, whitespace collapsed to single spaces.
// Two strings that differ only in case, spacing, punctuation or compatibility
// forms normalize to the same value.
func Normalize(s string) string {
	folded := folder.String(norm.NFKC.String(s))
	var b strings.Builder
	b.Grow(len(folded))
	space := false
	for _, r := range folded {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		case unicode.IsSpace(r), unicode.IsPunct(r), unicode.IsSymbol(r):
			space = true
		}
	}
	return b.String()
}

// CollapseWhitespace trims s and replaces every whitespace run with a single
// space, leaving punctuation and case untouched.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
