package textutil

import (
	"strings"
	"unicode"
)

// maxFileNameRunes bounds generated directory names.
const maxFileNameRunes = 120

// fileNameRune maps one rune of a title to its directory-name form, or -1 to
// drop it. Path separators and similar punctuation become dashes.
func fileNameRune(r rune) rune {
	switch {
	case strings.ContainsRune(`/\:*`, r):
		return '-'
	case strings.ContainsRune(`?"<>|`, r), unicode.IsControl(r) && !unicode.IsSpace(r):
		return -1
	}
	return r
}

// SanitizeFileName turns a video title into a directory name that is valid on
// common filesystems. The result has single spaces, no leading or trailing
// dots and at most maxFileNameRunes runes.
func SanitizeFileName(name string) string {
	name = strings.Trim(CollapseWhitespace(strings.Map(fileNameRune, name)), ". ")
	if runes := []rune(name); len(runes) > maxFileNameRunes {
		name = strings.TrimSpace(string(runes[:maxFileNameRunes]))
	}
	return name
}

// SanitizeToken reduces an identifier such as a video id, language tag or
// model name to lowercase ASCII letters, digits, '-' and '_'. Other runes
// become '_'. Blank results are reported as "unknown".
func SanitizeToken(value string) string {
	token := strings.Map(func(r rune) rune {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			return unicode.ToLower(r)
		case r == '-', r == '_':
			return r
		}
		return '_'
	}, strings.TrimSpace(value))
	if token = strings.Trim(token, "_-"); token == "" {
		return "unknown"
	}
	return token
}
