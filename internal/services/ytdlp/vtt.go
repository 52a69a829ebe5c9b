package ytdlp

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var (
	vttHeaderRe     = regexp.MustCompile(`^WEBVTT\b`)
	vttMetadataRe   = regexp.MustCompile(`^(Kind|Language|NOTE|STYLE|REGION)\b`)
	vttTimingRe     = regexp.MustCompile(`^(\d{2}:)?\d{2}:\d{2}\.\d{3}\s*-->\s*(\d{2}:)?\d{2}:\d{2}\.\d{3}`)
	vttCueIDRe      = regexp.MustCompile(`^[\w-]+$`)
	vttTagRe        = regexp.MustCompile(`<[^>]+>`)
	vttBracketRe    = regexp.MustCompile(`\[[^\]]*\]|[♪♫]+`)
	vttParenRe      = regexp.MustCompile(`\(([^)]*)\)`)
	vttWhitespaceRe = regexp.MustCompile(`[\s\x{00A0}]+`)
)

// soundCues are parenthesized captions that describe audio rather than speech.
var soundCues = map[string]bool{
	"applause": true, "audience laughing": true, "cheering": true, "cheers": true,
	"clapping": true, "inaudible": true, "laughing": true, "laughs": true,
	"laughter": true, "music": true, "music playing": true, "silence": true,
}

// CleanVTT converts WebVTT subtitle content to plain text. Headers, metadata
// blocks, cue identifiers, timing lines and inline tags are dropped, as are
// bracketed annotations like [Music], music notes, cue lines that are a single
// parenthetical and known sound cues such as (applause). Other parentheses
// are speech and kept. HTML entities are decoded and the rolling duplicates
// typical of auto-generated captions are collapsed.
func CleanVTT(raw string) string {
	if raw == "" {
		return ""
	}
	var (
		cleaned []string
		prev    string
		inCue   bool
	)
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(strings.TrimRight(line, "\r"))
		switch {
		case line == "":
			inCue = false
			continue
		case vttHeaderRe.MatchString(line), vttMetadataRe.MatchString(line):
			inCue = false
			continue
		case vttTimingRe.MatchString(line):
			inCue = true
			continue
		case !inCue && vttCueIDRe.MatchString(line):
			continue
		case !inCue:
			continue
		}

		text := html.UnescapeString(vttTagRe.ReplaceAllString(line, ""))
		text = stripAnnotations(text)
		text = strings.TrimSpace(vttWhitespaceRe.ReplaceAllString(text, " "))
		if text == "" || text == prev {
			continue
		}
		cleaned = append(cleaned, text)
		prev = text
	}
	return strings.TrimSpace(strings.Join(cleaned, " "))
}

func stripAnnotations(text string) string {
	text = strings.TrimSpace(vttBracketRe.ReplaceAllString(text, ""))
	if m := vttParenRe.FindStringSubmatchIndex(text); m != nil && m[0] == 0 && m[1] == len(text) {
		return ""
	}
	return vttParenRe.ReplaceAllStringFunc(text, func(paren string) string {
		if soundCues[strings.ToLower(strings.TrimSpace(paren[1:len(paren)-1]))] {
			return ""
		}
		return paren
	})
}
