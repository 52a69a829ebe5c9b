package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Cardinality bounds for the summary arrays.
const (
	TLDRCount       = 3
	MinKeyPoints    = 8
	MaxKeyPoints    = 12
	MaxQuotes       = 5
	MinActionItems  = 3
	MaxActionItems  = 7
	MaxChapterNotes = 6
)

// Chapter is one section of the video.
type Chapter struct {
	Start   string   `json:"start"`
	Heading string   `json:"heading"`
	Bullets []string `json:"bullets"`
}

// Summary is the structured result of a run. Its JSON form is exactly the
// summary.json schema.
type Summary struct {
	Title       string    `json:"title"`
	SourceURL   string    `json:"source_url"`
	TLDR        []string  `json:"tldr"`
	KeyPoints   []string  `json:"key_points"`
	Chapters    []Chapter `json:"chapters"`
	Quotes      []string  `json:"quotes"`
	ActionItems []string  `json:"action_items"`
	Tags        []string  `json:"tags"`
}

// Term is a glossary entry rendered in the Markdown view only.
type Term struct {
	Term       string `json:"term"`
	Definition string `json:"definition"`
}

// EncodeJSON renders s as indented JSON. Nil arrays encode as [] so every
// field keeps its declared type.
func EncodeJSON(s Summary) ([]byte, error) {
	s = s.withEmptyArrays()
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return nil, fmt.Errorf("encode summary: %w", err)
	}
	return buf.Bytes(), nil
}

func (s Summary) withEmptyArrays() Summary {
	s.TLDR = orEmpty(s.TLDR)
	s.KeyPoints = orEmpty(s.KeyPoints)
	s.Quotes = orEmpty(s.Quotes)
	s.ActionItems = orEmpty(s.ActionItems)
	s.Tags = orEmpty(s.Tags)
	chapters := make([]Chapter, 0, len(s.Chapters))
	for _, ch := range s.Chapters {
		ch.Bullets = orEmpty(ch.Bullets)
		chapters = append(chapters, ch)
	}
	s.Chapters = chapters
	return s
}

func orEmpty(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

// ParseTimestamp reads a chapter start written as seconds, MM:SS or
// H:MM:SS. A leading "~" marks an estimate and is ignored.
func ParseTimestamp(value string) (float64, bool) {
	value = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(value), "~"))
	if value == "" {
		return 0, false
	}
	parts := strings.Split(value, ":")
	if len(parts) > 3 {
		return 0, false
	}
	var total float64
	for i, part := range parts {
		n, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil || n < 0 || math.IsInf(n, 0) || math.IsNaN(n) {
			return 0, false
		}
		if i > 0 && n >= 60 {
			return 0, false
		}
		total = total*60 + n
	}
	return total, true
}

// FormatTimestamp renders seconds as MM:SS, or H:MM:SS from one hour up.
func FormatTimestamp(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	total := int(seconds)
	h, m, sec := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, sec)
	}
	return fmt.Sprintf("%02d:%02d", m, sec)
}
