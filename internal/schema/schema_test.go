package schema_test

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"ytsummarize/internal/acquire"
	"ytsummarize/internal/schema"
	"ytsummarize/internal/services"
)

func validSummary() schema.Summary {
	return schema.Summary{
		Title:     "Building Caches",
		SourceURL: "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		TLDR:      []string{"Caches trade memory for latency.", "Invalidation is the hard part.", "Measure before tuning."},
		KeyPoints: []string{"Write-through keeps readers consistent.", "TTLs bound staleness."},
		Chapters: []schema.Chapter{
			{Start: "00:00", Heading: "Intro", Bullets: []string{"Why caches exist"}},
			{Start: "05:30", Heading: "Invalidation", Bullets: []string{"Key versioning"}},
			{Start: "1:02:03", Heading: "Wrap-up"},
		},
		Quotes:      []string{"There are only two hard things."},
		ActionItems: []string{"Add cache metrics.", "Version your keys.", "Load test eviction."},
		Tags:        []string{"caching", "performance"},
	}
}

func TestValidateAcceptsConformingSummary(t *testing.T) {
	if err := schema.Validate(validSummary(), schema.ValidateOptions{AvailableActionItems: 5}); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*schema.Summary)
		opts   schema.ValidateOptions
		field  string
	}{
		{"tldr too short", func(s *schema.Summary) { s.TLDR = s.TLDR[:2] }, schema.ValidateOptions{}, "tldr"},
		{"tldr duplicate", func(s *schema.Summary) { s.TLDR[2] = "caches TRADE memory for latency" }, schema.ValidateOptions{}, "tldr"},
		{"too many quotes", func(s *schema.Summary) {
			s.Quotes = []string{"a", "b", "c", "d", "e", "f"}
		}, schema.ValidateOptions{}, "quotes"},
		{"too many key points", func(s *schema.Summary) {
			s.KeyPoints = nil
			for _, w := range strings.Fields("a b c d e f g h i j k l m") {
				s.KeyPoints = append(s.KeyPoints, "point "+w)
			}
		}, schema.ValidateOptions{}, "key_points"},
		{"too few action items when supported", func(s *schema.Summary) {
			s.ActionItems = s.ActionItems[:2]
		}, schema.ValidateOptions{AvailableActionItems: 4}, "action_items"},
		{"chapters unsorted", func(s *schema.Summary) {
			s.Chapters[0], s.Chapters[1] = s.Chapters[1], s.Chapters[0]
		}, schema.ValidateOptions{}, "chapters"},
		{"chapter start unparseable", func(s *schema.Summary) { s.Chapters[1].Start = "soon" }, schema.ValidateOptions{}, "chapters[1].start"},
		{"empty title", func(s *schema.Summary) { s.Title = " " }, schema.ValidateOptions{}, "title"},
		{"blank tag", func(s *schema.Summary) { s.Tags = append(s.Tags, "  ") }, schema.ValidateOptions{}, "tags"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSummary()
			tt.mutate(&s)
			err := schema.Validate(s, tt.opts)
			if !errors.Is(err, services.ErrSchemaViolation) {
				t.Fatalf("expected schema violation, got %v", err)
			}
			var verr *schema.ViolationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *ViolationError, got %T", err)
			}
			found := false
			for _, v := range verr.Violations {
				if v.Field == tt.field {
					found = true
				}
			}
			if !found {
				t.Fatalf("expected violation on %q, got %v", tt.field, verr)
			}
		})
	}
}

func TestValidateActionItemFloorFollowsSourceMaterial(t *testing.T) {
	s := validSummary()
	s.ActionItems = []string{"Only one thing to do."}
	if err := schema.Validate(s, schema.ValidateOptions{AvailableActionItems: 1}); err != nil {
		t.Fatalf("single available action item should validate: %v", err)
	}
	s.ActionItems = nil
	if err := schema.Validate(s, schema.ValidateOptions{AvailableActionItems: 0}); err != nil {
		t.Fatalf("no available action items should validate: %v", err)
	}
}

func TestEncodeJSONHasExactlyTheSchemaFields(t *testing.T) {
	data, err := schema.EncodeJSON(schema.Summary{Title: "T", Chapters: []schema.Chapter{{Start: "00:00", Heading: "H"}}})
	if err != nil {
		t.Fatalf("EncodeJSON: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := []string{"title", "source_url", "tldr", "key_points", "chapters", "quotes", "action_items", "tags"}
	if len(decoded) != len(want) {
		t.Fatalf("unexpected field count %d: %v", len(decoded), decoded)
	}
	for _, key := range want {
		if _, ok := decoded[key]; !ok {
			t.Fatalf("missing field %q", key)
		}
	}
	if _, ok := decoded["tldr"].([]any); !ok {
		t.Fatalf("expected tldr to encode as an array, got %T", decoded["tldr"])
	}
	chapter := decoded["chapters"].([]any)[0].(map[string]any)
	if _, ok := chapter["bullets"].([]any); !ok {
		t.Fatalf("expected chapter bullets array, got %T", chapter["bullets"])
	}
}

func TestParseAndFormatTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"00:00", 0, true},
		{"05:30", 330, true},
		{"~1:02:03", 3723, true},
		{"90", 90, true},
		{"1:75", 0, false},
		{"", 0, false},
		{"abc", 0, false},
		{"1:2:3:4", 0, false},
	}
	for _, tt := range tests {
		got, ok := schema.ParseTimestamp(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Fatalf("ParseTimestamp(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
	if got := schema.FormatTimestamp(330); got != "05:30" {
		t.Fatalf("FormatTimestamp(330) = %q", got)
	}
	if got := schema.FormatTimestamp(3723); got != "1:02:03" {
		t.Fatalf("FormatTimestamp(3723) = %q", got)
	}
}

func TestRenderMarkdownSectionOrder(t *testing.T) {
	doc := schema.Document{
		Summary:  validSummary(),
		Meta:     acquire.SourceMeta{Channel: "Systems Talk"},
		Glossary: []schema.Term{{Term: "TTL", Definition: "Time to live."}},
	}
	md := schema.RenderMarkdown(doc)
	order := []string{
		"# Building Caches",
		"[Source](https://www.youtube.com/watch?v=dQw4w9WgXcQ) · Systems Talk",
		"## TL;DR",
		"## Key Points",
		"## Chapters",
		"### 05:30 Invalidation",
		"## Notable Quotes",
		"> \"There are only two hard things.\"",
		"## Action Items",
		"- [ ] Add cache metrics.",
		"## Glossary",
		"- **TTL**: Time to live.",
		"Tags: `caching` `performance`",
	}
	last := -1
	for _, fragment := range order {
		idx := strings.Index(md, fragment)
		if idx < 0 {
			t.Fatalf("missing %q in:\n%s", fragment, md)
		}
		if idx < last {
			t.Fatalf("%q out of order in:\n%s", fragment, md)
		}
		last = idx
	}
}

func TestRenderMarkdownIsBestEffort(t *testing.T) {
	md := schema.RenderMarkdown(schema.Document{
		Summary: schema.Summary{KeyPoints: []string{"Only point", "  "}},
		Meta:    acquire.SourceMeta{Title: "lecture-notes", FilePath: "/tmp/lecture-notes.txt"},
		Gaps:    []int{2, 4},
	})
	for _, fragment := range []string{"# lecture-notes", "Source: `/tmp/lecture-notes.txt`", "chunks 3, 5", "- Only point"} {
		if !strings.Contains(md, fragment) {
			t.Fatalf("missing %q in:\n%s", fragment, md)
		}
	}
	for _, absent := range []string{"## TL;DR", "## Chapters", "## Notable Quotes", "## Glossary"} {
		if strings.Contains(md, absent) {
			t.Fatalf("unexpected empty section %q in:\n%s", absent, md)
		}
	}
}
