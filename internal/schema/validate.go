package schema

import (
	"fmt"
	"sort"
	"strings"

	"ytsummarize/internal/services"
	"ytsummarize/internal/textutil"
)

// Stage is the stage name recorded on validation failures.
const Stage = "VALIDATION"

// Violation names one field that breaks the schema.
type Violation struct {
	Field  string
	Reason string
}

func (v Violation) String() string {
	return v.Field + ": " + v.Reason
}

// ViolationError lists every violation found in a summary. It matches
// services.ErrSchemaViolation.
type ViolationError struct {
	Violations []Violation
}

func (e *ViolationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.String())
	}
	return fmt.Sprintf("%s: %s", services.ErrSchemaViolation, strings.Join(parts, "; "))
}

func (e *ViolationError) Unwrap() error { return services.ErrSchemaViolation }

// ValidateOptions carries facts about the source material that bound what
// the summary can be expected to contain.
type ValidateOptions struct {
	// AvailableActionItems is the number of distinct action items the map
	// phase produced. The minimum of three applies only when at least three
	// exist.
	AvailableActionItems int
}

// Validate checks s against the fixed schema. It returns nil or a
// *ViolationError.
func Validate(s Summary, opts ValidateOptions) error {
	var out []Violation
	add := func(field, format string, args ...any) {
		out = append(out, Violation{Field: field, Reason: fmt.Sprintf(format, args...)})
	}

	if strings.TrimSpace(s.Title) == "" {
		add("title", "must not be empty")
	}
	if len(s.TLDR) != TLDRCount {
		add("tldr", "must have exactly %d entries, got %d", TLDRCount, len(s.TLDR))
	}
	if len(s.KeyPoints) > MaxKeyPoints {
		add("key_points", "must have at most %d entries, got %d", MaxKeyPoints, len(s.KeyPoints))
	}
	if len(s.Quotes) > MaxQuotes {
		add("quotes", "must have at most %d entries, got %d", MaxQuotes, len(s.Quotes))
	}
	if len(s.ActionItems) > MaxActionItems {
		add("action_items", "must have at most %d entries, got %d", MaxActionItems, len(s.ActionItems))
	}
	if floor := min(MinActionItems, opts.AvailableActionItems); len(s.ActionItems) < floor {
		add("action_items", "must have at least %d entries, got %d", floor, len(s.ActionItems))
	}
	for field, values := range map[string][]string{
		"tldr":         s.TLDR,
		"key_points":   s.KeyPoints,
		"quotes":       s.Quotes,
		"action_items": s.ActionItems,
		"tags":         s.Tags,
	} {
		if reason := checkList(values); reason != "" {
			add(field, "%s", reason)
		}
	}

	var prev float64
	for i, ch := range s.Chapters {
		field := fmt.Sprintf("chapters[%d]", i)
		if strings.TrimSpace(ch.Heading) == "" {
			add(field+".heading", "must not be empty")
		}
		start, ok := ParseTimestamp(ch.Start)
		if !ok {
			add(field+".start", "unparseable timestamp %q", ch.Start)
			continue
		}
		if i > 0 && start < prev {
			add("chapters", "not sorted by start at index %d", i)
		}
		prev = start
		if reason := checkList(ch.Bullets); reason != "" {
			add(field+".bullets", "%s", reason)
		}
	}

	if len(out) == 0 {
		return nil
	}
	// Map iteration order is random; keep the message stable.
	sort.SliceStable(out, func(i, j int) bool { return out[i].Field < out[j].Field })
	return &ViolationError{Violations: out}
}

// checkList reports blank or duplicate entries.
func checkList(values []string) string {
	seen := make(map[string]int, len(values))
	for i, v := range values {
		key := textutil.Normalize(v)
		if key == "" {
			return fmt.Sprintf("entry %d is empty", i)
		}
		if j, ok := seen[key]; ok {
			return fmt.Sprintf("entry %d duplicates entry %d", i, j)
		}
		seen[key] = i
	}
	return ""
}
