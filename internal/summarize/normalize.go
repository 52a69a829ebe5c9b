package summarize

import (
	"strings"

	"ytsummarize/internal/schema"
	"ytsummarize/internal/textutil"
)

// normalizeSynthesis applies the reduce dedup and cardinality rules to a
// model-written summary. Short lists are topped up from the deterministic
// draft, never invented.
func normalizeSynthesis(s schema.Summary, d draft) schema.Summary {
	out := schema.Summary{
		Title:     d.Summary.Title,
		SourceURL: d.Summary.SourceURL,
	}
	out.TLDR = topUp(capList(dedupe(s.TLDR), schema.TLDRCount), schema.TLDRCount, d.Summary.TLDR, d.Summary.KeyPoints)
	out.KeyPoints = capList(dedupe(s.KeyPoints), schema.MaxKeyPoints)
	if len(out.KeyPoints) == 0 {
		out.KeyPoints = d.Summary.KeyPoints
	}
	out.Chapters = normalizeChapters(s.Chapters)
	if len(out.Chapters) == 0 {
		out.Chapters = d.Summary.Chapters
	}
	quotes := make([]string, 0, len(s.Quotes))
	for _, q := range s.Quotes {
		quotes = append(quotes, strings.Trim(strings.TrimSpace(q), "\"“”"))
	}
	out.Quotes = capList(dedupe(quotes), schema.MaxQuotes)
	out.ActionItems = capList(dedupe(s.ActionItems), schema.MaxActionItems)
	if floor := min(schema.MinActionItems, d.AvailableActionItems); len(out.ActionItems) < floor {
		out.ActionItems = topUp(out.ActionItems, floor, d.Summary.ActionItems)
	}
	out.Tags = capList(dedupe(s.Tags), maxTags)
	if len(out.Tags) == 0 {
		out.Tags = d.Summary.Tags
	}
	return out
}

// topUp appends entries from the fallback lists until values has n entries,
// skipping anything already present.
func topUp(values []string, n int, fallbacks ...[]string) []string {
	for _, fallback := range fallbacks {
		for _, candidate := range fallback {
			if len(values) >= n {
				return values
			}
			if !containsNear(values, candidate) {
				values = append(values, candidate)
			}
		}
	}
	return values
}

func containsNear(values []string, candidate string) bool {
	for _, v := range values {
		if textutil.NearDuplicate(v, candidate, dupThreshold) {
			return true
		}
	}
	return false
}

// normalizeChapters reparses starts, letting an unparseable start inherit
// the previous chapter's, then sorts and merges like the draft.
func normalizeChapters(chapters []schema.Chapter) []schema.Chapter {
	candidates := make([]chapterCandidate, 0, len(chapters))
	var prev float64
	for i, ch := range chapters {
		start, ok := schema.ParseTimestamp(ch.Start)
		if !ok {
			start = prev
		}
		prev = start
		candidates = append(candidates, chapterCandidate{
			start:   start,
			heading: ch.Heading,
			bullets: ch.Bullets,
			first:   i,
		})
	}
	return mergeChapters(candidates)
}
