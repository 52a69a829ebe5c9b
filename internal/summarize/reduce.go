package summarize

import (
	"sort"
	"strings"

	"ytsummarize/internal/chunker"
	"ytsummarize/internal/schema"
	"ytsummarize/internal/textutil"
)

const (
	// dupThreshold is the fingerprint similarity above which two entries
	// are treated as the same point.
	dupThreshold      = 0.85
	defaultImportance = 3
	repeatBonus       = 1.0
	maxTags           = 10
	terminalBonus     = 50
	maxQuoteScore     = 300
)

// layout locates chunks in the transcript so chapter starts can be
// estimated when the model gives none.
type layout struct {
	chunks   map[int]chunker.Chunk
	textLen  int
	duration float64
}

func newLayout(chunks []chunker.Chunk, duration float64) layout {
	l := layout{chunks: make(map[int]chunker.Chunk, len(chunks)), duration: duration}
	for _, c := range chunks {
		l.chunks[c.Index] = c
		if c.End > l.textLen {
			l.textLen = c.End
		}
	}
	return l
}

// position returns the estimated playback second of offset within chunk
// index, where frac in [0,1) places the point inside the chunk.
func (l layout) position(index int, frac float64) float64 {
	c, ok := l.chunks[index]
	if !ok || l.textLen <= 0 || l.duration <= 0 {
		return 0
	}
	offset := float64(c.Start) + frac*float64(c.End-c.Start)
	return offset / float64(l.textLen) * l.duration
}

// draft is the deterministic merge of all map results.
type draft struct {
	Summary              schema.Summary
	Glossary             []schema.Term
	AvailableActionItems int
}

type scored struct {
	text  string
	score float64
	first int
	count int
}

// mergeScored folds near-duplicates into the first occurrence, adding the
// repeat bonus to its score. longer keeps the longer text on collision.
func mergeScored(items []scored, longer bool) []scored {
	out := make([]scored, 0, len(items))
	for _, item := range items {
		item.text = textutil.CollapseWhitespace(item.text)
		if textutil.Normalize(item.text) == "" {
			continue
		}
		dup := -1
		for i := range out {
			if textutil.NearDuplicate(out[i].text, item.text, dupThreshold) {
				dup = i
				break
			}
		}
		if dup < 0 {
			item.count = 1
			out = append(out, item)
			continue
		}
		out[dup].count++
		out[dup].score = max(out[dup].score, item.score) + repeatBonus
		if longer && len([]rune(item.text)) > len([]rune(out[dup].text)) {
			out[dup].text = item.text
		}
	}
	return out
}

// topN keeps the n highest-scoring items. With keepOrder the survivors are
// returned in first-occurrence order, otherwise by descending score.
func topN(items []scored, n int, keepOrder bool) []string {
	ranked := make([]scored, len(items))
	copy(ranked, items)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].first < ranked[j].first
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	if keepOrder {
		sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].first < ranked[j].first })
	}
	out := make([]string, 0, len(ranked))
	for _, item := range ranked {
		out = append(out, item.text)
	}
	return out
}

func texts(items []scored) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.text)
	}
	return out
}

// reduce merges results, which must already be in chunk order.
func reduce(results []MapResult, l layout, title, sourceURL string) draft {
	var bullets, quotes, actions, tags []scored
	var candidates []chapterCandidate
	var terms []schema.Term
	seq := 0
	next := func() int { seq++; return seq }

	for _, r := range results {
		for _, b := range r.Bullets {
			importance := b.Importance
			if importance <= 0 {
				importance = defaultImportance
			}
			bullets = append(bullets, scored{text: b.Text, score: float64(min(importance, 5)), first: next()})
		}
		for _, q := range r.Quotes {
			q = strings.Trim(strings.TrimSpace(q), "\"“”")
			quotes = append(quotes, scored{text: q, score: quoteScore(q), first: next()})
		}
		for _, a := range r.ActionItems {
			actions = append(actions, scored{text: a, first: next()})
		}
		for _, t := range r.Terms {
			tags = append(tags, scored{text: strings.TrimSpace(t.Term), score: 1, first: next()})
			terms = append(terms, t)
		}
		for j, ch := range r.Chapters {
			start, ok := schema.ParseTimestamp(ch.Start)
			if !ok {
				start = l.position(r.ChunkIndex, float64(j)/float64(len(r.Chapters)))
			}
			candidates = append(candidates, chapterCandidate{
				start:   start,
				heading: ch.Heading,
				bullets: ch.Bullets,
				first:   next(),
			})
		}
	}

	bullets = mergeScored(bullets, false)
	quotes = mergeScored(quotes, true)
	for i := range quotes {
		quotes[i].score = quoteScore(quotes[i].text)
	}
	actions = mergeScored(actions, false)
	tags = mergeScored(tags, false)

	keyPoints := texts(bullets)
	if len(bullets) > schema.MaxKeyPoints {
		keyPoints = topN(bullets, schema.MaxKeyPoints, true)
	}
	actionItems := texts(actions)
	if len(actionItems) > schema.MaxActionItems {
		actionItems = actionItems[:schema.MaxActionItems]
	}

	return draft{
		Summary: schema.Summary{
			Title:       title,
			SourceURL:   sourceURL,
			TLDR:        topN(bullets, schema.TLDRCount, false),
			KeyPoints:   keyPoints,
			Chapters:    mergeChapters(candidates),
			Quotes:      topN(quotes, schema.MaxQuotes, true),
			ActionItems: actionItems,
			Tags:        topN(tags, maxTags, true),
		},
		Glossary:             mergeTerms(terms),
		AvailableActionItems: len(actions),
	}
}

// quoteScore prefers longer quotes that read as complete sentences.
func quoteScore(q string) float64 {
	score := min(len([]rune(q)), maxQuoteScore)
	if strings.HasSuffix(q, ".") || strings.HasSuffix(q, "!") || strings.HasSuffix(q, "?") {
		score += terminalBonus
	}
	return float64(score)
}

type chapterCandidate struct {
	start   float64
	heading string
	bullets []string
	first   int
}

// mergeChapters sorts candidates by start, then folds together candidates
// that share a start marker or carry near-duplicate adjacent headings.
func mergeChapters(candidates []chapterCandidate) []schema.Chapter {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].start != candidates[j].start {
			return candidates[i].start < candidates[j].start
		}
		return candidates[i].first < candidates[j].first
	})
	var out []schema.Chapter
	for _, c := range candidates {
		heading := textutil.CollapseWhitespace(c.heading)
		if heading == "" {
			continue
		}
		stamp := schema.FormatTimestamp(c.start)
		if n := len(out); n > 0 {
			prev := &out[n-1]
			if stamp == prev.Start || textutil.NearDuplicate(prev.Heading, heading, dupThreshold) {
				prev.Bullets = capList(dedupe(append(prev.Bullets, c.bullets...)), schema.MaxChapterNotes)
				continue
			}
		}
		out = append(out, schema.Chapter{
			Start:   stamp,
			Heading: heading,
			Bullets: capList(dedupe(c.bullets), schema.MaxChapterNotes),
		})
	}
	return out
}

// mergeTerms keeps the first spelling of each term and its first non-empty
// definition.
func mergeTerms(terms []schema.Term) []schema.Term {
	var out []schema.Term
	index := make(map[string]int)
	for _, t := range terms {
		name := textutil.CollapseWhitespace(t.Term)
		key := textutil.Normalize(name)
		if key == "" {
			continue
		}
		def := textutil.CollapseWhitespace(t.Definition)
		if i, ok := index[key]; ok {
			if out[i].Definition == "" {
				out[i].Definition = def
			}
			continue
		}
		index[key] = len(out)
		out = append(out, schema.Term{Term: name, Definition: def})
	}
	return out
}

// dedupe drops blank and near-duplicate entries, keeping first occurrences.
func dedupe(values []string) []string {
	items := make([]scored, 0, len(values))
	for i, v := range values {
		items = append(items, scored{text: v, first: i})
	}
	return texts(mergeScored(items, false))
}

func capList(values []string, n int) []string {
	if len(values) > n {
		return values[:n]
	}
	return values
}
