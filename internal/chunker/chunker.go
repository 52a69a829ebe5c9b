// Package chunker splits transcripts into ordered chunks that fit a token
// budget.
//
// Chunks break at sentence or paragraph boundaries. A single sentence larger
// than the budget is hard-cut, preferring the last whitespace in the
// allowed prefix. Chunk spans tile the source text exactly; Chunk.Text is the
// span with surrounding whitespace trimmed.
package chunker

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"ytsummarize/internal/services"
	"ytsummarize/internal/tokens"
)

// Stage is the stage name recorded on chunking errors.
const Stage = "CHUNKING"

// boundaryPattern matches the tail of a sentence (terminal punctuation,
// closing quotes or brackets, then whitespace), a CJK full stop, or a blank
// line.
var boundaryPattern = regexp.MustCompile(`[.!?…]+["'”’)\]]*\s+|[。！？]+["'”’)\]」』]*\s*|\n[ \t]*\n\s*`)

// Chunk is one bounded, ordered span of the transcript.
type Chunk struct {
	Index        int    `json:"index"`
	Text         string `json:"text"`
	ApproxTokens int    `json:"approx_tokens"`
	Start        int    `json:"start"`
	End          int    `json:"end"`
}

// Chunker splits text under a token budget.
type Chunker struct {
	budget    int
	estimator tokens.Estimator
}

// New returns a Chunker. A nil estimator selects tokens.Heuristic.
func New(budget int, estimator tokens.Estimator) *Chunker {
	if estimator == nil {
		estimator = tokens.Heuristic{}
	}
	return &Chunker{budget: budget, estimator: estimator}
}

// Split is shorthand for New(budget, nil).Split(text).
func Split(text string, budget int) ([]Chunk, error) {
	return New(budget, nil).Split(text)
}

type unit struct {
	start, end int
	paragraph  bool
}

// Split returns the ordered chunks of text. Whitespace-only text yields
// ErrEmptyTranscript.
func (c *Chunker) Split(text string) ([]Chunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, services.Wrap(services.ErrEmptyTranscript, Stage, "split", "transcript has no text", nil)
	}
	if c.budget <= 0 {
		return nil, services.Wrap(services.ErrValidation, Stage, "split", "token budget must be positive", nil)
	}
	if c.measure(text, 0, len(text)) <= c.budget {
		return []Chunk{c.chunk(text, 0, 0, len(text))}, nil
	}

	var units []unit
	for _, u := range segment(text) {
		if c.measure(text, u.start, u.end) <= c.budget {
			units = append(units, u)
			continue
		}
		pieces := c.hardCut(text, u.start, u.end)
		pieces[len(pieces)-1].paragraph = u.paragraph
		units = append(units, pieces...)
	}

	var chunks []Chunk
	for i := 0; i < len(units); {
		start := units[i].start
		j := i
		for j+1 < len(units) && c.measure(text, start, units[j+1].end) <= c.budget {
			j++
		}
		if j+1 < len(units) {
			j = c.preferParagraph(text, start, i, j, units)
		}
		chunks = append(chunks, c.chunk(text, len(chunks), start, units[j].end))
		i = j + 1
	}
	return chunks, nil
}

// preferParagraph moves the cut back to the last paragraph break in
// units[i..j] when doing so keeps the chunk at least half full.
func (c *Chunker) preferParagraph(text string, start, i, j int, units []unit) int {
	if units[j].paragraph {
		return j
	}
	for k := j - 1; k >= i; k-- {
		if !units[k].paragraph {
			continue
		}
		if c.measure(text, start, units[k].end)*2 >= c.budget {
			return k
		}
		break
	}
	return j
}

func (c *Chunker) chunk(text string, index, start, end int) Chunk {
	trimmed := strings.TrimSpace(text[start:end])
	return Chunk{
		Index:        index,
		Text:         trimmed,
		ApproxTokens: c.estimator.Estimate(trimmed),
		Start:        start,
		End:          end,
	}
}

func (c *Chunker) measure(text string, start, end int) int {
	return c.estimator.Estimate(strings.TrimSpace(text[start:end]))
}

// hardCut splits text[start:end] into pieces that each fit the budget.
func (c *Chunker) hardCut(text string, start, end int) []unit {
	var out []unit
	for start < end {
		if c.measure(text, start, end) <= c.budget {
			out = append(out, unit{start: start, end: end})
			break
		}
		offsets := runeEnds(text, start, end)
		lo, hi, best := 0, len(offsets)-1, -1
		for lo <= hi {
			mid := (lo + hi) / 2
			if c.measure(text, start, offsets[mid]) <= c.budget {
				best = mid
				lo = mid + 1
			} else {
				hi = mid - 1
			}
		}
		cut := offsets[0]
		if best >= 0 {
			cut = offsets[best]
		}
		if idx := strings.LastIndexFunc(text[start:cut], unicode.IsSpace); idx > (cut-start)/2 {
			_, size := utf8.DecodeRuneInString(text[start+idx:])
			// BPE counts are not strictly monotonic in the prefix length.
			if c.measure(text, start, start+idx+size) <= c.budget {
				cut = start + idx + size
			}
		}
		out = append(out, unit{start: start, end: cut})
		start = cut
	}
	return out
}

func runeEnds(text string, start, end int) []int {
	offsets := make([]int, 0, end-start)
	for i := start; i < end; {
		_, size := utf8.DecodeRuneInString(text[i:end])
		i += size
		offsets = append(offsets, i)
	}
	return offsets
}

// segment tiles text into sentence and paragraph units. Whitespace-only
// stretches are folded into the following unit.
func segment(text string) []unit {
	var units []unit
	unitStart := 0
	for _, m := range boundaryPattern.FindAllStringIndex(text, -1) {
		if strings.TrimSpace(text[unitStart:m[1]]) == "" {
			continue
		}
		units = append(units, unit{
			start:     unitStart,
			end:       m[1],
			paragraph: strings.Count(text[m[0]:m[1]], "\n") >= 2,
		})
		unitStart = m[1]
	}
	if unitStart < len(text) {
		if strings.TrimSpace(text[unitStart:]) == "" && len(units) > 0 {
			units[len(units)-1].end = len(text)
		} else {
			units = append(units, unit{start: unitStart, end: len(text)})
		}
	}
	return units
}
