package summarize

import (
	"context"

	"ytsummarize/internal/chunker"
	"ytsummarize/internal/schema"
)

// Bullet is one extracted point. Importance is the model's 1-5 rating;
// zero means unrated.
type Bullet struct {
	Text       string `json:"text"`
	Importance int    `json:"importance,omitempty"`
}

// CandidateChapter is a section boundary proposed by one chunk. Start is a
// timestamp when the transcript mentions one.
type CandidateChapter struct {
	Start   string   `json:"start,omitempty"`
	Heading string   `json:"heading"`
	Bullets []string `json:"bullets,omitempty"`
}

// MapResult is what one chunk contributes to the summary.
type MapResult struct {
	ChunkIndex  int                `json:"chunk_index"`
	Bullets     []Bullet           `json:"bullets"`
	Chapters    []CandidateChapter `json:"candidate_chapters"`
	Quotes      []string           `json:"quotes"`
	Terms       []schema.Term      `json:"terms"`
	ActionItems []string           `json:"action_items"`
}

// SynthesisInput is the material handed to the reduce-synthesis call.
type SynthesisInput struct {
	Title     string
	SourceURL string
	Results   []MapResult
	// Draft is the deterministic merge, offered as a starting point.
	Draft schema.Summary
}

// Extractor runs the map step for one chunk.
type Extractor interface {
	ExtractChunk(ctx context.Context, chunk chunker.Chunk, model string) (MapResult, error)
}

// Synthesizer runs the optional reduce-synthesis step.
type Synthesizer interface {
	SynthesizeSummary(ctx context.Context, input SynthesisInput, model string) (schema.Summary, error)
}
