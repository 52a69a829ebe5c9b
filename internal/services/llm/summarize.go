package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"ytsummarize/internal/chunker"
	"ytsummarize/internal/schema"
	"ytsummarize/internal/services"
	"ytsummarize/internal/summarize"
)

var (
	_ summarize.Extractor   = (*Client)(nil)
	_ summarize.Synthesizer = (*Client)(nil)
)

// ExtractChunk runs the map step for one chunk. Malformed model output is
// reported as transient so the caller's retry asks again.
func (c *Client) ExtractChunk(ctx context.Context, chunk chunker.Chunk, model string) (summarize.MapResult, error) {
	text := strings.TrimSpace(chunk.Text)
	if text == "" {
		return summarize.MapResult{}, fmt.Errorf("%w: llm extract: chunk %d is empty", services.ErrValidation, chunk.Index)
	}
	user := fmt.Sprintf("TRANSCRIPT CHUNK %d:\n%s", chunk.Index+1, text)
	content, err := c.CompleteJSON(ctx, model, ExtractionPrompt, user)
	if err != nil {
		return summarize.MapResult{}, fmt.Errorf("llm extract: %w", err)
	}
	var parsed summarize.MapResult
	if err := DecodeLLMJSON(content, &parsed); err != nil {
		return summarize.MapResult{}, services.Transient(fmt.Errorf("llm extract: parse payload: %w", err))
	}
	parsed.ChunkIndex = chunk.Index
	for i := range parsed.Bullets {
		parsed.Bullets[i].Importance = clampImportance(parsed.Bullets[i].Importance)
	}
	return parsed, nil
}

// synthesisNotes is the user payload for the synthesis call.
type synthesisNotes struct {
	Title     string                `json:"title"`
	SourceURL string                `json:"source_url"`
	Notes     []summarize.MapResult `json:"chunk_notes"`
	Draft     schema.Summary        `json:"draft"`
}

// SynthesizeSummary asks the model to write the final summary from the
// merged chunk notes.
func (c *Client) SynthesizeSummary(ctx context.Context, input summarize.SynthesisInput, model string) (schema.Summary, error) {
	notes, err := json.Marshal(synthesisNotes{
		Title:     input.Title,
		SourceURL: input.SourceURL,
		Notes:     input.Results,
		Draft:     input.Draft,
	})
	if err != nil {
		return schema.Summary{}, fmt.Errorf("llm synthesize: encode notes: %w", err)
	}
	content, err := c.CompleteJSON(ctx, model, SynthesisPrompt, string(notes))
	if err != nil {
		return schema.Summary{}, fmt.Errorf("llm synthesize: %w", err)
	}
	var parsed schema.Summary
	if err := DecodeLLMJSON(content, &parsed); err != nil {
		return schema.Summary{}, services.Transient(fmt.Errorf("llm synthesize: parse payload: %w", err))
	}
	return parsed, nil
}

func clampImportance(v int) int {
	switch {
	case v <= 0:
		return 0
	case v > 5:
		return 5
	default:
		return v
	}
}
