package llm

// ExtractionPrompt instructs the model to pull structured notes out of one
// transcript chunk.
const ExtractionPrompt = `You are summarizing one chunk of a video transcript.

Extract from this chunk only:
- bullets: the key points, each with an importance rating from 1 (minor) to 5 (central)
- quotes: exact sentences worth highlighting, copied verbatim from the chunk
- candidate_chapters: logical section headings; include "start" only when the chunk mentions a timestamp (MM:SS or H:MM:SS)
- terms: technical terms or concepts that need a definition
- action_items: practical steps the speaker recommends to the viewer

Be concise. Focus on substance over filler. Never invent content the chunk does not support.

Respond with JSON only, matching:
{
  "bullets": [{"text": "string", "importance": 3}],
  "quotes": ["string"],
  "candidate_chapters": [{"start": "string", "heading": "string", "bullets": ["string"]}],
  "terms": [{"term": "string", "definition": "string"}],
  "action_items": ["string"]
}
Use empty arrays for anything the chunk does not contain.`

// SynthesisPrompt instructs the model to write the final summary from the
// merged chunk notes.
const SynthesisPrompt = `You are creating the final summary of a video from notes extracted chunk by chunk.

Merge and deduplicate the notes into a cohesive summary with:
1. tldr: exactly 3 bullet points capturing the essence
2. key_points: the 8-12 most important takeaways
3. chapters: logical sections in playback order, each with a start timestamp, a heading and short bullets
4. quotes: up to 5 of the best quotes, verbatim
5. action_items: 3-7 practical next steps for the viewer, only if the notes support them
6. tags: 5-10 topic tags

A draft produced by mechanical merging is included; improve its wording and ordering but do not add facts absent from the notes.

Respond with JSON only, matching:
{
  "title": "string",
  "source_url": "string",
  "tldr": ["string"],
  "key_points": ["string"],
  "chapters": [{"start": "string", "heading": "string", "bullets": ["string"]}],
  "quotes": ["string"],
  "action_items": ["string"],
  "tags": ["string"]
}`
