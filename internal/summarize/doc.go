// Package summarize condenses a chunked transcript into a schema.Summary.
//
// The map phase extracts bullets, candidate chapters, quotes, terms and
// action items from each chunk, at most Options.Concurrency at a time. Every
// extraction is cached under its own chunk-map key and retried in place on
// transient failures. The reduce phase merges results strictly in chunk
// order, deduplicates near-identical entries and applies the schema's
// cardinality caps. When synthesis is enabled the merged draft is handed to
// the model for a final pass and the answer is normalized through the same
// rules; a failed synthesis falls back to the draft.
//
// A chunk whose extraction fails permanently fails the run with
// services.ErrSummarizationFailed unless Options.PartialReduce is set, in
// which case the reduce runs over the surviving chunks and records the gaps.
package summarize
