// Package llm provides an OpenAI-compatible chat client for the summary
// pipeline.
//
// # Entry Points
//
// NewClient: construct client from Config.
// Client.CompleteJSON: send system/user prompts, receive a JSON response.
// Client.ExtractChunk: map step, one transcript chunk to structured notes.
// Client.SynthesizeSummary: optional reduce step over the merged notes.
// Client.HealthCheck: verify API key and model availability.
//
// # Failure Classification
//
// Every call is a single attempt. HTTP 408/429/5xx, network errors, empty
// completions and unparseable JSON are marked transient (see
// services.IsTransient); other statuses are external-tool failures.
// Retrying is the caller's job, normally through retry.Do.
//
// # Rate Limiting
//
// When requests_per_minute is set, requests pass through a token bucket
// shared by all goroutines using the client.
package llm
