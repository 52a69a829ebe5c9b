// Package acquire turns a source reference into a transcript.
//
// Remote videos walk a cost-ordered chain: published captions, then subtitle
// files, then (when allowed and within the duration budget) audio download
// and speech-to-text. A stage falls through to the next only when its
// capability reports absence (services.ErrNotAvailable); transient failures
// are retried inside the stage and never cross a stage boundary. Local files
// are read directly and keyed by content.
//
// Every resolution checks the transcript cache for each method before any
// capability is invoked, so a repeated run performs no external calls.
package acquire
