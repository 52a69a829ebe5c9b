// Package stt transcribes downloaded audio through an OpenAI-compatible
// /v1/audio/transcriptions endpoint.
//
// Uploads larger than the provider limit (25 MB by default) are split with
// ffmpeg into fixed-length segments that are transcribed in order and joined.
// HTTP 408, 429 and 5xx responses wrap services.ErrTransient so the resolver
// retries them in place; other failures are terminal for the stage.
package stt
