// Package config loads, normalizes, and validates ytsummarize configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// OPENAI_API_KEY, OPENROUTER_API_KEY and YTSUMMARIZE_CACHE_DIR. The Config
// type centralizes every knob the CLI and pipeline need: cache and output
// locations, the acquisition fallback chain, provider endpoints, and the
// chunking and map-reduce settings.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
