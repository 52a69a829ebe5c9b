// Package main hosts the ytsummarize CLI entrypoint and command graph.
//
// The root command summarizes one source (a video URL, a bare video id or a
// local transcript file). Subcommands inspect and clear the cache, scaffold
// and validate configuration, and run readiness checks. Configuration
// resolution, logger construction and collaborator wiring live here so the
// internal packages stay free of flag handling.
package main
