// Package logging assembles structured slog loggers and formatting helpers used
// across ytsummarize.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so stage code can tag log lines
// with run identifiers, source identifiers and stage names. The package also
// provides a no-op logger for tests and wiring code that cannot fail.
//
// Console output goes to stderr so stdout stays reserved for command results.
package logging
