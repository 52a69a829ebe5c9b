// Package services defines shared utilities consumed by the acquisition,
// summarization and output stages and by the external integrations under it.
//
// Key responsibilities:
//   - Context helpers that stamp run identifiers, source identifiers and stage
//     names for logging.
//   - The error taxonomy: classification markers (ErrNotAvailable,
//     ErrTransient) that drive fallback and retry decisions, terminal kinds
//     (ErrDurationExceeded, ErrSummarizationFailed, ...) surfaced to users,
//     and the Wrap helper that records the failing stage.
//   - ExitCode, which maps terminal kinds to process exit statuses.
//
// Integrations under this package tag their failures with these markers so
// stage code never has to inspect HTTP status codes or tool output itself.
package services
