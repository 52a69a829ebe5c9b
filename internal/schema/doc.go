// Package schema defines the fixed Summary shape, validates it and renders
// the Markdown and JSON views written for every run.
//
// Validation is strict and only gates summary.json. Markdown is rendered
// best-effort from whatever fields are present, so a summary that fails
// validation still produces a readable summary.md.
package schema
