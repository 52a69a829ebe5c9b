// Package preflight provides readiness checks for the directories, binaries
// and providers a summary run depends on.
//
// The CLI "doctor" command renders these results; each check returns a
// Result rather than an error so every problem is reported in one pass.
package preflight
