// Package cache persists transcripts, per-chunk map results and final
// summaries under deterministic keys.
//
// # Layout
//
// Entries live at <dir>/<kind>/<key>.json. Each file is a JSON envelope with
// the payload, its SHA-256 checksum and the write time. A put writes a temp
// file in the same directory and renames it over the entry, so a concurrent
// reader sees either the previous complete entry or the new one. Puts and
// invalidations for one key are serialized across processes with a
// gofrs/flock lock under <dir>/locks.
//
// # Corruption
//
// An entry that fails to decode or whose checksum does not match is logged,
// removed, and reported as a miss so the caller recomputes it.
//
// # Index
//
// A SQLite index (<dir>/index.db) records key, kind, title, method, model and
// size for the cache list/stats/clear commands. The index is advisory: index
// failures are logged and never fail a get or put.
package cache
