// Package textutil provides text processing utilities for normalization,
// near-duplicate detection, and filename sanitization.
//
// The primary use cases are:
//   - Normalize: the comparison form used to deduplicate summary bullets,
//     quotes, tags and chapter headings (NFKC, case folding, punctuation
//     stripped)
//   - Token-based fingerprints and cosine similarity for near-duplicate
//     detection across chunks
//   - Sanitizing titles into directory names and values into cache key tokens
package textutil
