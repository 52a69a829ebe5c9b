package preflight

import (
	"context"

	"ytsummarize/internal/config"
)

// minTempFree is the free space wanted for audio downloads.
const minTempFree = 1 << 30

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// Options selects optional checks.
type Options struct {
	// SkipNetwork omits checks that contact a provider.
	SkipNetwork bool
}

// RunAll executes the readiness checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config, opts Options) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Cache directory", cfg.Paths.CacheDir),
		CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir),
		CheckDirectoryAccess("Temp directory", cfg.Paths.TempDir),
	}
	if results[2].Passed {
		results = append(results, CheckFreeSpace("Temp free space", cfg.Paths.TempDir, minTempFree))
	}
	results = append(results, CheckTranscription(cfg.GetTranscription()))
	if !opts.SkipNetwork {
		results = append(results, CheckLLM(ctx, "Chat completion API", cfg.GetLLM()))
	}
	return results
}
