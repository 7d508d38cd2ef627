package preflight

import (
	"context"

	"organ/internal/config"
)

// minFreeDataMB is the floor for the data directory's filesystem. The
// store and recognition cache stay small; this guards against a full disk.
const minFreeDataMB = 256

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// Checks are only run when the corresponding feature is enabled.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	// Data directory (always checked)
	results = append(results, CheckDirectoryAccess("Data directory", cfg.Paths.DataDir))
	results = append(results, CheckDiskSpace("Data disk", cfg.Paths.DataDir, minFreeDataMB))

	// Review directory (when configured)
	if cfg.Paths.ReviewDir != "" {
		results = append(results, CheckDirectoryAccess("Review directory", cfg.Paths.ReviewDir))
	}

	// TMDB
	if cfg.TMDB.APIKey != "" {
		results = append(results, CheckTMDB(ctx, cfg.TMDB.BaseURL, cfg.TMDB.APIKey))
	}

	// Extraction LLM
	if cfg.LLM.Enabled {
		results = append(results, CheckLLM(ctx, "Extraction LLM", cfg.LLM))
	}

	// Storage backends
	if cfg.CloudDrive.Enabled {
		results = append(results, CheckCloudDrive(ctx, cfg.CloudDrive))
	}
	if cfg.WebDAV.Enabled {
		results = append(results, CheckWebDAV(ctx, cfg.WebDAV))
	}

	return results
}
