package preflight

import (
	"context"
	"strings"

	"organ/internal/config"
)

// CheckTMDBFromConfig evaluates TMDB status from config and connectivity.
func CheckTMDBFromConfig(cfg *config.Config) Result {
	const name = "TMDB"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	if strings.TrimSpace(cfg.TMDB.APIKey) == "" {
		return Result{Name: name, Detail: "Missing API key"}
	}
	return CheckTMDB(context.Background(), cfg.TMDB.BaseURL, cfg.TMDB.APIKey)
}

// CheckLLMFromConfig evaluates the extraction LLM status from config and
// connectivity.
func CheckLLMFromConfig(cfg *config.Config) Result {
	const name = "Extraction LLM"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	if !cfg.LLM.Enabled {
		return Result{Name: name, Passed: true, Detail: "Disabled"}
	}
	if strings.TrimSpace(cfg.LLM.APIKey) == "" {
		return Result{Name: name, Detail: "Missing API key"}
	}
	return CheckLLM(context.Background(), name, cfg.LLM)
}

// CheckCloudDriveFromConfig evaluates cloud drive backend status.
func CheckCloudDriveFromConfig(cfg *config.Config) Result {
	const name = "Cloud drive"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	if !cfg.CloudDrive.Enabled {
		return Result{Name: name, Passed: true, Detail: "Disabled"}
	}
	return CheckCloudDrive(context.Background(), cfg.CloudDrive)
}

// CheckWebDAVFromConfig evaluates WebDAV backend status.
func CheckWebDAVFromConfig(cfg *config.Config) Result {
	const name = "WebDAV"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	if !cfg.WebDAV.Enabled {
		return Result{Name: name, Passed: true, Detail: "Disabled"}
	}
	return CheckWebDAV(context.Background(), cfg.WebDAV)
}
