package main

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"organ/internal/config"
	"organ/internal/logging"
	"organ/internal/naming"
	"organ/internal/recognizer"
	"organ/internal/recognizer/tmdb"
	"organ/internal/rules"
	"organ/internal/services/llm"
	"organ/internal/store"
	"organ/internal/transfer"
	"organ/internal/vfs"
)

// localServices bundles the recognition and transfer pipeline for CLI
// commands that work directly against the database, without the daemon.
type localServices struct {
	store      *store.Store
	recognizer *recognizer.Service
	transfer   *transfer.Service
}

func buildCatalog(cfg *config.Config) (*tmdb.Client, error) {
	if strings.TrimSpace(cfg.TMDB.APIKey) == "" {
		return nil, errors.New("tmdb api key is required; set [tmdb] api_key in the configuration")
	}
	return tmdb.New(cfg.TMDB.APIKey, cfg.TMDB.BaseURL, cfg.TMDB.Languages,
		tmdb.WithRateLimit(cfg.TMDB.RateLimit))
}

func buildLocalServices(cfg *config.Config, st *store.Store, logger *slog.Logger) (*localServices, error) {
	catalog, err := buildCatalog(cfg)
	if err != nil {
		return nil, err
	}

	var hints recognizer.HintExtractor
	if cfg.LLM.Enabled {
		client := llm.NewClient(llm.Config{
			APIKey:         cfg.LLM.APIKey,
			BaseURL:        cfg.LLM.BaseURL,
			Model:          cfg.LLM.Model,
			Referer:        cfg.LLM.Referer,
			Title:          cfg.LLM.Title,
			TimeoutSeconds: cfg.LLM.TimeoutSeconds,
			RateLimit:      cfg.LLM.RateLimit,
		})
		hints = llm.NewExtractor(client, cfg.LLM.BatchSize)
	}

	cacheTTL := time.Duration(cfg.Recognizer.CacheTTLDays) * 24 * time.Hour
	recognizerSvc := recognizer.NewService(st, hints, catalog, nil, cacheTTL, logger)

	registry := vfs.NewRegistry(cfg)
	engine := rules.NewEngine(st, logger)
	namer := naming.NewService(st, logger)
	transferSvc := transfer.NewService(engine, namer, registry, st, nil, logger)

	return &localServices{
		store:      st,
		recognizer: recognizerSvc,
		transfer:   transferSvc,
	}, nil
}

func cliLogger(cfg *config.Config) *slog.Logger {
	logger, err := logging.New(logging.Options{
		Level:            cfg.LogLevel(),
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	})
	if err != nil {
		return logging.NewNop()
	}
	// Service logs stay at warn so they do not interleave with table output.
	return logging.WithLevelOverride(logger, slog.LevelWarn)
}
