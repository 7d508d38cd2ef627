// Package daemonrun assembles and runs the organ daemon process: logger,
// job store, recognition and transfer services, folder monitors, and the
// HTTP control API, wired together and torn down on SIGINT/SIGTERM.
package daemonrun

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"organ/internal/config"
	"organ/internal/daemon"
	"organ/internal/events"
	"organ/internal/logging"
	"organ/internal/monitor"
	"organ/internal/naming"
	"organ/internal/notifications"
	"organ/internal/recognizer"
	"organ/internal/recognizer/tmdb"
	"organ/internal/rules"
	"organ/internal/services/llm"
	"organ/internal/store"
	"organ/internal/transfer"
	"organ/internal/vfs"
	"organ/internal/workflow"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the organ daemon runtime loop and blocks until the context
// is cancelled or a termination signal arrives.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("organ-%s.log", runID))
	logger, err := logging.New(logging.Options{
		Level:            opts.LogLevel,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
		Development:      opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update organ.log link: %v\n", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "organ-*.log", Exclude: []string{logPath}},
	)
	pidPath := filepath.Join(cfg.Paths.LogDir, "organ.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	st, err := store.Open(cfg)
	if err != nil {
		logger.Error("open job store", logging.Error(err))
		return err
	}
	defer st.Close()

	if strings.TrimSpace(cfg.TMDB.APIKey) == "" {
		return fmt.Errorf("tmdb api key is required; set [tmdb] api_key in the configuration")
	}
	catalog, err := tmdb.New(cfg.TMDB.APIKey, cfg.TMDB.BaseURL, cfg.TMDB.Languages,
		tmdb.WithRateLimit(cfg.TMDB.RateLimit))
	if err != nil {
		return fmt.Errorf("init catalog client: %w", err)
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

	bus := events.NewBus(logger)
	notifier := notifications.NewService(cfg)

	cacheTTL := time.Duration(cfg.Recognizer.CacheTTLDays) * 24 * time.Hour
	recognizerSvc := recognizer.NewService(st, hints, catalog, bus, cacheTTL, logger)

	registry := vfs.NewRegistry(cfg)
	engine := rules.NewEngine(st, logger)
	namer := naming.NewService(st, logger)
	transferSvc := transfer.NewService(engine, namer, registry, st, bus, logger)

	workflowManager := workflow.NewManager(cfg, st, logger, notifier, bus)
	workflowManager.ConfigureStages(workflow.StageSet{
		Recognizer:  workflow.NewRecognizeStage(recognizerSvc, cfg, logger),
		Transferrer: workflow.NewTransferStage(transferSvc, logger),
	})

	var feed monitor.LifeFeed
	if cfg.CloudDrive.Enabled {
		cloudClient, cloudErr := vfs.NewCloudClient(cfg.CloudDrive)
		if cloudErr != nil {
			return fmt.Errorf("init cloud drive client: %w", cloudErr)
		}
		feed = cloudClient
	}
	scheduler := monitor.New(monitor.Deps{
		Config:     cfg,
		Store:      st,
		Recognizer: recognizerSvc,
		Transferer: transferSvc,
		Adapters:   registry,
		Feed:       feed,
		Notifier:   notifier,
		Bus:        bus,
		Logger:     logger,
	})

	d, err := daemon.New(daemon.Deps{
		Config:    cfg,
		Store:     st,
		Logger:    logger,
		Workflow:  workflowManager,
		Scheduler: scheduler,
		Bus:       bus,
		Notifier:  notifier,
	})
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logger.Error("daemon start failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_start_failed"),
			logging.String(logging.FieldErrorHint, "check configuration and database access"),
			logging.String(logging.FieldImpact, "daemon will not process files"),
		)
		return err
	}

	<-signalCtx.Done()
	logger.Info("organ daemon shutting down")
	return nil
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "organ.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
