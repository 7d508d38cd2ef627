package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/gofrs/flock"

	"organ/internal/config"
	"organ/internal/events"
	"organ/internal/logging"
	"organ/internal/media"
	"organ/internal/monitor"
	"organ/internal/notifications"
	"organ/internal/preflight"
	"organ/internal/recognizer"
	"organ/internal/store"
	"organ/internal/workflow"
)

// Daemon coordinates the background processing services and enforces
// single-instance execution.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *store.Store
	workflow  *workflow.Manager
	scheduler *monitor.Scheduler
	bus       *events.Bus
	notifier  notifications.Service
	api       *apiServer
	logPath   string

	lockPath string
	lock     *flock.Flock

	detachNotifier func()

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Deps bundles the collaborators a daemon needs.
type Deps struct {
	Config    *config.Config
	Store     *store.Store
	Logger    *slog.Logger
	Workflow  *workflow.Manager
	Scheduler *monitor.Scheduler
	Bus       *events.Bus
	Notifier  notifications.Service
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	Workflow     workflow.StatusSummary
	DatabasePath string
	LockFilePath string
}

// New constructs a daemon with initialized dependencies. Scheduler, bus,
// and notifier are optional.
func New(deps Deps) (*Daemon, error) {
	if deps.Config == nil || deps.Store == nil || deps.Workflow == nil {
		return nil, errors.New("daemon requires config, store, and workflow manager")
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := filepath.Join(deps.Config.LogDir(), "organd.lock")
	d := &Daemon{
		cfg:       deps.Config,
		logger:    logging.NewComponentLogger(logger, "daemon"),
		store:     deps.Store,
		workflow:  deps.Workflow,
		scheduler: deps.Scheduler,
		bus:       deps.Bus,
		notifier:  deps.Notifier,
		logPath:   filepath.Join(deps.Config.LogDir(), "organ.log"),
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
	}
	api, err := newAPIServer(deps.Config, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = api
	return d, nil
}

// Start acquires the daemon lock and launches the workflow manager, folder
// scheduler, and API server. Preflight failures are logged but do not block
// startup; individual stages surface their own errors at runtime.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another organ daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)

	for _, result := range preflight.RunAll(d.ctx, d.cfg) {
		if result.Passed {
			continue
		}
		d.logger.Warn("preflight check failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail))
	}

	if d.bus != nil && d.notifier != nil {
		d.detachNotifier = notifications.Attach(d.bus, d.notifier, d.logger)
	}

	if err := d.workflow.Start(d.ctx); err != nil {
		d.teardown()
		return fmt.Errorf("start workflow: %w", err)
	}
	if d.scheduler != nil {
		if err := d.scheduler.Start(d.ctx); err != nil {
			d.workflow.Stop()
			d.teardown()
			return fmt.Errorf("start folder monitors: %w", err)
		}
	}
	if d.api != nil {
		if err := d.api.start(d.ctx); err != nil {
			if d.scheduler != nil {
				d.scheduler.Stop()
			}
			d.workflow.Stop()
			d.teardown()
			return fmt.Errorf("start api server: %w", err)
		}
	}

	d.running.Store(true)
	d.logger.Info("organ daemon started", logging.String("lock", d.lockPath))
	return nil
}

func (d *Daemon) teardown() {
	if d.detachNotifier != nil {
		d.detachNotifier()
		d.detachNotifier = nil
	}
	_ = d.lock.Unlock()
	if d.cancel != nil {
		d.cancel()
	}
	d.ctx = nil
	d.cancel = nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.api != nil {
		d.api.stop()
	}
	if d.scheduler != nil {
		d.scheduler.Stop()
	}
	d.workflow.Stop()
	if d.detachNotifier != nil {
		d.detachNotifier()
		d.detachNotifier = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("organ daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// ListJobs returns jobs filtered by optional statuses.
func (d *Daemon) ListJobs(ctx context.Context, statuses []store.JobStatus) ([]*store.Job, error) {
	if d.store == nil {
		return nil, errors.New("job store unavailable")
	}
	return d.store.ListJobs(ctx, statuses...)
}

// ClearJobs removes all jobs.
func (d *Daemon) ClearJobs(ctx context.Context) (int64, error) {
	if d.store == nil {
		return 0, errors.New("job store unavailable")
	}
	return d.store.ClearJobs(ctx)
}

// ClearCompleted removes only completed jobs.
func (d *Daemon) ClearCompleted(ctx context.Context) (int64, error) {
	if d.store == nil {
		return 0, errors.New("job store unavailable")
	}
	return d.store.ClearCompleted(ctx)
}

// ClearFailed removes only failed jobs.
func (d *Daemon) ClearFailed(ctx context.Context) (int64, error) {
	if d.store == nil {
		return 0, errors.New("job store unavailable")
	}
	return d.store.ClearFailed(ctx)
}

// ResetStuck transitions in-flight jobs back to pending for retry.
func (d *Daemon) ResetStuck(ctx context.Context) (int64, error) {
	if d.store == nil {
		return 0, errors.New("job store unavailable")
	}
	return d.store.ResetStuckProcessing(ctx)
}

// RetryFailed resets failed jobs (optionally a subset) back to pending.
func (d *Daemon) RetryFailed(ctx context.Context, ids []int64) (int64, error) {
	if d.store == nil {
		return 0, errors.New("job store unavailable")
	}
	return d.store.RetryFailed(ctx, ids...)
}

// QueueHealth returns aggregate job queue diagnostics.
func (d *Daemon) QueueHealth(ctx context.Context) (store.HealthSummary, error) {
	if d.store == nil {
		return store.HealthSummary{}, errors.New("job store unavailable")
	}
	return d.store.Health(ctx)
}

// DatabaseHealth returns detailed database diagnostics.
func (d *Daemon) DatabaseHealth(ctx context.Context) (store.DatabaseHealth, error) {
	if d.store == nil {
		return store.DatabaseHealth{}, errors.New("job store unavailable")
	}
	return d.store.CheckHealth(ctx)
}

// History returns recent transfer history entries.
func (d *Daemon) History(ctx context.Context, limit int) ([]*store.TransferRecord, error) {
	if d.store == nil {
		return nil, errors.New("job store unavailable")
	}
	return d.store.ListTransferHistory(ctx, limit)
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if d.cfg == nil {
		return false, "configuration unavailable", errors.New("configuration unavailable")
	}
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	notifier := d.notifier
	if notifier == nil {
		notifier = notifications.NewService(d.cfg)
	}
	if err := notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// AddFile enqueues a local file for processing without waiting for a
// folder monitor to detect it.
func (d *Daemon) AddFile(ctx context.Context, sourcePath string) (*store.Job, error) {
	if d.store == nil {
		return nil, errors.New("job store unavailable")
	}
	trimmed := strings.TrimSpace(sourcePath)
	if trimmed == "" {
		return nil, errors.New("source path is required")
	}
	absPath, err := filepath.Abs(trimmed)
	if err != nil {
		return nil, fmt.Errorf("resolve source path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat source file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("source path %q is a directory", absPath)
	}
	if !media.IsVideo(info.Name()) {
		return nil, fmt.Errorf("unsupported file extension %q", filepath.Ext(info.Name()))
	}
	file := media.FileInfo{
		Name:     info.Name(),
		Path:     absPath,
		Size:     info.Size(),
		Ext:      strings.ToLower(filepath.Ext(info.Name())),
		Modified: info.ModTime(),
		Backend:  media.BackendLocal,
	}
	job, err := d.store.NewJob(ctx, file, recognizer.Fingerprint(file.Name, file.Size))
	if err != nil {
		return nil, fmt.Errorf("enqueue manual file: %w", err)
	}
	if d.bus != nil {
		d.bus.Publish(events.KindFileDetected, events.FileDetected{
			JobID:   job.ID,
			Path:    absPath,
			Backend: string(media.BackendLocal),
		})
	}
	d.logger.Info("manual file queued",
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String("source", absPath))
	return job, nil
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	summary := d.workflow.Status(ctx)
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Workflow:     summary,
		DatabasePath: d.cfg.DatabasePath(),
		LockFilePath: d.lockPath,
	}
}
