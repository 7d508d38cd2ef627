package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"organ/internal/config"
	"organ/internal/events"
	"organ/internal/logging"
	"organ/internal/media"
	"organ/internal/notifications"
	"organ/internal/services"
	"organ/internal/store"
	"organ/internal/transfer"
)

// Recognizer identifies batches of detected files.
type Recognizer interface {
	RecognizeBatch(ctx context.Context, files []media.FileInfo, mediaType media.Type) []*media.RecognitionResult
}

// Transferer routes and moves recognized files.
type Transferer interface {
	DryRun(ctx context.Context, items []*media.RecognitionResult, backend media.Backend) (*transfer.Report, error)
	Execute(ctx context.Context, items []*media.RecognitionResult, backend media.Backend, opts transfer.Options) (*transfer.Result, error)
}

// FolderStore is the persistence surface the scheduler consumes.
type FolderStore interface {
	ListMonitoredFolders(ctx context.Context, enabledOnly bool) ([]*store.MonitoredFolder, error)
	TouchMonitoredFolder(ctx context.Context, id int64, scannedAt time.Time) error
}

// Deps collects the scheduler's collaborators. Feed and Notifier may be
// nil; a nil Feed disables cloud folder monitoring.
type Deps struct {
	Config     *config.Config
	Store      FolderStore
	Recognizer Recognizer
	Transferer Transferer
	Adapters   transfer.AdapterSource
	Feed       LifeFeed
	Notifier   notifications.Service
	Bus        *events.Bus
	Logger     *slog.Logger
}

// Scheduler runs one monitor per enabled folder and drives detected
// batches through recognition and, when auto approve is on, transfer.
type Scheduler struct {
	cfg        *config.Config
	store      FolderStore
	recognizer Recognizer
	transferer Transferer
	adapters   transfer.AdapterSource
	feed       LifeFeed
	notifier   notifications.Service
	bus        *events.Bus
	logger     *slog.Logger

	batcher *Batcher

	mu      sync.Mutex
	folders map[int64]*store.MonitoredFolder
	local   map[int64]*LocalWatcher
	poller  *CloudPoller
	runCtx  context.Context
	cancel  context.CancelFunc
	started bool
}

// New constructs a scheduler. Start launches the monitors.
func New(deps Deps) *Scheduler {
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Scheduler{
		cfg:        deps.Config,
		store:      deps.Store,
		recognizer: deps.Recognizer,
		transferer: deps.Transferer,
		adapters:   deps.Adapters,
		feed:       deps.Feed,
		notifier:   deps.Notifier,
		bus:        deps.Bus,
		logger:     logger.With(logging.String(logging.FieldComponent, "monitor")),
		folders:    make(map[int64]*store.MonitoredFolder),
		local:      make(map[int64]*LocalWatcher),
	}
}

// Start lists enabled folders and launches a monitor for each.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.runCtx, s.cancel = context.WithCancel(ctx)
	s.batcher = NewBatcher(time.Duration(s.cfg.Monitor.QuiescenceSeconds)*time.Second, s.flush)
	s.mu.Unlock()

	folders, err := s.store.ListMonitoredFolders(ctx, true)
	if err != nil {
		return err
	}
	for _, folder := range folders {
		if err := s.StartFolder(folder); err != nil {
			s.logger.Warn("could not start folder monitor",
				logging.String(logging.FieldFile, folder.Path),
				logging.String(logging.FieldBackend, string(folder.Backend)),
				logging.Error(err),
			)
		}
	}
	return nil
}

// StartFolder launches a monitor for one folder. Folders on backends
// without a monitor implementation are rejected.
func (s *Scheduler) StartFolder(folder *store.MonitoredFolder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return services.Wrap(services.ErrConfiguration, "monitor", "start", "scheduler not started", nil)
	}
	if _, active := s.folders[folder.ID]; active {
		return nil
	}

	switch folder.Backend {
	case media.BackendLocal:
		watcher, err := NewLocalWatcher(folder, s.batcher, s.bus, s.logger)
		if err != nil {
			return err
		}
		watcher.Start(s.runCtx)
		s.local[folder.ID] = watcher
	case media.BackendCloud:
		if s.feed == nil {
			return services.Wrap(services.ErrConfiguration, "monitor", "start", "cloud drive backend is not configured", nil)
		}
		if s.poller == nil {
			s.poller = NewCloudPoller(s.feed, time.Duration(s.cfg.Monitor.ScanInterval)*time.Second, s.batcher, s.bus, s.logger)
			s.poller.Start(s.runCtx)
		}
		s.poller.Watch(folder)
	default:
		return services.Wrap(services.ErrValidation, "monitor", "start",
			fmt.Sprintf("no monitor for backend %q", folder.Backend), nil)
	}

	s.folders[folder.ID] = folder
	s.logger.Info("monitoring folder",
		logging.String(logging.FieldFile, folder.Path),
		logging.String(logging.FieldBackend, string(folder.Backend)),
	)
	return nil
}

// StopFolder ends the monitor for one folder.
func (s *Scheduler) StopFolder(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if watcher, ok := s.local[id]; ok {
		watcher.Stop()
		delete(s.local, id)
	}
	if s.poller != nil {
		s.poller.Unwatch(id)
	}
	delete(s.folders, id)
}

// Stop ends every monitor and flushes buffered detections.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	for id, watcher := range s.local {
		watcher.Stop()
		delete(s.local, id)
	}
	if s.poller != nil {
		s.poller.Stop()
		s.poller = nil
	}
	cancel := s.cancel
	batcher := s.batcher
	s.folders = make(map[int64]*store.MonitoredFolder)
	s.mu.Unlock()

	if batcher != nil {
		batcher.Close()
	}
	if cancel != nil {
		cancel()
	}
}

// flush runs one detected batch through the pipeline.
func (s *Scheduler) flush(folderID int64, paths []string) {
	s.mu.Lock()
	folder := s.folders[folderID]
	ctx := s.runCtx
	s.mu.Unlock()
	if folder == nil || ctx == nil || ctx.Err() != nil {
		return
	}

	files := s.statBatch(ctx, folder, paths)
	if len(files) == 0 {
		return
	}

	mediaType := folder.MediaType
	if mediaType == media.TypeAll || mediaType == "" {
		mediaType = media.TypeUnknown
	}
	results := s.recognizer.RecognizeBatch(ctx, files, mediaType)

	threshold := media.Confidence(s.cfg.Recognizer.MinConfidence).Rank()
	var approved []*media.RecognitionResult
	for _, result := range results {
		if result.Info != nil && result.Confidence.Rank() >= threshold {
			approved = append(approved, result)
			continue
		}
		s.logger.Info("file needs manual review",
			logging.String(logging.FieldFile, result.File.Path),
			logging.String("confidence", string(result.Confidence)),
		)
		if s.notifier != nil {
			if err := s.notifier.NotifyReviewNeeded(ctx, result.File.Name); err != nil {
				s.logger.Warn("review notification failed", logging.Error(err))
			}
		}
	}

	if s.cfg.Monitor.AutoApprove && len(approved) > 0 {
		s.transferBatch(ctx, folder, approved)
	}

	if err := s.store.TouchMonitoredFolder(ctx, folderID, time.Now()); err != nil {
		s.logger.Warn("could not record folder scan time", logging.Error(err))
	}
}

func (s *Scheduler) statBatch(ctx context.Context, folder *store.MonitoredFolder, paths []string) []media.FileInfo {
	adapter, err := s.adapters.For(folder.Backend)
	if err != nil {
		s.logger.Warn("no adapter for monitored backend",
			logging.String(logging.FieldBackend, string(folder.Backend)), logging.Error(err))
		return nil
	}

	minBytes := int64(s.cfg.Transfer.MinFileSizeMB) * 1024 * 1024
	files := make([]media.FileInfo, 0, len(paths))
	for _, p := range paths {
		info, err := adapter.Stat(ctx, p)
		if err != nil {
			s.logger.Warn("detected file vanished before processing",
				logging.String(logging.FieldFile, p), logging.Error(err))
			continue
		}
		if info.IsDir || info.Size < minBytes {
			continue
		}
		files = append(files, *info)
	}
	return files
}

func (s *Scheduler) transferBatch(ctx context.Context, folder *store.MonitoredFolder, approved []*media.RecognitionResult) {
	report, err := s.transferer.DryRun(ctx, approved, folder.Backend)
	if err != nil {
		s.logger.Error("transfer planning failed", logging.Error(err))
		return
	}
	result, err := s.transferer.Execute(ctx, report.Items, folder.Backend, transfer.Options{})
	if err != nil {
		s.logger.Error("auto transfer failed", logging.Error(err))
		return
	}
	s.logger.Info("auto transfer finished",
		logging.Int("transferred", result.Transferred),
		logging.Int("failed", result.Failed),
		logging.Int("skipped", result.Skipped),
	)
}
