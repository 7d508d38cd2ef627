package monitor

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"organ/internal/events"
	"organ/internal/logging"
	"organ/internal/media"
	"organ/internal/services"
	"organ/internal/store"
)

// LocalWatcher observes one local folder with inotify-style filesystem
// events and feeds detected video files into the batcher.
type LocalWatcher struct {
	folder  *store.MonitoredFolder
	watcher *fsnotify.Watcher
	batcher *Batcher
	bus     *events.Bus
	logger  *slog.Logger
	done    chan struct{}
}

// NewLocalWatcher registers watches on the folder root and, when the
// folder is recursive, every existing subdirectory.
func NewLocalWatcher(folder *store.MonitoredFolder, batcher *Batcher, bus *events.Bus, logger *slog.Logger) (*LocalWatcher, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "monitor", "watch", "start filesystem watcher", err)
	}

	w := &LocalWatcher{
		folder:  folder,
		watcher: watcher,
		batcher: batcher,
		bus:     bus,
		logger:  logger.With(logging.String(logging.FieldComponent, "monitor")),
		done:    make(chan struct{}),
	}
	if err := w.addTree(folder.Path); err != nil {
		watcher.Close()
		return nil, err
	}
	return w, nil
}

func (w *LocalWatcher) addTree(root string) error {
	if err := w.watcher.Add(root); err != nil {
		return services.Wrap(services.ErrNotFound, "monitor", "watch", "watch "+root, err)
	}
	if !w.folder.Recursive {
		return nil
	}
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() || p == root {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(p); err != nil {
			w.logger.Warn("could not watch subdirectory",
				logging.String(logging.FieldFile, p), logging.Error(err))
		}
		return nil
	})
}

// Start launches the event loop. It returns immediately; Stop or context
// cancellation ends the loop.
func (w *LocalWatcher) Start(ctx context.Context) {
	go w.run(ctx)
}

func (w *LocalWatcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("filesystem watcher error", logging.Error(err))
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(event)
		}
	}
}

func (w *LocalWatcher) handle(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return
	}
	info, err := os.Stat(event.Name)
	if err != nil {
		return
	}
	if info.IsDir() {
		if w.folder.Recursive && !strings.HasPrefix(filepath.Base(event.Name), ".") {
			if err := w.watcher.Add(event.Name); err != nil {
				w.logger.Warn("could not watch new subdirectory",
					logging.String(logging.FieldFile, event.Name), logging.Error(err))
			}
		}
		return
	}
	if !media.IsVideo(event.Name) {
		return
	}

	w.logger.Info("file detected",
		logging.String(logging.FieldFile, event.Name),
		logging.String(logging.FieldBackend, string(w.folder.Backend)),
	)
	if w.bus != nil {
		w.bus.Publish(events.KindFileDetected, events.FileDetected{
			Path:    event.Name,
			Backend: string(w.folder.Backend),
		})
	}
	w.batcher.Add(w.folder.ID, event.Name)
}

// Stop ends the event loop and releases the watches.
func (w *LocalWatcher) Stop() {
	close(w.done)
	w.watcher.Close()
}
