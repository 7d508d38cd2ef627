package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"organ/internal/events"
	"organ/internal/logging"
	"organ/internal/media"
	"organ/internal/store"
	"organ/internal/vfs"
)

// LifeFeed supplies the cloud drive's recent activity feed.
// *vfs.CloudClient satisfies it.
type LifeFeed interface {
	LifeEvents(ctx context.Context, limit int) ([]vfs.LifeEvent, error)
}

// Event types from the activity feed that indicate arriving files.
var watchedLifeEventTypes = map[string]struct{}{
	"upload": {},
	"move":   {},
}

const (
	lifeFeedLimit    = 100
	lifeErrorBackoff = time.Minute
	seenPruneSize    = 10000
)

// CloudPoller polls the cloud drive activity feed and matches events
// against watched folder path prefixes. The drive exposes no push
// notifications, so detection is poll based.
type CloudPoller struct {
	feed     LifeFeed
	interval time.Duration
	batcher  *Batcher
	bus      *events.Bus
	logger   *slog.Logger

	mu      sync.Mutex
	folders map[int64]*store.MonitoredFolder
	seen    map[string]struct{}
	done    chan struct{}
}

// NewCloudPoller constructs a poller. The interval is how often the
// activity feed is fetched; after a fetch error the poller waits longer
// before retrying.
func NewCloudPoller(feed LifeFeed, interval time.Duration, batcher *Batcher, bus *events.Bus, logger *slog.Logger) *CloudPoller {
	if logger == nil {
		logger = logging.NewNop()
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &CloudPoller{
		feed:     feed,
		interval: interval,
		batcher:  batcher,
		bus:      bus,
		logger:   logger.With(logging.String(logging.FieldComponent, "monitor")),
		folders:  make(map[int64]*store.MonitoredFolder),
		seen:     make(map[string]struct{}),
		done:     make(chan struct{}),
	}
}

// Watch adds a folder whose path prefix filters feed events.
func (p *CloudPoller) Watch(folder *store.MonitoredFolder) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.folders[folder.ID] = folder
}

// Unwatch removes a folder from the prefix filter.
func (p *CloudPoller) Unwatch(id int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.folders, id)
}

// Start launches the poll loop. It returns immediately; Stop or context
// cancellation ends the loop.
func (p *CloudPoller) Start(ctx context.Context) {
	go p.run(ctx)
}

func (p *CloudPoller) run(ctx context.Context) {
	wait := p.interval
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.done:
			return
		case <-time.After(wait):
		}

		if err := p.Poll(ctx); err != nil {
			p.logger.Warn("activity feed poll failed", logging.Error(err))
			wait = lifeErrorBackoff
		} else {
			wait = p.interval
		}
	}
}

// Poll fetches the feed once and dispatches matching events.
func (p *CloudPoller) Poll(ctx context.Context) error {
	list, err := p.feed.LifeEvents(ctx, lifeFeedLimit)
	if err != nil {
		return err
	}

	p.mu.Lock()
	folders := make([]*store.MonitoredFolder, 0, len(p.folders))
	for _, folder := range p.folders {
		folders = append(folders, folder)
	}
	p.mu.Unlock()

	for _, event := range list {
		if _, ok := watchedLifeEventTypes[event.Type]; !ok {
			continue
		}
		path := event.FilePath
		if path == "" {
			continue
		}
		if !media.IsVideo(event.FileName) && !media.IsVideo(path) {
			continue
		}
		for _, folder := range folders {
			if !underPrefix(path, folder.Path) {
				continue
			}
			key := fmt.Sprintf("%d:%s:%d", folder.ID, event.FileID, event.Time)
			if p.alreadySeen(key) {
				continue
			}
			p.logger.Info("file detected",
				logging.String(logging.FieldFile, path),
				logging.String(logging.FieldBackend, string(media.BackendCloud)),
				logging.String("event_type", event.Type),
			)
			if p.bus != nil {
				p.bus.Publish(events.KindFileDetected, events.FileDetected{
					Path:    path,
					Backend: string(media.BackendCloud),
				})
			}
			p.batcher.Add(folder.ID, path)
		}
	}
	return nil
}

func underPrefix(path, prefix string) bool {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" || prefix == "/" {
		return true
	}
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

func (p *CloudPoller) alreadySeen(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.seen[key]; ok {
		return true
	}
	if len(p.seen) >= seenPruneSize {
		p.seen = make(map[string]struct{})
	}
	p.seen[key] = struct{}{}
	return false
}

// Stop ends the poll loop.
func (p *CloudPoller) Stop() {
	close(p.done)
}
