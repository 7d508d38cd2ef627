// Package monitor watches storage backends for arriving media files and
// feeds coalesced batches into the recognition and transfer pipeline.
package monitor

import (
	"sync"
	"time"
)

// FlushFunc receives one coalesced batch of detected paths for a folder.
type FlushFunc func(folderID int64, paths []string)

// Batcher buffers detected files per folder and flushes a batch after a
// fixed quiescence delay from the first detection. The window does not
// restart on later arrivals; a very bursty upload may split across two
// batches.
type Batcher struct {
	delay time.Duration
	flush FlushFunc

	mu      sync.Mutex
	pending map[int64][]string
	seen    map[int64]map[string]struct{}
	timers  map[int64]*time.Timer
	closed  bool
}

// NewBatcher constructs a batcher. Flush callbacks run on timer
// goroutines, one folder at a time.
func NewBatcher(delay time.Duration, flush FlushFunc) *Batcher {
	if delay <= 0 {
		delay = 5 * time.Second
	}
	return &Batcher{
		delay:   delay,
		flush:   flush,
		pending: make(map[int64][]string),
		seen:    make(map[int64]map[string]struct{}),
		timers:  make(map[int64]*time.Timer),
	}
}

// Add buffers a detected path. Duplicate paths within one window collapse
// into a single entry.
func (b *Batcher) Add(folderID int64, path string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}

	if b.seen[folderID] == nil {
		b.seen[folderID] = make(map[string]struct{})
	}
	if _, dup := b.seen[folderID][path]; dup {
		return
	}
	b.seen[folderID][path] = struct{}{}
	b.pending[folderID] = append(b.pending[folderID], path)

	if _, armed := b.timers[folderID]; !armed {
		b.timers[folderID] = time.AfterFunc(b.delay, func() { b.fire(folderID) })
	}
}

func (b *Batcher) fire(folderID int64) {
	b.mu.Lock()
	paths := b.pending[folderID]
	delete(b.pending, folderID)
	delete(b.seen, folderID)
	delete(b.timers, folderID)
	b.mu.Unlock()

	if len(paths) > 0 && b.flush != nil {
		b.flush(folderID, paths)
	}
}

// Close cancels pending timers and flushes anything buffered so
// detections are not lost on shutdown.
func (b *Batcher) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	var flushes [][2]any
	for folderID, timer := range b.timers {
		timer.Stop()
		if paths := b.pending[folderID]; len(paths) > 0 {
			flushes = append(flushes, [2]any{folderID, paths})
		}
	}
	b.pending = make(map[int64][]string)
	b.seen = make(map[int64]map[string]struct{})
	b.timers = make(map[int64]*time.Timer)
	b.mu.Unlock()

	if b.flush == nil {
		return
	}
	for _, entry := range flushes {
		b.flush(entry[0].(int64), entry[1].([]string))
	}
}
