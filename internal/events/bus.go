// Package events provides a small in-process pub/sub bus used to decouple
// the pipeline from notifications and progress reporting. Dispatch is
// synchronous and best-effort: a panicking handler never blocks the others.
package events

import (
	"log/slog"
	"sync"
	"time"

	"organ/internal/logging"
)

// Kind identifies an event category.
type Kind string

const (
	KindFileDetected         Kind = "file.detected"
	KindRecognitionStarted   Kind = "recognition.started"
	KindRecognitionCompleted Kind = "recognition.completed"
	KindTransferStarted      Kind = "transfer.started"
	KindTransferProgress     Kind = "transfer.progress"
	KindTransferCompleted    Kind = "transfer.completed"
	KindJobCompleted         Kind = "job.completed"
)

// Event is delivered to subscribers. Payload holds one of the typed
// payload structs below, keyed by Kind.
type Event struct {
	Kind      Kind
	Payload   any
	Timestamp time.Time
}

// FileDetected reports a new media file seen by a monitor.
type FileDetected struct {
	JobID   int64
	Path    string
	Backend string
}

// RecognitionStarted reports the start of a recognition batch.
type RecognitionStarted struct {
	FileCount int
	MediaType string
}

// RecognitionCompleted summarizes a finished recognition batch.
type RecognitionCompleted struct {
	Total          int
	HighConfidence int
	LowConfidence  int
}

// TransferStarted reports the start of a transfer batch.
type TransferStarted struct {
	JobID     int64
	FileCount int
}

// TransferProgress reports one file moved within a batch.
type TransferProgress struct {
	JobID      int64
	SourcePath string
	TargetPath string
	Completed  int
	Total      int
}

// TransferCompleted summarizes a finished transfer batch.
type TransferCompleted struct {
	JobID     int64
	Succeeded int
	Failed    int
	Skipped   int
}

// JobCompleted reports a job reaching a terminal state.
type JobCompleted struct {
	JobID  int64
	Status string
	Error  string
}

// Handler receives published events.
type Handler func(Event)

// Bus is a synchronous pub/sub dispatcher safe for concurrent use.
type Bus struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[Kind]map[int]Handler
	global   map[int]Handler
	logger   *slog.Logger
}

// NewBus constructs an event bus.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Bus{
		handlers: make(map[Kind]map[int]Handler),
		global:   make(map[int]Handler),
		logger:   logger.With(logging.String(logging.FieldComponent, "events")),
	}
}

// Subscribe registers a handler for one event kind and returns its
// unsubscribe function.
func (b *Bus) Subscribe(kind Kind, handler Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	if b.handlers[kind] == nil {
		b.handlers[kind] = make(map[int]Handler)
	}
	b.handlers[kind][id] = handler
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers[kind], id)
	}
}

// SubscribeAll registers a handler for every event kind.
func (b *Bus) SubscribeAll(handler Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.global[id] = handler
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.global, id)
	}
}

// Publish delivers the event to every matching handler in subscription
// order. Handlers run on the caller's goroutine.
func (b *Bus) Publish(kind Kind, payload any) {
	event := Event{Kind: kind, Payload: payload, Timestamp: time.Now()}

	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.handlers[kind])+len(b.global))
	for _, h := range b.handlers[kind] {
		handlers = append(handlers, h)
	}
	for _, h := range b.global {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, handler := range handlers {
		b.dispatch(event, handler)
	}
}

func (b *Bus) dispatch(event Event, handler Handler) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				logging.String("event", string(event.Kind)),
				slog.Any("panic", r),
			)
		}
	}()
	handler(event)
}
