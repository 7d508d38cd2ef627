package notifications

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"organ/internal/config"
	"organ/internal/events"
	"organ/internal/logging"
)

const userAgent = "Organ/0.1.0"

// Service defines the notification surface exposed to pipeline components.
type Service interface {
	NotifyRecognitionCompleted(ctx context.Context, total, high, low int) error
	NotifyTransferCompleted(ctx context.Context, succeeded, failed, skipped int) error
	NotifyReviewNeeded(ctx context.Context, filename string) error
	NotifyError(ctx context.Context, err error, contextLabel string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		cfg:      cfg.Notifications,
		dedup:    time.Duration(cfg.Notifications.DedupWindowSeconds) * time.Second,
		sent:     make(map[string]time.Time),
		now:      time.Now,
	}
}

// Attach subscribes the service to the bus and returns an unsubscribe
// function. Send failures are logged, never propagated to publishers.
func Attach(bus *events.Bus, svc Service, logger *slog.Logger) func() {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logger.With(logging.String(logging.FieldComponent, "notifications"))

	report := func(err error) {
		if err != nil {
			logger.Warn("notification send failed", logging.Error(err))
		}
	}

	unsubs := []func(){
		bus.Subscribe(events.KindRecognitionCompleted, func(e events.Event) {
			if p, ok := e.Payload.(events.RecognitionCompleted); ok {
				report(svc.NotifyRecognitionCompleted(context.Background(), p.Total, p.HighConfidence, p.LowConfidence))
			}
		}),
		bus.Subscribe(events.KindTransferCompleted, func(e events.Event) {
			if p, ok := e.Payload.(events.TransferCompleted); ok {
				report(svc.NotifyTransferCompleted(context.Background(), p.Succeeded, p.Failed, p.Skipped))
			}
		}),
		bus.Subscribe(events.KindJobCompleted, func(e events.Event) {
			p, ok := e.Payload.(events.JobCompleted)
			if !ok || p.Error == "" {
				return
			}
			report(svc.NotifyError(context.Background(), fmt.Errorf("%s", p.Error), fmt.Sprintf("job %d", p.JobID)))
		}),
	}
	return func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	cfg      config.Notifications
	dedup    time.Duration

	mu   sync.Mutex
	sent map[string]time.Time
	now  func() time.Time
}

func (n *ntfyService) NotifyRecognitionCompleted(ctx context.Context, total, high, low int) error {
	if !n.cfg.Recognition {
		return nil
	}
	message := fmt.Sprintf("Recognized %d files: %d high confidence", total, high)
	if low > 0 {
		message = fmt.Sprintf("%s, %d need review", message, low)
	}
	return n.send(ctx, payload{
		title:   "Organ - Recognition Complete",
		message: message,
		tags:    []string{"organ", "recognize", "completed"},
	})
}

func (n *ntfyService) NotifyTransferCompleted(ctx context.Context, succeeded, failed, skipped int) error {
	if !n.cfg.Transfer {
		return nil
	}
	var title, message string
	if failed == 0 {
		title = "Organ - Transfer Complete"
		message = fmt.Sprintf("Moved %d files", succeeded)
	} else {
		title = "Organ - Transfer Complete (with errors)"
		message = fmt.Sprintf("Moved %d files, %d failed", succeeded, failed)
	}
	if skipped > 0 {
		message = fmt.Sprintf("%s, %d skipped", message, skipped)
	}
	data := payload{
		title:   title,
		message: message,
		tags:    []string{"organ", "transfer", "completed"},
	}
	if failed > 0 {
		data.priority = "high"
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyReviewNeeded(ctx context.Context, filename string) error {
	if !n.cfg.Review {
		return nil
	}
	filename = strings.TrimSpace(filename)
	return n.send(ctx, payload{
		title:   "Organ - Review Needed",
		message: fmt.Sprintf("Could not identify: %s\nManual review required", filename),
		tags:    []string{"organ", "review"},
	})
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.cfg.Errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}
	return n.send(ctx, payload{
		title:    "Organ - Error",
		message:  builder.String(),
		tags:     []string{"organ", "error", "alert"},
		priority: "high",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "Organ - Test",
		message:  "Notification system test",
		tags:     []string{"organ", "test"},
		priority: "low",
	})
}

// suppressed reports whether an identical notification went out within
// the dedup window, and marks this one as sent when it did not.
func (n *ntfyService) suppressed(data payload) bool {
	if n.dedup <= 0 {
		return false
	}
	key := data.title + "\n" + data.message

	n.mu.Lock()
	defer n.mu.Unlock()
	now := n.now()
	if last, ok := n.sent[key]; ok && now.Sub(last) < n.dedup {
		return true
	}
	n.sent[key] = now
	for stale, at := range n.sent {
		if now.Sub(at) >= n.dedup {
			delete(n.sent, stale)
		}
	}
	return false
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}
	if n.suppressed(data) {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyRecognitionCompleted(context.Context, int, int, int) error { return nil }
func (noopService) NotifyTransferCompleted(context.Context, int, int, int) error    { return nil }
func (noopService) NotifyReviewNeeded(context.Context, string) error                { return nil }
func (noopService) NotifyError(context.Context, error, string) error                { return nil }
func (noopService) TestNotification(context.Context) error                          { return nil }
