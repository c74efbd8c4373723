package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"phototriage/internal/config"
)

const userAgent = "PhotoTriage-Go/0.1.0"

// Service defines the notification surface exposed to the triage engine.
// Long-running scans and batch deletions are the events worth pushing to a
// phone; everything else stays in the log.
type Service interface {
	NotifyScanStarted(ctx context.Context, total int) error
	NotifyScanCompleted(ctx context.Context, processed, flagged int, duration time.Duration) error
	NotifyScanInterrupted(ctx context.Context, processed int) error
	NotifyDeletionsFlushed(ctx context.Context, removed, failed int) error
	NotifyError(ctx context.Context, err error, context string) error
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
		endpoint:       topic,
		client:         &http.Client{Timeout: timeout},
		scanEvents:     cfg.Notifications.Scan,
		deletionEvents: cfg.Notifications.Deletion,
		errorEvents:    cfg.Notifications.Errors,
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

	scanEvents     bool
	deletionEvents bool
	errorEvents    bool
}

func (n *ntfyService) NotifyScanStarted(ctx context.Context, total int) error {
	if !n.scanEvents {
		return nil
	}
	data := payload{
		title:   "PhotoTriage - Scan Started",
		message: fmt.Sprintf("Started sensitivity scan over %d assets", total),
		tags:    []string{"phototriage", "scan", "started"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyScanCompleted(ctx context.Context, processed, flagged int, duration time.Duration) error {
	if !n.scanEvents {
		return nil
	}
	duration = duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}
	durationText := duration.String()
	if duration == 0 {
		durationText = "0s"
	}

	data := payload{
		title:    "PhotoTriage - Scan Complete",
		message:  fmt.Sprintf("Scan complete: %d assets processed, %d flagged in %s", processed, flagged, durationText),
		tags:     []string{"phototriage", "scan", "completed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyScanInterrupted(ctx context.Context, processed int) error {
	if !n.scanEvents {
		return nil
	}
	data := payload{
		title:   "PhotoTriage - Scan Interrupted",
		message: fmt.Sprintf("Scan stopped after %d assets; progress is saved and the scan resumes where it left off", processed),
		tags:    []string{"phototriage", "scan", "interrupted"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyDeletionsFlushed(ctx context.Context, removed, failed int) error {
	if !n.deletionEvents {
		return nil
	}
	var message string
	var title string
	if failed == 0 {
		title = "PhotoTriage - Deletions Flushed"
		message = fmt.Sprintf("Deleted %d assets", removed)
	} else {
		title = "PhotoTriage - Deletions Flushed (with errors)"
		message = fmt.Sprintf("Deleted %d assets, %d failed and remain queued", removed, failed)
	}
	data := payload{
		title:   title,
		message: message,
		tags:    []string{"phototriage", "deletion", "flushed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.errorEvents {
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

	data := payload{
		title:    "PhotoTriage - Error",
		message:  builder.String(),
		tags:     []string{"phototriage", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "PhotoTriage - Test",
		message:  "Notification system test",
		tags:     []string{"phototriage", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
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

func (noopService) NotifyScanStarted(context.Context, int) error                         { return nil }
func (noopService) NotifyScanCompleted(context.Context, int, int, time.Duration) error   { return nil }
func (noopService) NotifyScanInterrupted(context.Context, int) error                     { return nil }
func (noopService) NotifyDeletionsFlushed(context.Context, int, int) error               { return nil }
func (noopService) NotifyError(context.Context, error, string) error                     { return nil }
func (noopService) TestNotification(context.Context) error                               { return nil }
