package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"folio/internal/config"
)

const userAgent = "Folio-Go/0.1.0"

// Service defines the notification surface exposed to daemon components.
type Service interface {
	NotifySaveCompleted(ctx context.Context, title string, attachments int) error
	NotifyImportCompleted(ctx context.Context, count int) error
	NotifyRecognitionCompleted(ctx context.Context, title string) error
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

	client := &http.Client{Timeout: timeout}
	return &ntfyService{
		endpoint:    topic,
		client:      client,
		saves:       cfg.Notifications.Saves,
		recognition: cfg.Notifications.Recognition,
		errors:      cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint    string
	client      *http.Client
	saves       bool
	recognition bool
	errors      bool
}

func (n *ntfyService) NotifySaveCompleted(ctx context.Context, title string, attachments int) error {
	if !n.saves {
		return nil
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = "(untitled)"
	}
	message := fmt.Sprintf("Saved: %s", title)
	if attachments > 0 {
		message = fmt.Sprintf("%s (%d attachments)", message, attachments)
	}
	data := payload{
		title:   "Folio - Saved",
		message: message,
		tags:    []string{"folio", "save", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyImportCompleted(ctx context.Context, count int) error {
	if !n.saves {
		return nil
	}
	data := payload{
		title:   "Folio - Imported",
		message: fmt.Sprintf("Imported %d items", count),
		tags:    []string{"folio", "import", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyRecognitionCompleted(ctx context.Context, title string) error {
	if !n.recognition {
		return nil
	}
	title = strings.TrimSpace(title)
	data := payload{
		title:   "Folio - PDF Recognized",
		message: fmt.Sprintf("Recognized: %s", title),
		tags:    []string{"folio", "recognize", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.errors {
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
		title:    "Folio - Error",
		message:  builder.String(),
		tags:     []string{"folio", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Folio - Test",
		message:  "Notification system test",
		tags:     []string{"folio", "test"},
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

func (noopService) NotifySaveCompleted(context.Context, string, int) error { return nil }

func (noopService) NotifyImportCompleted(context.Context, int) error { return nil }

func (noopService) NotifyRecognitionCompleted(context.Context, string) error { return nil }

func (noopService) NotifyError(context.Context, error, string) error { return nil }

func (noopService) TestNotification(context.Context) error { return nil }
