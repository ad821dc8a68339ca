package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"scribe/internal/config"
)

const (
	userAgent       = "scribe/1.0"
	defaultNtfyBase = "https://ntfy.sh/"
)

// Event names a notification type.
type Event string

const (
	EventRunCompleted  Event = "run_completed"
	EventItemCompleted Event = "item_completed"
	EventError         Event = "error"
	EventTest          Event = "test"
)

// Payload carries event fields keyed by name.
type Payload map[string]any

// Service publishes workflow events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	if !strings.HasPrefix(topic, "http://") && !strings.HasPrefix(topic, "https://") {
		topic = defaultNtfyBase + strings.TrimLeft(topic, "/")
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:   topic,
		client:     &http.Client{Timeout: timeout},
		runSummary: cfg.Notifications.RunSummary,
		errors:     cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint   string
	client     *http.Client
	runSummary bool
	errors     bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, data Payload) error {
	if n == nil {
		return nil
	}
	msg, ok := n.format(event, data)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func (n *ntfyService) format(event Event, data Payload) (payload, bool) {
	switch event {
	case EventRunCompleted:
		if !n.runSummary {
			return payload{}, false
		}
		return formatRunCompleted(data), true
	case EventItemCompleted:
		if !n.runSummary {
			return payload{}, false
		}
		message := fmt.Sprintf("Processed: %s", stringValue(data, "identity"))
		if url := stringValue(data, "noteURL"); url != "" {
			message = fmt.Sprintf("%s\nNote: %s", message, url)
		}
		return payload{
			title:   "Scribe - Item Complete",
			message: message,
			tags:    []string{"scribe", "item", "completed"},
		}, true
	case EventError:
		if !n.errors {
			return payload{}, false
		}
		var builder strings.Builder
		builder.WriteString("Error")
		if label := stringValue(data, "context"); label != "" {
			builder.WriteString(" with ")
			builder.WriteString(label)
		}
		builder.WriteString(": ")
		if msg := stringValue(data, "error"); msg != "" {
			builder.WriteString(msg)
		} else {
			builder.WriteString("unknown")
		}
		return payload{
			title:    "Scribe - Error",
			message:  builder.String(),
			tags:     []string{"scribe", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return payload{
			title:    "Scribe - Test",
			message:  "Notification system test",
			tags:     []string{"scribe", "test"},
			priority: "low",
		}, true
	default:
		return payload{}, false
	}
}

func formatRunCompleted(data Payload) payload {
	processed := intValue(data, "processed")
	failed := intValue(data, "failed")
	skipped := intValue(data, "skipped")
	duration, _ := data["duration"].(time.Duration)
	duration = duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}
	durationText := duration.String()

	title := "Scribe - Run Complete"
	message := fmt.Sprintf("Run complete: %d stages processed, %d skipped in %s", processed, skipped, durationText)
	if failed > 0 {
		title = "Scribe - Run Complete (with errors)"
		message = fmt.Sprintf("Run complete: %d stages processed, %d skipped, %d failed in %s", processed, skipped, failed, durationText)
	}
	return payload{
		title:   title,
		message: message,
		tags:    []string{"scribe", "run", "completed"},
	}
}

func stringValue(data Payload, key string) string {
	switch v := data[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case error:
		return strings.TrimSpace(v.Error())
	case fmt.Stringer:
		return strings.TrimSpace(v.String())
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func intValue(data Payload, key string) int {
	switch v := data[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	default:
		return 0
	}
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n.client == nil {
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

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
