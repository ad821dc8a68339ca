package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"scribe/internal/config"
	"scribe/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventError, notifications.Payload{"error": "boom"}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		event          notifications.Event
		payload        notifications.Payload
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name:  "run completed",
			event: notifications.EventRunCompleted,
			payload: notifications.Payload{
				"processed": 3,
				"skipped":   2,
				"failed":    0,
				"duration":  90 * time.Second,
			},
			expectTitle:   "Scribe - Run Complete",
			expectMessage: "Run complete: 3 stages processed, 2 skipped in 1m30s",
			expectTags:    "scribe,run,completed",
		},
		{
			name:  "run completed with failures",
			event: notifications.EventRunCompleted,
			payload: notifications.Payload{
				"processed": 1,
				"skipped":   0,
				"failed":    2,
				"duration":  5 * time.Second,
			},
			expectTitle:   "Scribe - Run Complete (with errors)",
			expectMessage: "Run complete: 1 stages processed, 0 skipped, 2 failed in 5s",
			expectTags:    "scribe,run,completed",
		},
		{
			name:  "item completed",
			event: notifications.EventItemCompleted,
			payload: notifications.Payload{
				"identity": "weekly_sync",
				"noteURL":  "https://hackmd.io/abc",
			},
			expectTitle:   "Scribe - Item Complete",
			expectMessage: "Processed: weekly_sync\nNote: https://hackmd.io/abc",
			expectTags:    "scribe,item,completed",
		},
		{
			name:  "error",
			event: notifications.EventError,
			payload: notifications.Payload{
				"context": "transcribed (weekly_sync)",
				"error":   errors.New("quota exceeded"),
			},
			expectTitle:    "Scribe - Error",
			expectMessage:  "Error with transcribed (weekly_sync): quota exceeded",
			expectTags:     "scribe,error,alert",
			expectPriority: "high",
		},
		{
			name:           "test",
			event:          notifications.EventTest,
			expectTitle:    "Scribe - Test",
			expectMessage:  "Notification system test",
			expectTags:     "scribe,test",
			expectPriority: "low",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured struct {
				title    string
				tags     string
				priority string
				body     string
			}

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("unexpected method: %s", r.Method)
				}
				captured.title = r.Header.Get("Title")
				captured.tags = r.Header.Get("Tags")
				captured.priority = r.Header.Get("Priority")
				body, err := io.ReadAll(r.Body)
				if err != nil {
					t.Errorf("read body: %v", err)
				}
				captured.body = string(body)
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeout = 5
			cfg.Notifications.RunSummary = true
			cfg.Notifications.Errors = true

			svc := notifications.NewService(&cfg)
			if err := svc.Publish(context.Background(), tc.event, tc.payload); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}

			if captured.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, captured.title)
			}
			if captured.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, captured.body)
			}
			if captured.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, captured.tags)
			}
			if captured.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, captured.priority)
			}
		})
	}
}

func TestNtfyServiceHonorsEventSwitches(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected call for suppressed event: %s", r.Header.Get("Title"))
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.RunSummary = false
	cfg.Notifications.Errors = false

	svc := notifications.NewService(&cfg)
	for _, event := range []notifications.Event{
		notifications.EventRunCompleted,
		notifications.EventItemCompleted,
		notifications.EventError,
		notifications.Event("unknown"),
	} {
		if err := svc.Publish(context.Background(), event, notifications.Payload{"error": "ignored"}); err != nil {
			t.Fatalf("expected no error for suppressed event %s, got %v", event, err)
		}
	}
}

func TestNtfyServiceReportsHTTPFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic forbidden", http.StatusForbidden)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	svc := notifications.NewService(&cfg)
	err := svc.Publish(context.Background(), notifications.EventTest, nil)
	if err == nil || !strings.Contains(err.Error(), "403") {
		t.Fatalf("expected 403 error, got %v", err)
	}
}

func TestNewMailerDisabled(t *testing.T) {
	if m := notifications.NewMailer(config.Email{Enabled: false, SMTPHost: "smtp.example.com", To: []string{"a@example.com"}}); m != nil {
		t.Fatal("expected nil mailer when disabled")
	}
	var m *notifications.Mailer
	if err := m.SendRunReport(notifications.Report{}); err != nil {
		t.Fatalf("nil mailer should be a no-op, got %v", err)
	}
}

func TestMailerSendsRunReport(t *testing.T) {
	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg string
	mailer := notifications.NewMailer(config.Email{
		Enabled:  true,
		SMTPHost: "smtp.example.com",
		SMTPPort: 587,
		Username: "bot@example.com",
		Password: "secret",
		To:       []string{"team@example.com"},
	}).WithSender(func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, string(msg)
		return nil
	})

	err := mailer.SendRunReport(notifications.Report{
		RunID:     "run-1",
		Duration:  2 * time.Minute,
		Items:     2,
		Processed: 1,
		Failed:    1,
		Errors:    []string{"talk [transcribed]: quota exceeded"},
		Notes:     []notifications.NoteLink{{Title: "weekly sync", URL: "https://hackmd.io/abc"}},
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if gotAddr != "smtp.example.com:587" || gotFrom != "bot@example.com" || len(gotTo) != 1 {
		t.Fatalf("envelope = %q %q %v", gotAddr, gotFrom, gotTo)
	}
	for _, want := range []string{
		"Subject: scribe run: 1 processed, 1 failed\r\n",
		"- weekly sync: https://hackmd.io/abc\r\n",
		"- talk [transcribed]: quota exceeded\r\n",
	} {
		if !strings.Contains(gotMsg, want) {
			t.Fatalf("message missing %q:\n%s", want, gotMsg)
		}
	}
}
