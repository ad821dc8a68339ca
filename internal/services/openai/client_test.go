package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"scribe/internal/services"
)

func TestCompleteSendsPromptsAndReturnsContent(t *testing.T) {
	var payload struct {
		Model       string  `json:"model"`
		Temperature float64 `json:"temperature"`
		Messages    []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Fatalf("unexpected auth header %q", got)
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Fatalf("unmarshal body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"gpt-4o-mini",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"  # Summary  "}}]}`))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test-key", BaseURL: server.URL, Model: "gpt-4o-mini", Temperature: 0.5, MaxRetries: 1})
	got, err := client.Complete(context.Background(), "summarize", "transcript body")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "# Summary" {
		t.Fatalf("unexpected content %q", got)
	}
	if payload.Model != "gpt-4o-mini" || payload.Temperature != 0.5 {
		t.Fatalf("unexpected payload %+v", payload)
	}
	if len(payload.Messages) != 2 || payload.Messages[0].Role != "system" || payload.Messages[1].Content != "transcript body" {
		t.Fatalf("unexpected messages %+v", payload.Messages)
	}
}

func TestCompleteMapsUnauthorizedToConfiguration(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "bad", BaseURL: server.URL, Model: "m", MaxRetries: 1})
	_, err := client.Complete(context.Background(), "", "text")
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestCompleteRejectsEmptyInput(t *testing.T) {
	client := NewClient(Config{APIKey: "k", Model: "m"})
	if _, err := client.Complete(context.Background(), "sys", "  "); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
