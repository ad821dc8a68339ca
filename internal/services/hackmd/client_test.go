package hackmd

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"scribe/internal/services"
)

func TestCreateNote(t *testing.T) {
	var got createRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/notes" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer token-1" {
			t.Fatalf("unexpected auth %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "abc123", "title": got.Title})
	}))
	defer server.Close()

	client := NewClient(Config{
		APIToken:        "token-1",
		BaseURL:         server.URL + "/v1/",
		NoteURLBase:     "https://notes.example",
		ReadPermission:  "guest",
		WritePermission: "signed_in",
	})
	note, err := client.CreateNote(context.Background(), "Lecture 01", "# Lecture 01\n\nbody")
	if err != nil {
		t.Fatalf("CreateNote: %v", err)
	}
	if note.ID != "abc123" || note.URL != "https://notes.example/abc123" {
		t.Fatalf("unexpected note %+v", note)
	}
	if got.ReadPermission != "guest" || got.WritePermission != "signed_in" || got.Title != "Lecture 01" {
		t.Fatalf("unexpected payload %+v", got)
	}
}

func TestCreateNoteRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "n2"})
	}))
	defer server.Close()

	client := NewClient(Config{APIToken: "t", BaseURL: server.URL, MaxRetries: 3}, WithRetryDelay(0))
	note, err := client.CreateNote(context.Background(), "t", "c")
	if err != nil {
		t.Fatalf("CreateNote: %v", err)
	}
	if note.ID != "n2" || calls.Load() != 2 {
		t.Fatalf("expected success on retry, got %+v after %d calls", note, calls.Load())
	}
}

func TestCreateNoteDoesNotRetryAuthFailures(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(Config{APIToken: "t", BaseURL: server.URL, MaxRetries: 3}, WithRetryDelay(0))
	_, err := client.CreateNote(context.Background(), "t", "c")
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single call, got %d", calls.Load())
	}
}

func TestCreateNoteRequiresToken(t *testing.T) {
	client := NewClient(Config{})
	if _, err := client.CreateNote(context.Background(), "t", "c"); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestNoteExists(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/notes/live":
			_ = json.NewEncoder(w).Encode(map[string]any{"id": "live"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := NewClient(Config{APIToken: "t", BaseURL: server.URL}, WithRetryDelay(0))
	ok, err := client.NoteExists(context.Background(), "live")
	if err != nil || !ok {
		t.Fatalf("expected live note, got %v %v", ok, err)
	}
	ok, err = client.NoteExists(context.Background(), "gone")
	if err != nil || ok {
		t.Fatalf("expected missing note, got %v %v", ok, err)
	}
}
