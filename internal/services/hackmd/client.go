// Package hackmd publishes markdown notes through the HackMD v1 REST API.
package hackmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"

	"scribe/internal/services"
)

const (
	DefaultBaseURL     = "https://api.hackmd.io/v1"
	DefaultNoteURLBase = "https://hackmd.io"

	defaultTimeout    = 30 * time.Second
	defaultMaxRetries = 3
	defaultRetryDelay = time.Second
	maxErrorBody      = 512
)

// Config captures runtime settings.
type Config struct {
	APIToken        string
	BaseURL         string
	NoteURLBase     string
	ReadPermission  string
	WritePermission string
	Timeout         time.Duration
	MaxRetries      int
}

// Note is a created note.
type Note struct {
	ID    string
	Title string
	URL   string
}

// Client talks to HackMD.
type Client struct {
	cfg        Config
	httpClient *http.Client
	retryDelay time.Duration
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetryDelay overrides the retry delay (tests use zero).
func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) {
		c.retryDelay = d
	}
}

// NewClient constructs a client from cfg.
func NewClient(cfg Config, opts ...Option) *Client {
	cfg.APIToken = strings.TrimSpace(cfg.APIToken)
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.NoteURLBase = strings.TrimRight(strings.TrimSpace(cfg.NoteURLBase), "/")
	if cfg.NoteURLBase == "" {
		cfg.NoteURLBase = DefaultNoteURLBase
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		retryDelay: defaultRetryDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NoteURL returns the public URL of a note id.
func (c *Client) NoteURL(id string) string {
	return c.cfg.NoteURLBase + "/" + url.PathEscape(id)
}

type createRequest struct {
	Title           string `json:"title"`
	Content         string `json:"content"`
	ReadPermission  string `json:"readPermission,omitempty"`
	WritePermission string `json:"writePermission,omitempty"`
}

type noteResponse struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	PublishLink  string `json:"publishLink"`
	ShortID      string `json:"shortId"`
	LastChangeAt int64  `json:"lastChangedAt"`
}

type httpStatusError struct {
	StatusCode int
	Body       string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("hackmd: http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

// CreateNote uploads content as a new note.
func (c *Client) CreateNote(ctx context.Context, title, content string) (Note, error) {
	if c.cfg.APIToken == "" {
		return Note{}, services.Wrap(services.ErrConfiguration, "published_to_notes", "hackmd create", "api token required", nil)
	}
	body, err := json.Marshal(createRequest{
		Title:           title,
		Content:         content,
		ReadPermission:  c.cfg.ReadPermission,
		WritePermission: c.cfg.WritePermission,
	})
	if err != nil {
		return Note{}, fmt.Errorf("hackmd create: encode body: %w", err)
	}
	var created noteResponse
	err = c.do(ctx, "hackmd create", http.MethodPost, "/notes", body, &created)
	if err != nil {
		return Note{}, err
	}
	if strings.TrimSpace(created.ID) == "" {
		return Note{}, services.Wrap(services.ErrExternalTool, "published_to_notes", "hackmd create", "response missing note id", nil)
	}
	return Note{ID: created.ID, Title: title, URL: c.NoteURL(created.ID)}, nil
}

// NoteExists reports whether the note id is still reachable.
func (c *Client) NoteExists(ctx context.Context, id string) (bool, error) {
	err := c.do(ctx, "hackmd get", http.MethodGet, "/notes/"+url.PathEscape(id), nil, nil)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, services.ErrNotFound) {
		return false, nil
	}
	return false, err
}

// HealthCheck verifies the token by fetching the current user.
func (c *Client) HealthCheck(ctx context.Context) error {
	if c.cfg.APIToken == "" {
		return errors.New("hackmd health: api token required")
	}
	return c.do(ctx, "hackmd health", http.MethodGet, "/me", nil, nil)
}

func (c *Client) do(ctx context.Context, op, method, path string, body []byte, out any) error {
	return retry.Do(
		func() error {
			return c.doOnce(ctx, op, method, path, body, out)
		},
		retry.Context(ctx),
		retry.Attempts(uint(c.cfg.MaxRetries)),
		retry.Delay(c.retryDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(services.Retryable),
	)
}

func (c *Client) doOnce(ctx context.Context, op, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return services.Wrap(services.ErrValidation, "", op, "build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIToken)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return services.Wrap(services.ErrTimeout, "", op, "request timed out", err)
		}
		return services.Wrap(services.ErrTransient, "", op, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		statusErr := &httpStatusError{StatusCode: resp.StatusCode, Body: string(snippet)}
		return services.Wrap(markerForStatus(resp.StatusCode), "", op, http.StatusText(resp.StatusCode), statusErr)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return services.Wrap(services.ErrExternalTool, "", op, "decode response", err)
	}
	return nil
}

func markerForStatus(code int) error {
	switch {
	case code == http.StatusNotFound:
		return services.ErrNotFound
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return services.ErrConfiguration
	case code == http.StatusTooManyRequests || code >= 500:
		return services.ErrTransient
	default:
		return services.ErrValidation
	}
}
