package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"google.golang.org/genai"

	"scribe/internal/services"
)

const (
	defaultTimeout    = 600 * time.Second
	defaultMaxRetries = 3
	defaultRetryDelay = 2 * time.Second
)

// Generator is the subset of genai.Models the client uses.
type Generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Config captures runtime settings.
type Config struct {
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
	MaxRetries  int
}

// Client issues Gemini requests.
type Client struct {
	cfg        Config
	models     Generator
	retryDelay time.Duration
}

// Option customizes the client.
type Option func(*Client)

// WithGenerator replaces the genai backend (for testing).
func WithGenerator(g Generator) Option {
	return func(c *Client) {
		c.models = g
	}
}

// WithRetryDelay overrides the base retry delay.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) {
		c.retryDelay = d
	}
}

// NewClient builds a client. Without WithGenerator it connects to the Gemini API backend.
func NewClient(ctx context.Context, cfg Config, opts ...Option) (*Client, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	cfg.Model = strings.TrimSpace(cfg.Model)
	c := &Client{cfg: cfg, retryDelay: defaultRetryDelay}
	for _, opt := range opts {
		opt(c)
	}
	if c.models != nil {
		return c, nil
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "", "gemini client", "api key required", nil)
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: cfg.Timeout},
	})
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "", "gemini client", "create client", err)
	}
	c.models = client.Models
	return c, nil
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.cfg.Model
}

// Transcribe sends an audio clip inline together with the instruction prompt.
func (c *Client) Transcribe(ctx context.Context, audio []byte, mimeType, prompt string) (string, error) {
	if len(audio) == 0 {
		return "", services.Wrap(services.ErrValidation, "transcribed", "gemini transcribe", "empty audio", nil)
	}
	parts := []*genai.Part{
		genai.NewPartFromText(prompt),
		genai.NewPartFromBytes(audio, mimeType),
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	return c.generate(ctx, "gemini transcribe", contents, &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(c.cfg.Temperature)),
	})
}

// Complete runs a text prompt with an optional system instruction.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if strings.TrimSpace(userPrompt) == "" {
		return "", services.Wrap(services.ErrValidation, "summarized", "gemini complete", "empty input text", nil)
	}
	config := &genai.GenerateContentConfig{Temperature: genai.Ptr(float32(c.cfg.Temperature))}
	if system := strings.TrimSpace(systemPrompt); system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	contents := []*genai.Content{genai.NewContentFromText(userPrompt, genai.RoleUser)}
	return c.generate(ctx, "gemini complete", contents, config)
}

func (c *Client) generate(ctx context.Context, op string, contents []*genai.Content, config *genai.GenerateContentConfig) (string, error) {
	var text string
	err := retry.Do(
		func() error {
			resp, err := c.models.GenerateContent(ctx, c.cfg.Model, contents, config)
			if err != nil {
				return classify(op, err)
			}
			text = responseText(resp)
			if text == "" {
				return services.Wrap(services.ErrExternalTool, "", op, "empty response", nil)
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(c.cfg.MaxRetries)),
		retry.Delay(c.retryDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(services.Retryable),
	)
	if err != nil {
		return "", err
	}
	return text, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			b.WriteString(part.Text)
		}
	}
	return strings.TrimSpace(b.String())
}

func classify(op string, err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		marker := services.ErrExternalTool
		switch {
		case apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden:
			marker = services.ErrConfiguration
		case apiErr.Code == http.StatusBadRequest:
			marker = services.ErrValidation
		case apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= 500:
			marker = services.ErrTransient
		}
		return services.Wrap(marker, "", op, fmt.Sprintf("status %d %s", apiErr.Code, apiErr.Status), err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, "", op, "request timed out", err)
	}
	return services.Wrap(services.ErrTransient, "", op, "request failed", err)
}
