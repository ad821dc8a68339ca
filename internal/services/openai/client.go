// Package openai provides an OpenAI-compatible chat completion client used as
// the alternative summary provider.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"scribe/internal/services"
)

const (
	defaultTimeout    = 120 * time.Second
	defaultMaxRetries = 3
)

// Config holds the settings for the chat client.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxRetries  int
	Timeout     time.Duration
	HTTPClient  *http.Client // Optional (tests)
}

// Client wraps the official SDK.
type Client struct {
	model       string
	temperature float64
	client      openai.Client
}

// NewClient creates a chat client. Retries are delegated to the SDK transport.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, option.WithBaseURL(base))
	}
	return &Client{
		model:       strings.TrimSpace(cfg.Model),
		temperature: cfg.Temperature,
		client:      openai.NewClient(opts...),
	}
}

// Model returns the configured model.
func (c *Client) Model() string {
	return c.model
}

// Complete sends a system + user message pair and returns the reply text.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if strings.TrimSpace(userPrompt) == "" {
		return "", services.Wrap(services.ErrValidation, "summarized", "openai complete", "empty input text", nil)
	}
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if system := strings.TrimSpace(systemPrompt); system != "" {
		messages = append(messages, openai.SystemMessage(system))
	}
	messages = append(messages, openai.UserMessage(userPrompt))

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		Messages:    messages,
		Temperature: openai.Float(c.temperature),
	})
	if err != nil {
		return "", mapError(err)
	}
	for _, choice := range resp.Choices {
		if content := strings.TrimSpace(choice.Message.Content); content != "" {
			return content, nil
		}
	}
	return "", services.Wrap(services.ErrExternalTool, "summarized", "openai complete", "empty completion", nil)
}

// HealthCheck lists models to verify the endpoint and key.
func (c *Client) HealthCheck(ctx context.Context) error {
	if _, err := c.client.Models.List(ctx); err != nil {
		return fmt.Errorf("openai models list failed: %w", mapError(err))
	}
	return nil
}

func mapError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		marker := services.ErrExternalTool
		switch {
		case apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden:
			marker = services.ErrConfiguration
		case apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500:
			marker = services.ErrTransient
		}
		msg := fmt.Sprintf("status %d", apiErr.StatusCode)
		if apiErr.Message != "" {
			msg = fmt.Sprintf("status %d: %s", apiErr.StatusCode, apiErr.Message)
		}
		return services.Wrap(marker, "summarized", "openai complete", msg, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, "summarized", "openai complete", "request timed out", err)
	}
	return services.Wrap(services.ErrTransient, "summarized", "openai complete", "request failed", err)
}
