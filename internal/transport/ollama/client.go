// Package ollama implements chat and embedding backends over a local Ollama server.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragworker/internal/domain"
	"github.com/kailas-cloud/ragworker/internal/metrics"
)

const (
	providerName   = "ollama"
	DefaultBaseURL = "http://localhost:11434"
)

// Client wraps the Ollama API client.
type Client struct {
	client         *api.Client
	chatModel      string
	embeddingModel string
	logger         *zap.Logger
}

// Config holds the backend settings.
type Config struct {
	BaseURL        string
	ChatModel      string
	EmbeddingModel string
	Timeout        time.Duration
	Logger         *zap.Logger
}

// NewClient creates an Ollama backend. No network calls are made.
func NewClient(cfg *Config) (*Client, error) {
	raw := cfg.BaseURL
	if raw == "" {
		raw = DefaultBaseURL
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse ollama base url %q: %w", raw, err)
	}

	httpClient := &http.Client{Timeout: cfg.Timeout}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		client:         api.NewClient(base, httpClient),
		chatModel:      cfg.ChatModel,
		embeddingModel: cfg.EmbeddingModel,
		logger:         logger,
	}, nil
}

// CompleteChat implements domain.ChatProvider using a non-streaming chat call.
func (c *Client) CompleteChat(ctx context.Context, prompt string) (domain.ChatCompletion, error) {
	if strings.TrimSpace(prompt) == "" {
		return domain.ChatCompletion{}, fmt.Errorf("prompt is blank: %w", domain.ErrInvalidInput)
	}

	stream := false
	req := &api.ChatRequest{
		Model:    c.chatModel,
		Messages: []api.Message{{Role: "user", Content: prompt}},
		Stream:   &stream,
	}

	var (
		answer           strings.Builder
		promptTokens     int
		completionTokens int
	)
	start := time.Now()
	err := c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		answer.WriteString(resp.Message.Content)
		if resp.Done {
			promptTokens = resp.PromptEvalCount
			completionTokens = resp.EvalCount
		}
		return nil
	})
	duration := time.Since(start)
	if err != nil {
		metrics.RecordProviderCall(providerName, c.chatModel, "chat", 0, err, "api_error")
		return domain.ChatCompletion{}, fmt.Errorf("ollama chat: %w: %w", domain.ErrProviderFailure, err)
	}
	if strings.TrimSpace(answer.String()) == "" {
		metrics.RecordProviderCall(providerName, c.chatModel, "chat", 0, domain.ErrEmptyResponse, "empty_response")
		return domain.ChatCompletion{}, fmt.Errorf("ollama chat: %w", domain.ErrEmptyResponse)
	}

	metrics.RecordProviderCall(providerName, c.chatModel, "chat", duration.Seconds(), nil, "")
	metrics.RecordTokens(providerName, c.chatModel, promptTokens, completionTokens)

	return domain.ChatCompletion{
		Answer:           answer.String(),
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
	}, nil
}

// GenerateEmbedding implements domain.EmbeddingProvider.
func (c *Client) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("embedding input is blank: %w", domain.ErrInvalidInput)
	}

	start := time.Now()
	resp, err := c.client.Embed(ctx, &api.EmbedRequest{
		Model: c.embeddingModel,
		Input: text,
	})
	duration := time.Since(start)
	if err != nil {
		metrics.RecordProviderCall(providerName, c.embeddingModel, "embedding", 0, err, "api_error")
		return nil, fmt.Errorf("ollama embedding: %w: %w", domain.ErrProviderFailure, err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0]) == 0 {
		metrics.RecordProviderCall(providerName, c.embeddingModel, "embedding", 0, domain.ErrEmptyResponse, "empty_response")
		return nil, fmt.Errorf("ollama embedding: %w", domain.ErrEmptyResponse)
	}

	metrics.RecordProviderCall(providerName, c.embeddingModel, "embedding", duration.Seconds(), nil, "")
	metrics.RecordTokens(providerName, c.embeddingModel, resp.PromptEvalCount, 0)
	return resp.Embeddings[0], nil
}

// HealthCheck pings the server.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := c.client.Heartbeat(ctx); err != nil {
		return fmt.Errorf("ollama heartbeat: %w", err)
	}
	return nil
}
