// Package gemini implements chat and embedding backends over the Google Gemini API.
package gemini

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/kailas-cloud/ragworker/internal/domain"
	"github.com/kailas-cloud/ragworker/internal/metrics"
)

const providerName = "gemini"

// Client wraps a genai client for one chat and one embedding model.
type Client struct {
	client         *genai.Client
	chatModel      string
	embeddingModel string
	dimensions     int
	logger         *zap.Logger
}

// Config holds the backend settings.
type Config struct {
	APIKey         string
	BaseURL        string
	ChatModel      string
	EmbeddingModel string
	Dimensions     int
	Timeout        time.Duration
	Logger         *zap.Logger
}

// NewClient creates a Gemini backend. No network calls are made.
func NewClient(ctx context.Context, cfg *Config) (*Client, error) {
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	if cfg.Timeout > 0 {
		cc.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		client:         client,
		chatModel:      cfg.ChatModel,
		embeddingModel: cfg.EmbeddingModel,
		dimensions:     cfg.Dimensions,
		logger:         logger,
	}, nil
}

// CompleteChat implements domain.ChatProvider.
func (c *Client) CompleteChat(ctx context.Context, prompt string) (domain.ChatCompletion, error) {
	if strings.TrimSpace(prompt) == "" {
		return domain.ChatCompletion{}, fmt.Errorf("prompt is blank: %w", domain.ErrInvalidInput)
	}

	start := time.Now()
	resp, err := c.client.Models.GenerateContent(ctx, c.chatModel, genai.Text(prompt), nil)
	duration := time.Since(start)
	if err != nil {
		metrics.RecordProviderCall(providerName, c.chatModel, "chat", 0, err, "api_error")
		return domain.ChatCompletion{}, fmt.Errorf("gemini chat: %w: %w", domain.ErrProviderFailure, err)
	}

	answer := resp.Text()
	if strings.TrimSpace(answer) == "" {
		metrics.RecordProviderCall(providerName, c.chatModel, "chat", 0, domain.ErrEmptyResponse, "empty_response")
		return domain.ChatCompletion{}, fmt.Errorf("gemini chat: %w", domain.ErrEmptyResponse)
	}

	var promptTokens, completionTokens int
	if resp.UsageMetadata != nil {
		promptTokens = int(resp.UsageMetadata.PromptTokenCount)
		completionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	metrics.RecordProviderCall(providerName, c.chatModel, "chat", duration.Seconds(), nil, "")
	metrics.RecordTokens(providerName, c.chatModel, promptTokens, completionTokens)

	return domain.ChatCompletion{
		Answer:           answer,
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
	}, nil
}

// GenerateEmbedding implements domain.EmbeddingProvider.
func (c *Client) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("embedding input is blank: %w", domain.ErrInvalidInput)
	}

	var cfg *genai.EmbedContentConfig
	if c.dimensions > 0 {
		dim := int32(c.dimensions) //nolint:gosec // configured dimension fits int32
		cfg = &genai.EmbedContentConfig{OutputDimensionality: &dim}
	}

	start := time.Now()
	resp, err := c.client.Models.EmbedContent(ctx, c.embeddingModel, genai.Text(text), cfg)
	duration := time.Since(start)
	if err != nil {
		metrics.RecordProviderCall(providerName, c.embeddingModel, "embedding", 0, err, "api_error")
		return nil, fmt.Errorf("gemini embedding: %w: %w", domain.ErrProviderFailure, err)
	}
	if len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil || len(resp.Embeddings[0].Values) == 0 {
		metrics.RecordProviderCall(providerName, c.embeddingModel, "embedding", 0, domain.ErrEmptyResponse, "empty_response")
		return nil, fmt.Errorf("gemini embedding: %w", domain.ErrEmptyResponse)
	}

	metrics.RecordProviderCall(providerName, c.embeddingModel, "embedding", duration.Seconds(), nil, "")
	return resp.Embeddings[0].Values, nil
}

// HealthCheck fetches the embedding model metadata.
func (c *Client) HealthCheck(ctx context.Context) error {
	model := c.embeddingModel
	if model == "" {
		model = c.chatModel
	}
	if _, err := c.client.Models.Get(ctx, model, nil); err != nil {
		return fmt.Errorf("get model %s: %w", model, err)
	}
	return nil
}
