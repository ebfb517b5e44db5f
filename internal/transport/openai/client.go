// Package openai implements chat and embedding backends over the OpenAI-compatible API:
// OpenAI itself, Azure OpenAI deployments and xAI Grok.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragworker/internal/domain"
	"github.com/kailas-cloud/ragworker/internal/metrics"
)

// Flavors of the OpenAI-compatible API.
const (
	FlavorOpenAI = "openai"
	FlavorAzure  = "azureopenai"
	FlavorGrok   = "grok"
)

// GrokBaseURL is the default xAI endpoint.
const GrokBaseURL = "https://api.x.ai/v1"

// DefaultAzureAPIVersion is used when no api_version is configured.
const DefaultAzureAPIVersion = "2024-10-21"

// Client talks to one OpenAI-compatible endpoint.
type Client struct {
	client         *openai.Client
	chatModel      string
	embeddingModel openai.EmbeddingModel
	dimensions     int
	provider       string
	logger         *zap.Logger
}

// Config holds the backend settings. For Azure, model names are deployment names.
type Config struct {
	Flavor         string
	APIKey         string
	BaseURL        string
	APIVersion     string
	ChatModel      string
	EmbeddingModel string
	Dimensions     int
	Timeout        time.Duration
	Logger         *zap.Logger
}

// NewClient creates an OpenAI-compatible backend.
func NewClient(cfg *Config) *Client {
	var clientCfg openai.ClientConfig
	switch cfg.Flavor {
	case FlavorAzure:
		clientCfg = openai.DefaultAzureConfig(cfg.APIKey, cfg.BaseURL)
		clientCfg.APIVersion = DefaultAzureAPIVersion
		if cfg.APIVersion != "" {
			clientCfg.APIVersion = cfg.APIVersion
		}
		clientCfg.AzureModelMapperFunc = func(model string) string { return model }
	case FlavorGrok:
		clientCfg = openai.DefaultConfig(cfg.APIKey)
		clientCfg.BaseURL = GrokBaseURL
		if cfg.BaseURL != "" {
			clientCfg.BaseURL = cfg.BaseURL
		}
	default:
		clientCfg = openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			clientCfg.BaseURL = cfg.BaseURL
		}
	}
	if cfg.Timeout > 0 {
		clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	provider := cfg.Flavor
	if provider == "" {
		provider = FlavorOpenAI
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		client:         openai.NewClientWithConfig(clientCfg),
		chatModel:      cfg.ChatModel,
		embeddingModel: openai.EmbeddingModel(cfg.EmbeddingModel),
		dimensions:     cfg.Dimensions,
		provider:       provider,
		logger:         logger,
	}
}

// CompleteChat implements domain.ChatProvider with a single user message.
func (c *Client) CompleteChat(ctx context.Context, prompt string) (domain.ChatCompletion, error) {
	if strings.TrimSpace(prompt) == "" {
		return domain.ChatCompletion{}, fmt.Errorf("prompt is blank: %w", domain.ErrInvalidInput)
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.chatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	duration := time.Since(start)

	if err != nil {
		metrics.RecordProviderCall(c.provider, c.chatModel, "chat", 0, err, "api_error")
		return domain.ChatCompletion{}, parseAPIError("chat", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		metrics.RecordProviderCall(c.provider, c.chatModel, "chat", 0, domain.ErrEmptyResponse, "empty_response")
		return domain.ChatCompletion{}, fmt.Errorf("%s chat: %w", c.provider, domain.ErrEmptyResponse)
	}

	metrics.RecordProviderCall(c.provider, c.chatModel, "chat", duration.Seconds(), nil, "")
	metrics.RecordTokens(c.provider, c.chatModel, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)

	return domain.ChatCompletion{
		Answer:           resp.Choices[0].Message.Content,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}

// GenerateEmbedding implements domain.EmbeddingProvider.
func (c *Client) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("embedding input is blank: %w", domain.ErrInvalidInput)
	}

	req := openai.EmbeddingRequest{
		Input:          []string{text},
		Model:          c.embeddingModel,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	}
	if c.dimensions > 0 {
		req.Dimensions = c.dimensions
	}

	model := string(c.embeddingModel)
	start := time.Now()
	resp, err := c.client.CreateEmbeddings(ctx, req)
	duration := time.Since(start)

	if err != nil {
		metrics.RecordProviderCall(c.provider, model, "embedding", 0, err, "api_error")
		return nil, parseAPIError("embedding", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		metrics.RecordProviderCall(c.provider, model, "embedding", 0, domain.ErrEmptyResponse, "empty_response")
		return nil, fmt.Errorf("%s embedding: %w", c.provider, domain.ErrEmptyResponse)
	}

	metrics.RecordProviderCall(c.provider, model, "embedding", duration.Seconds(), nil, "")
	metrics.RecordTokens(c.provider, model, resp.Usage.PromptTokens, 0)

	return resp.Data[0].Embedding, nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (c *Client) HealthCheck(ctx context.Context) error {
	if _, err := c.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// parseAPIError extracts a human-readable error from the API response.
// All errors are wrapped with domain.ErrProviderFailure; context errors stay visible to errors.Is.
func parseAPIError(op string, err error) error {
	wrap := domain.ErrProviderFailure

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail == "" {
			detail = string(reqErr.Body)
		}
		return fmt.Errorf("%s API error %d: %s: %w", op, reqErr.HTTPStatusCode, detail, wrap)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s API error %d: %s: %w", op, apiErr.HTTPStatusCode, apiErr.Message, wrap)
	}

	return fmt.Errorf("%s request failed: %w: %w", op, wrap, err)
}

// extractDetail extracts the "detail" field from a JSON error body.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
