// Package provider resolves configured AI provider names to chat and embedding backends.
package provider

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragworker/internal/domain"
)

// Backend names.
const (
	AzureOpenAI = "azureopenai"
	OpenAI      = "openai"
	Grok        = "grok"
	Gemini      = "gemini"
	Ollama      = "ollama"
)

// Backend serves both chat and embeddings for one provider.
type Backend interface {
	domain.ChatProvider
	domain.EmbeddingProvider
	domain.HealthChecker
}

// Settings configures one named provider.
type Settings struct {
	BaseURL        string
	APIKey         string
	APIVersion     string
	ChatModel      string
	EmbeddingModel string
	Timeout        time.Duration
}

// Options are shared by every backend.
type Options struct {
	// Dimensions requests a fixed embedding size where the backend supports it.
	Dimensions int
	Logger     *zap.Logger
}

// Factory builds a backend. It must not perform network calls.
type Factory func(ctx context.Context, s Settings, opts Options) (Backend, error)
