package provider

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragworker/internal/domain"
	"github.com/kailas-cloud/ragworker/internal/transport/gemini"
	"github.com/kailas-cloud/ragworker/internal/transport/ollama"
	"github.com/kailas-cloud/ragworker/internal/transport/openai"
)

// Registry maps provider names to factories. Backends are built once per name
// and shared by chat and embedding resolution.
type Registry struct {
	factories map[string]Factory
	settings  map[string]Settings
	opts      Options
	policy    RetryPolicy

	mu       sync.Mutex
	backends map[string]Backend
}

// NewRegistry creates an empty registry over the configured provider settings.
func NewRegistry(settings map[string]Settings, opts Options, policy RetryPolicy) *Registry {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	normalized := make(map[string]Settings, len(settings))
	for name, s := range settings {
		normalized[strings.ToLower(name)] = s
	}
	return &Registry{
		factories: make(map[string]Factory),
		settings:  normalized,
		opts:      opts,
		policy:    policy,
		backends:  make(map[string]Backend),
	}
}

// NewDefault returns a registry with every built-in backend registered.
func NewDefault(settings map[string]Settings, opts Options, policy RetryPolicy) *Registry {
	r := NewRegistry(settings, opts, policy)
	r.Register(AzureOpenAI, openAIFactory(openai.FlavorAzure))
	r.Register(OpenAI, openAIFactory(openai.FlavorOpenAI))
	r.Register(Grok, openAIFactory(openai.FlavorGrok))
	r.Register(Gemini, geminiFactory)
	r.Register(Ollama, ollamaFactory)
	return r
}

// Register binds name to f. Names are case-insensitive.
func (r *Registry) Register(name string, f Factory) {
	r.factories[strings.ToLower(name)] = f
}

// Names lists registered backends.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Chat resolves a chat provider wrapped in the retry policy.
func (r *Registry) Chat(ctx context.Context, name string) (*RetryingChat, error) {
	b, key, err := r.resolve(ctx, name)
	if err != nil {
		return nil, err
	}
	return &RetryingChat{inner: b, name: key, policy: r.policy, logger: r.opts.Logger}, nil
}

// Embedding resolves an embedding provider wrapped in the retry policy.
func (r *Registry) Embedding(ctx context.Context, name string) (*RetryingEmbedding, error) {
	b, key, err := r.resolve(ctx, name)
	if err != nil {
		return nil, err
	}
	return &RetryingEmbedding{inner: b, name: key, policy: r.policy, logger: r.opts.Logger}, nil
}

// Backend resolves the raw backend without retry.
func (r *Registry) Backend(ctx context.Context, name string) (Backend, error) {
	b, _, err := r.resolve(ctx, name)
	return b, err
}

func (r *Registry) resolve(ctx context.Context, name string) (Backend, string, error) {
	key := strings.ToLower(strings.TrimSpace(name))

	factory, ok := r.factories[key]
	if !ok {
		return nil, key, fmt.Errorf("provider %q (known: %s): %w",
			name, strings.Join(r.Names(), ", "), domain.ErrUnsupportedProvider)
	}
	settings, ok := r.settings[key]
	if !ok {
		return nil, key, fmt.Errorf("provider %q is not configured: %w", name, domain.ErrUnsupportedProvider)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.backends[key]; ok {
		return b, key, nil
	}
	b, err := factory(ctx, settings, r.opts)
	if err != nil {
		return nil, key, fmt.Errorf("build provider %q: %w", name, err)
	}
	r.backends[key] = b
	return b, key, nil
}

func openAIFactory(flavor string) Factory {
	return func(_ context.Context, s Settings, opts Options) (Backend, error) {
		if flavor == openai.FlavorAzure && s.BaseURL == "" {
			return nil, fmt.Errorf("azure openai requires base_url: %w", domain.ErrUnsupportedProvider)
		}
		return openai.NewClient(&openai.Config{
			Flavor:         flavor,
			APIKey:         s.APIKey,
			BaseURL:        s.BaseURL,
			APIVersion:     s.APIVersion,
			ChatModel:      s.ChatModel,
			EmbeddingModel: s.EmbeddingModel,
			Dimensions:     opts.Dimensions,
			Timeout:        s.Timeout,
			Logger:         opts.Logger.Named(flavor),
		}), nil
	}
}

func geminiFactory(ctx context.Context, s Settings, opts Options) (Backend, error) {
	if s.APIKey == "" {
		return nil, fmt.Errorf("gemini requires api_key: %w", domain.ErrUnsupportedProvider)
	}
	c, err := gemini.NewClient(ctx, &gemini.Config{
		APIKey:         s.APIKey,
		BaseURL:        s.BaseURL,
		ChatModel:      s.ChatModel,
		EmbeddingModel: s.EmbeddingModel,
		Dimensions:     opts.Dimensions,
		Timeout:        s.Timeout,
		Logger:         opts.Logger.Named(Gemini),
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func ollamaFactory(_ context.Context, s Settings, opts Options) (Backend, error) {
	c, err := ollama.NewClient(&ollama.Config{
		BaseURL:        s.BaseURL,
		ChatModel:      s.ChatModel,
		EmbeddingModel: s.EmbeddingModel,
		Timeout:        s.Timeout,
		Logger:         opts.Logger.Named(Ollama),
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}
