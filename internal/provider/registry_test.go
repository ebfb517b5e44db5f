package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/kailas-cloud/ragworker/internal/domain"
)

// --- mock backend ---

type mockBackend struct {
	chatFn   func(ctx context.Context, prompt string) (domain.ChatCompletion, error)
	embedFn  func(ctx context.Context, text string) ([]float32, error)
	healthFn func(ctx context.Context) error

	chatCalls  atomic.Int32
	embedCalls atomic.Int32
}

func (m *mockBackend) CompleteChat(ctx context.Context, prompt string) (domain.ChatCompletion, error) {
	m.chatCalls.Add(1)
	if m.chatFn != nil {
		return m.chatFn(ctx, prompt)
	}
	return domain.ChatCompletion{Answer: "ok"}, nil
}

func (m *mockBackend) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	m.embedCalls.Add(1)
	if m.embedFn != nil {
		return m.embedFn(ctx, text)
	}
	return []float32{1, 0}, nil
}

func (m *mockBackend) HealthCheck(ctx context.Context) error {
	if m.healthFn != nil {
		return m.healthFn(ctx)
	}
	return nil
}

func TestRegistry_UnknownProvider(t *testing.T) {
	var built atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Error("no network call expected")
	}))
	defer server.Close()

	r := NewDefault(map[string]Settings{
		"openai": {BaseURL: server.URL, APIKey: "k"},
	}, Options{}, DefaultRetryPolicy())
	r.Register("counting", func(context.Context, Settings, Options) (Backend, error) {
		built.Add(1)
		return &mockBackend{}, nil
	})

	for _, name := range []string{"claude", "", "azure"} {
		if _, err := r.Chat(context.Background(), name); !errors.Is(err, domain.ErrUnsupportedProvider) {
			t.Errorf("Chat(%q): expected ErrUnsupportedProvider, got %v", name, err)
		}
		if _, err := r.Embedding(context.Background(), name); !errors.Is(err, domain.ErrUnsupportedProvider) {
			t.Errorf("Embedding(%q): expected ErrUnsupportedProvider, got %v", name, err)
		}
	}
	if built.Load() != 0 {
		t.Errorf("expected no backend to be built, got %d", built.Load())
	}
}

func TestRegistry_RegisteredButNotConfigured(t *testing.T) {
	r := NewDefault(nil, Options{}, DefaultRetryPolicy())

	_, err := r.Chat(context.Background(), Gemini)
	if !errors.Is(err, domain.ErrUnsupportedProvider) {
		t.Fatalf("expected ErrUnsupportedProvider, got %v", err)
	}
	if domain.KindOf(err) != domain.KindFatal {
		t.Errorf("expected fatal kind, got %s", domain.KindOf(err))
	}
}

func TestRegistry_ResolvesIndependentlyAndSharesBackend(t *testing.T) {
	var built atomic.Int32
	backend := &mockBackend{}

	r := NewRegistry(map[string]Settings{"Mock": {}, "other": {}}, Options{}, DefaultRetryPolicy())
	r.Register("mock", func(context.Context, Settings, Options) (Backend, error) {
		built.Add(1)
		return backend, nil
	})
	r.Register("other", func(context.Context, Settings, Options) (Backend, error) {
		return &mockBackend{}, nil
	})

	chat, err := r.Chat(context.Background(), "MOCK")
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	emb, err := r.Embedding(context.Background(), "mock")
	if err != nil {
		t.Fatalf("Embedding: %v", err)
	}
	if _, err := r.Embedding(context.Background(), "other"); err != nil {
		t.Fatalf("Embedding(other): %v", err)
	}

	if chat.Name() != "mock" || emb.Name() != "mock" {
		t.Errorf("unexpected names %q %q", chat.Name(), emb.Name())
	}
	if built.Load() != 1 {
		t.Errorf("expected backend built once, got %d", built.Load())
	}
}

func TestRegistry_FactoryError(t *testing.T) {
	r := NewDefault(map[string]Settings{"azureopenai": {APIKey: "k"}}, Options{}, DefaultRetryPolicy())
	_, err := r.Chat(context.Background(), AzureOpenAI)
	if !errors.Is(err, domain.ErrUnsupportedProvider) {
		t.Fatalf("expected ErrUnsupportedProvider for missing base url, got %v", err)
	}
}

func TestRegistry_DefaultBackends(t *testing.T) {
	r := NewDefault(map[string]Settings{
		AzureOpenAI: {BaseURL: "https://example.openai.azure.com", APIKey: "k", ChatModel: "gpt-4o"},
		OpenAI:      {APIKey: "k"},
		Grok:        {APIKey: "k"},
		Gemini:      {APIKey: "k"},
		Ollama:      {},
	}, Options{Dimensions: 8}, DefaultRetryPolicy())

	want := []string{AzureOpenAI, Gemini, Grok, Ollama, OpenAI}
	got := r.Names()
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("expected %v, got %v", want, got)
		}
		if _, err := r.Backend(context.Background(), want[i]); err != nil {
			t.Errorf("Backend(%s): %v", want[i], err)
		}
	}
}
