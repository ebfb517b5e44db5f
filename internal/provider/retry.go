package provider

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragworker/internal/domain"
	"github.com/kailas-cloud/ragworker/internal/metrics"
)

const (
	DefaultMaxAttempts = 3
	DefaultRetryDelay  = 500 * time.Millisecond
)

// RetryPolicy bounds attempts per provider call with a fixed delay between them.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

// DefaultRetryPolicy is 3 attempts, 500ms apart.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: DefaultMaxAttempts, Delay: DefaultRetryDelay}
}

// withRetry runs fn until it succeeds, fails with a non-retryable error or runs out of attempts.
// The last error is returned unmodified.
func withRetry[T any](
	ctx context.Context, p RetryPolicy, logger *zap.Logger, provider, op string,
	fn func(context.Context) (T, error),
) (T, error) {
	attempts := max(p.MaxAttempts, 1)

	var b backoff.BackOff = backoff.NewConstantBackOff(p.Delay)
	b = backoff.WithMaxRetries(b, uint64(attempts-1)) //nolint:gosec // attempts >= 1
	b = backoff.WithContext(b, ctx)

	attempt := 0
	operation := func() (T, error) {
		attempt++
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		// Only the caller's context stops retries; a per-attempt client timeout does not.
		if ctx.Err() != nil || !domain.Retryable(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}
	notify := func(err error, wait time.Duration) {
		metrics.ProviderRetriesTotal.WithLabelValues(provider, op).Inc()
		logger.Warn("provider call failed, retrying",
			zap.String("provider", provider),
			zap.String("operation", op),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", attempts),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}

	return backoff.RetryNotifyWithData(operation, b, notify)
}

// RetryingChat applies the retry policy to a chat backend.
type RetryingChat struct {
	inner  domain.ChatProvider
	name   string
	policy RetryPolicy
	logger *zap.Logger
}

// NewRetryingChat wraps inner.
func NewRetryingChat(inner domain.ChatProvider, name string, policy RetryPolicy, logger *zap.Logger) *RetryingChat {
	return &RetryingChat{inner: inner, name: name, policy: policy, logger: logger}
}

// Name returns the provider name.
func (r *RetryingChat) Name() string { return r.name }

// CompleteChat implements domain.ChatProvider.
func (r *RetryingChat) CompleteChat(ctx context.Context, prompt string) (domain.ChatCompletion, error) {
	return withRetry(ctx, r.policy, r.logger, r.name, "chat", func(ctx context.Context) (domain.ChatCompletion, error) {
		return r.inner.CompleteChat(ctx, prompt)
	})
}

// RetryingEmbedding applies the retry policy to an embedding backend.
type RetryingEmbedding struct {
	inner  domain.EmbeddingProvider
	name   string
	policy RetryPolicy
	logger *zap.Logger
}

// NewRetryingEmbedding wraps inner.
func NewRetryingEmbedding(
	inner domain.EmbeddingProvider, name string, policy RetryPolicy, logger *zap.Logger,
) *RetryingEmbedding {
	return &RetryingEmbedding{inner: inner, name: name, policy: policy, logger: logger}
}

// Name returns the provider name.
func (r *RetryingEmbedding) Name() string { return r.name }

// GenerateEmbedding implements domain.EmbeddingProvider.
func (r *RetryingEmbedding) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	return withRetry(ctx, r.policy, r.logger, r.name, "embedding", func(ctx context.Context) ([]float32, error) {
		return r.inner.GenerateEmbedding(ctx, text)
	})
}

// HealthCheck delegates when the backend supports it.
func (r *RetryingEmbedding) HealthCheck(ctx context.Context) error {
	if hc, ok := r.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}
