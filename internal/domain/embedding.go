package domain

import (
	"context"
	"fmt"
	"math"
)

// ChatProvider turns a prompt into an answer.
type ChatProvider interface {
	CompleteChat(ctx context.Context, prompt string) (ChatCompletion, error)
}

// EmbeddingProvider vectorizes text.
type EmbeddingProvider interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// HealthChecker verifies provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// ChatCompletion is the result of a single chat call.
// Zero token counts mean the backend did not report usage.
type ChatCompletion struct {
	Answer           string
	PromptTokens     int
	CompletionTokens int
}

// TotalTokens returns prompt plus completion tokens.
func (c ChatCompletion) TotalTokens() int {
	return c.PromptTokens + c.CompletionTokens
}

// Normalize returns a unit-length copy of v.
func Normalize(v []float32) ([]float32, error) {
	if len(v) == 0 {
		return nil, fmt.Errorf("normalize empty vector: %w", ErrZeroVector)
	}

	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	magnitude := math.Sqrt(sum)
	if magnitude == 0 || math.IsNaN(magnitude) || math.IsInf(magnitude, 0) {
		return nil, fmt.Errorf("normalize vector of length %d: %w", len(v), ErrZeroVector)
	}

	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / magnitude)
	}
	return out, nil
}

// CheckDimension fails when v does not have exactly dim components.
// dim <= 0 disables the check.
func CheckDimension(v []float32, dim int) error {
	if dim > 0 && len(v) != dim {
		return fmt.Errorf("got %d, want %d: %w", len(v), dim, ErrVectorDimMismatch)
	}
	return nil
}

// CosineDistance returns 1 - cos(a, b). Both vectors must have the same length.
func CosineDistance(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
