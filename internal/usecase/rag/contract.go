package rag

import (
	"context"

	"github.com/google/uuid"

	"github.com/kailas-cloud/ragworker/internal/domain"
)

// Searcher finds the chunks closest to a query vector within a project.
type Searcher interface {
	Search(ctx context.Context, projectID uuid.UUID, embedding []float32, topK int) ([]domain.ScoredChunk, error)
}
