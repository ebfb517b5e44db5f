// Package memory is an in-process vector store using brute-force cosine search.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/kailas-cloud/ragworker/internal/domain"
)

var _ domain.VectorStore = (*Store)(nil)

// Store keeps chunks in memory. Safe for concurrent use.
type Store struct {
	dim int

	mu     sync.RWMutex
	chunks []domain.DocumentChunk
}

// New creates an empty store. dim <= 0 accepts any dimension.
func New(dim int) *Store {
	return &Store{dim: dim}
}

// Store appends a copy of the chunk.
func (s *Store) Store(ctx context.Context, chunk domain.DocumentChunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := domain.CheckDimension(chunk.Embedding, s.dim); err != nil {
		return fmt.Errorf("store chunk %s: %w", chunk.ID, err)
	}

	chunk.Embedding = append([]float32(nil), chunk.Embedding...)

	s.mu.Lock()
	s.chunks = append(s.chunks, chunk)
	s.mu.Unlock()
	return nil
}

// Search scans every chunk of the project.
func (s *Store) Search(
	ctx context.Context, projectID uuid.UUID, embedding []float32, topK int,
) ([]domain.ScoredChunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := domain.CheckDimension(embedding, s.dim); err != nil {
		return nil, fmt.Errorf("search project %s: %w", projectID, err)
	}
	if topK <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	hits := make([]domain.ScoredChunk, 0)
	for _, c := range s.chunks {
		if c.ProjectID != projectID || len(c.Embedding) != len(embedding) {
			continue
		}
		hits = append(hits, domain.ScoredChunk{Chunk: c, Distance: domain.CosineDistance(embedding, c.Embedding)})
	}
	s.mu.RUnlock()

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// EnsureSchema is a no-op.
func (s *Store) EnsureSchema(context.Context) error { return nil }

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// Len returns the number of stored chunks.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}
