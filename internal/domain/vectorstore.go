package domain

import (
	"context"

	"github.com/google/uuid"
)

// VectorStore persists chunks and answers cosine top-K queries scoped to a project.
type VectorStore interface {
	// Store inserts one chunk. Chunks are never updated.
	Store(ctx context.Context, chunk DocumentChunk) error
	// Search returns up to topK chunks of the project ordered by ascending cosine distance.
	Search(ctx context.Context, projectID uuid.UUID, embedding []float32, topK int) ([]ScoredChunk, error)
	// EnsureSchema creates indexes, tables or collections if missing.
	EnsureSchema(ctx context.Context) error
	Ping(ctx context.Context) error
}

// ChunkIDs returns the chunk ids of hits in order.
func ChunkIDs(hits []ScoredChunk) []uuid.UUID {
	ids := make([]uuid.UUID, len(hits))
	for i := range hits {
		ids[i] = hits[i].Chunk.ID
	}
	return ids
}
