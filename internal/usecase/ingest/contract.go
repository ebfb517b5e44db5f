package ingest

import (
	"context"

	"github.com/kailas-cloud/ragworker/internal/domain"
)

// Extractor turns a stored file into plain text.
type Extractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// ChunkStore persists embedded chunks.
type ChunkStore interface {
	Store(ctx context.Context, chunk domain.DocumentChunk) error
}
