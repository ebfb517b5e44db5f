package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/ragworker/internal/chunking"
	"github.com/kailas-cloud/ragworker/internal/domain"
	"github.com/kailas-cloud/ragworker/internal/domain/event"
	"github.com/kailas-cloud/ragworker/internal/logger"
	"github.com/kailas-cloud/ragworker/internal/metrics"
)

// Service runs extract → chunk → embed → store for uploaded documents.
type Service struct {
	extractor   Extractor
	chunker     *chunking.Chunker
	embedder    domain.EmbeddingProvider
	store       ChunkStore
	dim         int
	concurrency int
	now         func() time.Time
}

// New creates an ingestion service.
func New(extractor Extractor, chunker *chunking.Chunker, embedder domain.EmbeddingProvider, store ChunkStore) *Service {
	return &Service{
		extractor:   extractor,
		chunker:     chunker,
		embedder:    embedder,
		store:       store,
		concurrency: 1,
		now:         time.Now,
	}
}

// WithDimension enforces the configured embedding dimension before storage.
func (s *Service) WithDimension(dim int) *Service {
	s.dim = dim
	return s
}

// WithConcurrency embeds up to n chunks in parallel. Storage order is unchanged.
func (s *Service) WithConcurrency(n int) *Service {
	if n > 0 {
		s.concurrency = n
	}
	return s
}

// Ingest processes one uploaded document. Blank documents are skipped without error.
// The first failing chunk aborts the document; chunks stored before it remain.
func (s *Service) Ingest(ctx context.Context, ev event.DocumentUploaded) error {
	if ev.ProjectID == uuid.Nil || ev.DocumentID == uuid.Nil {
		return fmt.Errorf("document event without project or document id: %w", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(ev.FilePath) == "" {
		return fmt.Errorf("document %s has no file path: %w", ev.DocumentID, domain.ErrInvalidInput)
	}

	log := logger.FromContext(ctx).With(
		zap.String("project_id", ev.ProjectID.String()),
		zap.String("document_id", ev.DocumentID.String()),
	)

	text, err := s.extractor.Extract(ctx, ev.FilePath)
	if err != nil {
		return fmt.Errorf("extract %s: %w", ev.FilePath, err)
	}
	if strings.TrimSpace(text) == "" {
		log.Warn("Document has no extractable text, skipping", zap.String("file_path", ev.FilePath))
		return nil
	}

	chunks := s.chunker.Split(text)
	if len(chunks) == 0 {
		log.Warn("Document produced no chunks, skipping")
		return nil
	}

	var stored int
	if s.concurrency > 1 {
		stored, err = s.ingestParallel(ctx, ev, chunks)
	} else {
		stored, err = s.ingestSequential(ctx, ev, chunks)
	}
	if err != nil {
		log.Error("Ingestion aborted",
			zap.Int("stored_chunks", stored),
			zap.Int("total_chunks", len(chunks)),
			zap.Error(err),
		)
		return err
	}

	log.Info("Document ingested", zap.Int("chunks", stored))
	return nil
}

func (s *Service) ingestSequential(ctx context.Context, ev event.DocumentUploaded, chunks []chunking.Chunk) (int, error) {
	for i, c := range chunks {
		vec, err := s.embed(ctx, c)
		if err != nil {
			return i, err
		}
		if err := s.storeChunk(ctx, ev, c, vec); err != nil {
			return i, err
		}
	}
	return len(chunks), nil
}

func (s *Service) ingestParallel(ctx context.Context, ev event.DocumentUploaded, chunks []chunking.Chunk) (int, error) {
	vectors := make([][]float32, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i := range chunks {
		g.Go(func() error {
			vec, err := s.embed(gctx, chunks[i])
			if err != nil {
				return err
			}
			vectors[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	for i, c := range chunks {
		if err := s.storeChunk(ctx, ev, c, vectors[i]); err != nil {
			return i, err
		}
	}
	return len(chunks), nil
}

func (s *Service) embed(ctx context.Context, c chunking.Chunk) ([]float32, error) {
	raw, err := s.embedder.GenerateEmbedding(ctx, c.Text)
	if err != nil {
		return nil, fmt.Errorf("embed chunk %d: %w", c.Index, err)
	}
	vec, err := domain.Normalize(raw)
	if err != nil {
		return nil, fmt.Errorf("normalize chunk %d: %w", c.Index, err)
	}
	if err := domain.CheckDimension(vec, s.dim); err != nil {
		return nil, fmt.Errorf("chunk %d embedding: %w", c.Index, err)
	}
	return vec, nil
}

func (s *Service) storeChunk(ctx context.Context, ev event.DocumentUploaded, c chunking.Chunk, vec []float32) error {
	chunk := domain.DocumentChunk{
		ID:         uuid.New(),
		ProjectID:  ev.ProjectID,
		DocumentID: ev.DocumentID,
		ChunkText:  c.Text,
		Embedding:  vec,
		ChunkIndex: c.Index,
		TokenCount: c.TokenCount,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.store.Store(ctx, chunk); err != nil {
		return fmt.Errorf("store chunk %d: %w", c.Index, err)
	}
	metrics.ChunksStoredTotal.Inc()
	return nil
}
