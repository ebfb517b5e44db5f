// Package redis stores document chunks as Redis hashes indexed by RediSearch.
package redis

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kailas-cloud/ragworker/internal/db"
	dbredis "github.com/kailas-cloud/ragworker/internal/db/redis"
	"github.com/kailas-cloud/ragworker/internal/domain"
)

const (
	// IndexName is the FT index over chunk hashes.
	IndexName = domain.KeyPrefix + "chunks"
	// ChunkPrefix is the hash key prefix for chunks.
	ChunkPrefix = domain.KeyPrefix + "chunk:"

	fieldID         = "id"
	fieldProjectID  = "project_id"
	fieldDocumentID = "document_id"
	fieldChunkText  = "chunk_text"
	fieldChunkIndex = "chunk_index"
	fieldTokenCount = "token_count"
	fieldCreatedAt  = "created_at"
	fieldVector     = "vector"
)

var returnFields = []string{
	fieldID, fieldProjectID, fieldDocumentID, fieldChunkText,
	fieldChunkIndex, fieldTokenCount, fieldCreatedAt,
}

// store is the consumer interface for chunk storage (ISP).
type store interface {
	Ping(ctx context.Context) error
	HSet(ctx context.Context, key string, fields map[string]string) error
	Exists(ctx context.Context, key string) (bool, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// HNSWConfig tunes the vector index.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// DefaultHNSW returns the default HNSW parameters.
func DefaultHNSW() HNSWConfig {
	return HNSWConfig{M: 16, EFConstruct: 200}
}

var _ domain.VectorStore = (*Store)(nil)

// Store implements domain.VectorStore over RediSearch.
type Store struct {
	store store
	dim   int
	hnsw  HNSWConfig
}

// New creates a Redis vector store for vectors of dimension dim.
func New(s store, dim int, hnsw HNSWConfig) *Store {
	return &Store{store: s, dim: dim, hnsw: hnsw}
}

// EnsureSchema creates the chunk index; an existing index is kept.
func (s *Store) EnsureSchema(ctx context.Context) error {
	def, err := s.indexDefinition()
	if err != nil {
		return err
	}
	exists, err := s.store.IndexExists(ctx, IndexName)
	if err != nil {
		return fmt.Errorf("check index %s: %w", IndexName, err)
	}
	if exists {
		return nil
	}
	if err := s.store.CreateIndex(ctx, def); err != nil {
		if errors.Is(err, db.ErrIndexExists) {
			return nil
		}
		return fmt.Errorf("create index %s: %w", IndexName, err)
	}
	return nil
}

func (s *Store) indexDefinition() (*db.IndexDefinition, error) {
	def, err := db.NewIndex(IndexName).
		Prefix(ChunkPrefix).
		Tag(fieldProjectID).
		Tag(fieldDocumentID).
		Numeric(fieldChunkIndex).
		VectorHNSW(fieldVector, s.dim, db.DistanceCosine, s.hnsw.M, s.hnsw.EFConstruct).
		Build()
	if err != nil {
		return nil, fmt.Errorf("build index definition: %w", err)
	}
	return def, nil
}

// Store writes the chunk hash. An existing chunk with the same id is never
// overwritten; the write fails with db.ErrKeyExists instead.
func (s *Store) Store(ctx context.Context, chunk domain.DocumentChunk) error {
	if err := domain.CheckDimension(chunk.Embedding, s.dim); err != nil {
		return fmt.Errorf("store chunk %s: %w", chunk.ID, err)
	}

	key := chunkKey(chunk.ID)
	taken, err := s.store.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("exists %s: %w", key, err)
	}
	if taken {
		return fmt.Errorf("store chunk %s: %w", chunk.ID, db.ErrKeyExists)
	}
	if err := s.store.HSet(ctx, key, chunkFields(chunk)); err != nil {
		return fmt.Errorf("hset %s: %w", key, err)
	}
	return nil
}

// Search runs a KNN query pre-filtered by project.
func (s *Store) Search(
	ctx context.Context, projectID uuid.UUID, embedding []float32, topK int,
) ([]domain.ScoredChunk, error) {
	if err := domain.CheckDimension(embedding, s.dim); err != nil {
		return nil, fmt.Errorf("search project %s: %w", projectID, err)
	}
	if topK <= 0 {
		return nil, nil
	}

	sr, err := s.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    IndexName,
		VectorField:  fieldVector,
		Tags:         []db.TagFilter{{Field: fieldProjectID, Value: projectID.String()}},
		Vector:       embedding,
		K:            topK,
		ReturnFields: returnFields,
	})
	if err != nil {
		return nil, fmt.Errorf("search knn %s: %w", IndexName, err)
	}

	return parseHits(sr), nil
}

// Ping checks Redis connectivity and that the chunk index is present.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return err
	}
	exists, err := s.store.IndexExists(ctx, IndexName)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%s: %w", IndexName, db.ErrIndexNotFound)
	}
	return nil
}

func chunkKey(id uuid.UUID) string {
	return ChunkPrefix + id.String()
}

func chunkFields(c domain.DocumentChunk) map[string]string {
	return map[string]string{
		fieldID:         c.ID.String(),
		fieldProjectID:  c.ProjectID.String(),
		fieldDocumentID: c.DocumentID.String(),
		fieldChunkText:  c.ChunkText,
		fieldChunkIndex: strconv.Itoa(c.ChunkIndex),
		fieldTokenCount: strconv.Itoa(c.TokenCount),
		fieldCreatedAt:  strconv.FormatInt(c.CreatedAt.UTC().UnixMilli(), 10),
		fieldVector:     dbredis.VectorToBytes(c.Embedding),
	}
}

// parseHits keeps the store's ascending-distance order. Entries with a malformed id are skipped.
func parseHits(sr *db.SearchResult) []domain.ScoredChunk {
	if sr == nil || len(sr.Entries) == 0 {
		return nil
	}

	hits := make([]domain.ScoredChunk, 0, len(sr.Entries))
	for _, entry := range sr.Entries {
		c, ok := parseChunk(entry)
		if !ok {
			continue
		}
		hits = append(hits, domain.ScoredChunk{Chunk: c, Distance: entry.Score})
	}
	return hits
}

func parseChunk(entry db.SearchEntry) (domain.DocumentChunk, bool) {
	idStr := entry.Fields[fieldID]
	if idStr == "" {
		idStr = strings.TrimPrefix(entry.Key, ChunkPrefix)
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return domain.DocumentChunk{}, false
	}

	c := domain.DocumentChunk{ID: id, ChunkText: entry.Fields[fieldChunkText]}
	c.ProjectID, _ = uuid.Parse(entry.Fields[fieldProjectID])
	c.DocumentID, _ = uuid.Parse(entry.Fields[fieldDocumentID])
	c.ChunkIndex, _ = strconv.Atoi(entry.Fields[fieldChunkIndex])
	c.TokenCount, _ = strconv.Atoi(entry.Fields[fieldTokenCount])
	if ms, err := strconv.ParseInt(entry.Fields[fieldCreatedAt], 10, 64); err == nil {
		c.CreatedAt = time.UnixMilli(ms).UTC()
	}
	if raw, ok := entry.Fields[fieldVector]; ok {
		c.Embedding = bytesToVector(raw)
	}
	return c, true
}

// bytesToVector deserializes a FLOAT32 blob.
func bytesToVector(s string) []float32 {
	b := []byte(s)
	if len(b)%4 != 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
