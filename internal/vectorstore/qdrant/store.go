// Package qdrant stores document chunks as points in a Qdrant collection.
package qdrant

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/kailas-cloud/ragworker/internal/db"
	"github.com/kailas-cloud/ragworker/internal/domain"
)

// DefaultCollection is the collection holding chunk points.
const DefaultCollection = "document_chunks"

const (
	payloadProjectID  = "project_id"
	payloadDocumentID = "document_id"
	payloadChunkText  = "chunk_text"
	payloadChunkIndex = "chunk_index"
	payloadTokenCount = "token_count"
	payloadCreatedAt  = "created_at"
)

// client is the subset of *qdrant.Client the store uses.
type client interface {
	CollectionExists(ctx context.Context, name string) (bool, error)
	CreateCollection(ctx context.Context, req *qdrant.CreateCollection) error
	CreateFieldIndex(ctx context.Context, req *qdrant.CreateFieldIndexCollection) (*qdrant.UpdateResult, error)
	Upsert(ctx context.Context, req *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Query(ctx context.Context, req *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
	HealthCheck(ctx context.Context) (*qdrant.HealthCheckReply, error)
}

// Config holds Qdrant gRPC connection parameters.
type Config struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
}

// Dial creates a gRPC client.
func Dial(cfg Config) (*qdrant.Client, error) {
	c, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant client: %w", err)
	}
	return c, nil
}

var _ domain.VectorStore = (*Store)(nil)

// Store implements domain.VectorStore over a cosine collection.
type Store struct {
	client     client
	collection string
	dim        int
}

// New creates a Qdrant vector store.
func New(c client, collection string, dim int) *Store {
	if collection == "" {
		collection = DefaultCollection
	}
	return &Store{client: c, collection: collection, dim: dim}
}

// EnsureSchema creates the collection and the project_id keyword index if missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if s.dim <= 0 {
		return fmt.Errorf("vector dimension must be positive, got %d: %w", s.dim, domain.ErrInvalidInput)
	}

	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("check collection %s: %w", s.collection, err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(s.dim),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("create collection %s: %w", s.collection, err)
	}

	_, err = s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: s.collection,
		FieldName:      payloadProjectID,
		FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("create project index on %s: %w", s.collection, err)
	}
	return nil
}

// Store upserts one point keyed by the chunk id. Qdrant has no insert-only
// write, so a point that already has this id is overwritten. Ingestion assigns
// a fresh id to every chunk.
func (s *Store) Store(ctx context.Context, c domain.DocumentChunk) error {
	if err := domain.CheckDimension(c.Embedding, s.dim); err != nil {
		return fmt.Errorf("store chunk %s: %w", c.ID, err)
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Wait:           qdrant.PtrOf(true),
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewIDUUID(c.ID.String()),
			Vectors: qdrant.NewVectors(c.Embedding...),
			Payload: qdrant.NewValueMap(map[string]any{
				payloadProjectID:  c.ProjectID.String(),
				payloadDocumentID: c.DocumentID.String(),
				payloadChunkText:  c.ChunkText,
				payloadChunkIndex: int64(c.ChunkIndex),
				payloadTokenCount: int64(c.TokenCount),
				payloadCreatedAt:  c.CreatedAt.UTC().Format(time.RFC3339Nano),
			}),
		}},
	})
	if err != nil {
		return fmt.Errorf("chunk %s: %w", c.ID, &db.Error{Op: db.OpUpsert, Err: err})
	}
	return nil
}

// Search queries the collection filtered by project. Qdrant reports cosine similarity,
// converted here to distance.
func (s *Store) Search(
	ctx context.Context, projectID uuid.UUID, embedding []float32, topK int,
) ([]domain.ScoredChunk, error) {
	if err := domain.CheckDimension(embedding, s.dim); err != nil {
		return nil, fmt.Errorf("search project %s: %w", projectID, err)
	}
	if topK <= 0 {
		return nil, nil
	}

	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(embedding...),
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch(payloadProjectID, projectID.String())},
		},
		Limit:       qdrant.PtrOf(uint64(topK)),
		WithPayload: qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("collection %s: %w", s.collection, &db.Error{Op: db.OpQuery, Err: err})
	}

	hits := make([]domain.ScoredChunk, 0, len(points))
	for _, p := range points {
		c, ok := parsePoint(p)
		if !ok {
			continue
		}
		hits = append(hits, domain.ScoredChunk{Chunk: c, Distance: 1 - float64(p.GetScore())})
	}
	return hits, nil
}

// Ping calls the gRPC health check.
func (s *Store) Ping(ctx context.Context) error {
	if _, err := s.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("qdrant health: %w", err)
	}
	return nil
}

func parsePoint(p *qdrant.ScoredPoint) (domain.DocumentChunk, bool) {
	id, err := uuid.Parse(p.GetId().GetUuid())
	if err != nil {
		return domain.DocumentChunk{}, false
	}

	payload := p.GetPayload()
	c := domain.DocumentChunk{
		ID:         id,
		ChunkText:  payload[payloadChunkText].GetStringValue(),
		ChunkIndex: int(payload[payloadChunkIndex].GetIntegerValue()),
		TokenCount: int(payload[payloadTokenCount].GetIntegerValue()),
	}
	c.ProjectID, _ = uuid.Parse(payload[payloadProjectID].GetStringValue())
	c.DocumentID, _ = uuid.Parse(payload[payloadDocumentID].GetStringValue())
	if ts, err := time.Parse(time.RFC3339Nano, payload[payloadCreatedAt].GetStringValue()); err == nil {
		c.CreatedAt = ts
	}
	return c, true
}
