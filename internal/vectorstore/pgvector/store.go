// Package pgvector stores document chunks in Postgres with the pgvector extension.
package pgvector

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/kailas-cloud/ragworker/internal/db"
	"github.com/kailas-cloud/ragworker/internal/db/postgres"
	"github.com/kailas-cloud/ragworker/internal/domain"
)

// maxIndexedDim is the largest vector dimension an HNSW index over vector(n) accepts.
const maxIndexedDim = 2000

const insertChunkSQL = `INSERT INTO document_chunks
	(id, project_id, document_id, chunk_text, embedding, chunk_index, token_count, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

const searchChunksSQL = `SELECT id, project_id, document_id, chunk_text, chunk_index, token_count, created_at,
	embedding <=> $2 AS distance
	FROM document_chunks
	WHERE project_id = $1
	ORDER BY embedding <=> $2
	LIMIT $3`

var _ domain.VectorStore = (*Store)(nil)

// Store implements domain.VectorStore over a document_chunks table.
type Store struct {
	q   postgres.Querier
	dim int
}

// New creates a pgvector store for vectors of dimension dim.
func New(q postgres.Querier, dim int) *Store {
	return &Store{q: q, dim: dim}
}

// SchemaStatements returns the DDL for the chunk table and its indexes.
func SchemaStatements(dim int) []string {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS document_chunks (
	id uuid PRIMARY KEY,
	project_id uuid NOT NULL,
	document_id uuid NOT NULL,
	chunk_text text NOT NULL,
	embedding vector(%d) NOT NULL,
	chunk_index integer NOT NULL,
	token_count integer NOT NULL,
	created_at timestamptz NOT NULL
)`, dim),
		`CREATE INDEX IF NOT EXISTS ix_document_chunks_project_id ON document_chunks (project_id)`,
		`CREATE INDEX IF NOT EXISTS ix_document_chunks_document_id ON document_chunks (document_id)`,
	}
	if dim <= maxIndexedDim {
		stmts = append(stmts,
			`CREATE INDEX IF NOT EXISTS ix_document_chunks_embedding ON document_chunks USING hnsw (embedding vector_cosine_ops)`)
	}
	return stmts
}

// EnsureSchema creates the extension, table and indexes if missing.
// Dimensions above the HNSW limit fall back to exact scans.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if s.dim <= 0 {
		return fmt.Errorf("vector dimension must be positive, got %d: %w", s.dim, domain.ErrInvalidInput)
	}
	return postgres.Migrate(ctx, s.q, SchemaStatements(s.dim)...)
}

// Store inserts one row. A duplicate id fails on the primary key.
func (s *Store) Store(ctx context.Context, c domain.DocumentChunk) error {
	if err := domain.CheckDimension(c.Embedding, s.dim); err != nil {
		return fmt.Errorf("store chunk %s: %w", c.ID, err)
	}

	_, err := s.q.Exec(ctx, insertChunkSQL,
		c.ID, c.ProjectID, c.DocumentID, c.ChunkText,
		pgvector.NewVector(c.Embedding), c.ChunkIndex, c.TokenCount, c.CreatedAt.UTC(),
	)
	if err != nil {
		return &db.Error{Op: db.OpInsert, Err: fmt.Errorf("chunk %s: %w", c.ID, err)}
	}
	return nil
}

// Search orders the project's chunks by cosine distance.
func (s *Store) Search(
	ctx context.Context, projectID uuid.UUID, embedding []float32, topK int,
) ([]domain.ScoredChunk, error) {
	if err := domain.CheckDimension(embedding, s.dim); err != nil {
		return nil, fmt.Errorf("search project %s: %w", projectID, err)
	}
	if topK <= 0 {
		return nil, nil
	}

	rows, err := s.q.Query(ctx, searchChunksSQL, projectID, pgvector.NewVector(embedding), topK)
	if err != nil {
		return nil, &db.Error{Op: db.OpSelect, Err: err}
	}
	defer rows.Close()

	hits := make([]domain.ScoredChunk, 0, topK)
	for rows.Next() {
		var h domain.ScoredChunk
		c := &h.Chunk
		if err := rows.Scan(
			&c.ID, &c.ProjectID, &c.DocumentID, &c.ChunkText,
			&c.ChunkIndex, &c.TokenCount, &c.CreatedAt, &h.Distance,
		); err != nil {
			return nil, &db.Error{Op: db.OpSelect, Err: err}
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, &db.Error{Op: db.OpSelect, Err: err}
	}
	return hits, nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	var one int
	if err := s.q.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		return &db.Error{Op: db.OpQuery, Err: err}
	}
	return nil
}
