package domain

import (
	"time"

	"github.com/google/uuid"
)

// KeyPrefix namespaces every key the worker writes to Redis.
const KeyPrefix = "ragworker:"

// DefaultTopK is the number of chunks retrieved per question.
const DefaultTopK = 5

// DocumentChunk is one embedded slice of a document. Immutable once stored.
type DocumentChunk struct {
	ID         uuid.UUID
	ProjectID  uuid.UUID
	DocumentID uuid.UUID
	ChunkText  string
	Embedding  []float32
	ChunkIndex int
	TokenCount int
	CreatedAt  time.Time
}

// ScoredChunk is a search hit. Distance is the cosine distance to the query (smaller is closer).
type ScoredChunk struct {
	Chunk    DocumentChunk
	Distance float64
}

// RagQuery is a question scoped to a project.
type RagQuery struct {
	ProjectID uuid.UUID
	Question  string
}

// RagResult is the answer to a RagQuery.
type RagResult struct {
	Answer           string
	SourceChunkIDs   []uuid.UUID
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// AiExecutionLog is an append-only audit record of one answered question.
type AiExecutionLog struct {
	ID                 uuid.UUID
	ProjectID          uuid.UUID
	CorrelationID      string
	Question           string
	Answer             string
	PromptTokens       int
	CompletionTokens   int
	SourceChunkIDsJSON string
	CreatedAtUTC       time.Time
}
