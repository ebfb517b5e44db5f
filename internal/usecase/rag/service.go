package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragworker/internal/domain"
	"github.com/kailas-cloud/ragworker/internal/logger"
)

// Service answers project-scoped questions from retrieved chunks.
type Service struct {
	embedder domain.EmbeddingProvider
	searcher Searcher
	chat     domain.ChatProvider
	topK     int
}

// New creates a query processor retrieving domain.DefaultTopK chunks.
func New(embedder domain.EmbeddingProvider, searcher Searcher, chat domain.ChatProvider) *Service {
	return &Service{
		embedder: embedder,
		searcher: searcher,
		chat:     chat,
		topK:     domain.DefaultTopK,
	}
}

// WithTopK overrides the number of retrieved chunks.
func (s *Service) WithTopK(k int) *Service {
	if k > 0 {
		s.topK = k
	}
	return s
}

// Process runs embed → normalize → search → prompt → chat. Steps are sequential;
// any failure returns no partial answer.
func (s *Service) Process(ctx context.Context, q domain.RagQuery) (domain.RagResult, error) {
	if q.ProjectID == uuid.Nil {
		return domain.RagResult{}, fmt.Errorf("project id is required: %w", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(q.Question) == "" {
		return domain.RagResult{}, fmt.Errorf("question is empty: %w", domain.ErrInvalidInput)
	}

	raw, err := s.embedder.GenerateEmbedding(ctx, q.Question)
	if err != nil {
		return domain.RagResult{}, fmt.Errorf("embed question: %w", err)
	}
	vec, err := domain.Normalize(raw)
	if err != nil {
		return domain.RagResult{}, fmt.Errorf("normalize question embedding: %w", err)
	}

	hits, err := s.searcher.Search(ctx, q.ProjectID, vec, s.topK)
	if err != nil {
		return domain.RagResult{}, fmt.Errorf("search chunks: %w", err)
	}

	completion, err := s.chat.CompleteChat(ctx, BuildPrompt(q.Question, hits))
	if err != nil {
		return domain.RagResult{}, fmt.Errorf("complete chat: %w", err)
	}

	logger.FromContext(ctx).Debug("Question answered",
		zap.String("project_id", q.ProjectID.String()),
		zap.Int("chunks", len(hits)),
		zap.Int("prompt_tokens", completion.PromptTokens),
		zap.Int("completion_tokens", completion.CompletionTokens),
	)

	return domain.RagResult{
		Answer:           completion.Answer,
		SourceChunkIDs:   domain.ChunkIDs(hits),
		PromptTokens:     completion.PromptTokens,
		CompletionTokens: completion.CompletionTokens,
		TotalTokens:      completion.TotalTokens(),
	}, nil
}
