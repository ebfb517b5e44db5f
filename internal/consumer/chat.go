package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragworker/internal/domain"
	"github.com/kailas-cloud/ragworker/internal/domain/event"
	"github.com/kailas-cloud/ragworker/internal/logger"
	"github.com/kailas-cloud/ragworker/internal/messaging"
)

// Chat handles ChatMessageCreated events and publishes the answer.
type Chat struct {
	processor Processor
	publisher Publisher
	audit     AuditSink
}

// NewChat creates the chat consumer.
func NewChat(processor Processor, publisher Publisher) *Chat {
	return &Chat{processor: processor, publisher: publisher}
}

// WithAudit records every published answer to sink.
func (c *Chat) WithAudit(sink AuditSink) *Chat {
	c.audit = sink
	return c
}

// Subscription binds the consumer to queue.
func (c *Chat) Subscription(queue string) messaging.Subscription {
	return messaging.Subscription{
		Queue:      queue,
		RoutingKey: event.ChatMessageCreatedKey,
		Handler:    messaging.Handle(c.Handle),
	}
}

// Handle answers the question and publishes AiResponseGenerated with the
// same correlation id. Nothing is published when the pipeline fails.
func (c *Chat) Handle(ctx context.Context, ev event.ChatMessageCreated) error {
	log := logger.FromContext(ctx).With(
		zap.String("project_id", ev.ProjectID.String()),
		zap.String("chat_message_id", ev.ChatMessageID.String()),
	)

	start := time.Now()
	res, err := c.processor.Process(logger.ContextWithLogger(ctx, log), domain.RagQuery{
		ProjectID: ev.ProjectID,
		Question:  ev.Content,
	})
	observe("query", start, err)
	if err != nil {
		log.Warn("Query pipeline failed", zap.Error(err))
		return err
	}

	resp := event.AiResponseGenerated{
		Meta:                event.NewMeta(ev.CorrelationID),
		ProjectID:           ev.ProjectID,
		SourceChatMessageID: ev.ChatMessageID,
		Answer:              res.Answer,
		TokenUsage:          res.TotalTokens,
		SourceChunkIDs:      nonNil(res.SourceChunkIDs),
	}
	if err := c.publisher.Publish(ctx, resp); err != nil {
		return fmt.Errorf("publish response: %w", err)
	}

	log.Info("Answer published",
		zap.Int("token_usage", res.TotalTokens),
		zap.Int("sources", len(res.SourceChunkIDs)),
		zap.Duration("took", time.Since(start)),
	)

	c.record(ctx, log, ev, res)
	return nil
}

// record writes the audit row. The answer is already published, so a failure
// here is logged and not retried.
func (c *Chat) record(ctx context.Context, log *zap.Logger, ev event.ChatMessageCreated, res domain.RagResult) {
	if c.audit == nil {
		return
	}
	ids, err := json.Marshal(nonNil(res.SourceChunkIDs))
	if err != nil {
		log.Warn("Failed to encode source chunk ids", zap.Error(err))
		return
	}
	entry := domain.AiExecutionLog{
		ID:                 uuid.New(),
		ProjectID:          ev.ProjectID,
		CorrelationID:      ev.CorrelationID,
		Question:           ev.Content,
		Answer:             res.Answer,
		PromptTokens:       res.PromptTokens,
		CompletionTokens:   res.CompletionTokens,
		SourceChunkIDsJSON: string(ids),
		CreatedAtUTC:       time.Now().UTC(),
	}
	if err := c.audit.Record(ctx, entry); err != nil {
		log.Warn("Failed to record execution log", zap.Error(err))
	}
}

func nonNil(ids []uuid.UUID) []uuid.UUID {
	if ids == nil {
		return []uuid.UUID{}
	}
	return ids
}
