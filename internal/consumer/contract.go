package consumer

import (
	"context"

	"github.com/kailas-cloud/ragworker/internal/domain"
	"github.com/kailas-cloud/ragworker/internal/domain/event"
)

// Ingester runs the document ingestion pipeline.
type Ingester interface {
	Ingest(ctx context.Context, ev event.DocumentUploaded) error
}

// Processor answers a question from the project's knowledge.
type Processor interface {
	Process(ctx context.Context, q domain.RagQuery) (domain.RagResult, error)
}

// Publisher sends result events.
type Publisher interface {
	Publish(ctx context.Context, ev event.Event) error
}

// AuditSink records answered questions.
type AuditSink interface {
	Record(ctx context.Context, l domain.AiExecutionLog) error
}
