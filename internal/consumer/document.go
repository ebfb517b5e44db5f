// Package consumer binds bus subscriptions to the ingestion and query pipelines.
package consumer

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragworker/internal/domain/event"
	"github.com/kailas-cloud/ragworker/internal/logger"
	"github.com/kailas-cloud/ragworker/internal/messaging"
	"github.com/kailas-cloud/ragworker/internal/metrics"
)

// Documents handles DocumentUploaded events.
type Documents struct {
	ingester Ingester
}

// NewDocuments creates the document consumer.
func NewDocuments(ingester Ingester) *Documents {
	return &Documents{ingester: ingester}
}

// Subscription binds the consumer to queue.
func (c *Documents) Subscription(queue string) messaging.Subscription {
	return messaging.Subscription{
		Queue:      queue,
		RoutingKey: event.DocumentUploadedKey,
		Handler:    messaging.Handle(c.Handle),
	}
}

// Handle ingests one uploaded document. Errors are left to the bus retry policy.
func (c *Documents) Handle(ctx context.Context, ev event.DocumentUploaded) error {
	log := logger.FromContext(ctx).With(
		zap.String("project_id", ev.ProjectID.String()),
		zap.String("document_id", ev.DocumentID.String()),
	)
	log.Info("Ingesting document", zap.String("file_path", ev.FilePath))

	start := time.Now()
	err := c.ingester.Ingest(logger.ContextWithLogger(ctx, log), ev)
	observe("ingest", start, err)
	if err != nil {
		log.Warn("Document ingestion failed", zap.Error(err))
		return err
	}

	log.Info("Document ingested", zap.Duration("took", time.Since(start)))
	return nil
}

func observe(pipeline string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.PipelineDuration.WithLabelValues(pipeline, status).Observe(time.Since(start).Seconds())
}
