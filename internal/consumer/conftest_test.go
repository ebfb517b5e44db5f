package consumer

import (
	"context"

	"github.com/kailas-cloud/ragworker/internal/domain"
	"github.com/kailas-cloud/ragworker/internal/domain/event"
)

type mockIngester struct {
	ingestFn func(ctx context.Context, ev event.DocumentUploaded) error
	calls    int
}

func (m *mockIngester) Ingest(ctx context.Context, ev event.DocumentUploaded) error {
	m.calls++
	return m.ingestFn(ctx, ev)
}

type mockProcessor struct {
	processFn func(ctx context.Context, q domain.RagQuery) (domain.RagResult, error)
}

func (m *mockProcessor) Process(ctx context.Context, q domain.RagQuery) (domain.RagResult, error) {
	return m.processFn(ctx, q)
}

type mockPublisher struct {
	err       error
	published []event.Event
}

func (m *mockPublisher) Publish(_ context.Context, ev event.Event) error {
	if m.err != nil {
		return m.err
	}
	m.published = append(m.published, ev)
	return nil
}

type mockAudit struct {
	err     error
	records []domain.AiExecutionLog
}

func (m *mockAudit) Record(_ context.Context, l domain.AiExecutionLog) error {
	m.records = append(m.records, l)
	return m.err
}
