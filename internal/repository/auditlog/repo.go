// Package auditlog persists AiExecutionLog rows.
package auditlog

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/ragworker/internal/db"
	"github.com/kailas-cloud/ragworker/internal/db/postgres"
	"github.com/kailas-cloud/ragworker/internal/domain"
)

// Schema creates the append-only audit table.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS ai_execution_logs (
	id uuid PRIMARY KEY,
	project_id uuid NOT NULL,
	correlation_id text NOT NULL,
	question text NOT NULL,
	answer text NOT NULL,
	prompt_tokens integer NOT NULL,
	completion_tokens integer NOT NULL,
	source_chunk_ids_json jsonb NOT NULL,
	created_at_utc timestamptz NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS ix_ai_execution_logs_project_id ON ai_execution_logs (project_id)`,
}

const insertSQL = `INSERT INTO ai_execution_logs
	(id, project_id, correlation_id, question, answer, prompt_tokens, completion_tokens,
	 source_chunk_ids_json, created_at_utc)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

// Repo writes audit rows.
type Repo struct {
	q postgres.Querier
}

// New creates an audit log repository.
func New(q postgres.Querier) *Repo {
	return &Repo{q: q}
}

// EnsureSchema creates the table if missing.
func (r *Repo) EnsureSchema(ctx context.Context) error {
	return postgres.Migrate(ctx, r.q, Schema...)
}

// Record inserts one row.
func (r *Repo) Record(ctx context.Context, l domain.AiExecutionLog) error {
	ids := l.SourceChunkIDsJSON
	if ids == "" {
		ids = "[]"
	}
	_, err := r.q.Exec(ctx, insertSQL,
		l.ID, l.ProjectID, l.CorrelationID, l.Question, l.Answer,
		l.PromptTokens, l.CompletionTokens, ids, l.CreatedAtUTC.UTC(),
	)
	if err != nil {
		return &db.Error{Op: db.OpInsert, Err: fmt.Errorf("ai_execution_logs %s: %w", l.ID, err)}
	}
	return nil
}
