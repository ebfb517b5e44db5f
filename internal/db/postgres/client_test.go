package postgres

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kailas-cloud/ragworker/internal/db"
)

type execRecorder struct {
	stmts  []string
	failAt int
}

func (r *execRecorder) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	r.stmts = append(r.stmts, sql)
	if r.failAt > 0 && len(r.stmts) == r.failAt {
		return pgconn.CommandTag{}, errors.New("syntax error")
	}
	return pgconn.NewCommandTag("CREATE TABLE"), nil
}

func (r *execRecorder) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (r *execRecorder) QueryRow(context.Context, string, ...any) pgx.Row {
	return nil
}

func TestMigrate_RunsInOrder(t *testing.T) {
	r := &execRecorder{}
	if err := Migrate(context.Background(), r, "CREATE A", "CREATE B"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Join(r.stmts, ";") != "CREATE A;CREATE B" {
		t.Errorf("stmts = %v", r.stmts)
	}
}

func TestMigrate_StopsOnError(t *testing.T) {
	r := &execRecorder{failAt: 1}
	err := Migrate(context.Background(), r, "CREATE A", "CREATE B")
	var dbErr *db.Error
	if !errors.As(err, &dbErr) || dbErr.Op != db.OpMigrate {
		t.Fatalf("expected migrate db.Error, got %v", err)
	}
	if len(r.stmts) != 1 {
		t.Errorf("expected to stop after first failure, ran %d", len(r.stmts))
	}
}

func TestNewPool_Validation(t *testing.T) {
	if _, err := NewPool(context.Background(), Config{}); err == nil {
		t.Error("expected error for empty dsn")
	}
	_, err := NewPool(context.Background(), Config{DSN: "postgres://%zz"})
	var dbErr *db.Error
	if !errors.As(err, &dbErr) || dbErr.Op != db.OpConnect {
		t.Errorf("expected connect db.Error, got %v", err)
	}
}
