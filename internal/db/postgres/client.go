// Package postgres wraps a pgx connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kailas-cloud/ragworker/internal/db"
)

// Config holds connection parameters for a Postgres pool.
type Config struct {
	DSN      string
	MaxConns int32
}

// Querier is the subset of *pgxpool.Pool used by repositories.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Pool is a pgx pool with readiness helpers.
type Pool struct {
	*pgxpool.Pool
}

var _ Querier = (*Pool)(nil)

// NewPool parses the DSN and creates a lazily connecting pool.
func NewPool(ctx context.Context, cfg Config) (*Pool, error) {
	if cfg.DSN == "" {
		return nil, errors.New("dsn is required")
	}

	pcfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, &db.Error{Op: db.OpConnect, Err: err}
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, &db.Error{Op: db.OpConnect, Err: err}
	}
	return &Pool{Pool: pool}, nil
}

// WaitForReady polls Ping until the database responds or timeout expires.
func (p *Pool) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for database: %w", ctx.Err())
		case <-ticker.C:
			if err := p.Ping(ctx); err == nil {
				return nil
			}
		}
	}
}

// Migrate runs schema statements in order.
func Migrate(ctx context.Context, q Querier, stmts ...string) error {
	for i, stmt := range stmts {
		if _, err := q.Exec(ctx, stmt); err != nil {
			return &db.Error{Op: db.OpMigrate, Err: fmt.Errorf("statement %d: %w", i, err)}
		}
	}
	return nil
}
