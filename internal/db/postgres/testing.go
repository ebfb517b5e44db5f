package postgres

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// FakeQuerier records statements and serves canned rows (test-only).
type FakeQuerier struct {
	ExecFn  func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryFn func(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	RowFn   func(ctx context.Context, sql string, args ...any) pgx.Row

	Calls []FakeCall
}

// FakeCall is one recorded statement.
type FakeCall struct {
	SQL  string
	Args []any
}

var _ Querier = (*FakeQuerier)(nil)

// Exec records the statement and delegates to ExecFn.
func (f *FakeQuerier) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.Calls = append(f.Calls, FakeCall{SQL: sql, Args: args})
	if f.ExecFn != nil {
		return f.ExecFn(ctx, sql, args...)
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

// Query records the statement and delegates to QueryFn.
func (f *FakeQuerier) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	f.Calls = append(f.Calls, FakeCall{SQL: sql, Args: args})
	if f.QueryFn != nil {
		return f.QueryFn(ctx, sql, args...)
	}
	return NewFakeRows(), nil
}

// QueryRow records the statement and delegates to RowFn.
func (f *FakeQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	f.Calls = append(f.Calls, FakeCall{SQL: sql, Args: args})
	if f.RowFn != nil {
		return f.RowFn(ctx, sql, args...)
	}
	return &FakeRow{Values: []any{1}}
}

// FakeRow scans a fixed value list.
type FakeRow struct {
	Values []any
	Err    error
}

// Scan copies Values into dest.
func (r *FakeRow) Scan(dest ...any) error {
	if r.Err != nil {
		return r.Err
	}
	return assign(r.Values, dest)
}

// FakeRows iterates canned rows.
type FakeRows struct {
	rows   [][]any
	pos    int
	err    error
	closed bool
}

var _ pgx.Rows = (*FakeRows)(nil)

// NewFakeRows creates rows from value lists.
func NewFakeRows(rows ...[]any) *FakeRows {
	return &FakeRows{rows: rows}
}

// WithErr sets the error returned by Err after iteration.
func (r *FakeRows) WithErr(err error) *FakeRows {
	r.err = err
	return r
}

// Closed reports whether Close was called.
func (r *FakeRows) Closed() bool { return r.closed }

func (r *FakeRows) Close()                                       { r.closed = true }
func (r *FakeRows) Err() error                                   { return r.err }
func (r *FakeRows) CommandTag() pgconn.CommandTag                { return pgconn.NewCommandTag("SELECT") }
func (r *FakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *FakeRows) RawValues() [][]byte                          { return nil }
func (r *FakeRows) Conn() *pgx.Conn                              { return nil }

func (r *FakeRows) Next() bool {
	if r.closed || r.pos >= len(r.rows) {
		return false
	}
	r.pos++
	return true
}

func (r *FakeRows) Scan(dest ...any) error {
	if r.pos == 0 || r.pos > len(r.rows) {
		return errors.New("scan called without row")
	}
	return assign(r.rows[r.pos-1], dest)
}

func (r *FakeRows) Values() ([]any, error) {
	if r.pos == 0 || r.pos > len(r.rows) {
		return nil, errors.New("values called without row")
	}
	return r.rows[r.pos-1], nil
}

func assign(values, dest []any) error {
	if len(values) != len(dest) {
		return fmt.Errorf("scan: %d values into %d targets", len(values), len(dest))
	}
	for i := range dest {
		dv := reflect.ValueOf(dest[i])
		if dv.Kind() != reflect.Pointer || dv.IsNil() {
			return fmt.Errorf("scan target %d is not a pointer", i)
		}
		sv := reflect.ValueOf(values[i])
		target := dv.Elem()
		switch {
		case sv.Type().AssignableTo(target.Type()):
			target.Set(sv)
		case sv.Type().ConvertibleTo(target.Type()):
			target.Set(sv.Convert(target.Type()))
		default:
			return fmt.Errorf("scan target %d: cannot assign %s to %s", i, sv.Type(), target.Type())
		}
	}
	return nil
}
