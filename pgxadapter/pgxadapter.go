// Package pgxadapter implements the vecql execution adapter on top of a
// pgx connection. PostgreSQL uses $1-style placeholders natively, so
// compiled SQL is passed through unchanged.
package pgxadapter

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5"

	"github.com/vecql/vecql"
)

// Adapter executes compiled queries over a single pgx connection. It is
// safe for sequential use; concurrent use shares the underlying
// connection's constraints.
type Adapter struct {
	mu   sync.Mutex
	conn *pgx.Conn
	tx   pgx.Tx
}

// New wraps a pgx connection.
func New(conn *pgx.Conn) *Adapter {
	return &Adapter{conn: conn}
}

// Execute runs a statement and collects its rows. For statements that
// return no rows, RowCount carries the affected-row count.
func (a *Adapter) Execute(ctx context.Context, sql string, params []any) (*vecql.Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var rows pgx.Rows
	var err error
	if a.tx != nil {
		rows, err = a.tx.Query(ctx, sql, params...)
	} else {
		rows, err = a.conn.Query(ctx, sql, params...)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	var collected []map[string]any
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make(map[string]any, len(fields))
		for i, fd := range fields {
			row[fd.Name] = values[i]
		}
		collected = append(collected, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	result := &vecql.Result{Rows: collected, RowCount: len(collected)}
	if len(collected) == 0 {
		result.RowCount = int(rows.CommandTag().RowsAffected())
	}
	return result, nil
}

// Begin opens a transaction. Nested transactions are not supported.
func (a *Adapter) Begin(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.tx != nil {
		return vecql.ErrNestedTransaction
	}
	tx, err := a.conn.Begin(ctx)
	if err != nil {
		return err
	}
	a.tx = tx
	return nil
}

// Commit commits the open transaction.
func (a *Adapter) Commit(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.tx == nil {
		return pgx.ErrTxClosed
	}
	err := a.tx.Commit(ctx)
	a.tx = nil
	return err
}

// Rollback rolls back the open transaction.
func (a *Adapter) Rollback(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.tx == nil {
		return pgx.ErrTxClosed
	}
	err := a.tx.Rollback(ctx)
	a.tx = nil
	return err
}
