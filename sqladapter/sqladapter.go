// Package sqladapter implements the vecql execution adapter over
// database/sql. The compiler renders $1-style placeholders; this adapter
// rebinds them to the driver's syntax, which lets one adapter serve
// SQLite, MySQL/MariaDB and SQL Server drivers.
package sqladapter

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/vecql/vecql"
)

// BindStyle is the placeholder syntax a driver expects.
type BindStyle int

const (
	// BindDollar keeps $1, $2, ... unchanged.
	BindDollar BindStyle = iota
	// BindQuestion rewrites to ? (SQLite, MySQL, MariaDB).
	BindQuestion
	// BindAt rewrites to @p1, @p2, ... (SQL Server).
	BindAt
)

// Adapter executes compiled queries against a database/sql handle.
type Adapter struct {
	mu    sync.Mutex
	db    *sql.DB
	style BindStyle
	tx    *sql.Tx
}

// New wraps a database handle with a placeholder style.
func New(db *sql.DB, style BindStyle) *Adapter {
	return &Adapter{db: db, style: style}
}

// Rebind rewrites $N placeholders to the adapter's bind style. Text
// inside single quotes is left untouched.
func Rebind(query string, style BindStyle) string {
	if style == BindDollar {
		return query
	}

	var b strings.Builder
	b.Grow(len(query))
	inQuote := false
	for i := 0; i < len(query); i++ {
		ch := query[i]
		if ch == '\'' {
			inQuote = !inQuote
			b.WriteByte(ch)
			continue
		}
		if ch != '$' || inQuote {
			b.WriteByte(ch)
			continue
		}

		j := i + 1
		for j < len(query) && query[j] >= '0' && query[j] <= '9' {
			j++
		}
		if j == i+1 {
			b.WriteByte(ch)
			continue
		}

		switch style {
		case BindQuestion:
			b.WriteByte('?')
		case BindAt:
			b.WriteString("@p")
			b.WriteString(query[i+1 : j])
		}
		i = j - 1
	}
	return b.String()
}

// isRowReturning reports whether a statement should run through Query
// rather than Exec.
func isRowReturning(query string) bool {
	trimmed := strings.ToUpper(strings.TrimSpace(query))
	if strings.HasPrefix(trimmed, "SELECT") || strings.HasPrefix(trimmed, "WITH") {
		return true
	}
	return strings.Contains(trimmed, " RETURNING ")
}

// Execute runs a statement, rebinding placeholders first. Row-returning
// statements collect rows; others report the affected-row count.
func (a *Adapter) Execute(ctx context.Context, query string, params []any) (*vecql.Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	bound := Rebind(query, a.style)

	if !isRowReturning(bound) {
		var res sql.Result
		var err error
		if a.tx != nil {
			res, err = a.tx.ExecContext(ctx, bound, params...)
		} else {
			res, err = a.db.ExecContext(ctx, bound, params...)
		}
		if err != nil {
			return nil, err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			affected = 0
		}
		return &vecql.Result{RowCount: int(affected)}, nil
	}

	var rows *sql.Rows
	var err error
	if a.tx != nil {
		rows, err = a.tx.QueryContext(ctx, bound, params...)
	} else {
		rows, err = a.db.QueryContext(ctx, bound, params...)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var collected []map[string]any
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			v := values[i]
			// Drivers commonly hand text back as []byte.
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			row[col] = v
		}
		collected = append(collected, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &vecql.Result{Rows: collected, RowCount: len(collected)}, nil
}

// Begin opens a transaction. Nested transactions are not supported.
func (a *Adapter) Begin(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.tx != nil {
		return vecql.ErrNestedTransaction
	}
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	a.tx = tx
	return nil
}

// Commit commits the open transaction.
func (a *Adapter) Commit(context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.tx == nil {
		return fmt.Errorf("sqladapter: no open transaction")
	}
	err := a.tx.Commit()
	a.tx = nil
	return err
}

// Rollback rolls back the open transaction.
func (a *Adapter) Rollback(context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.tx == nil {
		return fmt.Errorf("sqladapter: no open transaction")
	}
	err := a.tx.Rollback()
	a.tx = nil
	return err
}

func (s BindStyle) String() string {
	return styleName(s)
}

func styleName(style BindStyle) string {
	switch style {
	case BindDollar:
		return "dollar"
	case BindQuestion:
		return "question"
	case BindAt:
		return "at"
	default:
		return "bind(" + strconv.Itoa(int(style)) + ")"
	}
}
