package vecql

import (
	"context"
	"fmt"
)

// Result is what an adapter returns from executing one statement. Query
// and Params echo exactly what was sent to the adapter, for debugging
// and testability.
type Result struct {
	Rows     []map[string]any
	RowCount int
	Query    string
	Params   []any
}

// Adapter is the narrow execution contract the core depends on. It must
// accept positional $1-style placeholders as rendered by the compiler;
// adapters for backends with other placeholder syntaxes rebind
// internally.
type Adapter interface {
	Execute(ctx context.Context, sql string, params []any) (*Result, error)
	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Execute compiles the query, delegates to the adapter, and on success
// resets all intent fields except the metadata bag so the instance can
// be reused sequentially. Adapter errors propagate unchanged. A Query is
// not safe for concurrent overlapping Execute calls; Clone first.
func (q *Query) Execute(ctx context.Context, adapter Adapter) (*Result, error) {
	if adapter == nil {
		return nil, fmt.Errorf("vecql: adapter is required")
	}

	sql, params, err := q.ToSQL()
	if err != nil {
		return nil, err
	}

	result, err := adapter.Execute(ctx, sql, params)
	if err != nil {
		return nil, err
	}
	if result == nil {
		result = &Result{}
	}
	result.Query = sql
	result.Params = params

	q.reset()
	return result, nil
}

// Transaction runs fn inside a transaction on the adapter: begin, fn,
// commit; any error from fn triggers a rollback and is returned
// unchanged. Nesting is not supported: an adapter with an open
// transaction fails the inner Begin.
func Transaction(ctx context.Context, adapter Adapter, fn func(Adapter) error) error {
	if adapter == nil {
		return fmt.Errorf("vecql: adapter is required")
	}

	if err := adapter.Begin(ctx); err != nil {
		return err
	}

	if err := fn(adapter); err != nil {
		if rbErr := adapter.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	return adapter.Commit(ctx)
}
