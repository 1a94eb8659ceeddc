package vecql

import (
	"errors"
	"fmt"
)

// ErrTableRequired is returned when a query is compiled without a target
// table or subquery source.
var ErrTableRequired = errors.New("vecql: query has no target table")

// ErrNestedTransaction is returned when Begin is called on an adapter
// that already has an open transaction.
var ErrNestedTransaction = errors.New("vecql: nested transactions are not supported")

// InvalidKindError indicates compilation of a query whose statement kind
// is unset or unrecognized.
type InvalidKindError struct {
	Kind Kind
}

func (e *InvalidKindError) Error() string {
	if e.Kind == "" {
		return "vecql: query kind is not set"
	}
	return fmt.Sprintf("vecql: invalid query kind: %s", e.Kind)
}

// JoinParseError indicates a malformed "left op right" join condition.
// It is raised at the call that introduced the condition, not at compile
// time.
type JoinParseError struct {
	Input  string
	Reason string
}

func (e *JoinParseError) Error() string {
	return fmt.Sprintf("vecql: invalid join condition %q: %s", e.Input, e.Reason)
}

// SchemaError indicates a table or column that is not present in the
// attached schema.
type SchemaError struct {
	Table  string
	Column string
}

func (e *SchemaError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("vecql: column %q not found in schema", e.Column)
	}
	return fmt.Sprintf("vecql: table %q not found in schema", e.Table)
}
