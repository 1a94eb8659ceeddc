package vecql

import (
	"fmt"
	"strings"

	"github.com/zoobzio/dbml"
)

// Schema is an optional validation layer built from a DBML project. When
// attached to a query with WithSchema, table and column references are
// checked as the chain is built, so typos fail at the call that
// introduced them instead of at the database.
type Schema struct {
	tables map[string]map[string]struct{}
}

// NewSchema builds a schema index from a DBML project.
func NewSchema(project *dbml.Project) (*Schema, error) {
	if project == nil {
		return nil, fmt.Errorf("vecql: project cannot be nil")
	}

	s := &Schema{tables: make(map[string]map[string]struct{})}
	for _, table := range project.Tables {
		columns := make(map[string]struct{}, len(table.Columns))
		for _, col := range table.Columns {
			columns[col.Name] = struct{}{}
		}
		s.tables[table.Name] = columns
	}
	return s, nil
}

// HasTable reports whether the table exists in the schema.
func (s *Schema) HasTable(name string) bool {
	_, ok := s.tables[name]
	return ok
}

// HasColumn reports whether the column exists in any table. Aliased
// references like "u.id" and "name AS n" are reduced to the bare column
// name first.
func (s *Schema) HasColumn(column string) bool {
	if column == "*" {
		return true
	}

	// Strip an " AS alias" suffix.
	if idx := strings.Index(strings.ToUpper(column), " AS "); idx != -1 {
		column = column[:idx]
	}
	// Strip a table or alias prefix.
	if idx := strings.LastIndex(column, "."); idx != -1 {
		column = column[idx+1:]
	}

	for _, columns := range s.tables {
		if _, ok := columns[column]; ok {
			return true
		}
	}
	return false
}
