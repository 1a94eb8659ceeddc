// Package vecql builds relational query intents programmatically and
// compiles them into parameterized SQL with an ordered bind list. It
// includes a pluggable vector-search dialect registry and a hybrid
// ranking composer for blending vector similarity with secondary
// signals.
package vecql

import (
	"fmt"
	"strings"
)

// Operator represents query comparison operators.
type Operator string

const (
	// Basic comparison operators.
	EQ Operator = "="
	NE Operator = "!="
	GT Operator = ">"
	GE Operator = ">="
	LT Operator = "<"
	LE Operator = "<="

	// Pattern operators.
	LIKE    Operator = "LIKE"
	NotLike Operator = "NOT LIKE"
	ILike   Operator = "ILIKE"

	// Set and range operators. These carry array values and contribute
	// one placeholder per element (two for BETWEEN).
	IN         Operator = "IN"
	NotIn      Operator = "NOT IN"
	Between    Operator = "BETWEEN"
	NotBetween Operator = "NOT BETWEEN"

	// Null tests carry no value and contribute no placeholder.
	IsNull    Operator = "IS NULL"
	IsNotNull Operator = "IS NOT NULL"
)

// Kind represents the type of statement a query compiles to.
type Kind string

const (
	KindSelect Kind = "SELECT"
	KindInsert Kind = "INSERT"
	KindUpdate Kind = "UPDATE"
	KindDelete Kind = "DELETE"
)

// Direction represents sort direction.
type Direction string

const (
	ASC  Direction = "ASC"
	DESC Direction = "DESC"
)

// NullsPlacement controls where NULLs sort relative to non-NULL values.
type NullsPlacement string

const (
	NullsDefault NullsPlacement = ""
	NullsFirst   NullsPlacement = "NULLS FIRST"
	NullsLast    NullsPlacement = "NULLS LAST"
)

// Connector joins a condition to the one preceding it.
type Connector string

const (
	ConnAnd Connector = "AND"
	ConnOr  Connector = "OR"
)

// Condition is a single typed predicate. Single-valued operators use
// Value; IN/NOT IN/BETWEEN/NOT BETWEEN use Values; null tests use
// neither.
type Condition struct {
	Column    string
	Operator  Operator
	Value     any
	Values    []any
	Connector Connector
}

// hasArrayValue reports whether the condition's operator binds from Values.
func (c Condition) hasArrayValue() bool {
	switch c.Operator {
	case IN, NotIn, Between, NotBetween:
		return true
	default:
		return false
	}
}

// hasNoValue reports whether the condition's operator binds nothing.
func (c Condition) hasNoValue() bool {
	return c.Operator == IsNull || c.Operator == IsNotNull
}

// JoinType represents the type of SQL join.
type JoinType string

const (
	InnerJoin JoinType = "INNER JOIN"
	LeftJoin  JoinType = "LEFT JOIN"
	RightJoin JoinType = "RIGHT JOIN"
	FullJoin  JoinType = "FULL JOIN"
	CrossJoin JoinType = "CROSS JOIN"
)

// JoinClause represents a SQL JOIN with a column-to-column ON condition.
type JoinClause struct {
	Type        JoinType
	Table       string
	LeftColumn  string
	Operator    string
	RightColumn string
}

// joinOperators are the comparison operators accepted in an ON condition.
var joinOperators = map[string]bool{
	"=": true, "!=": true, "<>": true,
	">": true, ">=": true, "<": true, "<=": true,
}

// parseJoinCondition parses a "left op right" shorthand into its three
// tokens. The grammar is exactly three whitespace-separated tokens with a
// recognized comparison operator in the middle.
func parseJoinCondition(condition string) (left, op, right string, err error) {
	tokens := strings.Fields(condition)
	if len(tokens) != 3 {
		return "", "", "", &JoinParseError{
			Input:  condition,
			Reason: fmt.Sprintf("expected 3 tokens (left op right), got %d", len(tokens)),
		}
	}
	if !joinOperators[tokens[1]] {
		return "", "", "", &JoinParseError{
			Input:  condition,
			Reason: fmt.Sprintf("unrecognized join operator %q", tokens[1]),
		}
	}
	return tokens[0], tokens[1], tokens[2], nil
}

// OrderBy represents one ORDER BY term.
type OrderBy struct {
	Column    string
	Direction Direction
	Nulls     NullsPlacement
}

// CTE represents a common table expression attached via With.
type CTE struct {
	Name      string
	Query     *Query
	Recursive bool
}

// Union represents a UNION (or UNION ALL) operand.
type Union struct {
	Query *Query
	All   bool
}

// RawFragment is a verbatim predicate fragment with its own bound
// parameters. The fragment text is the caller's responsibility.
type RawFragment struct {
	SQL    string
	Params []any
}

// AggregateFunc represents SQL aggregate functions.
type AggregateFunc string

const (
	AggCount AggregateFunc = "COUNT"
	AggSum   AggregateFunc = "SUM"
	AggAvg   AggregateFunc = "AVG"
	AggMin   AggregateFunc = "MIN"
	AggMax   AggregateFunc = "MAX"
)

// Aggregate is an aggregate projection.
type Aggregate struct {
	Func   AggregateFunc
	Column string
	Alias  string
}

// WindowFunc is a window-function projection.
type WindowFunc struct {
	Function    string
	PartitionBy []string
	OrderBy     []OrderBy
	Alias       string
}

// JSONPath projects a JSON path extraction from a column. Path segments
// are dot-separated and rendered inline; the final segment extracts text.
type JSONPath struct {
	Column string
	Path   string
	Alias  string
}

// TextSearchClause is a full-text search predicate over one or more
// columns. Full dialects render a tsquery match; others fall back to LIKE.
type TextSearchClause struct {
	Columns  []string
	Query    string
	Language string
}

// CaseWhen is a single WHEN ... THEN arm of a CASE expression.
type CaseWhen struct {
	Column   string
	Operator Operator
	Value    any
	Result   any
}

// CaseExpression is a searched CASE projection.
type CaseExpression struct {
	Whens []CaseWhen
	Else  any
	Alias string
}

// ColumnValue is an ordered column/value pair used for INSERT and UPDATE
// assignments, preserving the order the caller supplied them in.
type ColumnValue struct {
	Column string
	Value  any
}

// subquerySource is a FROM target that is itself a query.
type subquerySource struct {
	query *Query
	alias string
}
