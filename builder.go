package vecql

import (
	"fmt"
	"sort"
	"time"

	"github.com/vecql/vecql/vectordb"
)

// Query is the mutable accumulation of query intent. It is built through
// chain-returning methods, compiled with ToSQL, or consumed by Execute.
// A single Query is not safe for concurrent overlapping use; use Clone to
// branch variants.
type Query struct {
	kind     Kind
	table    string
	source   *subquerySource
	distinct bool
	columns  []string

	assignments []ColumnValue
	bulkColumns []string
	bulkRows    [][]any

	conditions []Condition
	joins      []JoinClause
	groupBy    []string
	having     []Condition
	orderBy    []OrderBy
	limit      *int
	offset     *int

	ctes      []CTE
	unions    []Union
	returning []string

	aggregates   []Aggregate
	windows      []WindowFunc
	jsonPaths    []JSONPath
	textSearches []TextSearchClause
	cases        []CaseExpression
	raws         []RawFragment

	vectorOps     []VectorOperation
	hybrid        *HybridRanking
	vectorDialect string
	registry      *vectordb.Registry

	schema *Schema
	meta   map[string]any

	err error
}

// New returns an empty query with no statement kind set.
func New() *Query {
	return &Query{meta: make(map[string]any)}
}

// Select creates a SELECT query projecting the given columns (all
// columns when none are given).
func Select(columns ...string) *Query {
	q := New()
	return q.Select(columns...)
}

// SelectDistinct creates a SELECT DISTINCT query.
func SelectDistinct(columns ...string) *Query {
	q := Select(columns...)
	q.distinct = true
	return q
}

// Insert creates an INSERT query targeting a table. Column/value pairs
// are added with Set, preserving call order.
func Insert(table string) *Query {
	q := New()
	q.kind = KindInsert
	return q.From(table)
}

// BulkInsert creates a multi-row INSERT from an explicit column list and
// a row-major value matrix.
func BulkInsert(table string, columns []string, rows [][]any) *Query {
	q := New()
	q.kind = KindInsert
	q.From(table)
	if q.err != nil {
		return q
	}
	if len(columns) == 0 {
		q.err = fmt.Errorf("vecql: bulk insert requires a column list")
		return q
	}
	for i, row := range rows {
		if len(row) != len(columns) {
			q.err = fmt.Errorf("vecql: bulk insert row %d has %d values, want %d", i, len(row), len(columns))
			return q
		}
	}
	q.bulkColumns = columns
	q.bulkRows = rows
	return q
}

// Update creates an UPDATE query targeting a table.
func Update(table string) *Query {
	q := New()
	q.kind = KindUpdate
	return q.From(table)
}

// Delete creates a DELETE query targeting a table.
func Delete(table string) *Query {
	q := New()
	q.kind = KindDelete
	return q.From(table)
}

// Select sets the statement kind to SELECT and the projected columns.
func (q *Query) Select(columns ...string) *Query {
	if q.err != nil {
		return q
	}
	q.kind = KindSelect
	q.columns = append(q.columns, columns...)
	return q
}

// Distinct marks a SELECT as DISTINCT.
func (q *Query) Distinct() *Query {
	if q.err != nil {
		return q
	}
	q.distinct = true
	return q
}

// From sets the target table.
func (q *Query) From(table string) *Query {
	if q.err != nil {
		return q
	}
	if q.schema != nil && !q.schema.HasTable(table) {
		q.err = &SchemaError{Table: table}
		return q
	}
	q.table = table
	return q
}

// FromQuery sets a subquery as the source, with an alias.
func (q *Query) FromQuery(sub *Query, alias string) *Query {
	if q.err != nil {
		return q
	}
	if sub == nil {
		q.err = fmt.Errorf("vecql: subquery source is nil")
		return q
	}
	if alias == "" {
		q.err = fmt.Errorf("vecql: subquery source requires an alias")
		return q
	}
	q.source = &subquerySource{query: sub, alias: alias}
	return q
}

// addCondition appends a predicate after optional schema validation.
func (q *Query) addCondition(c Condition) *Query {
	if q.err != nil {
		return q
	}
	if q.schema != nil && !q.schema.HasColumn(c.Column) {
		q.err = &SchemaError{Column: c.Column}
		return q
	}
	if c.Connector == "" {
		c.Connector = ConnAnd
	}
	q.conditions = append(q.conditions, c)
	return q
}

// Where adds a single predicate, AND-joined to any preceding one.
func (q *Query) Where(column string, op Operator, value any) *Query {
	return q.addCondition(Condition{Column: column, Operator: op, Value: value})
}

// WhereMap expands a column-to-value map into one equality predicate per
// key, AND-joined. Keys are applied in sorted order for deterministic
// output.
func (q *Query) WhereMap(m map[string]any) *Query {
	if q.err != nil {
		return q
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		q.addCondition(Condition{Column: k, Operator: EQ, Value: m[k]})
	}
	return q
}

// AndWhere adds a predicate with an explicit AND connector.
func (q *Query) AndWhere(column string, op Operator, value any) *Query {
	return q.addCondition(Condition{Column: column, Operator: op, Value: value, Connector: ConnAnd})
}

// OrWhere adds a predicate with an OR connector.
func (q *Query) OrWhere(column string, op Operator, value any) *Query {
	return q.addCondition(Condition{Column: column, Operator: op, Value: value, Connector: ConnOr})
}

// WhereIn adds an IN predicate with one placeholder per value.
func (q *Query) WhereIn(column string, values []any) *Query {
	return q.addCondition(Condition{Column: column, Operator: IN, Values: values})
}

// WhereNotIn adds a NOT IN predicate.
func (q *Query) WhereNotIn(column string, values []any) *Query {
	return q.addCondition(Condition{Column: column, Operator: NotIn, Values: values})
}

// WhereBetween adds a BETWEEN predicate with two placeholders.
func (q *Query) WhereBetween(column string, low, high any) *Query {
	return q.addCondition(Condition{Column: column, Operator: Between, Values: []any{low, high}})
}

// WhereNotBetween adds a NOT BETWEEN predicate.
func (q *Query) WhereNotBetween(column string, low, high any) *Query {
	return q.addCondition(Condition{Column: column, Operator: NotBetween, Values: []any{low, high}})
}

// WhereNull adds an IS NULL predicate, binding nothing.
func (q *Query) WhereNull(column string) *Query {
	return q.addCondition(Condition{Column: column, Operator: IsNull})
}

// WhereNotNull adds an IS NOT NULL predicate.
func (q *Query) WhereNotNull(column string) *Query {
	return q.addCondition(Condition{Column: column, Operator: IsNotNull})
}

// addJoin parses the shorthand condition and appends a join.
func (q *Query) addJoin(joinType JoinType, table, condition string) *Query {
	if q.err != nil {
		return q
	}
	if q.schema != nil && !q.schema.HasTable(table) {
		q.err = &SchemaError{Table: table}
		return q
	}
	left, op, right, err := parseJoinCondition(condition)
	if err != nil {
		q.err = err
		return q
	}
	q.joins = append(q.joins, JoinClause{
		Type:        joinType,
		Table:       table,
		LeftColumn:  left,
		Operator:    op,
		RightColumn: right,
	})
	return q
}

// Join adds an INNER JOIN from a "left op right" shorthand condition.
// A malformed condition fails the builder immediately.
func (q *Query) Join(table, condition string) *Query {
	return q.addJoin(InnerJoin, table, condition)
}

// InnerJoin adds an INNER JOIN.
func (q *Query) InnerJoin(table, condition string) *Query {
	return q.addJoin(InnerJoin, table, condition)
}

// LeftJoin adds a LEFT JOIN.
func (q *Query) LeftJoin(table, condition string) *Query {
	return q.addJoin(LeftJoin, table, condition)
}

// RightJoin adds a RIGHT JOIN.
func (q *Query) RightJoin(table, condition string) *Query {
	return q.addJoin(RightJoin, table, condition)
}

// FullJoin adds a FULL JOIN.
func (q *Query) FullJoin(table, condition string) *Query {
	return q.addJoin(FullJoin, table, condition)
}

// JoinOn adds a join from three explicit condition parts.
func (q *Query) JoinOn(joinType JoinType, table, left, op, right string) *Query {
	if q.err != nil {
		return q
	}
	if !joinOperators[op] {
		q.err = &JoinParseError{Input: left + " " + op + " " + right, Reason: fmt.Sprintf("unrecognized join operator %q", op)}
		return q
	}
	q.joins = append(q.joins, JoinClause{Type: joinType, Table: table, LeftColumn: left, Operator: op, RightColumn: right})
	return q
}

// CrossJoin adds a CROSS JOIN, which has no ON condition.
func (q *Query) CrossJoin(table string) *Query {
	if q.err != nil {
		return q
	}
	q.joins = append(q.joins, JoinClause{Type: CrossJoin, Table: table})
	return q
}

// GroupBy adds grouping columns.
func (q *Query) GroupBy(columns ...string) *Query {
	if q.err != nil {
		return q
	}
	q.groupBy = append(q.groupBy, columns...)
	return q
}

// Having adds a HAVING predicate.
func (q *Query) Having(column string, op Operator, value any) *Query {
	if q.err != nil {
		return q
	}
	q.having = append(q.having, Condition{Column: column, Operator: op, Value: value, Connector: ConnAnd})
	return q
}

// OrderBy adds an ordering term.
func (q *Query) OrderBy(column string, direction Direction) *Query {
	return q.OrderByNulls(column, direction, NullsDefault)
}

// OrderByNulls adds an ordering term with explicit NULLs placement.
func (q *Query) OrderByNulls(column string, direction Direction, nulls NullsPlacement) *Query {
	if q.err != nil {
		return q
	}
	if direction == "" {
		direction = ASC
	}
	q.orderBy = append(q.orderBy, OrderBy{Column: column, Direction: direction, Nulls: nulls})
	return q
}

// Limit sets the row limit.
func (q *Query) Limit(n int) *Query {
	if q.err != nil {
		return q
	}
	q.limit = &n
	return q
}

// Offset sets the row offset.
func (q *Query) Offset(n int) *Query {
	if q.err != nil {
		return q
	}
	q.offset = &n
	return q
}

// Paginate is sugar for Limit(perPage).Offset((page-1)*perPage). Pages
// are 1-based.
func (q *Query) Paginate(page, perPage int) *Query {
	if q.err != nil {
		return q
	}
	if page < 1 {
		page = 1
	}
	return q.Limit(perPage).Offset((page - 1) * perPage)
}

// With attaches a common table expression.
func (q *Query) With(name string, sub *Query) *Query {
	if q.err != nil {
		return q
	}
	q.ctes = append(q.ctes, CTE{Name: name, Query: sub})
	return q
}

// WithRecursive attaches a recursive common table expression.
func (q *Query) WithRecursive(name string, sub *Query) *Query {
	if q.err != nil {
		return q
	}
	q.ctes = append(q.ctes, CTE{Name: name, Query: sub, Recursive: true})
	return q
}

// Union appends a UNION operand.
func (q *Query) Union(sub *Query) *Query {
	if q.err != nil {
		return q
	}
	q.unions = append(q.unions, Union{Query: sub})
	return q
}

// UnionAll appends a UNION ALL operand.
func (q *Query) UnionAll(sub *Query) *Query {
	if q.err != nil {
		return q
	}
	q.unions = append(q.unions, Union{Query: sub, All: true})
	return q
}

// Returning adds a RETURNING column list for INSERT/UPDATE/DELETE.
func (q *Query) Returning(columns ...string) *Query {
	if q.err != nil {
		return q
	}
	q.returning = append(q.returning, columns...)
	return q
}

// Set appends an ordered column/value assignment for INSERT or UPDATE.
func (q *Query) Set(column string, value any) *Query {
	if q.err != nil {
		return q
	}
	if q.schema != nil && !q.schema.HasColumn(column) {
		q.err = &SchemaError{Column: column}
		return q
	}
	q.assignments = append(q.assignments, ColumnValue{Column: column, Value: value})
	return q
}

// SetMap appends assignments from a map in sorted column order. Go maps
// carry no insertion order, so sorting keeps output deterministic; use
// Set directly when column order matters.
func (q *Query) SetMap(m map[string]any) *Query {
	if q.err != nil {
		return q
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		q.Set(k, m[k])
	}
	return q
}

// WithSchema attaches a schema; subsequent table and column references
// are validated against it.
func (q *Query) WithSchema(s *Schema) *Query {
	if q.err != nil {
		return q
	}
	q.schema = s
	return q
}

// WithRegistry injects the vector dialect registry used at compile time.
// When unset, the process-wide default registry is used.
func (q *Query) WithRegistry(r *vectordb.Registry) *Query {
	if q.err != nil {
		return q
	}
	q.registry = r
	return q
}

// SetMeta stores a value in the query's metadata bag. The bag survives
// the post-Execute reset.
func (q *Query) SetMeta(key string, value any) *Query {
	if q.meta == nil {
		q.meta = make(map[string]any)
	}
	q.meta[key] = value
	return q
}

// Meta reads a value from the metadata bag.
func (q *Query) Meta(key string) (any, bool) {
	v, ok := q.meta[key]
	return v, ok
}

// Err returns the first error recorded by a builder method, if any.
func (q *Query) Err() error {
	return q.err
}

// Clone returns a fully independent deep copy, safe for branching query
// variants.
func (q *Query) Clone() *Query {
	c := &Query{
		kind:          q.kind,
		table:         q.table,
		distinct:      q.distinct,
		vectorDialect: q.vectorDialect,
		registry:      q.registry,
		schema:        q.schema,
		err:           q.err,
	}
	if q.source != nil {
		c.source = &subquerySource{query: q.source.query.Clone(), alias: q.source.alias}
	}
	c.columns = append([]string(nil), q.columns...)
	c.assignments = append([]ColumnValue(nil), q.assignments...)
	c.bulkColumns = append([]string(nil), q.bulkColumns...)
	for _, row := range q.bulkRows {
		c.bulkRows = append(c.bulkRows, append([]any(nil), row...))
	}
	for _, cond := range q.conditions {
		cond.Values = append([]any(nil), cond.Values...)
		c.conditions = append(c.conditions, cond)
	}
	c.joins = append([]JoinClause(nil), q.joins...)
	c.groupBy = append([]string(nil), q.groupBy...)
	for _, cond := range q.having {
		cond.Values = append([]any(nil), cond.Values...)
		c.having = append(c.having, cond)
	}
	c.orderBy = append([]OrderBy(nil), q.orderBy...)
	if q.limit != nil {
		v := *q.limit
		c.limit = &v
	}
	if q.offset != nil {
		v := *q.offset
		c.offset = &v
	}
	for _, cte := range q.ctes {
		c.ctes = append(c.ctes, CTE{Name: cte.Name, Query: cte.Query.Clone(), Recursive: cte.Recursive})
	}
	for _, u := range q.unions {
		c.unions = append(c.unions, Union{Query: u.Query.Clone(), All: u.All})
	}
	c.returning = append([]string(nil), q.returning...)
	c.aggregates = append([]Aggregate(nil), q.aggregates...)
	for _, w := range q.windows {
		w.PartitionBy = append([]string(nil), w.PartitionBy...)
		w.OrderBy = append([]OrderBy(nil), w.OrderBy...)
		c.windows = append(c.windows, w)
	}
	c.jsonPaths = append([]JSONPath(nil), q.jsonPaths...)
	for _, ts := range q.textSearches {
		ts.Columns = append([]string(nil), ts.Columns...)
		c.textSearches = append(c.textSearches, ts)
	}
	for _, ce := range q.cases {
		ce.Whens = append([]CaseWhen(nil), ce.Whens...)
		c.cases = append(c.cases, ce)
	}
	for _, r := range q.raws {
		r.Params = append([]any(nil), r.Params...)
		c.raws = append(c.raws, r)
	}
	for _, op := range q.vectorOps {
		op.Vector = append([]float64(nil), op.Vector...)
		if op.Extra != nil {
			extra := make(map[string]any, len(op.Extra))
			for k, v := range op.Extra {
				extra[k] = v
			}
			op.Extra = extra
		}
		c.vectorOps = append(c.vectorOps, op)
	}
	if q.hybrid != nil {
		weights := make(map[string]float64, len(q.hybrid.Weights))
		for k, v := range q.hybrid.Weights {
			weights[k] = v
		}
		c.hybrid = &HybridRanking{Weights: weights}
	}
	c.meta = make(map[string]any, len(q.meta))
	for k, v := range q.meta {
		c.meta[k] = v
	}
	return c
}

// reset clears all accumulated intent except the metadata bag. Called
// after a successful Execute so one instance can be reused sequentially.
func (q *Query) reset() {
	meta := q.meta
	schema := q.schema
	registry := q.registry
	*q = Query{meta: meta, schema: schema, registry: registry}
}

// now is the clock used by TimeRange; overridable in tests.
var now = time.Now
