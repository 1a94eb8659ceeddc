package vecql

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/vecql/vecql/vectordb"
)

// compiler renders one query intent snapshot into SQL text and an
// ordered bind list. Parameter indices are 1-based and assigned in the
// order clauses appear in the final text, so they are always contiguous.
type compiler struct {
	reg    *vectordb.Registry
	sql    strings.Builder
	params []any
}

// ToSQL compiles the accumulated intent into SQL text plus the ordered
// parameter list. Compilation is pure: it reads the intent snapshot and
// never mutates the query.
func (q *Query) ToSQL() (string, []any, error) {
	if q.err != nil {
		return "", nil, q.err
	}

	reg := q.registry
	if reg == nil {
		reg = vectordb.Default()
	}

	c := &compiler{reg: reg}
	if err := c.compile(q); err != nil {
		return "", nil, err
	}
	return c.sql.String(), c.params, nil
}

func (c *compiler) compile(q *Query) error {
	if q.table == "" && q.source == nil {
		return ErrTableRequired
	}

	switch q.kind {
	case KindSelect:
		return c.renderSelect(q)
	case KindInsert:
		return c.renderInsert(q)
	case KindUpdate:
		return c.renderUpdate(q)
	case KindDelete:
		return c.renderDelete(q)
	default:
		return &InvalidKindError{Kind: q.kind}
	}
}

// addParam normalizes a value, appends it to the bind list, and returns
// its placeholder.
func (c *compiler) addParam(v any) string {
	c.params = append(c.params, normalizeValue(v))
	return "$" + strconv.Itoa(len(c.params))
}

// nextIndex is the 1-based index the next parameter will take.
func (c *compiler) nextIndex() int {
	return len(c.params) + 1
}

// normalizeValue converts timestamps to ISO-8601 strings; everything
// else passes through unchanged.
func normalizeValue(v any) any {
	switch t := v.(type) {
	case time.Time:
		return t.Format(time.RFC3339)
	case *time.Time:
		if t == nil {
			return nil
		}
		return t.Format(time.RFC3339)
	default:
		return v
	}
}

// resolvedVectorOp pairs an operation's defaulted request with its
// routed placement.
type resolvedVectorOp struct {
	req       vectordb.Request
	placement vectordb.Placement
}

// resolveVectorOps applies dialect defaults and placement routing for a
// single compile. The config is resolved even when no vector operations
// exist, because text-search rendering is dialect-sensitive too.
func (c *compiler) resolveVectorOps(q *Query) (*vectordb.Config, []resolvedVectorOp) {
	cfg := c.reg.Resolve(q.vectorDialect)
	if len(q.vectorOps) == 0 {
		return cfg, nil
	}
	resolved := make([]resolvedVectorOp, 0, len(q.vectorOps))
	for _, op := range q.vectorOps {
		req := op.request()
		cfg.ApplyDefaults(&req)
		resolved = append(resolved, resolvedVectorOp{
			req:       req,
			placement: cfg.PlacementFor(req.Kind),
		})
	}
	return cfg, resolved
}

func (c *compiler) renderSelect(q *Query) error {
	cfg, vectorOps := c.resolveVectorOps(q)

	if err := c.renderCTEs(q); err != nil {
		return err
	}

	c.sql.WriteString("SELECT ")
	if q.distinct {
		c.sql.WriteString("DISTINCT ")
	}

	items, err := c.selectItems(q, cfg, vectorOps)
	if err != nil {
		return err
	}
	c.sql.WriteString(strings.Join(items, ", "))

	c.sql.WriteString(" FROM ")
	if err := c.renderSource(q); err != nil {
		return err
	}

	for _, join := range q.joins {
		c.sql.WriteString(" ")
		c.sql.WriteString(string(join.Type))
		c.sql.WriteString(" ")
		c.sql.WriteString(join.Table)
		if join.Type != CrossJoin {
			fmt.Fprintf(&c.sql, " ON %s %s %s", join.LeftColumn, join.Operator, join.RightColumn)
		}
	}

	if err := c.renderWhere(q, cfg, vectorOps); err != nil {
		return err
	}

	if len(q.groupBy) > 0 {
		c.sql.WriteString(" GROUP BY ")
		c.sql.WriteString(strings.Join(q.groupBy, ", "))
	}

	if len(q.having) > 0 {
		c.sql.WriteString(" HAVING ")
		if err := c.renderConditions(q.having); err != nil {
			return err
		}
	}

	// Compound operands come before ORDER BY and LIMIT so those clauses
	// apply to the whole compound. SQLite rejects parenthesized operands,
	// so the sides are joined bare.
	for _, u := range q.unions {
		if u.All {
			c.sql.WriteString(" UNION ALL ")
		} else {
			c.sql.WriteString(" UNION ")
		}
		if err := c.renderSubquery(u.Query); err != nil {
			return err
		}
	}

	if err := c.renderOrderBy(q, cfg, vectorOps); err != nil {
		return err
	}

	switch {
	case q.limit != nil:
		fmt.Fprintf(&c.sql, " LIMIT %d", *q.limit)
	default:
		if k := implicitLimit(vectorOps); k > 0 {
			fmt.Fprintf(&c.sql, " LIMIT %d", k)
		}
	}
	if q.offset != nil {
		fmt.Fprintf(&c.sql, " OFFSET %d", *q.offset)
	}

	return nil
}

// renderCTEs writes the WITH prefix when common table expressions are
// attached.
func (c *compiler) renderCTEs(q *Query) error {
	if len(q.ctes) == 0 {
		return nil
	}
	c.sql.WriteString("WITH ")
	for _, cte := range q.ctes {
		if cte.Recursive {
			c.sql.WriteString("RECURSIVE ")
			break
		}
	}
	for i, cte := range q.ctes {
		if i > 0 {
			c.sql.WriteString(", ")
		}
		c.sql.WriteString(cte.Name)
		c.sql.WriteString(" AS (")
		if err := c.renderSubquery(cte.Query); err != nil {
			return err
		}
		c.sql.WriteString(")")
	}
	c.sql.WriteString(" ")
	return nil
}

// renderSubquery compiles a nested SELECT into the same statement,
// sharing the parameter counter.
func (c *compiler) renderSubquery(sub *Query) error {
	if sub == nil {
		return fmt.Errorf("vecql: nil subquery")
	}
	if sub.err != nil {
		return sub.err
	}
	if sub.kind != KindSelect {
		return fmt.Errorf("vecql: subquery must be a SELECT, got %s", sub.kind)
	}
	return c.renderSelect(sub)
}

func (c *compiler) renderSource(q *Query) error {
	if q.source != nil {
		c.sql.WriteString("(")
		if err := c.renderSubquery(q.source.query); err != nil {
			return err
		}
		c.sql.WriteString(") ")
		c.sql.WriteString(q.source.alias)
		return nil
	}
	c.sql.WriteString(q.table)
	return nil
}

// selectItems assembles the projected column list in extension-layering
// order: base columns or aggregates, window functions, JSON paths, CASE
// expressions, then SELECT-placed vector clauses.
func (c *compiler) selectItems(q *Query, cfg *vectordb.Config, vectorOps []resolvedVectorOp) ([]string, error) {
	var items []string

	// Aggregates replace the column list when grouping is not active,
	// and extend it otherwise.
	if len(q.aggregates) > 0 && len(q.groupBy) == 0 {
		for _, agg := range q.aggregates {
			items = append(items, renderAggregate(agg))
		}
	} else {
		items = append(items, q.columns...)
		for _, agg := range q.aggregates {
			items = append(items, renderAggregate(agg))
		}
	}

	for _, w := range q.windows {
		items = append(items, renderWindow(w))
	}

	for _, jp := range q.jsonPaths {
		items = append(items, renderJSONPath(jp))
	}

	for _, ce := range q.cases {
		rendered, err := c.renderCase(ce)
		if err != nil {
			return nil, err
		}
		items = append(items, rendered)
	}

	for _, op := range vectorOps {
		if op.placement != vectordb.PlacementSelect {
			continue
		}
		clause, params, _, err := cfg.Render(op.req, c.nextIndex())
		if err != nil {
			return nil, err
		}
		c.appendParams(params)
		items = append(items, clause+" AS "+vectorAlias(op.req))
	}

	if len(items) == 0 {
		items = []string{"*"}
	}
	return items, nil
}

// appendParams adds pre-rendered fragment parameters, normalizing each.
func (c *compiler) appendParams(params []any) {
	for _, p := range params {
		c.params = append(c.params, normalizeValue(p))
	}
}

// vectorAlias picks the projection alias for a SELECT-placed vector
// clause.
func vectorAlias(req vectordb.Request) string {
	if req.Extra != nil {
		if alias, ok := req.Extra["alias"].(string); ok && alias != "" {
			return alias
		}
	}
	if req.Kind == vectordb.OpSimilarity {
		return "similarity"
	}
	return "vector_score"
}

func renderAggregate(agg Aggregate) string {
	column := agg.Column
	if column == "" {
		column = "*"
	}
	rendered := fmt.Sprintf("%s(%s)", agg.Func, column)
	if agg.Alias != "" {
		rendered += " AS " + agg.Alias
	}
	return rendered
}

func renderWindow(w WindowFunc) string {
	fn := w.Function
	if !strings.Contains(fn, "(") {
		fn += "()"
	}

	var over []string
	if len(w.PartitionBy) > 0 {
		over = append(over, "PARTITION BY "+strings.Join(w.PartitionBy, ", "))
	}
	if len(w.OrderBy) > 0 {
		terms := make([]string, len(w.OrderBy))
		for i, o := range w.OrderBy {
			terms[i] = renderOrderTerm(o)
		}
		over = append(over, "ORDER BY "+strings.Join(terms, ", "))
	}

	return fmt.Sprintf("%s OVER (%s) AS %s", fn, strings.Join(over, " "), w.Alias)
}

// renderJSONPath renders a dot path as chained JSON accessors with a
// text extraction on the final segment.
func renderJSONPath(jp JSONPath) string {
	segments := strings.Split(jp.Path, ".")
	var b strings.Builder
	b.WriteString(jp.Column)
	for i, seg := range segments {
		if i == len(segments)-1 {
			b.WriteString("->>")
		} else {
			b.WriteString("->")
		}
		b.WriteString("'")
		b.WriteString(seg)
		b.WriteString("'")
	}
	if jp.Alias != "" {
		b.WriteString(" AS ")
		b.WriteString(jp.Alias)
	}
	return b.String()
}

func (c *compiler) renderCase(ce CaseExpression) (string, error) {
	var b strings.Builder
	b.WriteString("CASE")
	for _, when := range ce.Whens {
		cond := Condition{Column: when.Column, Operator: when.Operator, Value: when.Value}
		rendered, err := c.renderCondition(cond)
		if err != nil {
			return "", err
		}
		b.WriteString(" WHEN ")
		b.WriteString(rendered)
		b.WriteString(" THEN ")
		b.WriteString(c.addParam(when.Result))
	}
	if ce.Else != nil {
		b.WriteString(" ELSE ")
		b.WriteString(c.addParam(ce.Else))
	}
	b.WriteString(" END AS ")
	b.WriteString(ce.Alias)
	return b.String(), nil
}

// renderWhere assembles the WHERE clause: the predicate tree, then
// full-text predicates, then raw fragments, then WHERE-placed vector
// clauses, all AND-joined across groups.
func (c *compiler) renderWhere(q *Query, cfg *vectordb.Config, vectorOps []resolvedVectorOp) error {
	var hasWhere bool

	writeConnector := func(conn Connector) {
		if !hasWhere {
			c.sql.WriteString(" WHERE ")
			hasWhere = true
			return
		}
		c.sql.WriteString(" ")
		c.sql.WriteString(string(conn))
		c.sql.WriteString(" ")
	}

	for _, cond := range q.conditions {
		writeConnector(cond.Connector)
		rendered, err := c.renderCondition(cond)
		if err != nil {
			return err
		}
		c.sql.WriteString(rendered)
	}

	for _, ts := range q.textSearches {
		writeConnector(ConnAnd)
		c.sql.WriteString(c.renderTextSearch(ts, cfg))
	}

	for _, raw := range q.raws {
		writeConnector(ConnAnd)
		rewritten, err := c.rewriteRawFragment(raw)
		if err != nil {
			return err
		}
		c.sql.WriteString(rewritten)
	}

	for _, op := range vectorOps {
		if op.placement != vectordb.PlacementWhere {
			continue
		}
		clause, params, _, err := cfg.Render(op.req, c.nextIndex())
		if err != nil {
			return err
		}
		c.appendParams(params)
		writeConnector(ConnAnd)
		c.sql.WriteString(clause)
	}

	return nil
}

// renderConditions writes an AND/OR-connected condition list (used for
// HAVING).
func (c *compiler) renderConditions(conds []Condition) error {
	for i, cond := range conds {
		if i > 0 {
			conn := cond.Connector
			if conn == "" {
				conn = ConnAnd
			}
			c.sql.WriteString(" ")
			c.sql.WriteString(string(conn))
			c.sql.WriteString(" ")
		}
		rendered, err := c.renderCondition(cond)
		if err != nil {
			return err
		}
		c.sql.WriteString(rendered)
	}
	return nil
}

// renderCondition renders one predicate, binding its parameters.
func (c *compiler) renderCondition(cond Condition) (string, error) {
	switch {
	case cond.hasNoValue():
		return fmt.Sprintf("%s %s", cond.Column, cond.Operator), nil

	case cond.Operator == Between || cond.Operator == NotBetween:
		if len(cond.Values) != 2 {
			return "", fmt.Errorf("vecql: %s on %q requires exactly 2 values, got %d", cond.Operator, cond.Column, len(cond.Values))
		}
		return fmt.Sprintf("%s %s %s AND %s",
			cond.Column, cond.Operator,
			c.addParam(cond.Values[0]), c.addParam(cond.Values[1])), nil

	case cond.Operator == IN || cond.Operator == NotIn:
		if len(cond.Values) == 0 {
			return "", fmt.Errorf("vecql: %s on %q requires at least one value", cond.Operator, cond.Column)
		}
		placeholders := make([]string, len(cond.Values))
		for i, v := range cond.Values {
			placeholders[i] = c.addParam(v)
		}
		return fmt.Sprintf("%s %s (%s)", cond.Column, cond.Operator, strings.Join(placeholders, ", ")), nil

	default:
		return fmt.Sprintf("%s %s %s", cond.Column, cond.Operator, c.addParam(cond.Value)), nil
	}
}

// renderTextSearch renders a tsquery match for full-text capable
// dialects and a LIKE fallback otherwise.
func (c *compiler) renderTextSearch(ts TextSearchClause, cfg *vectordb.Config) string {
	if cfg.Name == vectordb.DialectPgvector {
		vector := make([]string, len(ts.Columns))
		for i, col := range ts.Columns {
			vector[i] = fmt.Sprintf("coalesce(%s, '')", col)
		}
		return fmt.Sprintf("to_tsvector('%s', %s) @@ plainto_tsquery('%s', %s)",
			ts.Language, strings.Join(vector, " || ' ' || "), ts.Language, c.addParam(ts.Query))
	}

	parts := make([]string, len(ts.Columns))
	for i, col := range ts.Columns {
		parts[i] = fmt.Sprintf("%s LIKE %s", col, c.addParam("%"+ts.Query+"%"))
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}

// rewriteRawFragment replaces each ? outside quoted text with the next
// contiguous placeholder and binds the fragment's parameters.
func (c *compiler) rewriteRawFragment(raw RawFragment) (string, error) {
	var b strings.Builder
	used := 0
	inQuote := false
	for i := 0; i < len(raw.SQL); i++ {
		ch := raw.SQL[i]
		switch {
		case ch == '\'':
			inQuote = !inQuote
			b.WriteByte(ch)
		case ch == '?' && !inQuote:
			if used >= len(raw.Params) {
				return "", fmt.Errorf("vecql: raw fragment has more placeholders than parameters: %s", raw.SQL)
			}
			b.WriteString(c.addParam(raw.Params[used]))
			used++
		default:
			b.WriteByte(ch)
		}
	}
	if used < len(raw.Params) {
		return "", fmt.Errorf("vecql: raw fragment has %d unused parameters: %s", len(raw.Params)-used, raw.SQL)
	}
	return b.String(), nil
}

// implicitLimit is the row bound contributed by a vector operation's k
// when the query declares no LIMIT of its own: ORDER BY-placed
// operations always bound the result, and WHERE-placed nearest-neighbor
// searches (sqlite-vss style) fold k into LIMIT too. Threshold matches
// are unbounded predicates.
func implicitLimit(vectorOps []resolvedVectorOp) int {
	for _, op := range vectorOps {
		if op.req.K <= 0 {
			continue
		}
		switch op.placement {
		case vectordb.PlacementOrderBy:
			return op.req.K
		case vectordb.PlacementWhere:
			if op.req.Kind == vectordb.OpKNN || op.req.Kind == vectordb.OpEmbeddingSearch {
				return op.req.K
			}
		}
	}
	return 0
}

// renderOrderBy writes declared ordering terms followed by ORDER
// BY-placed vector clauses, with the hybrid rewrite applied to the first
// vector expression.
func (c *compiler) renderOrderBy(q *Query, cfg *vectordb.Config, vectorOps []resolvedVectorOp) error {
	var terms []string
	for _, o := range q.orderBy {
		terms = append(terms, renderOrderTerm(o))
	}

	hybridApplied := false
	for _, op := range vectorOps {
		if op.placement != vectordb.PlacementOrderBy {
			continue
		}
		clause, params, _, err := cfg.Render(op.req, c.nextIndex())
		if err != nil {
			return err
		}
		c.appendParams(params)

		if q.hybrid != nil && !hybridApplied {
			orderColumns := make([]string, len(q.orderBy))
			for i, o := range q.orderBy {
				orderColumns[i] = o.Column
			}
			clause = q.hybrid.compose(clause, orderColumns)
			hybridApplied = true
		}
		terms = append(terms, clause)
	}

	if len(terms) > 0 {
		c.sql.WriteString(" ORDER BY ")
		c.sql.WriteString(strings.Join(terms, ", "))
	}
	return nil
}

func renderOrderTerm(o OrderBy) string {
	term := fmt.Sprintf("%s %s", o.Column, o.Direction)
	if o.Nulls != NullsDefault {
		term += " " + string(o.Nulls)
	}
	return term
}

func (c *compiler) renderInsert(q *Query) error {
	c.sql.WriteString("INSERT INTO ")
	c.sql.WriteString(q.table)

	switch {
	case len(q.bulkColumns) > 0:
		c.sql.WriteString(" (")
		c.sql.WriteString(strings.Join(q.bulkColumns, ", "))
		c.sql.WriteString(") VALUES ")
		tuples := make([]string, len(q.bulkRows))
		for i, row := range q.bulkRows {
			placeholders := make([]string, len(row))
			for j, v := range row {
				placeholders[j] = c.addParam(v)
			}
			tuples[i] = "(" + strings.Join(placeholders, ", ") + ")"
		}
		c.sql.WriteString(strings.Join(tuples, ", "))

	case len(q.assignments) > 0:
		columns := make([]string, len(q.assignments))
		placeholders := make([]string, len(q.assignments))
		for i, cv := range q.assignments {
			columns[i] = cv.Column
			placeholders[i] = c.addParam(cv.Value)
		}
		c.sql.WriteString(" (")
		c.sql.WriteString(strings.Join(columns, ", "))
		c.sql.WriteString(") VALUES (")
		c.sql.WriteString(strings.Join(placeholders, ", "))
		c.sql.WriteString(")")

	default:
		return fmt.Errorf("vecql: INSERT requires at least one value")
	}

	c.renderReturning(q)
	return nil
}

func (c *compiler) renderUpdate(q *Query) error {
	if len(q.assignments) == 0 {
		return fmt.Errorf("vecql: UPDATE requires at least one assignment")
	}

	c.sql.WriteString("UPDATE ")
	c.sql.WriteString(q.table)
	c.sql.WriteString(" SET ")

	sets := make([]string, len(q.assignments))
	for i, cv := range q.assignments {
		sets[i] = fmt.Sprintf("%s = %s", cv.Column, c.addParam(cv.Value))
	}
	c.sql.WriteString(strings.Join(sets, ", "))

	if err := c.renderWhere(q, c.reg.Resolve(q.vectorDialect), nil); err != nil {
		return err
	}
	c.renderReturning(q)
	return nil
}

func (c *compiler) renderDelete(q *Query) error {
	c.sql.WriteString("DELETE FROM ")
	c.sql.WriteString(q.table)

	if err := c.renderWhere(q, c.reg.Resolve(q.vectorDialect), nil); err != nil {
		return err
	}
	c.renderReturning(q)
	return nil
}

func (c *compiler) renderReturning(q *Query) {
	if len(q.returning) > 0 {
		c.sql.WriteString(" RETURNING ")
		c.sql.WriteString(strings.Join(q.returning, ", "))
	}
}
