package vecql

import (
	"fmt"
	"time"
)

// Named time ranges accepted by TimeRange.
const (
	RangeToday     = "today"
	RangeYesterday = "yesterday"
	RangeThisWeek  = "this_week"
	RangeLastWeek  = "last_week"
	RangeThisMonth = "this_month"
	RangeLastMonth = "last_month"
)

// addAggregate forces the query onto SELECT and records the projection.
func (q *Query) addAggregate(fn AggregateFunc, column string, alias []string) *Query {
	if q.err != nil {
		return q
	}
	q.kind = KindSelect
	agg := Aggregate{Func: fn, Column: column}
	if len(alias) > 0 {
		agg.Alias = alias[0]
	}
	q.aggregates = append(q.aggregates, agg)
	return q
}

// Count adds a COUNT aggregate projection and forces the query to SELECT.
func (q *Query) Count(column string, alias ...string) *Query {
	return q.addAggregate(AggCount, column, alias)
}

// Sum adds a SUM aggregate projection.
func (q *Query) Sum(column string, alias ...string) *Query {
	return q.addAggregate(AggSum, column, alias)
}

// Avg adds an AVG aggregate projection.
func (q *Query) Avg(column string, alias ...string) *Query {
	return q.addAggregate(AggAvg, column, alias)
}

// Min adds a MIN aggregate projection.
func (q *Query) Min(column string, alias ...string) *Query {
	return q.addAggregate(AggMin, column, alias)
}

// Max adds a MAX aggregate projection.
func (q *Query) Max(column string, alias ...string) *Query {
	return q.addAggregate(AggMax, column, alias)
}

// Window appends a window-function expression to the projected columns.
func (q *Query) Window(function string, partitionBy []string, order []OrderBy, alias string) *Query {
	if q.err != nil {
		return q
	}
	if alias == "" {
		q.err = fmt.Errorf("vecql: window function requires an alias")
		return q
	}
	q.windows = append(q.windows, WindowFunc{
		Function:    function,
		PartitionBy: partitionBy,
		OrderBy:     order,
		Alias:       alias,
	})
	return q
}

// JSONPath projects a JSON path extraction. The path is dot-separated
// and rendered inline; the final segment is extracted as text.
func (q *Query) JSONPath(column, path, alias string) *Query {
	if q.err != nil {
		return q
	}
	if path == "" {
		q.err = fmt.Errorf("vecql: json path is empty")
		return q
	}
	q.jsonPaths = append(q.jsonPaths, JSONPath{Column: column, Path: path, Alias: alias})
	return q
}

// TextSearch adds a full-text search predicate over the given columns.
// Dialect handling happens at compile time: tsquery matching for full
// dialects, a LIKE fallback otherwise.
func (q *Query) TextSearch(query string, columns ...string) *Query {
	if q.err != nil {
		return q
	}
	if len(columns) == 0 {
		q.err = fmt.Errorf("vecql: text search requires at least one column")
		return q
	}
	q.textSearches = append(q.textSearches, TextSearchClause{
		Columns:  columns,
		Query:    query,
		Language: "english",
	})
	return q
}

// Case projects a searched CASE expression.
func (q *Query) Case(expr CaseExpression) *Query {
	if q.err != nil {
		return q
	}
	if len(expr.Whens) == 0 {
		q.err = fmt.Errorf("vecql: case expression requires at least one WHEN")
		return q
	}
	if expr.Alias == "" {
		q.err = fmt.Errorf("vecql: case expression requires an alias")
		return q
	}
	q.cases = append(q.cases, expr)
	return q
}

// RawSQL appends a verbatim predicate fragment and its bound parameters
// to the WHERE clause. The fragment uses one ? per parameter; each ? is
// rewritten to the statement's next contiguous $n placeholder at compile
// time. Fragment text is otherwise passed through unchecked.
func (q *Query) RawSQL(sql string, params ...any) *Query {
	if q.err != nil {
		return q
	}
	q.raws = append(q.raws, RawFragment{SQL: sql, Params: params})
	return q
}

// TimeRange resolves a named range to concrete start/end timestamps and
// applies them via a BETWEEN predicate on the column.
func (q *Query) TimeRange(column, name string) *Query {
	if q.err != nil {
		return q
	}
	start, end, err := resolveTimeRange(name, now())
	if err != nil {
		q.err = err
		return q
	}
	return q.WhereBetween(column, start, end)
}

// resolveTimeRange computes the closed [start, end) bounds for a named
// range relative to ref.
func resolveTimeRange(name string, ref time.Time) (start, end time.Time, err error) {
	day := time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, ref.Location())

	switch name {
	case RangeToday:
		return day, day.AddDate(0, 0, 1), nil
	case RangeYesterday:
		return day.AddDate(0, 0, -1), day, nil
	case RangeThisWeek:
		weekStart := day.AddDate(0, 0, -int(day.Weekday()))
		return weekStart, weekStart.AddDate(0, 0, 7), nil
	case RangeLastWeek:
		weekStart := day.AddDate(0, 0, -int(day.Weekday())-7)
		return weekStart, weekStart.AddDate(0, 0, 7), nil
	case RangeThisMonth:
		monthStart := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, ref.Location())
		return monthStart, monthStart.AddDate(0, 1, 0), nil
	case RangeLastMonth:
		monthStart := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, ref.Location())
		return monthStart.AddDate(0, -1, 0), monthStart, nil
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("vecql: unknown time range %q", name)
	}
}

// GeoRadius adds a Haversine great-circle distance predicate selecting
// rows within radiusKM of the given point. Earth radius 6371 km.
func (q *Query) GeoRadius(latColumn, lngColumn string, lat, lng, radiusKM float64) *Query {
	if q.err != nil {
		return q
	}
	fragment := fmt.Sprintf(
		"(6371 * acos(cos(radians(?)) * cos(radians(%s)) * cos(radians(%s) - radians(?)) + sin(radians(?)) * sin(radians(%s)))) <= ?",
		latColumn, lngColumn, latColumn,
	)
	return q.RawSQL(fragment, lat, lng, lat, radiusKM)
}
