package vecql

import (
	"fmt"
	"strings"
)

// Weight map keys recognized by the hybrid ranking composer.
const (
	WeightVector     = "vector"
	WeightRecency    = "recency"
	WeightPopularity = "popularity"
)

// HybridRanking blends a vector ordering expression with secondary
// weighted factors into a single ORDER BY expression.
type HybridRanking struct {
	Weights map[string]float64
}

// HybridRank attaches hybrid ranking weights to the query. At compile
// time the vector ORDER BY expression is rewritten to blend in recency
// and popularity factors; weights need not sum to 1.
func (q *Query) HybridRank(weights map[string]float64) *Query {
	if q.err != nil {
		return q
	}
	if len(weights) == 0 {
		q.err = fmt.Errorf("vecql: hybrid ranking requires a weight map")
		return q
	}
	q.hybrid = &HybridRanking{Weights: weights}
	return q
}

// Column-name substrings used to guess which declared ORDER BY columns
// carry the recency and popularity signals. This inference is a
// best-effort heuristic: when no column matches, that factor is silently
// omitted.
var (
	recencySubstrings    = []string{"date", "time"}
	popularitySubstrings = []string{"view", "like", "score", "popular"}
)

// findColumn returns the first column whose lowercased name contains one
// of the substrings.
func findColumn(columns []string, substrings []string) (string, bool) {
	for _, col := range columns {
		lower := strings.ToLower(col)
		for _, sub := range substrings {
			if strings.Contains(lower, sub) {
				return col, true
			}
		}
	}
	return "", false
}

// compose rewrites a vector ordering expression into the blended form
// (vectorWeight * expr) [+ recencyWeight * age-in-days] [- popularityWeight * log(pop+1)].
// orderColumns are the column names already declared in ORDER BY, used
// for the factor-column heuristic.
func (h *HybridRanking) compose(vectorExpr string, orderColumns []string) string {
	vectorWeight, ok := h.Weights[WeightVector]
	if !ok {
		vectorWeight = 1
	}

	var b strings.Builder
	fmt.Fprintf(&b, "(%s * (%s))", formatWeight(vectorWeight), vectorExpr)

	if w, ok := h.Weights[WeightRecency]; ok {
		if col, found := findColumn(orderColumns, recencySubstrings); found {
			fmt.Fprintf(&b, " + %s * (EXTRACT(EPOCH FROM (NOW() - %s)) / 86400)", formatWeight(w), col)
		}
	}

	if w, ok := h.Weights[WeightPopularity]; ok {
		if col, found := findColumn(orderColumns, popularitySubstrings); found {
			fmt.Fprintf(&b, " - %s * LOG(%s + 1)", formatWeight(w), col)
		}
	}

	return b.String()
}

// formatWeight renders a weight without trailing zeros.
func formatWeight(w float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.6f", w), "0"), ".")
}
