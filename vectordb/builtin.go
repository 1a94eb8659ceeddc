package vectordb

import (
	"fmt"
	"strconv"
	"strings"
)

// Builtin dialect names.
const (
	DialectDefault   = "default"
	DialectPgvector  = "pgvector"
	DialectSQLiteVSS = "sqlite-vss"
)

// Metric names shared across dialects.
const (
	MetricL2           = "l2"
	MetricCosine       = "cosine"
	MetricInnerProduct = "inner_product"
)

// formatBracketVector renders a vector as a pgvector-style literal,
// e.g. [0.1,0.2,0.3].
func formatBracketVector(v []float64) any {
	parts := make([]string, len(v))
	for i, f := range v {
		parts[i] = strconv.FormatFloat(f, 'g', -1, 64)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// formatJSONVector renders a vector as a JSON array string for backends
// that parse vectors out of JSON text.
func formatJSONVector(v []float64) any {
	parts := make([]string, len(v))
	for i, f := range v {
		parts[i] = strconv.FormatFloat(f, 'g', -1, 64)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// builtinConfigs returns the dialect configurations every registry ships
// with.
func builtinConfigs() []*Config {
	return []*Config{
		// Generic fallback: a vector_distance() function call, ordered
		// ascending. Works as a template for function-based backends.
		{
			Name: DialectDefault,
			Strategy: TemplateBased{
				Templates: map[OpKind]string{
					OpKNN:        "vector_distance({column}, {vector})",
					OpDistance:   "vector_distance({column}, {vector})",
					OpSimilarity: "1 - vector_distance({column}, {vector})",
					OpMatch:      "vector_distance({column}, {vector}) < {threshold}",
				},
			},
			DefaultMetric:    MetricCosine,
			DefaultK:         10,
			DefaultThreshold: 0.5,
			Placement:        PlacementOrderBy,
			PlacementOverrides: map[OpKind]Placement{
				OpMatch:      PlacementWhere,
				OpSimilarity: PlacementSelect,
			},
		},
		// pgvector: distance operators chosen by metric, bracket
		// literals, KNN via ORDER BY.
		{
			Name: DialectPgvector,
			Strategy: TemplateBased{
				Templates: map[OpKind]string{
					OpKNN:        "{column} {metric} {vector}",
					OpDistance:   "{column} {metric} {vector}",
					OpSimilarity: "1 - ({column} <=> {vector})",
					OpMatch:      "{column} {metric} {vector} < {threshold}",
				},
				Metrics: map[string]string{
					MetricL2:           "<->",
					MetricCosine:       "<=>",
					MetricInnerProduct: "<#>",
				},
			},
			FormatVector:     formatBracketVector,
			DefaultMetric:    MetricCosine,
			DefaultK:         10,
			DefaultThreshold: 0.3,
			Placement:        PlacementOrderBy,
			PlacementOverrides: map[OpKind]Placement{
				OpMatch:      PlacementWhere,
				OpSimilarity: PlacementSelect,
			},
		},
		// sqlite-vss: vss_search() is a table predicate, so everything
		// lands in WHERE and the compiler folds k into LIMIT for
		// nearest-neighbor searches.
		{
			Name: DialectSQLiteVSS,
			Strategy: TemplateBased{
				Templates: map[OpKind]string{
					OpKNN:        "vss_search({column}, {vector})",
					OpDistance:   "vss_search({column}, {vector})",
					OpSimilarity: "vss_search({column}, {vector})",
					OpMatch:      "vss_search({column}, {vector})",
				},
			},
			FormatVector:     formatJSONVector,
			DefaultMetric:    MetricL2,
			DefaultK:         10,
			DefaultThreshold: 0.5,
			Placement:        PlacementWhere,
		},
	}
}

// NewCustomConfig is a convenience for registering formatter-backed
// dialects.
func NewCustomConfig(name string, format FormatFunc) (*Config, error) {
	if name == "" {
		return nil, fmt.Errorf("vectordb: config name is required")
	}
	if format == nil {
		return nil, fmt.Errorf("vectordb: formatter is required")
	}
	return &Config{
		Name:      name,
		Strategy:  CustomFormatter{Format: format},
		Placement: PlacementOrderBy,
	}, nil
}
