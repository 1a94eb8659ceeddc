// Package vectordb holds named vector-search dialect configurations and
// the registry that resolves them at compile time. A configuration
// describes, per operation kind, how to render the vector clause for one
// backend, how to format vector literals, which defaults apply, and which
// SQL clause the rendered fragment is placed in.
package vectordb

import (
	"fmt"
	"strconv"
	"strings"
)

// OpKind identifies a vector operation.
type OpKind string

const (
	OpKNN             OpKind = "knn"
	OpDistance        OpKind = "distance"
	OpSimilarity      OpKind = "similarity"
	OpMatch           OpKind = "match"
	OpEmbeddingSearch OpKind = "embedding_search"
	OpCustom          OpKind = "custom"
)

// Placement identifies which SQL clause a rendered vector fragment is
// inserted into.
type Placement string

const (
	PlacementWhere   Placement = "WHERE"
	PlacementOrderBy Placement = "ORDER_BY"
	PlacementSelect  Placement = "SELECT"
)

// Request carries one vector operation, fully defaulted, to a config for
// rendering.
type Request struct {
	Column  string
	Kind    OpKind
	Vector  []float64
	Literal string // opaque pre-formatted literal; bypasses Vector
	Metric  string
	K       int
	// Threshold is nil when unset; zero is a valid explicit threshold.
	Threshold    *float64
	EfSearch     int
	CustomSyntax string
	Extra        map[string]any
}

// Strategy is the tagged rendering variant of a config: either template
// substitution or a formatter that owns clause and parameter generation.
type Strategy interface {
	isStrategy()
}

// TemplateBased renders operations by substituting placeholders into
// per-kind template strings. Recognized placeholders: {column} {vector}
// {k} {metric} {threshold} {efSearch}. {vector} and {threshold} become
// bound parameters; the rest are substituted inline.
type TemplateBased struct {
	Templates map[OpKind]string
	// Metrics maps metric names to the dialect token substituted for
	// {metric} (for pgvector these are operators like <=>).
	Metrics map[string]string
}

func (TemplateBased) isStrategy() {}

// FormatFunc renders a clause and its parameters directly, receiving the
// next 1-based parameter index and returning the index after the
// parameters it consumed.
type FormatFunc func(req Request, next int) (clause string, params []any, nextIndex int, err error)

// CustomFormatter bypasses templates entirely.
type CustomFormatter struct {
	Format FormatFunc
}

func (CustomFormatter) isStrategy() {}

// Config is a named vector dialect configuration.
type Config struct {
	Name     string
	Strategy Strategy
	// FormatVector converts a vector into the bind value sent to the
	// backend. Defaults to passing the slice through unchanged.
	FormatVector func([]float64) any
	// Defaults applied to operations that leave the field unset.
	DefaultMetric    string
	DefaultK         int
	DefaultThreshold float64
	// Placement is where rendered fragments go; PlacementOverrides
	// refines it per operation kind.
	Placement          Placement
	PlacementOverrides map[OpKind]Placement
}

// PlacementFor returns the clause placement for an operation kind.
func (c *Config) PlacementFor(kind OpKind) Placement {
	if p, ok := c.PlacementOverrides[kind]; ok {
		return p
	}
	if c.Placement == "" {
		return PlacementOrderBy
	}
	return c.Placement
}

// ApplyDefaults fills unset request fields from the config. A metric is
// unset when empty and k when non-positive, since a request for zero
// rows is never meaningful. The threshold is unset only when nil, so an
// explicit zero threshold survives.
func (c *Config) ApplyDefaults(req *Request) {
	if req.Metric == "" {
		req.Metric = c.DefaultMetric
	}
	if req.K <= 0 {
		req.K = c.DefaultK
	}
	if req.Threshold == nil {
		threshold := c.DefaultThreshold
		req.Threshold = &threshold
	}
}

// Render produces the SQL fragment for a request plus the parameters it
// binds, continuing the caller's 1-based parameter counter.
func (c *Config) Render(req Request, next int) (string, []any, int, error) {
	c.ApplyDefaults(&req)

	switch s := c.Strategy.(type) {
	case TemplateBased:
		return c.renderTemplate(s, req, next)
	case CustomFormatter:
		if s.Format == nil {
			return "", nil, next, fmt.Errorf("vectordb: dialect %q has no formatter", c.Name)
		}
		return s.Format(req, next)
	default:
		return "", nil, next, fmt.Errorf("vectordb: dialect %q has unknown strategy %T", c.Name, c.Strategy)
	}
}

func (c *Config) renderTemplate(s TemplateBased, req Request, next int) (string, []any, int, error) {
	if req.Kind == OpCustom {
		if req.CustomSyntax == "" {
			return "", nil, next, fmt.Errorf("vectordb: custom operation on %q has no syntax", req.Column)
		}
		return c.substitute(req.CustomSyntax, req, next)
	}

	tmpl, ok := s.Templates[req.Kind]
	if !ok {
		// Embedding search shares the KNN shape when not specialized.
		if req.Kind == OpEmbeddingSearch {
			tmpl, ok = s.Templates[OpKNN]
		}
		if !ok {
			return "", nil, next, UnsupportedOperationError{
				Dialect: c.Name,
				Kind:    req.Kind,
				Hint:    "register a template for this operation or use CustomVectorOperation",
			}
		}
	}

	if strings.Contains(tmpl, "{metric}") {
		metric := req.Metric
		if s.Metrics != nil {
			if tok, ok := s.Metrics[req.Metric]; ok {
				metric = tok
			}
		}
		tmpl = strings.ReplaceAll(tmpl, "{metric}", metric)
	}

	return c.substitute(tmpl, req, next)
}

// substitute replaces the remaining placeholders, binding {vector} and
// {threshold} as parameters.
func (c *Config) substitute(tmpl string, req Request, next int) (string, []any, int, error) {
	var params []any

	clause := strings.ReplaceAll(tmpl, "{column}", req.Column)
	clause = strings.ReplaceAll(clause, "{k}", strconv.Itoa(req.K))
	clause = strings.ReplaceAll(clause, "{efSearch}", strconv.Itoa(req.EfSearch))

	if strings.Contains(clause, "{vector}") {
		var value any
		switch {
		case req.Literal != "":
			value = req.Literal
		case c.FormatVector != nil:
			value = c.FormatVector(req.Vector)
		default:
			value = req.Vector
		}
		clause = strings.ReplaceAll(clause, "{vector}", "$"+strconv.Itoa(next))
		params = append(params, value)
		next++
	}

	if strings.Contains(clause, "{threshold}") {
		var threshold float64
		if req.Threshold != nil {
			threshold = *req.Threshold
		}
		clause = strings.ReplaceAll(clause, "{threshold}", "$"+strconv.Itoa(next))
		params = append(params, threshold)
		next++
	}

	return clause, params, next, nil
}
