package vecql

import (
	"github.com/vecql/vecql/vectordb"
)

// VectorOperation is one vector-search clause attached to a query. An
// empty Metric and a non-positive K are filled from the resolved
// dialect's defaults at compile time. Threshold defaults only when it
// was never set, so an explicit zero threshold is honored.
type VectorOperation struct {
	Column       string
	Kind         vectordb.OpKind
	Vector       []float64
	Literal      string
	Metric       string
	K            int
	Threshold    float64
	EfSearch     int
	CustomSyntax string
	Extra        map[string]any

	thresholdSet bool
}

// VectorOption tunes a vector operation.
type VectorOption func(*VectorOperation)

// WithMetric sets the distance metric (l2, cosine, inner_product, or a
// dialect-specific name).
func WithMetric(metric string) VectorOption {
	return func(op *VectorOperation) { op.Metric = metric }
}

// WithK sets the neighbor count. A non-positive k falls back to the
// dialect default.
func WithK(k int) VectorOption {
	return func(op *VectorOperation) { op.K = k }
}

// WithThreshold sets the match threshold. Zero is a valid threshold and
// suppresses the dialect default.
func WithThreshold(threshold float64) VectorOption {
	return func(op *VectorOperation) {
		op.Threshold = threshold
		op.thresholdSet = true
	}
}

// WithEfSearch sets the HNSW ef_search probe parameter for dialects that
// template it.
func WithEfSearch(ef int) VectorOption {
	return func(op *VectorOperation) { op.EfSearch = ef }
}

// WithVectorLiteral supplies an opaque pre-formatted vector literal in
// place of a numeric vector.
func WithVectorLiteral(literal string) VectorOption {
	return func(op *VectorOperation) { op.Literal = literal }
}

// WithExtra attaches a dialect-specific extra option.
func WithExtra(key string, value any) VectorOption {
	return func(op *VectorOperation) {
		if op.Extra == nil {
			op.Extra = make(map[string]any)
		}
		op.Extra[key] = value
	}
}

// addVectorOp records a vector operation on the query.
func (q *Query) addVectorOp(op VectorOperation, opts []VectorOption) *Query {
	if q.err != nil {
		return q
	}
	for _, apply := range opts {
		apply(&op)
	}
	q.vectorOps = append(q.vectorOps, op)
	return q
}

// KNNSearch adds a k-nearest-neighbor operation on a vector column.
func (q *Query) KNNSearch(column string, vector []float64, opts ...VectorOption) *Query {
	return q.addVectorOp(VectorOperation{Column: column, Kind: vectordb.OpKNN, Vector: vector}, opts)
}

// SimilaritySearch adds a similarity-score operation.
func (q *Query) SimilaritySearch(column string, vector []float64, opts ...VectorOption) *Query {
	return q.addVectorOp(VectorOperation{Column: column, Kind: vectordb.OpSimilarity, Vector: vector}, opts)
}

// DistanceSearch adds a raw distance operation.
func (q *Query) DistanceSearch(column string, vector []float64, opts ...VectorOption) *Query {
	return q.addVectorOp(VectorOperation{Column: column, Kind: vectordb.OpDistance, Vector: vector}, opts)
}

// VectorMatch adds a threshold-match predicate operation.
func (q *Query) VectorMatch(column string, vector []float64, threshold float64, opts ...VectorOption) *Query {
	op := VectorOperation{Column: column, Kind: vectordb.OpMatch, Vector: vector, Threshold: threshold, thresholdSet: true}
	return q.addVectorOp(op, opts)
}

// CosineSimilarity is SimilaritySearch pinned to the cosine metric.
func (q *Query) CosineSimilarity(column string, vector []float64, opts ...VectorOption) *Query {
	op := VectorOperation{Column: column, Kind: vectordb.OpSimilarity, Vector: vector, Metric: vectordb.MetricCosine}
	return q.addVectorOp(op, opts)
}

// EmbeddingSearch adds an embedding-search operation. The vector must
// already be computed; this layer never generates embeddings.
func (q *Query) EmbeddingSearch(column string, vector []float64, opts ...VectorOption) *Query {
	return q.addVectorOp(VectorOperation{Column: column, Kind: vectordb.OpEmbeddingSearch, Vector: vector}, opts)
}

// CustomVectorOperation adds an operation rendered from caller-supplied
// syntax. The syntax may use the same placeholders as dialect templates.
func (q *Query) CustomVectorOperation(column, syntax string, vector []float64, opts ...VectorOption) *Query {
	op := VectorOperation{Column: column, Kind: vectordb.OpCustom, Vector: vector, CustomSyntax: syntax}
	return q.addVectorOp(op, opts)
}

// UseVectorDB overrides the registry's active dialect for this query
// only; the registry-wide active name is unchanged.
func (q *Query) UseVectorDB(name string) *Query {
	if q.err != nil {
		return q
	}
	q.vectorDialect = name
	return q
}

// request converts an operation to the registry's request form.
func (op VectorOperation) request() vectordb.Request {
	req := vectordb.Request{
		Column:       op.Column,
		Kind:         op.Kind,
		Vector:       op.Vector,
		Literal:      op.Literal,
		Metric:       op.Metric,
		K:            op.K,
		EfSearch:     op.EfSearch,
		CustomSyntax: op.CustomSyntax,
		Extra:        op.Extra,
	}
	if op.thresholdSet {
		threshold := op.Threshold
		req.Threshold = &threshold
	}
	return req
}
