// Package retrieval describes the store queries the search executors issue.
package retrieval

import (
	"github.com/kailas-cloud/cvsearch/internal/domain/search/ordering"
	"github.com/kailas-cloud/cvsearch/internal/domain/search/predicate"
)

// Vector pool sizing.
const (
	MinCandidates   = 100
	CandidateFactor = 3
	PoolFactor      = 5
)

// Vector is a filtered nearest-neighbour query. Pool bounds the ranked
// result set; Candidates is how many neighbours the index explores.
type Vector struct {
	Embedding  []float32
	Filter     predicate.Node
	Pool       int
	Candidates int
	Sort       ordering.Spec
}

// Text is a predicate query scored by the store's full-text index.
type Text struct {
	Where predicate.Node
	Sort  ordering.Spec
}

// VectorSizing returns the result pool and candidate count for a limit.
// The pool is limit*5 regardless of page, so every page of a query counts
// the same set; pages past the pool come back empty. Candidates are at
// least max(100, limit*3) and never fewer than the pool.
func VectorSizing(limit int) (pool, candidates int) {
	pool = limit * PoolFactor
	candidates = max(MinCandidates, limit*CandidateFactor, pool)
	return pool, candidates
}
