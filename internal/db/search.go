package db

import (
	"github.com/kailas-cloud/cvsearch/internal/domain/search/ordering"
	"github.com/kailas-cloud/cvsearch/internal/domain/search/predicate"
)

// KNNQuery is the input for filtered vector similarity search.
type KNNQuery struct {
	IndexName   string
	VectorField string
	Vector      []float32
	Filter      predicate.Node
	// K bounds the result pool; EFRuntime is the candidate pool explored by the ANN index.
	K         int
	EFRuntime int
	Sort      ordering.Spec
	Offset    int
	Limit     int
	// ReturnFields projects the listed fields; heavy fields are left out by omission.
	ReturnFields []string
}

// TextQuery is the input for predicate retrieval with native text relevance.
// Text nodes inside Where are scored by the store's full-text index.
type TextQuery struct {
	IndexName    string
	Where        predicate.Node
	Sort         ordering.Spec
	Offset       int
	Limit        int
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit. Field values are the store's
// string rendering: plain text for strings and numbers, JSON for arrays and objects.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
