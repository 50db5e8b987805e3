package domain

import "errors"

var (
	// ErrInvalidRequest signals a malformed or empty search request.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrNotFound signals a missing record.
	ErrNotFound = errors.New("not found")

	// ErrEmbeddingUnavailable signals an embedding provider, quota or network failure.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
	// ErrEmbeddingQuotaExceeded signals an exhausted embedding token budget.
	// Always surfaced together with ErrEmbeddingUnavailable.
	ErrEmbeddingQuotaExceeded = errors.New("embedding quota exceeded")

	// ErrVectorSearchFailed signals a failure on the vector retrieval path.
	ErrVectorSearchFailed = errors.New("vector search failed")
	// ErrTextSearchFailed signals a failure on the text retrieval path.
	ErrTextSearchFailed = errors.New("text search failed")

	// ErrStoreUnavailable signals that the record store could not be reached.
	ErrStoreUnavailable = errors.New("record store unavailable")
	// ErrQueryRejected signals that the store refused a query (unknown field, missing index, syntax).
	ErrQueryRejected = errors.New("query rejected by store")
)
