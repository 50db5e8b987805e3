package cvsearch

import "github.com/kailas-cloud/cvsearch/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrNotFound             = domain.ErrNotFound
	ErrInvalidRequest       = domain.ErrInvalidRequest
	ErrEmbeddingUnavailable = domain.ErrEmbeddingUnavailable
	ErrVectorSearchFailed   = domain.ErrVectorSearchFailed
	ErrTextSearchFailed     = domain.ErrTextSearchFailed
	ErrStoreUnavailable     = domain.ErrStoreUnavailable
	ErrQueryRejected        = domain.ErrQueryRejected
)
