package cvsearch

import "context"

// Embedder vectorizes record content on ingest and the query on search.
// Every vector must have the dimensions set with WithVectorDimensions.
//
// An Embedder that also has a HealthCheck(ctx) error method is probed by
// Client.Health.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// EmbeddingResult carries the vector and the tokens the provider billed.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}
