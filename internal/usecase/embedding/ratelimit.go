package embedding

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/kailas-cloud/cvsearch/internal/domain"
)

// RateLimitedEmbedder spaces provider calls with a token bucket. Callers
// wait for a slot; a context that ends while waiting aborts the call.
type RateLimitedEmbedder struct {
	inner   domain.Embedder
	limiter *rate.Limiter
}

// NewRateLimitedEmbedder allows rps requests per second with the given burst.
// A non-positive rps returns inner unchanged.
func NewRateLimitedEmbedder(inner domain.Embedder, rps float64, burst int) domain.Embedder {
	if rps <= 0 {
		return inner
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimitedEmbedder{inner: inner, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Embed waits for the limiter, then delegates.
func (e *RateLimitedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("rate limit wait: %w", err)
	}
	res, err := e.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("rate limited embed: %w", err)
	}
	return res, nil
}
