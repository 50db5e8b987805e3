// Package langchain embeds text through langchaingo, for OpenAI-compatible
// local servers such as Ollama or vLLM.
package langchain

import (
	"context"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/cvsearch/internal/domain"
	"github.com/kailas-cloud/cvsearch/internal/metrics"
)

// Config holds the provider settings.
type Config struct {
	BaseURL  string
	APIKey   string
	Model    string
	Provider string
	Logger   *zap.Logger
}

// Embedder adapts a langchaingo embedder to domain.Embedder. The backend
// reports no token usage, so results carry zero tokens.
type Embedder struct {
	inner    embeddings.Embedder
	model    string
	provider string
	logger   *zap.Logger
}

// NewEmbedder connects to an OpenAI-compatible endpoint.
func NewEmbedder(cfg Config) (*Embedder, error) {
	token := cfg.APIKey
	if token == "" {
		// Local servers ignore the token but the client requires one.
		token = "none"
	}
	opts := []openai.Option{
		openai.WithToken(token),
		openai.WithEmbeddingModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create langchain client: %w", err)
	}
	inner, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, fmt.Errorf("create langchain embedder: %w", err)
	}
	return Wrap(inner, cfg.Model, cfg.Provider, cfg.Logger), nil
}

// Wrap adapts an existing langchaingo embedder.
func Wrap(inner embeddings.Embedder, model, provider string, logger *zap.Logger) *Embedder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Embedder{inner: inner, model: model, provider: provider, logger: logger}
}

// Embed implements domain.Embedder.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	start := time.Now()
	vecs, err := e.inner.EmbedDocuments(ctx, []string{text})
	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, e.model, "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues(e.provider, e.model, "api_error").Inc()
		e.logger.Warn("Embedding request failed", zap.String("provider", e.provider), zap.Error(err))
		return domain.EmbeddingResult{}, fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
	}
	if len(vecs) == 0 || len(vecs[0]) == 0 {
		metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, e.model, "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues(e.provider, e.model, "empty_response").Inc()
		return domain.EmbeddingResult{}, fmt.Errorf("%w: empty embedding response", domain.ErrEmbeddingUnavailable)
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, e.model, "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(e.provider, e.model).Observe(time.Since(start).Seconds())
	return domain.EmbeddingResult{Embedding: vecs[0]}, nil
}

// HealthCheck embeds a short probe.
func (e *Embedder) HealthCheck(ctx context.Context) error {
	if _, err := e.inner.EmbedQuery(ctx, "health"); err != nil {
		return fmt.Errorf("embed probe: %w", err)
	}
	return nil
}
