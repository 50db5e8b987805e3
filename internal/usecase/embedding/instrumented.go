// Package embedding holds the embedder decorators between the provider and
// the use cases: rate limiting, budget enforcement and usage accounting.
package embedding

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/cvsearch/internal/domain"
	domusage "github.com/kailas-cloud/cvsearch/internal/domain/usage"
	"github.com/kailas-cloud/cvsearch/internal/metrics"
)

// BudgetChecker gates provider calls and bills the tokens they consume.
type BudgetChecker interface {
	Check(ctx context.Context) error
	Record(tokens int64)
	Snapshot(p domusage.Period) (int64, domusage.Budget)
}

// InstrumentedEmbedder wraps Embedder with budget enforcement, usage
// accounting and logging. Every failure below it surfaces as
// domain.ErrEmbeddingUnavailable with the cause kept in the chain.
type InstrumentedEmbedder struct {
	inner    domain.Embedder
	provider string
	model    string
	budget   BudgetChecker
	logger   *zap.Logger
}

// NewInstrumentedEmbedder wraps an embedder with budget and observability.
// budget may be nil.
func NewInstrumentedEmbedder(
	inner domain.Embedder, provider, model string,
	budget BudgetChecker, logger *zap.Logger,
) *InstrumentedEmbedder {
	return &InstrumentedEmbedder{
		inner:    inner,
		provider: provider,
		model:    model,
		budget:   budget,
		logger:   logger,
	}
}

// Embed checks budget, delegates to the inner embedder, and records usage.
func (p *InstrumentedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if p.budget != nil {
		if err := p.budget.Check(ctx); err != nil {
			p.logger.Error("Budget exceeded",
				zap.String("provider", p.provider),
				zap.String("model", p.model),
				zap.Error(err),
			)
			return domain.EmbeddingResult{}, fmt.Errorf("%w: budget check: %w", domain.ErrEmbeddingUnavailable, err)
		}
	}

	start := time.Now()
	result, err := p.inner.Embed(ctx, text)
	duration := time.Since(start)

	if err != nil {
		p.logger.Error("Embedding request failed",
			zap.String("provider", p.provider),
			zap.String("model", p.model),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return domain.EmbeddingResult{}, fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
	}
	if len(result.Embedding) == 0 {
		return domain.EmbeddingResult{}, fmt.Errorf("%w: empty embedding", domain.ErrEmbeddingUnavailable)
	}

	domain.UsageFromContext(ctx).AddTokens(result.TotalTokens)

	if p.budget != nil && result.TotalTokens > 0 {
		p.budget.Record(int64(result.TotalTokens))
		for _, period := range []domusage.Period{domusage.PeriodDay, domusage.PeriodMonth} {
			if _, b := p.budget.Snapshot(period); !b.Unlimited() {
				metrics.EmbeddingBudgetTokensRemaining.
					WithLabelValues(p.provider, string(period)).Set(float64(b.Remaining()))
			}
		}
	}

	p.logger.Debug("Embedding request completed",
		zap.String("provider", p.provider),
		zap.String("model", p.model),
		zap.Duration("duration", duration),
		zap.Int("dimensions", len(result.Embedding)),
		zap.Int("prompt_tokens", result.PromptTokens),
		zap.Int("total_tokens", result.TotalTokens),
	)

	return result, nil
}
