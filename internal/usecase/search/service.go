// Package search orchestrates record retrieval: vector first when allowed,
// text otherwise or as the fallback.
package search

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/cvsearch/internal/domain"
	"github.com/kailas-cloud/cvsearch/internal/domain/search/filter"
	"github.com/kailas-cloud/cvsearch/internal/domain/search/mode"
	"github.com/kailas-cloud/cvsearch/internal/domain/search/request"
	"github.com/kailas-cloud/cvsearch/internal/domain/search/result"
	"github.com/kailas-cloud/cvsearch/internal/logger"
	"github.com/kailas-cloud/cvsearch/internal/metrics"
)

// Service handles record search in vector, text and auto modes.
type Service struct {
	vector *vectorExecutor
	text   *textExecutor
}

// New creates a search service.
func New(vectors VectorStore, texts TextStore, embed Embedder) *Service {
	return &Service{
		vector: &vectorExecutor{store: vectors, embed: embed},
		text:   &textExecutor{store: texts},
	}
}

// outcome of a vector attempt as seen by the orchestrator.
type outcome uint8

const (
	outcomeFatal outcome = iota
	outcomeFallback
)

// Search runs one request. At most one attempt is made per strategy; the
// response names the strategy that produced it.
func (s *Service) Search(ctx context.Context, req request.Request) (result.Response, error) {
	if err := req.Check(); err != nil {
		return result.Response{}, err
	}
	start := time.Now()
	where := filter.Compile(req.Filters())
	st := req.SearchType()

	if st.AllowsVector() && req.HasQuery() {
		page, err := s.vector.run(ctx, &req, where)
		if err == nil {
			return s.respond(&req, page, mode.MethodVector, start), nil
		}
		if decide(ctx, st, err) == outcomeFatal {
			metrics.SearchRequestsTotal.WithLabelValues(mode.MethodVector.String(), "error").Inc()
			return result.Response{}, err
		}

		reason := fallbackReason(err)
		logger.FromContext(ctx).Warn("Vector search failed, falling back to text",
			zap.String("reason", reason),
			zap.Error(err),
		)
		metrics.SearchFallbacksTotal.WithLabelValues(reason).Inc()
		domain.UsageFromContext(ctx).MarkFallback()
	}

	page, err := s.text.run(ctx, &req, where)
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues(mode.MethodText.String(), "error").Inc()
		return result.Response{}, err
	}
	return s.respond(&req, page, mode.MethodText, start), nil
}

func (s *Service) respond(req *request.Request, page result.Page, method mode.Method, start time.Time) result.Response {
	page.Records = sanitize(page.Records)
	metrics.SearchRequestsTotal.WithLabelValues(method.String(), "ok").Inc()
	metrics.SearchDuration.WithLabelValues(method.String()).Observe(time.Since(start).Seconds())
	return result.New(page, req.Page(), req.Limit(), method, req.Query(), req.Filters())
}

// decide classifies a failed vector attempt. Cancellation, an unreachable
// store and an explicit vector request never fall back.
func decide(ctx context.Context, st mode.SearchType, err error) outcome {
	switch {
	case ctx.Err() != nil,
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return outcomeFatal
	case !st.AllowsFallback():
		return outcomeFatal
	case errors.Is(err, domain.ErrStoreUnavailable):
		return outcomeFatal
	}
	return outcomeFallback
}

func fallbackReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrEmbeddingQuotaExceeded):
		return "quota"
	case errors.Is(err, domain.ErrEmbeddingUnavailable):
		return "embedding"
	case errors.Is(err, domain.ErrQueryRejected):
		return "rejected"
	}
	return "other"
}
