package search

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/cvsearch/internal/domain"
	"github.com/kailas-cloud/cvsearch/internal/domain/record"
	"github.com/kailas-cloud/cvsearch/internal/domain/search/ordering"
	"github.com/kailas-cloud/cvsearch/internal/domain/search/predicate"
	"github.com/kailas-cloud/cvsearch/internal/domain/search/request"
	"github.com/kailas-cloud/cvsearch/internal/domain/search/result"
	"github.com/kailas-cloud/cvsearch/internal/domain/search/retrieval"
)

// vectorExecutor embeds the query and ranks records by similarity inside
// the filtered candidate set. It makes one attempt; retrying is the caller's call.
type vectorExecutor struct {
	store VectorStore
	embed Embedder
}

func (e *vectorExecutor) run(ctx context.Context, req *request.Request, filter predicate.Node) (result.Page, error) {
	emb, err := e.embed.Embed(ctx, req.Query())
	if err != nil {
		return result.Page{}, fmt.Errorf("%w: vectorize query: %w", domain.ErrVectorSearchFailed, err)
	}

	pool, candidates := retrieval.VectorSizing(req.Limit())
	q := retrieval.Vector{
		Embedding:  emb.Embedding,
		Filter:     filter,
		Pool:       pool,
		Candidates: candidates,
		Sort:       ordering.Resolve(req.SortBy(), req.SortOrder(), true),
	}

	var (
		records []record.Record
		total   int
	)
	g, gctx := errgroup.WithContext(ctx)
	if req.Offset() < pool {
		g.Go(func() error {
			var err error
			records, err = e.store.SearchVector(gctx, q, req.Offset(), req.Limit())
			return err
		})
	}
	g.Go(func() error {
		var err error
		total, err = e.store.CountVector(gctx, q)
		return err
	})
	if err := g.Wait(); err != nil {
		return result.Page{}, fmt.Errorf("%w: %w", domain.ErrVectorSearchFailed, err)
	}

	if len(records) > 0 {
		total = max(total, req.Offset()+len(records))
	}
	return result.Page{Records: records, Total: total}, nil
}
