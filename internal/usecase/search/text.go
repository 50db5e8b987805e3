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
	"github.com/kailas-cloud/cvsearch/internal/domain/search/textquery"
)

// textExecutor matches the query text, or everything when there is none,
// within the filter.
type textExecutor struct {
	store TextStore
}

func (e *textExecutor) run(ctx context.Context, req *request.Request, filter predicate.Node) (result.Page, error) {
	q := retrieval.Text{
		Where: predicate.And(textquery.Build(req.Query()), filter),
		Sort:  ordering.Resolve(req.SortBy(), req.SortOrder(), false),
	}

	var (
		records []record.Record
		total   int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		records, err = e.store.SearchText(gctx, q, req.Offset(), req.Limit())
		return err
	})
	g.Go(func() error {
		var err error
		total, err = e.store.CountText(gctx, q.Where)
		return err
	})
	if err := g.Wait(); err != nil {
		return result.Page{}, fmt.Errorf("%w: %w", domain.ErrTextSearchFailed, err)
	}

	if len(records) > 0 {
		total = max(total, req.Offset()+len(records))
	}
	return result.Page{Records: records, Total: total}, nil
}
