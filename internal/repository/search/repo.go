// Package search runs record retrieval against the store's search index.
package search

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/cvsearch/internal/db"
	"github.com/kailas-cloud/cvsearch/internal/domain"
	domrec "github.com/kailas-cloud/cvsearch/internal/domain/record"
	"github.com/kailas-cloud/cvsearch/internal/domain/search/predicate"
	"github.com/kailas-cloud/cvsearch/internal/domain/search/retrieval"
)

// store is the consumer interface for search operations (ISP).
type store interface {
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchText(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
}

// Config names the index and the key prefix of record documents.
type Config struct {
	IndexName string
	Prefix    string
}

// returnFields is everything a client may see. Content and embedding are
// never requested, so they never leave the store.
var returnFields = []string{
	domrec.FieldID,
	domrec.FieldUploadDate,
	domrec.FieldSkills,
	domrec.FieldExperience,
	domrec.FieldJobTitles,
	domrec.FieldEducation,
	domrec.FieldContact,
	domrec.FieldMetadata,
}

// Repo implements usecase/search.VectorStore and TextStore.
type Repo struct {
	store store
	cfg   Config
}

// New creates a search repository.
func New(s store, cfg Config) *Repo {
	return &Repo{store: s, cfg: cfg}
}

// SearchVector returns one page of the KNN result pool.
func (r *Repo) SearchVector(ctx context.Context, q retrieval.Vector, offset, limit int) ([]domrec.Record, error) {
	sr, err := r.store.SearchKNN(ctx, r.knnQuery(q, offset, limit))
	if err != nil {
		return nil, mapError("search knn", err)
	}
	return r.parseEntries(sr)
}

// CountVector returns the size of the KNN result pool.
func (r *Repo) CountVector(ctx context.Context, q retrieval.Vector) (int, error) {
	sr, err := r.store.SearchKNN(ctx, r.knnQuery(q, 0, 0))
	if err != nil {
		return 0, mapError("count knn", err)
	}
	return sr.Total, nil
}

// SearchText returns one page of records matching the query.
func (r *Repo) SearchText(ctx context.Context, q retrieval.Text, offset, limit int) ([]domrec.Record, error) {
	sr, err := r.store.SearchText(ctx, &db.TextQuery{
		IndexName:    r.cfg.IndexName,
		Where:        q.Where,
		Sort:         q.Sort,
		Offset:       offset,
		Limit:        limit,
		ReturnFields: returnFields,
	})
	if err != nil {
		return nil, mapError("search text", err)
	}
	return r.parseEntries(sr)
}

// CountText returns the exact number of records matching where.
func (r *Repo) CountText(ctx context.Context, where predicate.Node) (int, error) {
	sr, err := r.store.SearchText(ctx, &db.TextQuery{
		IndexName: r.cfg.IndexName,
		Where:     where,
	})
	if err != nil {
		return 0, mapError("count text", err)
	}
	return sr.Total, nil
}

func (r *Repo) knnQuery(q retrieval.Vector, offset, limit int) *db.KNNQuery {
	return &db.KNNQuery{
		IndexName:    r.cfg.IndexName,
		VectorField:  domrec.FieldEmbedding,
		Vector:       q.Embedding,
		Filter:       q.Filter,
		K:            q.Pool,
		EFRuntime:    q.Candidates,
		Sort:         q.Sort,
		Offset:       offset,
		Limit:        limit,
		ReturnFields: returnFields,
	}
}

// mapError classifies store failures. Context errors pass through unchanged
// so callers can tell cancellation from an outage.
func mapError(op string, err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w", op, err)
	case errors.Is(err, db.ErrRejected):
		return fmt.Errorf("%s: %w: %w", op, domain.ErrQueryRejected, err)
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStoreUnavailable, err)
}
