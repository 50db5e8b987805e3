package cvsearch

import (
	"context"
	"fmt"
	"time"

	"github.com/kailas-cloud/cvsearch/internal/domain/record"
)

// RecordService stores and fetches records.
type RecordService struct {
	ingest  ingestUseCase
	records recordUseCase
	obs     *observer
}

// Ingest upserts records and embeds their content. An empty ID is generated.
// Per-record failures are reported in the results, in input order; the
// returned error is set only when the batch as a whole failed.
func (s *RecordService) Ingest(ctx context.Context, recs []Record) (_ []IngestResult, err error) {
	start := time.Now()
	defer func() { s.obs.observe("ingest", start, err) }()

	if len(recs) == 0 {
		return nil, fmt.Errorf("ingest: %w: no records", ErrInvalidRequest)
	}

	drafts := make([]record.Draft, len(recs))
	for i := range recs {
		drafts[i] = toDraft(&recs[i])
	}

	results := s.ingest.Ingest(ctx, drafts)
	out := make([]IngestResult, len(results))
	failed := 0
	for i, r := range results {
		out[i] = IngestResult{ID: r.ID(), Embedded: r.Embedded(), Err: r.Err()}
		if r.Err() != nil {
			failed++
		}
	}
	if failed == len(results) {
		return out, fmt.Errorf("ingest: all %d records failed: %w", failed, results[0].Err())
	}
	return out, nil
}

// Get returns a record by id. Like search hits, the record comes back
// without its content or embedding.
func (s *RecordService) Get(ctx context.Context, id string) (_ Record, err error) {
	start := time.Now()
	defer func() { s.obs.observe("get", start, err) }()

	rec, err := s.records.Get(ctx, id)
	if err != nil {
		return Record{}, fmt.Errorf("get %q: %w", id, err)
	}
	return fromRecord(&rec), nil
}

// Delete removes a record. Deleting a missing id returns ErrNotFound.
func (s *RecordService) Delete(ctx context.Context, id string) (err error) {
	start := time.Now()
	defer func() { s.obs.observe("delete", start, err) }()

	if err = s.records.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete %q: %w", id, err)
	}
	return nil
}
