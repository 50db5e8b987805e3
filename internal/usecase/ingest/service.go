// Package ingest turns record drafts into stored, embedded records.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/cvsearch/internal/domain"
	dombatch "github.com/kailas-cloud/cvsearch/internal/domain/batch"
	"github.com/kailas-cloud/cvsearch/internal/domain/record"
	"github.com/kailas-cloud/cvsearch/internal/logger"
	"github.com/kailas-cloud/cvsearch/internal/metrics"
)

// MaxBatchSize is the default maximum number of drafts per call.
const MaxBatchSize = 100

// Service ingests record drafts with per-item results.
type Service struct {
	writer       BulkWriter
	embed        Embedder
	pool         *ants.Pool
	maxBatchSize int
	dimensions   int
	logger       *zap.Logger
	now          func() time.Time
}

// Option configures a Service.
type Option func(*Service) error

// WithPoolSize sets the number of concurrent embedding workers.
// Default is runtime.NumCPU(), minimum 1.
func WithPoolSize(size int) Option {
	return func(s *Service) error {
		pool, err := ants.NewPool(max(size, 1))
		if err != nil {
			return fmt.Errorf("create worker pool: %w", err)
		}
		if s.pool != nil {
			s.pool.Release()
		}
		s.pool = pool
		return nil
	}
}

// WithMaxBatchSize limits drafts per call.
func WithMaxBatchSize(size int) Option {
	return func(s *Service) error {
		if size > 0 {
			s.maxBatchSize = size
		}
		return nil
	}
}

// WithDimensions rejects vectors whose length differs from the index
// dimension; such records are stored without an embedding. Zero disables the check.
func WithDimensions(dim int) Option {
	return func(s *Service) error {
		if dim < 0 {
			return fmt.Errorf("dimensions must not be negative, got %d", dim)
		}
		s.dimensions = dim
		return nil
	}
}

// WithLogger sets the logger. Default is a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) error {
		if l != nil {
			s.logger = l
		}
		return nil
	}
}

// New creates an ingestion service. Call Release when done.
func New(writer BulkWriter, embed Embedder, opts ...Option) (*Service, error) {
	s := &Service{
		writer:       writer,
		embed:        embed,
		maxBatchSize: MaxBatchSize,
		logger:       zap.NewNop(),
		now:          time.Now,
	}
	if err := WithPoolSize(runtime.NumCPU())(s); err != nil {
		return nil, err
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			s.Release()
			return nil, err
		}
	}
	return s, nil
}

// Release stops the worker pool.
func (s *Service) Release() {
	if s.pool != nil {
		s.pool.Release()
	}
}

// Ingest validates, embeds and stores drafts. Results follow input order.
// A record whose embedding fails is stored without one and stays reachable
// by text search.
func (s *Service) Ingest(ctx context.Context, drafts []record.Draft) []dombatch.Result {
	results := make([]dombatch.Result, len(drafts))

	if len(drafts) > s.maxBatchSize {
		err := fmt.Errorf("%w: batch size exceeds %d", domain.ErrInvalidRequest, s.maxBatchSize)
		for i := range drafts {
			results[i] = dombatch.NewError(drafts[i].ID, err)
		}
		s.count(results)
		return results
	}

	recs := make([]record.Record, len(drafts))
	valid := make([]int, 0, len(drafts))
	for i := range drafts {
		rec, err := s.build(&drafts[i])
		if err != nil {
			results[i] = dombatch.NewError(drafts[i].ID, err)
			continue
		}
		recs[i] = rec
		valid = append(valid, i)
	}

	embedded := s.embedAll(ctx, recs, valid)
	if err := ctx.Err(); err != nil {
		for _, i := range valid {
			results[i] = dombatch.NewError(recs[i].ID(), err)
		}
		s.count(results)
		return results
	}

	batch := make([]record.Record, 0, len(valid))
	for _, i := range valid {
		batch = append(batch, recs[i])
	}
	if len(batch) > 0 {
		if err := s.writer.BatchUpsert(ctx, batch); err != nil {
			for _, i := range valid {
				results[i] = dombatch.NewError(recs[i].ID(), fmt.Errorf("batch upsert: %w", err))
			}
			s.count(results)
			return results
		}
	}

	for _, i := range valid {
		results[i] = dombatch.NewOK(recs[i].ID(), embedded[i])
	}
	s.count(results)
	return results
}

func (s *Service) build(d *record.Draft) (record.Record, error) {
	id := d.ID
	if id == "" {
		id = uuid.NewString()
	}
	uploaded := d.UploadDate
	if uploaded.IsZero() {
		uploaded = s.now().UTC()
	}
	rec, err := record.New(id, d.Content, uploaded, d.Metadata)
	if err != nil {
		return record.Record{}, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err)
	}
	return rec, nil
}

// embedAll embeds the records at idx on the worker pool, replacing each with
// its embedded copy. It reports which ones got a vector.
func (s *Service) embedAll(ctx context.Context, recs []record.Record, idx []int) []bool {
	embedded := make([]bool, len(recs))
	var wg sync.WaitGroup
	for _, i := range idx {
		wg.Add(1)
		task := func() {
			defer wg.Done()
			vec, err := s.vectorize(ctx, &recs[i])
			if err != nil {
				if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
					logger.FromContextOr(ctx, s.logger).Warn("Storing record without embedding",
						zap.String("id", recs[i].ID()),
						zap.Error(err),
					)
				}
				return
			}
			recs[i] = recs[i].WithEmbedding(vec)
			embedded[i] = true
		}
		if err := s.pool.Submit(task); err != nil {
			s.logger.Error("Worker pool rejected task", zap.Error(err))
			task()
		}
	}
	wg.Wait()
	return embedded
}

func (s *Service) vectorize(ctx context.Context, rec *record.Record) ([]float32, error) {
	res, err := s.embed.Embed(ctx, rec.Content())
	if err != nil {
		return nil, fmt.Errorf("vectorize: %w", err)
	}
	if s.dimensions > 0 && len(res.Embedding) != s.dimensions {
		return nil, fmt.Errorf("vectorize: %w: got %d dimensions, index expects %d",
			domain.ErrEmbeddingUnavailable, len(res.Embedding), s.dimensions)
	}
	return res.Embedding, nil
}

func (s *Service) count(results []dombatch.Result) {
	for _, r := range results {
		status := string(r.Status())
		if r.Status() == dombatch.StatusOK && !r.Embedded() {
			status = "unembedded"
		}
		metrics.IngestItemsTotal.WithLabelValues(status).Inc()
	}
}
