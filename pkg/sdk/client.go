package cvsearch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/cvsearch/internal/db"
	dbRedis "github.com/kailas-cloud/cvsearch/internal/db/redis"
	dbSQLite "github.com/kailas-cloud/cvsearch/internal/db/sqlite"
	"github.com/kailas-cloud/cvsearch/internal/domain"
	dombatch "github.com/kailas-cloud/cvsearch/internal/domain/batch"
	"github.com/kailas-cloud/cvsearch/internal/domain/record"
	"github.com/kailas-cloud/cvsearch/internal/domain/search/request"
	"github.com/kailas-cloud/cvsearch/internal/domain/search/result"
	recordrepo "github.com/kailas-cloud/cvsearch/internal/repository/record"
	searchrepo "github.com/kailas-cloud/cvsearch/internal/repository/search"
	healthuc "github.com/kailas-cloud/cvsearch/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/cvsearch/internal/usecase/ingest"
	recorduc "github.com/kailas-cloud/cvsearch/internal/usecase/record"
	searchuc "github.com/kailas-cloud/cvsearch/internal/usecase/search"
)

const (
	defaultReadinessTimeout = 10 * time.Second
	defaultIndexName        = "cvsearch:records:idx"
	defaultPrefix           = "cvsearch:record:"
)

// Internal interfaces, swapped for fakes in tests.
type searchUseCase interface {
	Search(ctx context.Context, req request.Request) (result.Response, error)
}

type ingestUseCase interface {
	Ingest(ctx context.Context, drafts []record.Draft) []dombatch.Result
	Release()
}

type recordUseCase interface {
	Get(ctx context.Context, id string) (record.Record, error)
	Delete(ctx context.Context, id string) error
}

type healthUseCase interface {
	Check(ctx context.Context) healthuc.Report
}

// Client is the cvsearch SDK entry point. It is safe for concurrent use.
type Client struct {
	store     db.Store
	search    searchUseCase
	ingest    ingestUseCase
	records   recordUseCase
	healthSvc healthUseCase
	obs       *observer
}

// New creates a Client, connects to the store and creates the index if missing.
// The provided context bounds the readiness check and index bootstrap.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	def := domain.DefaultVectorConfig()
	cfg := &clientConfig{
		indexName:        defaultIndexName,
		prefix:           defaultPrefix,
		vectorDimensions: def.Dimensions,
		hnswM:            def.HNSWM,
		hnswEFConstruct:  def.HNSWEFConstruction,
	}
	for _, o := range opts {
		o.apply(cfg)
	}

	store, err := createStore(cfg)
	if err != nil {
		return nil, err
	}

	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("cvsearch: store not ready: %w", err)
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		store.Close()
		return nil, err
	}

	c, err := wireClient(ctx, store, cfg, obs)
	if err != nil {
		store.Close()
		return nil, err
	}
	return c, nil
}

func createStore(cfg *clientConfig) (db.Store, error) {
	switch cfg.driver {
	case "redis":
		if len(cfg.addrs) == 0 || cfg.addrs[0] == "" {
			return nil, errors.New("cvsearch: redis address required")
		}
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.addrs,
			Password: cfg.password,
		})
		if err != nil {
			return nil, fmt.Errorf("cvsearch: create redis store: %w", err)
		}
		return s, nil
	case "sqlite":
		s, err := dbSQLite.NewStore(dbSQLite.Config{Path: cfg.sqlitePath})
		if err != nil {
			return nil, fmt.Errorf("cvsearch: create sqlite store: %w", err)
		}
		return s, nil
	case "":
		return nil, errors.New("cvsearch: store required (use WithRedis or WithSQLite)")
	default:
		return nil, fmt.Errorf("cvsearch: unknown driver %q", cfg.driver)
	}
}

func wireClient(ctx context.Context, store db.Store, cfg *clientConfig, obs *observer) (*Client, error) {
	recRepo := recordrepo.New(store, recordrepo.Config{
		IndexName: cfg.indexName,
		Prefix:    cfg.prefix,
		Vector: domain.VectorConfig{
			Dimensions:         cfg.vectorDimensions,
			HNSWM:              cfg.hnswM,
			HNSWEFConstruction: cfg.hnswEFConstruct,
		},
		CustomTags: cfg.customTags,
	})
	if err := recRepo.EnsureIndex(ctx); err != nil {
		return nil, fmt.Errorf("cvsearch: ensure index: %w", err)
	}
	searchRepo := searchrepo.New(store, searchrepo.Config{IndexName: cfg.indexName, Prefix: cfg.prefix})

	// Without an embedder every record is stored vectorless and auto
	// searches take the text path.
	var emb domain.Embedder = noopEmbedder{}
	var embHealth healthuc.EmbeddingChecker
	if cfg.embedder != nil {
		adapter := &embedderAdapter{inner: cfg.embedder}
		emb = adapter
		if _, ok := cfg.embedder.(interface{ HealthCheck(context.Context) error }); ok {
			embHealth = adapter
		}
	}

	ingestOpts := []ingestuc.Option{
		ingestuc.WithLogger(zap.NewNop()),
		ingestuc.WithDimensions(cfg.vectorDimensions),
	}
	if cfg.maxBatchSize > 0 {
		ingestOpts = append(ingestOpts, ingestuc.WithMaxBatchSize(cfg.maxBatchSize))
	}
	if cfg.workers > 0 {
		ingestOpts = append(ingestOpts, ingestuc.WithPoolSize(cfg.workers))
	}
	ingestSvc, err := ingestuc.New(recRepo, emb, ingestOpts...)
	if err != nil {
		return nil, fmt.Errorf("cvsearch: create ingest service: %w", err)
	}

	return &Client{
		store:     store,
		search:    searchuc.New(searchRepo, searchRepo, emb),
		ingest:    ingestSvc,
		records:   recorduc.New(recRepo),
		healthSvc: healthuc.New(store, embHealth),
		obs:       obs,
	}, nil
}

// Close releases the worker pool and the store connection.
func (c *Client) Close() {
	if c.ingest != nil {
		c.ingest.Release()
	}
	if c.store != nil {
		c.store.Close()
	}
}

// Ping checks store connectivity.
func (c *Client) Ping(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("ping", start, err) }()

	if err = c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Records returns the record service.
func (c *Client) Records() *RecordService {
	return &RecordService{ingest: c.ingest, records: c.records, obs: c.obs}
}

// embedderAdapter wraps the public Embedder to satisfy domain.Embedder.
// Every failure is reported as ErrEmbeddingUnavailable so ingestion keeps
// the record and auto searches fall back to text.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	r, err := a.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
	}
	return domain.EmbeddingResult{
		Embedding:    r.Embedding,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

func (a *embedderAdapter) HealthCheck(ctx context.Context) error {
	hc, ok := a.inner.(interface{ HealthCheck(context.Context) error })
	if !ok {
		return nil
	}
	return hc.HealthCheck(ctx)
}

// noopEmbedder is used when no embedder is configured.
type noopEmbedder struct{}

func (noopEmbedder) Embed(context.Context, string) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{}, fmt.Errorf("%w: embedder not configured (use WithEmbedder)",
		domain.ErrEmbeddingUnavailable)
}
