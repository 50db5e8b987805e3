package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/cvsearch/internal/config"
	"github.com/kailas-cloud/cvsearch/internal/db"
	dbRedis "github.com/kailas-cloud/cvsearch/internal/db/redis"
	dbSQLite "github.com/kailas-cloud/cvsearch/internal/db/sqlite"
	"github.com/kailas-cloud/cvsearch/internal/domain"
	"github.com/kailas-cloud/cvsearch/internal/metrics"
	budgetrepo "github.com/kailas-cloud/cvsearch/internal/repository/budget"
	"github.com/kailas-cloud/cvsearch/internal/repository/embcache"
	recordrepo "github.com/kailas-cloud/cvsearch/internal/repository/record"
	searchrepo "github.com/kailas-cloud/cvsearch/internal/repository/search"
	lcEmb "github.com/kailas-cloud/cvsearch/internal/transport/langchain"
	openaiEmb "github.com/kailas-cloud/cvsearch/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/cvsearch/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/cvsearch/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/cvsearch/internal/usecase/ingest"
	recorduc "github.com/kailas-cloud/cvsearch/internal/usecase/record"
	searchuc "github.com/kailas-cloud/cvsearch/internal/usecase/search"
	usageuc "github.com/kailas-cloud/cvsearch/internal/usecase/usage"
)

// app is the composition root shared by every command.
type app struct {
	cfg     config.Config
	logger  *zap.Logger
	store   db.Store
	search  *searchuc.Service
	ingest  *ingestuc.Service
	records *recorduc.Service
	health  *healthuc.Service
	usage   *usageuc.Service
}

func newApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	store, err := openStore(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("create database store: %w", err)
	}
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		store.Close()
		return nil, fmt.Errorf("database not ready: %w", err)
	}
	logger.Info("Connected to database", zap.String("driver", cfg.Database.Driver))

	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterSearchMetrics()
	metrics.RegisterHTTPMetrics()

	recRepo := recordrepo.New(store, recordrepo.Config{
		IndexName: cfg.Index.Name,
		Prefix:    cfg.Index.Prefix,
		Vector: domain.VectorConfig{
			Model:               cfg.Embedding.Model,
			Dimensions:          cfg.Embedding.Dimensions,
			DocumentInstruction: cfg.Embedding.DocumentInstruction,
			QueryInstruction:    cfg.Embedding.QueryInstruction,
			HNSWM:               cfg.Index.HNSWM,
			HNSWEFConstruction:  cfg.Index.HNSWEFConstruct,
		},
		CustomTags: cfg.Index.CustomTags,
	})
	if err := recRepo.EnsureIndex(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("ensure index: %w", err)
	}
	searchRepo := searchrepo.New(store, searchrepo.Config{IndexName: cfg.Index.Name, Prefix: cfg.Index.Prefix})

	provider, err := newProvider(cfg.Embedding, logger)
	if err != nil {
		store.Close()
		return nil, err
	}

	// Zero limits still count tokens so /usage has data.
	action := embeddinguc.BudgetActionReject
	if cfg.Embedding.Budget.Action == string(embeddinguc.BudgetActionWarn) {
		action = embeddinguc.BudgetActionWarn
	}
	budget := embeddinguc.NewBudgetTracker(embeddinguc.BudgetConfig{
		Provider:     cfg.Embedding.Provider,
		KeyPrefix:    cfg.Database.KeyPrefix,
		DailyLimit:   cfg.Embedding.Budget.DailyTokenLimit,
		MonthlyLimit: cfg.Embedding.Budget.MonthlyTokenLimit,
		Action:       action,
	}, logger).WithStore(ctx, budgetrepo.New(store))

	docEmbedder := buildEmbedder(provider, cfg, cfg.Embedding.DocumentInstruction, store, budget, logger)
	queryEmbedder := buildEmbedder(provider, cfg, cfg.Embedding.QueryInstruction, store, budget, logger)
	logger.Info("Embedders created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	opts := []ingestuc.Option{
		ingestuc.WithMaxBatchSize(cfg.Ingest.MaxBatchSize),
		ingestuc.WithDimensions(cfg.Embedding.Dimensions),
		ingestuc.WithLogger(logger),
	}
	if cfg.Ingest.Workers > 0 {
		opts = append(opts, ingestuc.WithPoolSize(cfg.Ingest.Workers))
	}
	ingestSvc, err := ingestuc.New(recRepo, docEmbedder, opts...)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("create ingest service: %w", err)
	}

	return &app{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		search:  searchuc.New(searchRepo, searchRepo, queryEmbedder),
		ingest:  ingestSvc,
		records: recorduc.New(recRepo),
		health:  healthuc.New(store, provider),
		usage:   usageuc.New(budget),
	}, nil
}

func (a *app) Close() {
	a.ingest.Release()
	a.store.Close()
}

func openStore(cfg config.DatabaseConfig) (db.Store, error) {
	switch cfg.Driver {
	case config.DriverRedis:
		return dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Addrs,
			Username: cfg.Username,
			Password: cfg.Password,
		})
	case config.DriverSQLite:
		return dbSQLite.NewStore(dbSQLite.Config{Path: cfg.SQLitePath})
	}
	return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
}

// provider is a base embedder that can also report its own health.
type provider interface {
	domain.Embedder
	domain.HealthChecker
}

func newProvider(cfg config.EmbeddingConfig, logger *zap.Logger) (provider, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return openaiEmb.NewEmbedder(&openaiEmb.Config{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Provider:   cfg.Provider,
			Timeout:    time.Duration(cfg.TimeoutSec) * time.Second,
			Logger:     logger,
		}), nil
	case config.ProviderLangchain:
		e, err := lcEmb.NewEmbedder(lcEmb.Config{
			BaseURL:  cfg.BaseURL,
			APIKey:   cfg.APIKey,
			Model:    cfg.Model,
			Provider: cfg.Provider,
			Logger:   logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create embedding provider: %w", err)
		}
		return e, nil
	}
	return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
}

// buildEmbedder assembles the decorator chain:
// provider -> rate limit -> cache -> instrumented -> instruction.
func buildEmbedder(
	base domain.Embedder,
	cfg config.Config,
	instruction string,
	store db.KVStore,
	budget embeddinguc.BudgetChecker,
	logger *zap.Logger,
) domain.Embedder {
	embedder := embeddinguc.NewRateLimitedEmbedder(base, cfg.Embedding.RequestsPerSecond, cfg.Embedding.Burst)

	embedder = embcache.New(embedder, store, embcache.Options{
		KeyPrefix:  cfg.Database.KeyPrefix,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		TTL:        time.Duration(cfg.Embedding.CacheTTLHours) * time.Hour,
	}, metrics.EmbeddingCacheTotal, logger)

	embedder = embeddinguc.NewInstrumentedEmbedder(
		embedder, cfg.Embedding.Provider, cfg.Embedding.Model, budget, logger,
	)

	// Instruction prefix (outermost: the cache key includes the instruction)
	if instruction != "" {
		return domain.NewInstructionEmbedder(embedder, instruction)
	}
	return embedder
}
