package cvsearch

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	driver     string // "redis" or "sqlite"
	addrs      []string
	password   string
	sqlitePath string

	embedder Embedder

	indexName        string
	prefix           string
	customTags       []string
	vectorDimensions int
	hnswM            int
	hnswEFConstruct  int
	maxBatchSize     int
	workers          int

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithRedis stores records in Redis. The server needs the search and JSON modules.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "redis"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithSQLite stores records in a local SQLite file.
// Pass ":memory:" for a private in-memory database.
func WithSQLite(path string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "sqlite"
		c.sqlitePath = path
	})
}

// WithEmbedder sets the embedding provider used for ingestion and vector search.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
	})
}

// WithIndex overrides the index name and the record key prefix.
// Defaults: "cvsearch:records:idx" and "cvsearch:record:".
func WithIndex(name, prefix string) Option {
	return optionFunc(func(c *clientConfig) {
		c.indexName = name
		c.prefix = prefix
	})
}

// WithCustomTags indexes extra metadata keys for Where filters.
func WithCustomTags(keys ...string) Option {
	return optionFunc(func(c *clientConfig) {
		c.customTags = append(c.customTags, keys...)
	})
}

// WithVectorDimensions sets the embedding dimension. Defaults to 1536.
func WithVectorDimensions(dim int) Option {
	return optionFunc(func(c *clientConfig) {
		c.vectorDimensions = dim
	})
}

// WithHNSW configures HNSW index parameters (M and EF construction).
// Defaults: M=16, EFConstruct=200. Ignored by SQLite.
func WithHNSW(m, efConstruct int) Option {
	return optionFunc(func(c *clientConfig) {
		c.hnswM = m
		c.hnswEFConstruct = efConstruct
	})
}

// WithMaxBatchSize sets the maximum number of records per Ingest call.
// Default: 100.
func WithMaxBatchSize(size int) Option {
	return optionFunc(func(c *clientConfig) {
		c.maxBatchSize = size
	})
}

// WithWorkers sets the number of concurrent embedding calls during ingestion.
func WithWorkers(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.workers = n
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
