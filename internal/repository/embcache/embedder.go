// Package embcache caches embedding vectors in the key-value store. Records
// re-ingested with unchanged content and repeated queries skip the provider.
package embcache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kailas-cloud/cvsearch/internal/db"
	"github.com/kailas-cloud/cvsearch/internal/domain"
)

// store is the slice of db.KVStore the cache needs.
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Options scope the cache key space. A zero TTL keeps entries forever.
// Dimensions, when set, turns vectors of another size into misses so a
// changed embedding config never serves stale entries.
type Options struct {
	KeyPrefix  string
	Model      string
	Dimensions int
	TTL        time.Duration
}

// CachedEmbedder caches embeddings and coalesces concurrent calls for the
// same text into one provider request.
type CachedEmbedder struct {
	inner      domain.Embedder
	store      store
	opts       Options
	flight     singleflight.Group
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a caching decorator. cacheTotal takes a "result" label
// (hit, miss, shared) and may be nil.
func New(
	inner domain.Embedder,
	s store,
	opts Options,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *CachedEmbedder {
	return &CachedEmbedder{
		inner:      inner,
		store:      s,
		opts:       opts,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

// Embed returns the cached vector or asks the provider. Only the caller that
// actually reached the provider sees its token counts; hits and callers that
// shared an in-flight request report zero so usage is billed once.
// Cache failures are logged and never fail the call.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	key := c.cacheKey(text)

	if vec, ok := c.getFromCache(ctx, key); ok {
		c.count("hit")
		return domain.EmbeddingResult{Embedding: vec}, nil
	}

	// The provider call outlives a cancelled caller so the others waiting on
	// it still get a vector; each caller stops waiting on its own context.
	// ran is only set in the frame of the caller whose function executed.
	var ran bool
	ch := c.flight.DoChan(key, func() (any, error) {
		ran = true
		return c.fetch(context.WithoutCancel(ctx), key, text)
	})
	select {
	case <-ctx.Done():
		return domain.EmbeddingResult{}, fmt.Errorf("embed text: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return domain.EmbeddingResult{}, fmt.Errorf("embed text: %w", res.Err)
		}
		result, _ := res.Val.(domain.EmbeddingResult)
		if !ran {
			c.count("shared")
			return domain.EmbeddingResult{Embedding: result.Embedding}, nil
		}
		c.count("miss")
		return result, nil
	}
}

func (c *CachedEmbedder) fetch(ctx context.Context, key, text string) (domain.EmbeddingResult, error) {
	result, err := c.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, err //nolint:wrapcheck // wrapped by Embed
	}
	c.putToCache(ctx, key, result.Embedding)
	return result, nil
}

func (c *CachedEmbedder) count(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

// cacheKey scopes entries by model so switching models never serves stale vectors.
// Layout: <prefix>emb:<sha256(model \x00 text)>.
func (c *CachedEmbedder) cacheKey(text string) string {
	h := sha256.New()
	h.Write([]byte(c.opts.Model))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return c.opts.KeyPrefix + "emb:" + hex.EncodeToString(h.Sum(nil))
}

func (c *CachedEmbedder) getFromCache(ctx context.Context, key string) ([]float32, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Failed to get cached embedding", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	if len(data) == 0 {
		return nil, false
	}

	vec, err := bytesToVector(data)
	if err != nil {
		c.logger.Warn("Failed to parse cached embedding", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if c.opts.Dimensions > 0 && len(vec) != c.opts.Dimensions {
		c.logger.Debug("Cached embedding has stale dimensions",
			zap.String("key", key), zap.Int("got", len(vec)), zap.Int("want", c.opts.Dimensions))
		return nil, false
	}
	return vec, true
}

func (c *CachedEmbedder) putToCache(ctx context.Context, key string, vec []float32) {
	if len(vec) == 0 {
		return
	}
	if err := c.store.SetWithTTL(ctx, key, vectorToCacheBytes(vec), c.opts.TTL); err != nil {
		c.logger.Warn("Failed to cache embedding", zap.String("key", key), zap.Error(err))
	}
}

// vectorToCacheBytes packs the vector as little-endian float32, the same
// layout FT.SEARCH takes for KNN blobs.
func vectorToCacheBytes(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func bytesToVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("invalid embedding cache data: len=%d (not multiple of 4)", len(data))
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, nil
}
