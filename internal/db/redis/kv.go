package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/cvsearch/internal/db"
)

// Get reads a cached embedding or counter. A missing key is db.ErrKeyNotFound.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.do(ctx, s.b().Get().Key(key).Build()).AsBytes()
	if rueidis.IsRedisNil(err) {
		return nil, db.ErrKeyNotFound
	}
	if err != nil {
		return nil, &db.Error{Op: db.OpGet, Err: err}
	}
	return data, nil
}

// Set stores value without expiry.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	return s.SetWithTTL(ctx, key, value, 0)
}

// SetWithTTL stores value with SET EX. A non-positive ttl stores without expiry.
func (s *Store) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	set := s.b().Set().Key(key).Value(rueidis.BinaryString(value))
	var cmd rueidis.Completed
	if ttl > 0 {
		cmd = set.Ex(ttl).Build()
	} else {
		cmd = set.Build()
	}
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpSet, Err: err}
	}
	return nil
}

// IncrCounter pipelines INCRBY with EXPIRE NX, so the TTL is set by the
// write that creates the counter and later increments leave it alone.
func (s *Store) IncrCounter(ctx context.Context, key string, val int64, ttl time.Duration) (int64, error) {
	incr := s.b().Incrby().Key(key).Increment(val).Build()
	if ttl <= 0 {
		n, err := s.do(ctx, incr).AsInt64()
		if err != nil {
			return 0, &db.Error{Op: db.OpIncrBy, Err: err}
		}
		return n, nil
	}

	expire := s.b().Expire().Key(key).Seconds(int64(ttl / time.Second)).Nx().Build()
	res := s.client.DoMulti(ctx, incr, expire)
	n, err := res[0].AsInt64()
	if err != nil {
		return 0, &db.Error{Op: db.OpIncrBy, Err: err}
	}
	if err := res[1].Error(); err != nil {
		return n, &db.Error{Op: db.OpIncrBy, Err: fmt.Errorf("expire %s: %w", key, err)}
	}
	return n, nil
}
