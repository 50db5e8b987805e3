// Package budget keeps embedding token counters in the key-value store so
// every replica bills against the same daily and monthly totals.
package budget

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/kailas-cloud/cvsearch/internal/db"
)

// counters is the slice of db.KVStore the budget needs.
type counters interface {
	Get(ctx context.Context, key string) ([]byte, error)
	IncrCounter(ctx context.Context, key string, val int64, ttl time.Duration) (int64, error)
}

// Store implements embedding.BudgetStore.
type Store struct {
	kv counters
}

// New creates a budget store.
func New(kv counters) *Store {
	return &Store{kv: kv}
}

// Add bills tokens to the counter at key and returns the period total.
func (s *Store) Add(ctx context.Context, key string, tokens int64, ttl time.Duration) (int64, error) {
	if tokens < 0 {
		return 0, fmt.Errorf("budget %s: negative token count %d", key, tokens)
	}
	total, err := s.kv.IncrCounter(ctx, key, tokens, ttl)
	if err != nil {
		return 0, fmt.Errorf("budget add %s: %w", key, err)
	}
	return total, nil
}

// Get returns the period total, 0 for a period nobody has billed yet.
func (s *Store) Get(ctx context.Context, key string) (int64, error) {
	data, err := s.kv.Get(ctx, key)
	if errors.Is(err, db.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("budget get %s: %w", key, err)
	}

	total, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("budget get %s: corrupt counter %q: %w", key, data, err)
	}
	return total, nil
}
