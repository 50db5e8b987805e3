package domain

import (
	"context"
	"sync"
)

type searchUsageKey struct{}

// SearchUsage collects per-request facts the boundary reports back to the
// client: embedding tokens spent and the retrieval strategy actually used.
// The handler places it in the context; the embedder chain and the
// orchestrator write to it.
type SearchUsage struct {
	mu          sync.Mutex
	totalTokens int
	embedded    bool
	fallback    bool
}

// NewContextWithUsage returns a context carrying a fresh usage collector.
func NewContextWithUsage(ctx context.Context) (context.Context, *SearchUsage) {
	u := &SearchUsage{}
	return context.WithValue(ctx, searchUsageKey{}, u), u
}

// UsageFromContext returns the collector or nil when none was installed.
func UsageFromContext(ctx context.Context) *SearchUsage {
	u, _ := ctx.Value(searchUsageKey{}).(*SearchUsage)
	return u
}

// AddTokens records consumed embedding tokens. A cache hit records zero
// tokens but still marks the request as embedded.
func (u *SearchUsage) AddTokens(n int) {
	if u == nil {
		return
	}
	u.mu.Lock()
	u.totalTokens += n
	u.embedded = true
	u.mu.Unlock()
}

// MarkFallback records that the vector path failed and text search answered instead.
func (u *SearchUsage) MarkFallback() {
	if u == nil {
		return
	}
	u.mu.Lock()
	u.fallback = true
	u.mu.Unlock()
}

// TotalTokens returns the tokens recorded so far.
func (u *SearchUsage) TotalTokens() int {
	if u == nil {
		return 0
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.totalTokens
}

// Embedded reports whether any embedding call happened.
func (u *SearchUsage) Embedded() bool {
	if u == nil {
		return false
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.embedded
}

// FellBack reports whether the request degraded from vector to text.
func (u *SearchUsage) FellBack() bool {
	if u == nil {
		return false
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.fallback
}
