package search

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/kailas-cloud/cvsearch/internal/domain"
	"github.com/kailas-cloud/cvsearch/internal/domain/record"
	"github.com/kailas-cloud/cvsearch/internal/domain/search/ordering"
	"github.com/kailas-cloud/cvsearch/internal/domain/search/predicate"
	"github.com/kailas-cloud/cvsearch/internal/domain/search/retrieval"
)

// --- Mocks ---

// memStore evaluates predicates over an in-memory record set and serves
// both retrieval paths.
type memStore struct {
	mu      sync.Mutex
	records []record.Record

	vectorErr error
	textErr   error

	vectorCalls int
	textCalls   int
	lastVector  retrieval.Vector
	lastText    retrieval.Text
}

func newMemStore(records ...record.Record) *memStore {
	return &memStore{records: records}
}

func (m *memStore) SearchVector(ctx context.Context, q retrieval.Vector, offset, limit int) ([]record.Record, error) {
	hits, err := m.vector(ctx, q)
	if err != nil {
		return nil, err
	}
	return pageOf(hits, offset, limit), nil
}

func (m *memStore) CountVector(ctx context.Context, q retrieval.Vector) (int, error) {
	hits, err := m.vector(ctx, q)
	return len(hits), err
}

func (m *memStore) vector(ctx context.Context, q retrieval.Vector) ([]record.Record, error) {
	m.mu.Lock()
	m.vectorCalls++
	m.lastVector = q
	m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.vectorErr != nil {
		return nil, m.vectorErr
	}

	var hits []record.Record
	for i := range m.records {
		r := m.records[i]
		if !r.HasEmbedding() || !q.Filter.Evaluate(toDocument(&r)) {
			continue
		}
		hits = append(hits, record.Reconstruct(r.ID(), r.Content(), r.Embedding(), r.UploadDate(), r.Metadata(), 0.9))
	}
	if len(hits) > q.Pool {
		hits = hits[:q.Pool]
	}
	sortRecords(hits, q.Sort)
	return hits, nil
}

func (m *memStore) SearchText(ctx context.Context, q retrieval.Text, offset, limit int) ([]record.Record, error) {
	hits, err := m.text(ctx, q.Where)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.lastText = q
	m.mu.Unlock()
	sortRecords(hits, q.Sort)
	return pageOf(hits, offset, limit), nil
}

func (m *memStore) CountText(ctx context.Context, where predicate.Node) (int, error) {
	hits, err := m.text(ctx, where)
	return len(hits), err
}

func (m *memStore) text(ctx context.Context, where predicate.Node) ([]record.Record, error) {
	m.mu.Lock()
	m.textCalls++
	m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.textErr != nil {
		return nil, m.textErr
	}

	var hits []record.Record
	for i := range m.records {
		if where.Evaluate(toDocument(&m.records[i])) {
			hits = append(hits, m.records[i])
		}
	}
	return hits, nil
}

func (m *memStore) calls() (vector, text int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.vectorCalls, m.textCalls
}

func sortRecords(rs []record.Record, spec ordering.Spec) {
	slices.SortStableFunc(rs, func(a, b record.Record) int {
		switch {
		case spec.Less(&a, &b):
			return -1
		case spec.Less(&b, &a):
			return 1
		}
		return 0
	})
}

func pageOf(rs []record.Record, offset, limit int) []record.Record {
	lo := min(offset, len(rs))
	hi := min(lo+limit, len(rs))
	return rs[lo:hi]
}

func toDocument(r *record.Record) predicate.Document {
	meta := r.Metadata()
	custom := make(map[string]any, len(meta.Custom))
	for k, v := range meta.Custom {
		custom[k] = v
	}
	return predicate.Document{
		record.FieldID:         r.ID(),
		record.FieldContent:    r.Content(),
		record.FieldSkills:     toAny(meta.Skills),
		record.FieldJobTitles:  toAny(meta.JobTitles),
		record.FieldEducation:  toAny(meta.Education),
		record.FieldExperience: float64(meta.Experience),
		record.FieldUploadDate: float64(r.UploadDate().UnixMilli()),
		record.FieldMetadata:   custom,
	}
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

type mockEmbedder struct {
	mu    sync.Mutex
	vec   []float32
	err   error
	calls int
	last  string
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	m.mu.Lock()
	m.calls++
	m.last = text
	m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return domain.EmbeddingResult{}, err
	}
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: m.vec, TotalTokens: 3}, nil
}

func newEmbedder() *mockEmbedder {
	return &mockEmbedder{vec: []float32{0.1, 0.2, 0.3, 0.4}}
}

// --- Helpers ---

var baseDate = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

func makeRecord(i int, skills ...string) record.Record {
	return record.Reconstruct(
		fmt.Sprintf("cv-%02d", i),
		fmt.Sprintf("Engineer number %d with golang and kubernetes", i),
		[]float32{0.1, 0.2, 0.3, float32(i)},
		baseDate.Add(time.Duration(i)*time.Hour),
		record.Metadata{
			Skills:     skills,
			Experience: i % 10,
			JobTitles:  []string{"Backend Engineer"},
			Contact:    record.Contact{Email: fmt.Sprintf("cv%d@example.com", i)},
		},
		0,
	)
}

func makeRecords(n int, skills ...string) []record.Record {
	out := make([]record.Record, n)
	for i := range out {
		out[i] = makeRecord(i, skills...)
	}
	return out
}
