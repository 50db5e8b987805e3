package record

import (
	"context"
	"testing"
	"time"

	"github.com/kailas-cloud/cvsearch/internal/db"
	"github.com/kailas-cloud/cvsearch/internal/domain"
	domrec "github.com/kailas-cloud/cvsearch/internal/domain/record"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	jsonSetFn      func(ctx context.Context, key, path string, data []byte) error
	jsonSetMultiFn func(ctx context.Context, items []db.JSONSetItem) error
	jsonGetFn      func(ctx context.Context, key string, paths ...string) ([]byte, error)
	delFn          func(ctx context.Context, key string) error
	existsFn       func(ctx context.Context, key string) (bool, error)
	createIndexFn  func(ctx context.Context, def *db.IndexDefinition) error
}

func (m *mockStore) JSONSet(ctx context.Context, key, path string, data []byte) error {
	if m.jsonSetFn != nil {
		return m.jsonSetFn(ctx, key, path, data)
	}
	return nil
}

func (m *mockStore) JSONSetMulti(ctx context.Context, items []db.JSONSetItem) error {
	if m.jsonSetMultiFn != nil {
		return m.jsonSetMultiFn(ctx, items)
	}
	return nil
}

func (m *mockStore) JSONGet(ctx context.Context, key string, paths ...string) ([]byte, error) {
	if m.jsonGetFn != nil {
		return m.jsonGetFn(ctx, key, paths...)
	}
	return nil, db.ErrKeyNotFound
}

func (m *mockStore) Del(ctx context.Context, key string) error {
	if m.delFn != nil {
		return m.delFn(ctx, key)
	}
	return nil
}

func (m *mockStore) Exists(ctx context.Context, key string) (bool, error) {
	if m.existsFn != nil {
		return m.existsFn(ctx, key)
	}
	return false, nil
}

func (m *mockStore) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	if m.createIndexFn != nil {
		return m.createIndexFn(ctx, def)
	}
	return nil
}

func testConfig() Config {
	return Config{
		IndexName: "cv:idx",
		Prefix:    "cv:",
		Vector: domain.VectorConfig{
			Dimensions:         4,
			HNSWM:              16,
			HNSWEFConstruction: 200,
		},
		CustomTags: []string{"location"},
	}
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms, testConfig()), ms
}

var testUploadDate = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func testRecord(t *testing.T) domrec.Record {
	t.Helper()
	rec, err := domrec.New("rec-1", "Go engineer with Kubernetes experience", testUploadDate, domrec.Metadata{
		Skills:     []string{"go", "kubernetes"},
		Experience: 5,
		JobTitles:  []string{"backend engineer"},
		Education:  []string{"BSc"},
		Contact:    domrec.Contact{Email: "a@example.com"},
		Custom:     map[string]any{"location": "berlin"},
	})
	if err != nil {
		t.Fatalf("record.New: %v", err)
	}
	return rec.WithEmbedding([]float32{0.1, 0.2, 0.3, 0.4})
}
