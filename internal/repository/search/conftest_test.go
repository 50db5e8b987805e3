package search

import (
	"context"
	"testing"

	"github.com/kailas-cloud/cvsearch/internal/db"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	searchKNNFn  func(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	searchTextFn func(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
}

func (m *mockStore) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if m.searchKNNFn != nil {
		return m.searchKNNFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func (m *mockStore) SearchText(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error) {
	if m.searchTextFn != nil {
		return m.searchTextFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms, Config{IndexName: "cv:idx", Prefix: "cv:"}), ms
}

func testVector() []float32 {
	return []float32{0.1, 0.1, 0.1, 0.1}
}

func testEntry(key string, score float64) db.SearchEntry {
	return db.SearchEntry{
		Key:   key,
		Score: score,
		Fields: map[string]string{
			"uploadDate": "1709294400000",
			"skills":     `["go","kubernetes"]`,
			"experience": "5",
			"jobTitles":  `["backend engineer"]`,
			"education":  `["BSc"]`,
			"contact":    `{"email":"a@example.com"}`,
			"metadata":   `{"location":"berlin","remote":true}`,
		},
	}
}
