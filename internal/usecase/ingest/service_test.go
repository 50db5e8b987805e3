package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kailas-cloud/cvsearch/internal/domain"
	dombatch "github.com/kailas-cloud/cvsearch/internal/domain/batch"
	"github.com/kailas-cloud/cvsearch/internal/domain/record"
)

// --- Mocks ---

type mockWriter struct {
	mu    sync.Mutex
	err   error
	calls int
	got   []record.Record
}

func (m *mockWriter) BatchUpsert(_ context.Context, recs []record.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.got = append(m.got, recs...)
	return m.err
}

type mockEmbedder struct {
	mu     sync.Mutex
	failOn string
	err    error
	calls  int
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return domain.EmbeddingResult{}, err
	}
	if m.err != nil && (m.failOn == "" || strings.Contains(text, m.failOn)) {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: []float32{0.1, 0.2}, TotalTokens: 2}, nil
}

func newService(t *testing.T, w *mockWriter, e *mockEmbedder, opts ...Option) *Service {
	t.Helper()
	s, err := New(w, e, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(s.Release)
	return s
}

func draft(id, content string) record.Draft {
	return record.Draft{
		ID:         id,
		Content:    content,
		UploadDate: time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC),
		Metadata:   record.Metadata{Skills: []string{"go"}, Experience: 3},
	}
}

// --- Tests ---

func TestIngest_AllOK(t *testing.T) {
	w := &mockWriter{}
	e := &mockEmbedder{}
	svc := newService(t, w, e, WithPoolSize(4))

	drafts := make([]record.Draft, 10)
	for i := range drafts {
		drafts[i] = draft(fmt.Sprintf("cv-%d", i), "golang engineer")
	}

	results := svc.Ingest(context.Background(), drafts)
	if len(results) != 10 {
		t.Fatalf("expected 10 results, got %d", len(results))
	}
	for i, r := range results {
		if r.Status() != dombatch.StatusOK || !r.Embedded() {
			t.Errorf("item %d: status=%s embedded=%v err=%v", i, r.Status(), r.Embedded(), r.Err())
		}
		if r.ID() != drafts[i].ID {
			t.Errorf("item %d: results out of order, got %s", i, r.ID())
		}
	}
	if w.calls != 1 || len(w.got) != 10 {
		t.Errorf("expected one batch of 10, got %d calls / %d records", w.calls, len(w.got))
	}
	for i := range w.got {
		if !w.got[i].HasEmbedding() {
			t.Errorf("stored record %s has no embedding", w.got[i].ID())
		}
	}
}

func TestIngest_AssignsIDAndDate(t *testing.T) {
	w := &mockWriter{}
	svc := newService(t, w, &mockEmbedder{})
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	results := svc.Ingest(context.Background(), []record.Draft{{Content: "text"}})
	if results[0].Status() != dombatch.StatusOK {
		t.Fatalf("unexpected error: %v", results[0].Err())
	}
	if results[0].ID() == "" {
		t.Error("expected generated id")
	}
	if !w.got[0].UploadDate().Equal(fixed) {
		t.Errorf("upload date = %v, want %v", w.got[0].UploadDate(), fixed)
	}
}

func TestIngest_InvalidDraft(t *testing.T) {
	w := &mockWriter{}
	svc := newService(t, w, &mockEmbedder{})

	results := svc.Ingest(context.Background(), []record.Draft{
		draft("ok-1", "fine"),
		draft("bad id!", "fine"),
		draft("empty", ""),
	})
	if results[0].Status() != dombatch.StatusOK {
		t.Errorf("item 0: %v", results[0].Err())
	}
	for _, i := range []int{1, 2} {
		if !errors.Is(results[i].Err(), domain.ErrInvalidRequest) {
			t.Errorf("item %d: expected ErrInvalidRequest, got %v", i, results[i].Err())
		}
	}
	if len(w.got) != 1 {
		t.Errorf("expected 1 stored record, got %d", len(w.got))
	}
}

func TestIngest_EmbeddingFailureStoresWithoutVector(t *testing.T) {
	w := &mockWriter{}
	e := &mockEmbedder{failOn: "broken", err: domain.ErrEmbeddingUnavailable}
	svc := newService(t, w, e)

	results := svc.Ingest(context.Background(), []record.Draft{
		draft("a", "good text"),
		draft("b", "broken text"),
	})
	if !results[0].Embedded() {
		t.Error("item a should be embedded")
	}
	if results[1].Status() != dombatch.StatusOK || results[1].Embedded() {
		t.Errorf("item b: status=%s embedded=%v", results[1].Status(), results[1].Embedded())
	}

	sum := dombatch.Summarize(results)
	if sum.Succeeded != 2 || sum.Unembedded != 1 {
		t.Errorf("summary = %+v", sum)
	}
	for i := range w.got {
		if w.got[i].ID() == "b" && w.got[i].HasEmbedding() {
			t.Error("record b stored with an embedding")
		}
	}
}

func TestIngest_WrongDimensionsStoresWithoutVector(t *testing.T) {
	w := &mockWriter{}
	e := &mockEmbedder{}
	svc := newService(t, w, e, WithDimensions(3))

	results := svc.Ingest(context.Background(), []record.Draft{draft("a", "golang engineer")})
	if results[0].Status() != dombatch.StatusOK {
		t.Fatalf("status = %s, err = %v", results[0].Status(), results[0].Err())
	}
	if results[0].Embedded() {
		t.Error("a 2-dimension vector must not be accepted by a 3-dimension index")
	}
	if len(w.got) != 1 || w.got[0].HasEmbedding() {
		t.Errorf("stored %d records, embedded=%v", len(w.got), len(w.got) == 1 && w.got[0].HasEmbedding())
	}

	ok := newService(t, &mockWriter{}, e, WithDimensions(2))
	if res := ok.Ingest(context.Background(), []record.Draft{draft("b", "x")}); !res[0].Embedded() {
		t.Error("matching dimensions must be embedded")
	}
}

func TestWithDimensions_Negative(t *testing.T) {
	if _, err := New(&mockWriter{}, &mockEmbedder{}, WithDimensions(-1)); err == nil {
		t.Fatal("expected error for negative dimensions")
	}
}

func TestIngest_StoreError(t *testing.T) {
	w := &mockWriter{err: errors.New("connection refused")}
	svc := newService(t, w, &mockEmbedder{})

	results := svc.Ingest(context.Background(), []record.Draft{draft("a", "x"), draft("b", "y")})
	for i, r := range results {
		if r.Status() != dombatch.StatusError {
			t.Errorf("item %d: expected error", i)
		}
	}
}

func TestIngest_BatchTooLarge(t *testing.T) {
	w := &mockWriter{}
	e := &mockEmbedder{}
	svc := newService(t, w, e, WithMaxBatchSize(2))

	results := svc.Ingest(context.Background(), []record.Draft{draft("a", "x"), draft("b", "y"), draft("c", "z")})
	for _, r := range results {
		if !errors.Is(r.Err(), domain.ErrInvalidRequest) {
			t.Errorf("expected ErrInvalidRequest, got %v", r.Err())
		}
	}
	if w.calls != 0 || e.calls != 0 {
		t.Error("oversized batch must not reach the embedder or store")
	}
}

func TestIngest_Canceled(t *testing.T) {
	w := &mockWriter{}
	svc := newService(t, w, &mockEmbedder{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := svc.Ingest(ctx, []record.Draft{draft("a", "x")})
	if !errors.Is(results[0].Err(), context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", results[0].Err())
	}
	if w.calls != 0 {
		t.Error("canceled ingest must not write")
	}
}

func TestIngest_Empty(t *testing.T) {
	w := &mockWriter{}
	svc := newService(t, w, &mockEmbedder{})

	if got := svc.Ingest(context.Background(), nil); len(got) != 0 {
		t.Errorf("expected no results, got %d", len(got))
	}
	if w.calls != 0 {
		t.Error("empty ingest must not write")
	}
}
