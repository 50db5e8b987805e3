package record

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/kailas-cloud/cvsearch/internal/db"
	"github.com/kailas-cloud/cvsearch/internal/domain"
	domrec "github.com/kailas-cloud/cvsearch/internal/domain/record"
)

// --- Upsert ---

func TestUpsert_Create(t *testing.T) {
	repo, ms := newTestRepo(t)
	rec := testRecord(t)

	var stored map[string]any
	ms.existsFn = func(_ context.Context, key string) (bool, error) {
		if key != "cv:rec-1" {
			t.Errorf("unexpected key: %s", key)
		}
		return false, nil
	}
	ms.jsonSetFn = func(_ context.Context, key, path string, data []byte) error {
		if key != "cv:rec-1" || path != "$" {
			t.Errorf("unexpected key/path: %s %s", key, path)
		}
		return json.Unmarshal(data, &stored)
	}

	created, err := repo.Upsert(context.Background(), &rec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !created {
		t.Fatal("expected created=true for new record")
	}
	if stored["uploadDate"] != float64(testUploadDate.UnixMilli()) {
		t.Errorf("uploadDate not stored as unix millis: %v", stored["uploadDate"])
	}
	meta, ok := stored["metadata"].(map[string]any)
	if !ok || meta["location"] != "berlin" {
		t.Errorf("custom metadata not nested under metadata: %v", stored["metadata"])
	}
	if _, ok := stored["embedding"].([]any); !ok {
		t.Errorf("embedding not stored as array: %v", stored["embedding"])
	}
}

func TestUpsert_Update(t *testing.T) {
	repo, ms := newTestRepo(t)
	rec := testRecord(t)

	ms.existsFn = func(_ context.Context, _ string) (bool, error) { return true, nil }

	created, err := repo.Upsert(context.Background(), &rec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created {
		t.Fatal("expected created=false for existing record")
	}
}

func TestUpsert_WithoutEmbeddingStoresEmptyArrays(t *testing.T) {
	repo, ms := newTestRepo(t)
	rec, err := domrec.New("rec-2", "text only", testUploadDate, domrec.Metadata{})
	if err != nil {
		t.Fatalf("record.New: %v", err)
	}

	var stored map[string]any
	ms.jsonSetFn = func(_ context.Context, _, _ string, data []byte) error {
		return json.Unmarshal(data, &stored)
	}

	if _, err := repo.Upsert(context.Background(), &rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := stored["embedding"]; ok {
		t.Error("embedding should be omitted when absent")
	}
	if skills, ok := stored["skills"].([]any); !ok || len(skills) != 0 {
		t.Errorf("expected empty skills array, got %v", stored["skills"])
	}
	if _, ok := stored["contact"]; ok {
		t.Error("empty contact should be omitted")
	}
}

func TestUpsert_JSONSetError(t *testing.T) {
	repo, ms := newTestRepo(t)
	rec := testRecord(t)

	ms.jsonSetFn = func(_ context.Context, _, _ string, _ []byte) error {
		return errors.New("OOM")
	}

	if _, err := repo.Upsert(context.Background(), &rec); err == nil {
		t.Fatal("expected error on JSON.SET failure")
	}
}

func TestUpsert_ExistsError(t *testing.T) {
	repo, ms := newTestRepo(t)
	rec := testRecord(t)

	ms.existsFn = func(_ context.Context, _ string) (bool, error) {
		return false, errors.New("connection refused")
	}

	if _, err := repo.Upsert(context.Background(), &rec); err == nil {
		t.Fatal("expected error on EXISTS failure")
	}
}

// --- BatchUpsert ---

func TestBatchUpsert(t *testing.T) {
	repo, ms := newTestRepo(t)
	a := testRecord(t)
	b, err := domrec.New("rec-2", "second", testUploadDate, domrec.Metadata{})
	if err != nil {
		t.Fatalf("record.New: %v", err)
	}

	var keys []string
	ms.jsonSetMultiFn = func(_ context.Context, items []db.JSONSetItem) error {
		for _, it := range items {
			if it.Path != "$" {
				t.Errorf("unexpected path: %s", it.Path)
			}
			keys = append(keys, it.Key)
		}
		return nil
	}

	if err := repo.BatchUpsert(context.Background(), []domrec.Record{a, b}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(keys) != 2 || keys[0] != "cv:rec-1" || keys[1] != "cv:rec-2" {
		t.Fatalf("unexpected keys: %v", keys)
	}
}

func TestBatchUpsert_Error(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.jsonSetMultiFn = func(_ context.Context, _ []db.JSONSetItem) error {
		return errors.New("pipeline failed")
	}

	if err := repo.BatchUpsert(context.Background(), []domrec.Record{testRecord(t)}); err == nil {
		t.Fatal("expected error")
	}
}

// --- Get ---

func TestGet_RoundTrip(t *testing.T) {
	repo, ms := newTestRepo(t)
	rec := testRecord(t)

	var stored []byte
	ms.jsonSetFn = func(_ context.Context, _, _ string, data []byte) error {
		stored = data
		return nil
	}
	ms.jsonGetFn = func(_ context.Context, key string, paths ...string) ([]byte, error) {
		if key != "cv:rec-1" {
			t.Errorf("unexpected key: %s", key)
		}
		if len(paths) != 0 {
			t.Errorf("expected whole-document read, got paths %v", paths)
		}
		return stored, nil
	}

	if _, err := repo.Upsert(context.Background(), &rec); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	got, err := repo.Get(context.Background(), "rec-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.ID() != "rec-1" || got.Content() != rec.Content() {
		t.Fatalf("unexpected record: %s %q", got.ID(), got.Content())
	}
	if !got.UploadDate().Equal(testUploadDate) {
		t.Errorf("uploadDate = %v, want %v", got.UploadDate(), testUploadDate)
	}
	meta := got.Metadata()
	if meta.Experience != 5 || len(meta.Skills) != 2 || meta.Contact.Email != "a@example.com" {
		t.Errorf("unexpected metadata: %+v", meta)
	}
	if meta.Custom["location"] != "berlin" {
		t.Errorf("unexpected custom metadata: %v", meta.Custom)
	}
	if len(got.Embedding()) != 4 {
		t.Errorf("expected embedding of 4 dims, got %d", len(got.Embedding()))
	}
}

func TestGet_NotFound(t *testing.T) {
	repo, _ := newTestRepo(t)

	_, err := repo.Get(context.Background(), "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGet_StoreError(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.jsonGetFn = func(_ context.Context, _ string, _ ...string) ([]byte, error) {
		return nil, &db.Error{Op: db.OpJSONGet, Err: errors.New("timeout")}
	}

	_, err := repo.Get(context.Background(), "rec-1")
	if err == nil || errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected a store error, got %v", err)
	}
}

func TestGet_Malformed(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.jsonGetFn = func(_ context.Context, _ string, _ ...string) ([]byte, error) {
		return []byte("not json"), nil
	}

	if _, err := repo.Get(context.Background(), "rec-1"); err == nil {
		t.Fatal("expected decode error")
	}
}

// --- Delete ---

func TestDelete(t *testing.T) {
	repo, ms := newTestRepo(t)

	deleted := ""
	ms.existsFn = func(_ context.Context, _ string) (bool, error) { return true, nil }
	ms.delFn = func(_ context.Context, key string) error {
		deleted = key
		return nil
	}

	if err := repo.Delete(context.Background(), "rec-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted != "cv:rec-1" {
		t.Fatalf("unexpected deleted key: %s", deleted)
	}
}

func TestDelete_NotFound(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.delFn = func(_ context.Context, _ string) error {
		t.Fatal("Del must not be called for a missing record")
		return nil
	}

	if err := repo.Delete(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// --- EnsureIndex ---

func TestEnsureIndex_Schema(t *testing.T) {
	repo, ms := newTestRepo(t)

	var got *db.IndexDefinition
	ms.createIndexFn = func(_ context.Context, def *db.IndexDefinition) error {
		got = def
		return nil
	}

	if err := repo.EnsureIndex(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Name != "cv:idx" {
		t.Fatalf("unexpected index: %s", got.Name)
	}
	if len(got.Prefixes) != 1 || got.Prefixes[0] != "cv:" {
		t.Fatalf("unexpected prefixes: %v", got.Prefixes)
	}

	tests := []struct {
		key      string
		path     string
		typ      db.IndexFieldType
		sortable bool
	}{
		{"id", "$.id", db.IndexFieldTag, false},
		{"content", "$.content", db.IndexFieldText, false},
		{"skills", "$.skills[*]", db.IndexFieldTag, false},
		{"jobTitles", "$.jobTitles[*]", db.IndexFieldTag, false},
		{"education", "$.education[*]", db.IndexFieldTag, false},
		{"experience", "$.experience", db.IndexFieldNumeric, true},
		{"uploadDate", "$.uploadDate", db.IndexFieldNumeric, true},
		{"metadata_location", "$.metadata.location", db.IndexFieldTag, false},
		{"embedding", "$.embedding", db.IndexFieldVector, false},
	}
	for _, tt := range tests {
		f, ok := got.Field(tt.key)
		if !ok {
			t.Errorf("field %s missing", tt.key)
			continue
		}
		if f.Name != tt.path || f.Type != tt.typ || f.Sortable != tt.sortable {
			t.Errorf("field %s = %+v", tt.key, f)
		}
	}

	vec, _ := got.Field("embedding")
	if vec.VectorAlgo != db.VectorHNSW || vec.VectorDim != 4 || vec.VectorDistance != db.DistanceCosine {
		t.Errorf("unexpected vector field: %+v", vec)
	}
	if vec.VectorM != 16 || vec.VectorEFConstruct != 200 {
		t.Errorf("unexpected HNSW params: M=%d EF=%d", vec.VectorM, vec.VectorEFConstruct)
	}
}

func TestEnsureIndex_AlreadyExists(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.createIndexFn = func(_ context.Context, _ *db.IndexDefinition) error {
		return db.ErrIndexExists
	}

	if err := repo.EnsureIndex(context.Background()); err != nil {
		t.Fatalf("existing index should not be an error: %v", err)
	}
}

func TestEnsureIndex_Error(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.createIndexFn = func(_ context.Context, _ *db.IndexDefinition) error {
		return &db.Error{Op: db.OpCreateIndex, Err: errors.New("ERR unknown command")}
	}

	if err := repo.EnsureIndex(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestEnsureIndex_InvalidDimensions(t *testing.T) {
	cfg := testConfig()
	cfg.Vector.Dimensions = 0
	repo := New(&mockStore{}, cfg)

	if err := repo.EnsureIndex(context.Background()); err == nil {
		t.Fatal("expected error for zero dimensions")
	}
}
