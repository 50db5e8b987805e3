package domain

import (
	"context"
	"errors"
	"sync"
	"testing"
)

type stubEmbedder struct {
	result EmbeddingResult
	err    error
	got    string
}

func (s *stubEmbedder) Embed(_ context.Context, text string) (EmbeddingResult, error) {
	s.got = text
	return s.result, s.err
}

func TestInstructionEmbedder_PrependsInstruction(t *testing.T) {
	inner := &stubEmbedder{result: EmbeddingResult{Embedding: []float32{0.1, 0.2, 0.3}}}
	emb := NewInstructionEmbedder(inner, "query: ")

	result, err := emb.Embed(context.Background(), "senior go engineer")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.got != "query: senior go engineer" {
		t.Errorf("expected prepended text, got %q", inner.got)
	}
	if len(result.Embedding) != 3 {
		t.Errorf("expected 3-element vector, got %d", len(result.Embedding))
	}
}

func TestInstructionEmbedder_ErrorPropagation(t *testing.T) {
	innerErr := errors.New("provider down")
	emb := NewInstructionEmbedder(&stubEmbedder{err: innerErr}, "query: ")

	_, err := emb.Embed(context.Background(), "hello")
	if !errors.Is(err, innerErr) {
		t.Errorf("expected wrapped inner error, got %v", err)
	}
}

func TestInstructionEmbedder_EmptyInstruction(t *testing.T) {
	inner := &stubEmbedder{result: EmbeddingResult{Embedding: []float32{0.5}}}
	emb := NewInstructionEmbedder(inner, "")

	if _, err := emb.Embed(context.Background(), "test"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.got != "test" {
		t.Errorf("expected 'test', got %q", inner.got)
	}
}

func TestSearchUsage_NilSafe(t *testing.T) {
	var u *SearchUsage
	u.AddTokens(5)
	u.MarkFallback()
	if u.TotalTokens() != 0 || u.Embedded() || u.FellBack() {
		t.Error("nil usage must report zero values")
	}
	if UsageFromContext(context.Background()) != nil {
		t.Error("expected nil usage for bare context")
	}
}

func TestSearchUsage_Collects(t *testing.T) {
	ctx, u := NewContextWithUsage(context.Background())
	if UsageFromContext(ctx) != u {
		t.Fatal("context must carry the same collector")
	}

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			UsageFromContext(ctx).AddTokens(3)
		}()
	}
	wg.Wait()
	u.MarkFallback()

	if u.TotalTokens() != 30 {
		t.Errorf("expected 30 tokens, got %d", u.TotalTokens())
	}
	if !u.Embedded() {
		t.Error("expected embedded flag")
	}
	if !u.FellBack() {
		t.Error("expected fallback flag")
	}
}

func TestSearchUsage_CacheHitMarksEmbedded(t *testing.T) {
	_, u := NewContextWithUsage(context.Background())
	u.AddTokens(0)
	if !u.Embedded() {
		t.Error("zero-token call still counts as embedded")
	}
}
