package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/cvsearch/internal/domain"
	"github.com/kailas-cloud/cvsearch/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.RegisterEmbeddingMetrics()
	os.Exit(m.Run())
}

type embeddingData struct {
	Object    string    `json:"object"`
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

type embeddingResponse struct {
	Object string          `json:"object"`
	Data   []embeddingData `json:"data"`
	Model  string          `json:"model"`
	Usage  struct {
		PromptTokens int `json:"prompt_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

func vectorServer(t *testing.T, vec []float32, tokens int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Input) != 1 {
			t.Errorf("expected one input, got %d", len(req.Input))
		}

		resp := embeddingResponse{Object: "list", Model: req.Model}
		if vec != nil {
			resp.Data = []embeddingData{{Object: "embedding", Embedding: vec}}
		}
		resp.Usage.PromptTokens = tokens
		resp.Usage.TotalTokens = tokens
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func errorServer(status int, body any) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
}

func newTestEmbedder(url string, dims int) *Embedder {
	return NewEmbedder(&Config{
		APIKey:     "test-key",
		BaseURL:    url,
		Model:      "text-embedding-3-small",
		Dimensions: dims,
		Provider:   "test",
		Logger:     zap.NewNop(),
	})
}

func TestEmbedder_Embed(t *testing.T) {
	want := []float32{0.1, 0.2, 0.3, 0.4}
	server := vectorServer(t, want, 12)
	defer server.Close()

	res, err := newTestEmbedder(server.URL, 4).Embed(context.Background(), "senior go engineer")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(res.Embedding) != len(want) {
		t.Fatalf("expected %d dimensions, got %d", len(want), len(res.Embedding))
	}
	for i := range want {
		if res.Embedding[i] != want[i] {
			t.Errorf("vec[%d] = %f, want %f", i, res.Embedding[i], want[i])
		}
	}
	if res.TotalTokens != 12 || res.PromptTokens != 12 {
		t.Errorf("usage = %d/%d, want 12/12", res.PromptTokens, res.TotalTokens)
	}
}

func TestEmbedder_DimensionMismatch(t *testing.T) {
	server := vectorServer(t, []float32{0.1, 0.2}, 1)
	defer server.Close()

	_, err := newTestEmbedder(server.URL, 4).Embed(context.Background(), "x")
	if !errors.Is(err, domain.ErrEmbeddingUnavailable) {
		t.Fatalf("expected ErrEmbeddingUnavailable, got %v", err)
	}
}

func TestEmbedder_EmptyResponse(t *testing.T) {
	server := vectorServer(t, nil, 0)
	defer server.Close()

	_, err := newTestEmbedder(server.URL, 0).Embed(context.Background(), "x")
	if !errors.Is(err, domain.ErrEmbeddingUnavailable) {
		t.Fatalf("expected ErrEmbeddingUnavailable, got %v", err)
	}
}

func TestEmbedder_RateLimitIsQuota(t *testing.T) {
	server := errorServer(http.StatusTooManyRequests, map[string]any{
		"error": map[string]any{"message": "rate limit exceeded", "type": "rate_limit_error"},
	})
	defer server.Close()

	_, err := newTestEmbedder(server.URL, 0).Embed(context.Background(), "x")
	if !errors.Is(err, domain.ErrEmbeddingUnavailable) {
		t.Errorf("expected ErrEmbeddingUnavailable, got %v", err)
	}
	if !errors.Is(err, domain.ErrEmbeddingQuotaExceeded) {
		t.Errorf("expected ErrEmbeddingQuotaExceeded, got %v", err)
	}
}

func TestEmbedder_ServerError(t *testing.T) {
	server := errorServer(http.StatusInternalServerError, map[string]any{"detail": "model overloaded"})
	defer server.Close()

	_, err := newTestEmbedder(server.URL, 0).Embed(context.Background(), "x")
	if !errors.Is(err, domain.ErrEmbeddingUnavailable) {
		t.Fatalf("expected ErrEmbeddingUnavailable, got %v", err)
	}
	if errors.Is(err, domain.ErrEmbeddingQuotaExceeded) {
		t.Error("500 is not a quota error")
	}
}

func TestEmbedder_Canceled(t *testing.T) {
	server := vectorServer(t, []float32{1}, 1)
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestEmbedder(server.URL, 0).Embed(ctx, "x")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if !errors.Is(err, domain.ErrEmbeddingUnavailable) {
		t.Errorf("expected ErrEmbeddingUnavailable, got %v", err)
	}
}

func TestExtractDetail(t *testing.T) {
	if got := extractDetail([]byte(`{"detail":"bad key"}`)); got != "bad key" {
		t.Errorf("got %q", got)
	}
	if got := extractDetail([]byte(`plain`)); got != "plain" {
		t.Errorf("got %q", got)
	}
}
