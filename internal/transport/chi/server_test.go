package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/cvsearch/internal/db/sqlite"
	"github.com/kailas-cloud/cvsearch/internal/domain"
	recordrepo "github.com/kailas-cloud/cvsearch/internal/repository/record"
	searchrepo "github.com/kailas-cloud/cvsearch/internal/repository/search"
	embeddinguc "github.com/kailas-cloud/cvsearch/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/cvsearch/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/cvsearch/internal/usecase/ingest"
	recorduc "github.com/kailas-cloud/cvsearch/internal/usecase/record"
	searchuc "github.com/kailas-cloud/cvsearch/internal/usecase/search"
	usageuc "github.com/kailas-cloud/cvsearch/internal/usecase/usage"
)

// keywordEmbedder maps text onto a tiny bag-of-words space so similarity
// is predictable.
type keywordEmbedder struct {
	err error
}

var vocabulary = []string{"golang", "react", "kubernetes"}

func (e *keywordEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	if e.err != nil {
		return domain.EmbeddingResult{}, e.err
	}
	text = strings.ToLower(text)
	vec := make([]float32, len(vocabulary)+1)
	for i, w := range vocabulary {
		vec[i] = float32(strings.Count(text, w))
	}
	vec[len(vocabulary)] = 0.1
	return domain.EmbeddingResult{Embedding: vec, PromptTokens: 3, TotalTokens: 3}, nil
}

func (e *keywordEmbedder) HealthCheck(context.Context) error { return e.err }

type testEnv struct {
	handler http.Handler
	embed   *keywordEmbedder
	store   *sqlite.Store
	budget  *embeddinguc.BudgetTracker
}

func newTestEnv(t *testing.T, apiKeys ...string) *testEnv {
	t.Helper()
	store, err := sqlite.NewStore(sqlite.Config{Path: sqlite.MemoryPath})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(store.Close)

	records := recordrepo.New(store, recordrepo.Config{
		IndexName:  "cv:idx",
		Prefix:     "cv:",
		Vector:     domain.VectorConfig{Dimensions: len(vocabulary) + 1, HNSWM: 16, HNSWEFConstruction: 200},
		CustomTags: []string{"city"},
	})
	if err := records.EnsureIndex(context.Background()); err != nil {
		t.Fatalf("EnsureIndex: %v", err)
	}
	search := searchrepo.New(store, searchrepo.Config{IndexName: "cv:idx", Prefix: "cv:"})

	embed := &keywordEmbedder{}
	ingest, err := ingestuc.New(records, embed, ingestuc.WithPoolSize(2), ingestuc.WithDimensions(len(vocabulary)+1))
	if err != nil {
		t.Fatalf("ingest.New: %v", err)
	}
	t.Cleanup(ingest.Release)

	budget := embeddinguc.NewBudgetTracker(embeddinguc.BudgetConfig{
		Provider:   "test",
		DailyLimit: 1000,
	}, zap.NewNop())

	srv := NewServer(
		searchuc.New(search, search, embed),
		ingest,
		recorduc.New(records),
		healthuc.New(store, embed),
		usageuc.New(budget),
		Options{APIKeys: apiKeys, DefaultLimit: 10, MaxLimit: 50},
		zap.NewNop(),
	)
	return &testEnv{handler: srv.Handler(), embed: embed, store: store, budget: budget}
}

func (e *testEnv) do(t *testing.T, method, target, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, http.NoBody)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

const seedBody = `{"records": [
	{"id": "alice", "content": "Backend engineer, golang services", "uploadDate": "2024-01-10",
	 "metadata": {"skills": ["go", "postgres"], "experience": 6, "jobTitles": ["backend engineer"],
	              "contact": {"email": "alice@example.com"}, "custom": {"city": "berlin"}}},
	{"id": "bob", "content": "Frontend developer, react and typescript", "uploadDate": "2024-02-10",
	 "metadata": {"skills": ["react"], "experience": 3, "custom": {"city": "paris"}}},
	{"id": "carol", "content": "Platform engineer, golang golang and kubernetes", "uploadDate": "2024-03-10",
	 "metadata": {"skills": ["go", "kubernetes"], "experience": 9, "education": ["MSc"], "custom": {"city": "berlin"}}}
]}`

func (e *testEnv) seed(t *testing.T) {
	t.Helper()
	rr := e.do(t, http.MethodPost, "/records", seedBody)
	if rr.Code != http.StatusOK {
		t.Fatalf("seed: status %d: %s", rr.Code, rr.Body.String())
	}
	var resp IngestResponse
	decode(t, rr, &resp)
	if resp.Succeeded != 3 || resp.Failed != 0 {
		t.Fatalf("seed: %+v", resp)
	}
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
}

func ids(resp *SearchResponse) []string {
	out := make([]string, len(resp.Results))
	for i, r := range resp.Results {
		out[i] = r.ID
	}
	return out
}

func TestSearchPost_VectorPath(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)

	rr := env.do(t, http.MethodPost, "/search", `{"query": "golang"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rr.Code, rr.Body.String())
	}
	if got := rr.Header().Get(headerSearchMethod); got != "vector" {
		t.Errorf("X-Search-Method = %q, want vector", got)
	}

	var resp SearchResponse
	decode(t, rr, &resp)
	if resp.SearchMethod != "vector" {
		t.Errorf("searchMethod = %q", resp.SearchMethod)
	}
	if len(resp.Results) == 0 || resp.Results[0].ID != "alice" {
		t.Fatalf("results = %v, want alice first", ids(&resp))
	}
	if resp.Results[0].Score <= 0 {
		t.Errorf("vector hit without score")
	}
	if strings.Contains(rr.Body.String(), "golang services") {
		t.Error("content leaked into response")
	}
	if strings.Contains(rr.Body.String(), "embedding") {
		t.Error("embedding leaked into response")
	}
}

func TestSearchPost_FallsBackToText(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)
	env.embed.err = fmt.Errorf("%w: provider down", domain.ErrEmbeddingUnavailable)

	rr := env.do(t, http.MethodPost, "/search", `{"query": "golang"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rr.Code, rr.Body.String())
	}
	var resp SearchResponse
	decode(t, rr, &resp)
	if resp.SearchMethod != "text" {
		t.Errorf("searchMethod = %q, want text", resp.SearchMethod)
	}
	if resp.Total != 2 {
		t.Errorf("total = %d, want 2 (%v)", resp.Total, ids(&resp))
	}
}

func TestSearchPost_ExplicitVectorFailure(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)
	env.embed.err = fmt.Errorf("%w: provider down", domain.ErrEmbeddingUnavailable)

	rr := env.do(t, http.MethodPost, "/search", `{"query": "golang", "searchType": "vector"}`)
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status %d, want 502: %s", rr.Code, rr.Body.String())
	}
	if strings.Contains(rr.Body.String(), "provider down") {
		t.Error("internal cause echoed to client")
	}
	var body ErrorResponse
	decode(t, rr, &body)
	if body.Code != codeVectorSearchFailed || body.Cause != codeEmbeddingUnavail {
		t.Errorf("error = %+v, want %s caused by %s", body, codeVectorSearchFailed, codeEmbeddingUnavail)
	}
}

func TestSearchPost_FiltersAndPagination(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)

	body := `{"filters": {"skills": ["go"], "experience": {"min": 5}, "custom": {"city": "berlin"}},
		"sortBy": "experience", "sortOrder": "asc", "limit": 1, "page": 2}`
	rr := env.do(t, http.MethodPost, "/search", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rr.Code, rr.Body.String())
	}
	var resp SearchResponse
	decode(t, rr, &resp)
	if resp.Total != 2 || resp.TotalPages != 2 || resp.Page != 2 {
		t.Errorf("paging = total %d pages %d page %d", resp.Total, resp.TotalPages, resp.Page)
	}
	if got := ids(&resp); len(got) != 1 || got[0] != "carol" {
		t.Errorf("results = %v, want [carol]", got)
	}
	if resp.Filters == nil || resp.Filters.Experience == nil || *resp.Filters.Experience.Min != 5 {
		t.Errorf("filters not echoed: %+v", resp.Filters)
	}
}

func TestSearchGet_FlattenedParams(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)

	rr := env.do(t, http.MethodGet, "/search?skills=go,react&experience=2-6&uploadDateTo=2024-02-10&sortBy=uploadDate", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rr.Code, rr.Body.String())
	}
	var resp SearchResponse
	decode(t, rr, &resp)
	// bob's upload date equals the bare upper bound, which covers the whole day.
	got := ids(&resp)
	if len(got) != 2 || got[0] != "bob" || got[1] != "alice" {
		t.Errorf("results = %v, want [bob alice]", got)
	}
	if rr.Header().Get(headerSearchMethod) != "text" {
		t.Errorf("X-Search-Method = %q", rr.Header().Get(headerSearchMethod))
	}
}

func TestSearch_InvalidRequests(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		method string
		target string
		body   string
		status int
		code   string
	}{
		{"empty body", http.MethodPost, "/search", `{}`, http.StatusBadRequest, codeInvalidRequest},
		{"unknown field", http.MethodPost, "/search", `{"q": "go"}`, http.StatusBadRequest, codeBadRequest},
		{"malformed json", http.MethodPost, "/search", `{"query":`, http.StatusBadRequest, codeBadRequest},
		{"bad search type", http.MethodPost, "/search", `{"query": "go", "searchType": "fuzzy"}`, http.StatusBadRequest, codeInvalidRequest},
		{"zero limit", http.MethodPost, "/search", `{"query": "go", "limit": 0}`, http.StatusBadRequest, codeInvalidRequest},
		{"bad date", http.MethodPost, "/search", `{"filters": {"uploadDate": {"from": "yesterday"}}}`, http.StatusBadRequest, codeInvalidRequest},
		{"non-integer limit", http.MethodGet, "/search?query=go&limit=ten", "", http.StatusBadRequest, codeInvalidRequest},
		{"bad experience", http.MethodGet, "/search?experience=a-b", "", http.StatusBadRequest, codeInvalidRequest},
		{"no query", http.MethodGet, "/search", "", http.StatusBadRequest, codeInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, tt.method, tt.target, tt.body)
			if rr.Code != tt.status {
				t.Fatalf("status %d, want %d: %s", rr.Code, tt.status, rr.Body.String())
			}
			var resp ErrorResponse
			decode(t, rr, &resp)
			if resp.Code != tt.code {
				t.Errorf("code = %q, want %q", resp.Code, tt.code)
			}
		})
	}
}

func TestSearch_LimitClamped(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)

	rr := env.do(t, http.MethodGet, "/search?skills=go&limit=500", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rr.Code, rr.Body.String())
	}
	var resp SearchResponse
	decode(t, rr, &resp)
	if resp.Limit != 50 {
		t.Errorf("limit = %d, want clamp to 50", resp.Limit)
	}
}

func TestIngest_ReportsPerItem(t *testing.T) {
	env := newTestEnv(t)

	body := `{"records": [
		{"content": "Go developer"},
		{"id": "bad id!", "content": "x"},
		{"id": "dave", "content": ""}
	]}`
	rr := env.do(t, http.MethodPost, "/records", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rr.Code, rr.Body.String())
	}
	var resp IngestResponse
	decode(t, rr, &resp)
	if resp.Succeeded != 1 || resp.Failed != 2 {
		t.Fatalf("summary = %+v", resp)
	}
	if resp.Items[0].ID == "" || resp.Items[0].Status != "ok" {
		t.Errorf("first item = %+v, want generated id and ok", resp.Items[0])
	}
	for _, it := range resp.Items[1:] {
		if it.Error == nil || it.Error.Code != codeInvalidRequest {
			t.Errorf("item %s: error = %+v, want invalid_request", it.ID, it.Error)
		}
	}
}

func TestIngest_EmptyBatch(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/records", `{"records": []}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status %d, want 400", rr.Code)
	}
}

func TestRecords_GetAndDelete(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)

	rr := env.do(t, http.MethodGet, "/records/alice", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("get: status %d: %s", rr.Code, rr.Body.String())
	}
	var rec Record
	decode(t, rr, &rec)
	if rec.ID != "alice" || rec.Metadata.Contact == nil || rec.Metadata.Contact.Email != "alice@example.com" {
		t.Errorf("record = %+v", rec)
	}
	if strings.Contains(rr.Body.String(), "golang services") {
		t.Error("content leaked")
	}

	if rr := env.do(t, http.MethodDelete, "/records/alice", ""); rr.Code != http.StatusNoContent {
		t.Fatalf("delete: status %d", rr.Code)
	}
	if rr := env.do(t, http.MethodGet, "/records/alice", ""); rr.Code != http.StatusNotFound {
		t.Errorf("get after delete: status %d, want 404", rr.Code)
	}
	if rr := env.do(t, http.MethodDelete, "/records/alice", ""); rr.Code != http.StatusNotFound {
		t.Errorf("second delete: status %d, want 404", rr.Code)
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/health", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	var resp HealthResponse
	decode(t, rr, &resp)
	if resp.Status != string(healthuc.Healthy) {
		t.Errorf("status = %q", resp.Status)
	}

	env.embed.err = errors.New("down")
	rr = env.do(t, http.MethodGet, "/health", "")
	decode(t, rr, &resp)
	if rr.Code != http.StatusOK || resp.Status != string(healthuc.Degraded) {
		t.Errorf("embedder down: %d %q, want 200 degraded", rr.Code, resp.Status)
	}

	env.store.Close()
	rr = env.do(t, http.MethodGet, "/health", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("store down: status %d, want 503", rr.Code)
	}
}

func TestRouter_NotFoundIsJSON(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/nope", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status %d", rr.Code)
	}
	var resp ErrorResponse
	decode(t, rr, &resp)
	if resp.Code != codeNotFound {
		t.Errorf("code = %q", resp.Code)
	}
}

func TestRouter_AuthAndRequestID(t *testing.T) {
	env := newTestEnv(t, "secret")

	if rr := env.do(t, http.MethodGet, "/search?query=go", ""); rr.Code != http.StatusUnauthorized {
		t.Errorf("no token: status %d, want 401", rr.Code)
	}
	if rr := env.do(t, http.MethodGet, "/health", ""); rr.Code != http.StatusOK {
		t.Errorf("health must be open: status %d", rr.Code)
	}
	rr := env.do(t, http.MethodGet, "/search?query=go", "", "Authorization", "Bearer secret")
	if rr.Code != http.StatusOK {
		t.Fatalf("with token: status %d: %s", rr.Code, rr.Body.String())
	}
	if rr.Header().Get(headerRequestID) == "" {
		t.Error("missing X-Request-ID")
	}
}

func TestUsage(t *testing.T) {
	env := newTestEnv(t)
	env.budget.Record(120)

	rec := env.do(t, http.MethodGet, "/usage", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	var day UsageResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &day); err != nil {
		t.Fatal(err)
	}
	if day.Period != "day" || day.TokensUsed != 120 {
		t.Errorf("day usage = %+v", day)
	}
	if day.Budget == nil || day.Budget.TokensLimit != 1000 || day.Budget.TokensRemaining != 880 || day.Budget.Exhausted {
		t.Errorf("day budget = %+v", day.Budget)
	}
	if !day.PeriodTo.After(day.PeriodFrom) {
		t.Errorf("window = %v .. %v", day.PeriodFrom, day.PeriodTo)
	}

	rec = env.do(t, http.MethodGet, "/usage?period=month", "")
	var month UsageResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &month); err != nil {
		t.Fatal(err)
	}
	if month.TokensUsed != 120 || month.Budget != nil {
		t.Errorf("month usage without a monthly cap = %+v", month)
	}

	rec = env.do(t, http.MethodGet, "/usage?period=year", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown period status = %d", rec.Code)
	}
}
