package chi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	dombatch "github.com/kailas-cloud/cvsearch/internal/domain/batch"
	"github.com/kailas-cloud/cvsearch/internal/domain/record"
	"github.com/kailas-cloud/cvsearch/internal/domain/search/filter"
	"github.com/kailas-cloud/cvsearch/internal/domain/search/mode"
	"github.com/kailas-cloud/cvsearch/internal/domain/search/request"
	"github.com/kailas-cloud/cvsearch/internal/domain/search/result"
	domusage "github.com/kailas-cloud/cvsearch/internal/domain/usage"
)

// Error codes returned in ErrorResponse.Code.
const (
	codeBadRequest          = "bad_request"
	codeInvalidRequest      = "invalid_request"
	codeUnauthorized        = "unauthorized"
	codeNotFound            = "not_found"
	codeQueryRejected       = "query_rejected"
	codeEmbeddingUnavail    = "embedding_unavailable"
	codeStoreUnavailable    = "store_unavailable"
	codeVectorSearchFailed  = "vector_search_failed"
	codeTextSearchFailed    = "text_search_failed"
	codeTimeout             = "timeout"
	codeClientClosedRequest = "client_closed_request"
	codeInternalError       = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	// Cause names the failure behind vector_search_failed or text_search_failed.
	Cause string `json:"cause,omitempty"`
}

// SearchRequest is the POST /search body.
type SearchRequest struct {
	Query      string      `json:"query,omitempty"`
	Limit      *int        `json:"limit,omitempty"`
	Page       *int        `json:"page,omitempty"`
	Filters    *FilterSpec `json:"filters,omitempty"`
	SortBy     string      `json:"sortBy,omitempty"`
	SortOrder  string      `json:"sortOrder,omitempty"`
	SearchType string      `json:"searchType,omitempty"`
}

// FilterSpec is the wire form of filter.Spec.
type FilterSpec struct {
	Skills      []string       `json:"skills,omitempty"`
	SkillsLogic string         `json:"skillsLogic,omitempty"`
	Experience  *Experience    `json:"experience,omitempty"`
	JobTitles   []string       `json:"jobTitles,omitempty"`
	Education   []string       `json:"education,omitempty"`
	UploadDate  *DateRange     `json:"uploadDate,omitempty"`
	Custom      map[string]any `json:"custom,omitempty"`
}

// Experience is either a bare integer (exact) or {"min":..,"max":..}.
type Experience struct {
	Exact *int `json:"-"`
	Min   *int `json:"min,omitempty"`
	Max   *int `json:"max,omitempty"`
}

// UnmarshalJSON accepts both forms.
func (e *Experience) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] != '{' {
		var n int
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("experience must be an integer or a {min, max} object")
		}
		*e = Experience{Exact: &n}
		return nil
	}
	type rangeForm Experience
	var r rangeForm
	if err := json.Unmarshal(b, &r); err != nil {
		return fmt.Errorf("experience: %w", err)
	}
	*e = Experience(r)
	return nil
}

// MarshalJSON writes the exact form as a bare integer.
func (e Experience) MarshalJSON() ([]byte, error) {
	if e.Exact != nil {
		return json.Marshal(*e.Exact)
	}
	type rangeForm Experience
	return json.Marshal(rangeForm(e))
}

// DateRange bounds uploadDate. Values are RFC 3339 or YYYY-MM-DD.
type DateRange struct {
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
}

// SearchResponse is the body of a successful search.
type SearchResponse struct {
	Count        int         `json:"count"`
	Total        int         `json:"total"`
	Page         int         `json:"page"`
	Limit        int         `json:"limit"`
	TotalPages   int         `json:"totalPages"`
	SearchMethod string      `json:"searchMethod"`
	Query        string      `json:"query,omitempty"`
	Filters      *FilterSpec `json:"filters,omitempty"`
	Results      []Record    `json:"results"`
}

// Record is a sanitized record as returned to clients.
type Record struct {
	ID         string         `json:"id"`
	UploadDate time.Time      `json:"uploadDate"`
	Score      float64        `json:"score,omitempty"`
	Metadata   RecordMetadata `json:"metadata"`
}

// RecordMetadata is the wire form of record.Metadata.
type RecordMetadata struct {
	Skills     []string       `json:"skills"`
	Experience int            `json:"experience"`
	JobTitles  []string       `json:"jobTitles"`
	Education  []string       `json:"education"`
	Contact    *Contact       `json:"contact,omitempty"`
	Custom     map[string]any `json:"custom,omitempty"`
}

// Contact is optional contact info.
type Contact struct {
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// IngestRequest is the POST /records body.
type IngestRequest struct {
	Records []IngestItem `json:"records"`
}

// IngestItem is one record draft. An empty id is generated.
type IngestItem struct {
	ID         string         `json:"id,omitempty"`
	Content    string         `json:"content"`
	UploadDate string         `json:"uploadDate,omitempty"`
	Metadata   RecordMetadata `json:"metadata"`
}

// IngestResponse reports per-item outcomes in input order.
type IngestResponse struct {
	Items      []IngestResult `json:"items"`
	Succeeded  int            `json:"succeeded"`
	Failed     int            `json:"failed"`
	Unembedded int            `json:"unembedded"`
}

// IngestResult is the outcome of one item.
type IngestResult struct {
	ID       string         `json:"id"`
	Status   string         `json:"status"`
	Embedded bool           `json:"embedded"`
	Error    *ErrorResponse `json:"error,omitempty"`
}

// UsageResponse is the GET /usage body.
type UsageResponse struct {
	Period     string       `json:"period"`
	PeriodFrom time.Time    `json:"periodStart"`
	PeriodTo   time.Time    `json:"periodEnd"`
	TokensUsed int64        `json:"tokensUsed"`
	Budget     *UsageBudget `json:"budget,omitempty"`
}

// UsageBudget is present only when a token cap is configured.
type UsageBudget struct {
	TokensLimit     int64     `json:"tokensLimit"`
	TokensRemaining int64     `json:"tokensRemaining"`
	Exhausted       bool      `json:"exhausted"`
	ResetsAt        time.Time `json:"resetsAt"`
}

// HealthResponse is the GET /health body.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// toParams converts a decoded body into request parameters.
func (r *SearchRequest) toParams() (request.Params, error) {
	st, err := mode.ParseSearchType(r.SearchType)
	if err != nil {
		return request.Params{}, err
	}
	spec, err := r.Filters.toSpec()
	if err != nil {
		return request.Params{}, err
	}
	p := request.Params{
		Query:      r.Query,
		Filters:    spec,
		SortBy:     r.SortBy,
		SortOrder:  r.SortOrder,
		SearchType: st,
	}
	if r.Limit != nil {
		if *r.Limit <= 0 {
			return request.Params{}, fmt.Errorf("limit must be positive")
		}
		p.Limit = *r.Limit
	}
	if r.Page != nil {
		if *r.Page <= 0 {
			return request.Params{}, fmt.Errorf("page must be positive")
		}
		p.Page = *r.Page
	}
	return p, nil
}

func (f *FilterSpec) toSpec() (filter.Spec, error) {
	if f == nil {
		return filter.Spec{}, nil
	}
	logic := filter.LogicOr
	switch strings.ToUpper(f.SkillsLogic) {
	case "", string(filter.LogicOr):
	case string(filter.LogicAnd):
		logic = filter.LogicAnd
	default:
		return filter.Spec{}, fmt.Errorf("skillsLogic must be AND or OR")
	}

	spec := filter.Spec{
		Skills:      f.Skills,
		SkillsLogic: logic,
		JobTitles:   f.JobTitles,
		Education:   f.Education,
		Custom:      f.Custom,
	}
	if e := f.Experience; e != nil {
		spec.Experience = filter.Experience{Exact: e.Exact, Min: e.Min, Max: e.Max}
	}
	if d := f.UploadDate; d != nil {
		from, err := parseDate(d.From, false)
		if err != nil {
			return filter.Spec{}, fmt.Errorf("uploadDate.from: %w", err)
		}
		to, err := parseDate(d.To, true)
		if err != nil {
			return filter.Spec{}, fmt.Errorf("uploadDate.to: %w", err)
		}
		spec.UploadDate = filter.DateRange{From: from, To: to}
	}
	return spec, nil
}

func specToWire(s filter.Spec) *FilterSpec {
	if s.IsEmpty() {
		return nil
	}
	f := &FilterSpec{
		Skills:    s.Skills,
		JobTitles: s.JobTitles,
		Education: s.Education,
		Custom:    s.Custom,
	}
	if len(s.Skills) > 0 {
		f.SkillsLogic = string(filter.LogicOr)
		if s.SkillsLogic.IsAnd() {
			f.SkillsLogic = string(filter.LogicAnd)
		}
	}
	if !s.Experience.IsEmpty() {
		f.Experience = &Experience{Exact: s.Experience.Exact, Min: s.Experience.Min, Max: s.Experience.Max}
	}
	if !s.UploadDate.IsEmpty() {
		f.UploadDate = &DateRange{}
		if s.UploadDate.From != nil {
			f.UploadDate.From = s.UploadDate.From.UTC().Format(time.RFC3339Nano)
		}
		if s.UploadDate.To != nil {
			f.UploadDate.To = s.UploadDate.To.UTC().Format(time.RFC3339Nano)
		}
	}
	return f
}

// parseDate accepts RFC 3339 or a bare date. A bare upper bound means the
// end of that day.
func parseDate(s string, upper bool) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q (want RFC 3339 or YYYY-MM-DD)", s)
	}
	if upper {
		t = t.Add(24*time.Hour - time.Millisecond)
	}
	return &t, nil
}

func responseToWire(resp *result.Response) SearchResponse {
	out := SearchResponse{
		Count:        resp.Count(),
		Total:        resp.Total(),
		Page:         resp.Page(),
		Limit:        resp.Limit(),
		TotalPages:   resp.TotalPages(),
		SearchMethod: resp.Method().String(),
		Query:        resp.Query(),
		Filters:      specToWire(resp.Filters()),
		Results:      make([]Record, 0, resp.Count()),
	}
	recs := resp.Records()
	for i := range recs {
		out.Results = append(out.Results, recordToWire(&recs[i]))
	}
	return out
}

func recordToWire(r *record.Record) Record {
	return Record{
		ID:         r.ID(),
		UploadDate: r.UploadDate().UTC(),
		Score:      r.Score(),
		Metadata:   metadataToWire(r.Metadata()),
	}
}

func metadataToWire(m record.Metadata) RecordMetadata {
	out := RecordMetadata{
		Skills:     nonNil(m.Skills),
		Experience: m.Experience,
		JobTitles:  nonNil(m.JobTitles),
		Education:  nonNil(m.Education),
		Custom:     m.Custom,
	}
	if m.Contact != (record.Contact{}) {
		out.Contact = &Contact{Email: m.Contact.Email, Phone: m.Contact.Phone}
	}
	return out
}

func (m RecordMetadata) toDomain() record.Metadata {
	out := record.Metadata{
		Skills:     m.Skills,
		Experience: m.Experience,
		JobTitles:  m.JobTitles,
		Education:  m.Education,
		Custom:     m.Custom,
	}
	if m.Contact != nil {
		out.Contact = record.Contact{Email: m.Contact.Email, Phone: m.Contact.Phone}
	}
	return out
}

func (it *IngestItem) toDraft() (record.Draft, error) {
	d := record.Draft{ID: it.ID, Content: it.Content, Metadata: it.Metadata.toDomain()}
	if it.UploadDate != "" {
		t, err := parseDate(it.UploadDate, false)
		if err != nil {
			return record.Draft{}, fmt.Errorf("uploadDate: %w", err)
		}
		d.UploadDate = *t
	}
	return d, nil
}

func ingestToWire(results []dombatch.Result) IngestResponse {
	sum := dombatch.Summarize(results)
	out := IngestResponse{
		Items:      make([]IngestResult, len(results)),
		Succeeded:  sum.Succeeded,
		Failed:     sum.Failed,
		Unembedded: sum.Unembedded,
	}
	for i, r := range results {
		item := IngestResult{ID: r.ID(), Status: string(r.Status()), Embedded: r.Embedded()}
		if r.Err() != nil {
			_, code := classify(r.Err())
			item.Error = &ErrorResponse{Code: code, Message: safeMessage(r.Err()), Cause: causeOf(r.Err(), code)}
		}
		out.Items[i] = item
	}
	return out
}

func usageToWire(r *domusage.Report) UsageResponse {
	out := UsageResponse{
		Period:     string(r.Period()),
		PeriodFrom: r.Start(),
		PeriodTo:   r.End(),
		TokensUsed: r.TokensUsed(),
	}
	if b := r.Budget(); !b.Unlimited() {
		out.Budget = &UsageBudget{
			TokensLimit:     b.Limit(),
			TokensRemaining: b.Remaining(),
			Exhausted:       b.Exhausted(),
			ResetsAt:        r.End(),
		}
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
