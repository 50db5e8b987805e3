package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/cvsearch/internal/domain"
	"github.com/kailas-cloud/cvsearch/internal/domain/record"
	"github.com/kailas-cloud/cvsearch/internal/domain/search/filter"
	"github.com/kailas-cloud/cvsearch/internal/domain/search/mode"
	"github.com/kailas-cloud/cvsearch/internal/domain/search/request"
	"github.com/kailas-cloud/cvsearch/internal/domain/search/result"
	"github.com/kailas-cloud/cvsearch/internal/logger"
)

// Tool names.
const (
	ToolSearchRecords = "search_records"
	ToolGetRecord     = "get_record"
)

func (s *Server) registerTools() {
	s.mcp.AddTool(searchTool(), s.handleSearch)
	s.mcp.AddTool(getRecordTool(), s.handleGetRecord)
}

func searchTool() mcp.Tool {
	return mcp.NewTool(ToolSearchRecords,
		mcp.WithDescription("Search candidate records by free text and structured filters. "+
			"Semantic search is used when possible, with keyword search as fallback. "+
			"Results never include the full record text."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("query",
			mcp.Description("Free-text query, e.g. 'senior go engineer kubernetes'"),
		),
		mcp.WithString("searchType",
			mcp.Description("auto (default), vector or text"),
			mcp.Enum("auto", "vector", "text"),
		),
		mcp.WithNumber("limit",
			mcp.Description(fmt.Sprintf("Results per page (default %d, max %d)", request.DefaultLimit, request.MaxLimit)),
		),
		mcp.WithNumber("page",
			mcp.Description("1-based page number"),
		),
		mcp.WithString("sortBy",
			mcp.Description("relevance, experience, uploadDate or any metadata.<key>"),
		),
		mcp.WithString("sortOrder",
			mcp.Enum("asc", "desc"),
		),
		mcp.WithArray("skills",
			mcp.Description("Required skills"),
			mcp.WithStringItems(),
		),
		mcp.WithString("skillsLogic",
			mcp.Description("OR (any skill, default) or AND (every skill)"),
			mcp.Enum("OR", "AND"),
		),
		mcp.WithNumber("experienceMin",
			mcp.Description("Minimum years of experience"),
		),
		mcp.WithNumber("experienceMax",
			mcp.Description("Maximum years of experience"),
		),
		mcp.WithArray("jobTitles",
			mcp.WithStringItems(),
		),
		mcp.WithArray("education",
			mcp.WithStringItems(),
		),
	)
}

func getRecordTool() mcp.Tool {
	return mcp.NewTool(ToolGetRecord,
		mcp.WithDescription("Fetch one record's metadata by id"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Record id"),
		),
	)
}

func (s *Server) handleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	params, err := searchParams(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	sr, err := request.New(params)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	ctx = logger.With(logger.ContextWithLogger(ctx, s.logger), zap.String("tool", ToolSearchRecords))
	resp, err := s.search.Search(ctx, sr)
	if err != nil {
		return s.toolError(ToolSearchRecords, err), nil
	}
	return jsonResult(searchResultToWire(&resp))
}

func (s *Server) handleGetRecord(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil || strings.TrimSpace(id) == "" {
		return mcp.NewToolResultError("id is required"), nil
	}
	rec, err := s.records.Get(ctx, strings.TrimSpace(id))
	if err != nil {
		return s.toolError(ToolGetRecord, err), nil
	}
	return jsonResult(recordToWire(&rec))
}

// toolError reports a failed call to the client. Only validation and
// not-found details are echoed; everything else is logged.
func (s *Server) toolError(tool string, err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest), errors.Is(err, domain.ErrNotFound):
		return mcp.NewToolResultError(err.Error())
	case errors.Is(err, domain.ErrQueryRejected):
		return mcp.NewToolResultError("query rejected by the search index")
	}
	s.logger.Error("tool call failed", zap.String("tool", tool), zap.Error(err))
	return mcp.NewToolResultError("search is temporarily unavailable")
}

func searchParams(req mcp.CallToolRequest) (request.Params, error) {
	st, err := mode.ParseSearchType(req.GetString("searchType", ""))
	if err != nil {
		return request.Params{}, err
	}
	spec := filter.Spec{
		Skills:      req.GetStringSlice("skills", nil),
		SkillsLogic: filter.Logic(strings.ToUpper(req.GetString("skillsLogic", ""))),
		JobTitles:   req.GetStringSlice("jobTitles", nil),
		Education:   req.GetStringSlice("education", nil),
	}
	if v, ok := intArg(req, "experienceMin"); ok {
		spec.Experience.Min = &v
	}
	if v, ok := intArg(req, "experienceMax"); ok {
		spec.Experience.Max = &v
	}
	limit, _ := intArg(req, "limit")
	page, _ := intArg(req, "page")
	return request.Params{
		Query:      req.GetString("query", ""),
		Limit:      limit,
		Page:       page,
		Filters:    spec,
		SortBy:     req.GetString("sortBy", ""),
		SortOrder:  req.GetString("sortOrder", ""),
		SearchType: st,
	}, nil
}

// intArg reads a numeric argument. JSON numbers arrive as float64.
func intArg(req mcp.CallToolRequest, key string) (int, bool) {
	v, ok := req.GetArguments()[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	}
	return 0, false
}

type searchResult struct {
	Count        int          `json:"count"`
	Total        int          `json:"total"`
	Page         int          `json:"page"`
	TotalPages   int          `json:"totalPages"`
	SearchMethod string       `json:"searchMethod"`
	Results      []recordWire `json:"results"`
}

type recordWire struct {
	ID         string         `json:"id"`
	Score      float64        `json:"score,omitempty"`
	UploadDate string         `json:"uploadDate"`
	Skills     []string       `json:"skills,omitempty"`
	Experience int            `json:"experience"`
	JobTitles  []string       `json:"jobTitles,omitempty"`
	Education  []string       `json:"education,omitempty"`
	Email      string         `json:"email,omitempty"`
	Phone      string         `json:"phone,omitempty"`
	Custom     map[string]any `json:"custom,omitempty"`
}

func searchResultToWire(r *result.Response) searchResult {
	out := searchResult{
		Count:        r.Count(),
		Total:        r.Total(),
		Page:         r.Page(),
		TotalPages:   r.TotalPages(),
		SearchMethod: r.Method().String(),
		Results:      make([]recordWire, 0, r.Count()),
	}
	for _, rec := range r.Records() {
		out.Results = append(out.Results, recordToWire(&rec))
	}
	return out
}

func recordToWire(r *record.Record) recordWire {
	m := r.Metadata()
	return recordWire{
		ID:         r.ID(),
		Score:      r.Score(),
		UploadDate: r.UploadDate().UTC().Format(time.RFC3339),
		Skills:     m.Skills,
		Experience: m.Experience,
		JobTitles:  m.JobTitles,
		Education:  m.Education,
		Email:      m.Contact.Email,
		Phone:      m.Contact.Phone,
		Custom:     m.Custom,
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
