package request

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/cvsearch/internal/domain"
	"github.com/kailas-cloud/cvsearch/internal/domain/search/filter"
	"github.com/kailas-cloud/cvsearch/internal/domain/search/mode"
	"github.com/kailas-cloud/cvsearch/internal/domain/search/ordering"
)

// Search parameter limits.
const (
	// MaxQueryLength is the maximum allowed search query length in bytes.
	MaxQueryLength = 4096
	DefaultLimit   = 10
	MaxLimit       = 100
	DefaultSortBy  = string(ordering.Relevance)
	DefaultOrder   = "desc"
)

// Params is the unvalidated input of New.
type Params struct {
	Query      string
	Limit      int
	Page       int
	Filters    filter.Spec
	SortBy     string
	SortOrder  string
	SearchType mode.SearchType
}

// Request is a validated search request.
type Request struct {
	query      string
	limit      int
	page       int
	filters    filter.Spec
	sortBy     string
	sortOrder  string
	searchType mode.SearchType
}

// New validates and normalizes search parameters.
// Defaults: limit=10, page=1, sortBy=relevance, sortOrder=desc.
// Limit above MaxLimit is clamped. Every failure wraps domain.ErrInvalidRequest.
func New(p Params) (Request, error) {
	query := strings.TrimSpace(p.Query)
	if len(query) > MaxQueryLength {
		return Request{}, invalid("query too long (max %d chars)", MaxQueryLength)
	}
	if query == "" && p.Filters.IsEmpty() {
		return Request{}, invalid("query or filters are required")
	}
	if err := p.Filters.Validate(); err != nil {
		return Request{}, invalid("%s", err.Error())
	}

	limit := p.Limit
	switch {
	case limit < 0:
		return Request{}, invalid("limit must be positive")
	case limit == 0:
		limit = DefaultLimit
	case limit > MaxLimit:
		limit = MaxLimit
	}

	page := p.Page
	switch {
	case page < 0:
		return Request{}, invalid("page must be positive")
	case page == 0:
		page = 1
	}

	sortBy := strings.TrimSpace(p.SortBy)
	if sortBy == "" {
		sortBy = DefaultSortBy
	}
	sortOrder := strings.TrimSpace(p.SortOrder)
	if sortOrder == "" {
		sortOrder = DefaultOrder
	}

	return Request{
		query:      query,
		limit:      limit,
		page:       page,
		filters:    p.Filters,
		sortBy:     sortBy,
		sortOrder:  sortOrder,
		searchType: p.SearchType,
	}, nil
}

// Check reports whether r came from New. A zero Request has no query, no
// filters and no limit.
func (r *Request) Check() error {
	if r.query == "" && r.filters.IsEmpty() {
		return invalid("query or filters are required")
	}
	if r.limit <= 0 || r.page <= 0 {
		return invalid("limit and page must be positive")
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrInvalidRequest, fmt.Sprintf(format, args...))
}

// Query returns the trimmed query text, possibly empty.
func (r *Request) Query() string { return r.query }

// HasQuery reports whether a free-text query is present.
func (r *Request) HasQuery() bool { return r.query != "" }

// Limit returns the page size.
func (r *Request) Limit() int { return r.limit }

// Page returns the 1-based page number.
func (r *Request) Page() int { return r.page }

// Offset returns the number of records skipped before this page.
func (r *Request) Offset() int { return (r.page - 1) * r.limit }

// Filters returns the declarative filter.
func (r *Request) Filters() filter.Spec { return r.filters }

// SortBy returns the requested sort key as given.
func (r *Request) SortBy() string { return r.sortBy }

// SortOrder returns the requested sort order as given.
func (r *Request) SortOrder() string { return r.sortOrder }

// SearchType returns the requested strategy.
func (r *Request) SearchType() mode.SearchType { return r.searchType }
