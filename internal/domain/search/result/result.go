// Package result holds the search response aggregate.
package result

import (
	"github.com/kailas-cloud/cvsearch/internal/domain/record"
	"github.com/kailas-cloud/cvsearch/internal/domain/search/filter"
	"github.com/kailas-cloud/cvsearch/internal/domain/search/mode"
)

// Page is what an executor returns: one page of records plus the exact
// number of matches across all pages.
type Page struct {
	Records []record.Record
	Total   int
}

// Response is the outcome of a search.
type Response struct {
	records []record.Record
	total   int
	page    int
	limit   int
	method  mode.Method
	query   string
	filters filter.Spec
}

// New assembles a response. Records are stored as given; sanitization
// happens before this call.
func New(p Page, page, limit int, method mode.Method, query string, filters filter.Spec) Response {
	return Response{
		records: p.Records,
		total:   p.Total,
		page:    page,
		limit:   limit,
		method:  method,
		query:   query,
		filters: filters,
	}
}

// Records returns the ordered hits on this page.
func (r *Response) Records() []record.Record { return r.records }

// Count returns the number of records on this page.
func (r *Response) Count() int { return len(r.records) }

// Total returns the number of matches across all pages.
func (r *Response) Total() int { return r.total }

// Page returns the 1-based page number.
func (r *Response) Page() int { return r.page }

// Limit returns the page size.
func (r *Response) Limit() int { return r.limit }

// TotalPages returns ceil(total/limit).
func (r *Response) TotalPages() int {
	if r.limit <= 0 {
		return 0
	}
	return (r.total + r.limit - 1) / r.limit
}

// Method returns the strategy that produced the records.
func (r *Response) Method() mode.Method { return r.method }

// Query echoes the request query.
func (r *Response) Query() string { return r.query }

// Filters echoes the request filters.
func (r *Response) Filters() filter.Spec { return r.filters }
