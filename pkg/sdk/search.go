package cvsearch

import (
	"context"
	"fmt"
	"time"

	"github.com/kailas-cloud/cvsearch/internal/domain/search/mode"
	"github.com/kailas-cloud/cvsearch/internal/domain/search/request"
)

// Search runs one search.
func (c *Client) Search(ctx context.Context, opts SearchOptions) (_ *SearchResult, err error) {
	start := time.Now()
	defer func() { c.obs.observe("search", start, err) }()

	st, err := mode.ParseSearchType(string(opts.Type))
	if err != nil {
		return nil, fmt.Errorf("search: %w: %w", ErrInvalidRequest, err)
	}
	req, err := request.New(request.Params{
		Query:      opts.Query,
		Limit:      opts.Limit,
		Page:       opts.Page,
		Filters:    opts.Filters.toSpec(),
		SortBy:     opts.SortBy,
		SortOrder:  opts.SortOrder,
		SearchType: st,
	})
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	resp, err := c.search.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	out := &SearchResult{
		Records:    make([]Record, 0, resp.Count()),
		Total:      resp.Total(),
		Page:       resp.Page(),
		Limit:      resp.Limit(),
		TotalPages: resp.TotalPages(),
		Method:     resp.Method().String(),
	}
	for _, r := range resp.Records() {
		out.Records = append(out.Records, fromRecord(&r))
	}
	c.obs.searched(out.Method)
	return out, nil
}

// SearchBuilder is a fluent builder for search queries.
type SearchBuilder struct {
	c    *Client
	opts SearchOptions
}

// Find starts a search. An empty query searches on filters alone.
func (c *Client) Find(query string) *SearchBuilder {
	return &SearchBuilder{c: c, opts: SearchOptions{Query: query}}
}

// Type selects the retrieval path (default SearchAuto).
func (b *SearchBuilder) Type(t SearchType) *SearchBuilder {
	b.opts.Type = t
	return b
}

// Skills requires any of the given skills.
func (b *SearchBuilder) Skills(skills ...string) *SearchBuilder {
	b.opts.Filters.Skills = append(b.opts.Filters.Skills, skills...)
	return b
}

// AllSkills requires every skill passed to Skills.
func (b *SearchBuilder) AllSkills() *SearchBuilder {
	b.opts.Filters.MatchAllSkills = true
	return b
}

// Experience bounds years of experience, inclusive.
func (b *SearchBuilder) Experience(minYears, maxYears int) *SearchBuilder {
	b.opts.Filters.ExperienceMin = &minYears
	b.opts.Filters.ExperienceMax = &maxYears
	return b
}

// MinExperience sets only the lower bound.
func (b *SearchBuilder) MinExperience(years int) *SearchBuilder {
	b.opts.Filters.ExperienceMin = &years
	return b
}

// JobTitles requires any of the given job titles.
func (b *SearchBuilder) JobTitles(titles ...string) *SearchBuilder {
	b.opts.Filters.JobTitles = append(b.opts.Filters.JobTitles, titles...)
	return b
}

// Education requires any of the given education entries.
func (b *SearchBuilder) Education(entries ...string) *SearchBuilder {
	b.opts.Filters.Education = append(b.opts.Filters.Education, entries...)
	return b
}

// UploadedBetween bounds the upload date, inclusive. A zero time leaves that side open.
func (b *SearchBuilder) UploadedBetween(from, to time.Time) *SearchBuilder {
	if !from.IsZero() {
		b.opts.Filters.UploadedFrom = &from
	}
	if !to.IsZero() {
		b.opts.Filters.UploadedTo = &to
	}
	return b
}

// Where adds an exact match on a custom metadata key.
func (b *SearchBuilder) Where(key string, value any) *SearchBuilder {
	if b.opts.Filters.Custom == nil {
		b.opts.Filters.Custom = make(map[string]any)
	}
	b.opts.Filters.Custom[key] = value
	return b
}

// SortBy orders results by relevance, experience, uploadDate or metadata.<key>.
func (b *SearchBuilder) SortBy(key, order string) *SearchBuilder {
	b.opts.SortBy = key
	b.opts.SortOrder = order
	return b
}

// Page selects the 1-based page.
func (b *SearchBuilder) Page(n int) *SearchBuilder {
	b.opts.Page = n
	return b
}

// Limit sets the page size.
func (b *SearchBuilder) Limit(n int) *SearchBuilder {
	b.opts.Limit = n
	return b
}

// Do executes the search.
func (b *SearchBuilder) Do(ctx context.Context) (*SearchResult, error) {
	return b.c.Search(ctx, b.opts)
}
