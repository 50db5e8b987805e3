package cvsearch

import (
	"time"

	"github.com/kailas-cloud/cvsearch/internal/domain/record"
	"github.com/kailas-cloud/cvsearch/internal/domain/search/filter"
)

// Record is a candidate record. Content is the CV text; it is never
// returned by Search.
type Record struct {
	ID         string
	Content    string
	UploadDate time.Time // zero means now on ingest
	Metadata   Metadata
	Score      float64 // set on search results only
}

// Metadata is the structured part of a record.
type Metadata struct {
	Skills     []string
	Experience int
	JobTitles  []string
	Education  []string
	Email      string
	Phone      string
	Custom     map[string]any // scalar values, addressable by Where
}

// SearchType selects the retrieval path.
type SearchType string

// Search types.
const (
	SearchAuto   SearchType = "auto"   // vector first, text on embedding failure
	SearchVector SearchType = "vector" // vector only
	SearchText   SearchType = "text"   // text and filters only
)

// Filters narrow a search. Set fields combine with AND.
type Filters struct {
	Skills         []string
	MatchAllSkills bool // AND instead of OR across Skills
	Experience     *int // exact years, wins over the range
	ExperienceMin  *int
	ExperienceMax  *int
	JobTitles      []string
	Education      []string
	UploadedFrom   *time.Time
	UploadedTo     *time.Time
	Custom         map[string]any
}

// SearchOptions configures a search.
type SearchOptions struct {
	Query     string
	Type      SearchType
	Filters   Filters
	Limit     int // 0 = 10, capped at 100
	Page      int // 1-based, 0 = 1
	SortBy    string
	SortOrder string
}

// SearchResult is one page of hits.
type SearchResult struct {
	Records    []Record
	Total      int
	Page       int
	Limit      int
	TotalPages int
	Method     string // "vector" or "text"
}

// IngestResult is the outcome of one ingested record, in input order.
type IngestResult struct {
	ID       string
	Embedded bool // false when stored without a vector
	Err      error
}

func toDraft(r *Record) record.Draft {
	return record.Draft{
		ID:         r.ID,
		Content:    r.Content,
		UploadDate: r.UploadDate,
		Metadata: record.Metadata{
			Skills:     r.Metadata.Skills,
			Experience: r.Metadata.Experience,
			JobTitles:  r.Metadata.JobTitles,
			Education:  r.Metadata.Education,
			Contact:    record.Contact{Email: r.Metadata.Email, Phone: r.Metadata.Phone},
			Custom:     r.Metadata.Custom,
		},
	}
}

func fromRecord(r *record.Record) Record {
	m := r.Metadata()
	return Record{
		ID:         r.ID(),
		Content:    r.Content(),
		UploadDate: r.UploadDate(),
		Score:      r.Score(),
		Metadata: Metadata{
			Skills:     m.Skills,
			Experience: m.Experience,
			JobTitles:  m.JobTitles,
			Education:  m.Education,
			Email:      m.Contact.Email,
			Phone:      m.Contact.Phone,
			Custom:     m.Custom,
		},
	}
}

func (f *Filters) toSpec() filter.Spec {
	s := filter.Spec{
		Skills:      f.Skills,
		SkillsLogic: filter.LogicOr,
		JobTitles:   f.JobTitles,
		Education:   f.Education,
		Experience: filter.Experience{
			Exact: f.Experience,
			Min:   f.ExperienceMin,
			Max:   f.ExperienceMax,
		},
		UploadDate: filter.DateRange{From: f.UploadedFrom, To: f.UploadedTo},
		Custom:     f.Custom,
	}
	if f.MatchAllSkills {
		s.SkillsLogic = filter.LogicAnd
	}
	return s
}
