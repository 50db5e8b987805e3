package record

import (
	"fmt"
	"regexp"
	"slices"
	"time"
)

var idRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// MaxContentSize is the maximum record content size in bytes.
const MaxContentSize = 512 * 1024

// Contact holds optional contact details extracted from a record.
type Contact struct {
	Email string
	Phone string
}

// Metadata is the structured part of a record used by filters and sorting.
type Metadata struct {
	Skills     []string
	Experience int
	JobTitles  []string
	Education  []string
	Contact    Contact
	// Custom holds arbitrary extra keys addressable as metadata.<key> in filters.
	Custom map[string]any
}

// Clone returns a deep copy.
func (m Metadata) Clone() Metadata {
	c := m
	c.Skills = slices.Clone(m.Skills)
	c.JobTitles = slices.Clone(m.JobTitles)
	c.Education = slices.Clone(m.Education)
	if m.Custom != nil {
		c.Custom = make(map[string]any, len(m.Custom))
		for k, v := range m.Custom {
			c.Custom[k] = v
		}
	}
	return c
}

// Record is a stored parsed document (immutable value object).
type Record struct {
	id         string
	content    string
	embedding  []float32
	uploadDate time.Time
	metadata   Metadata
	score      float64
}

// New validates and creates a Record without an embedding.
func New(id, content string, uploadDate time.Time, meta Metadata) (Record, error) {
	if id == "" {
		return Record{}, fmt.Errorf("record ID is required")
	}
	if len(id) > 256 {
		return Record{}, fmt.Errorf("record ID too long (max 256)")
	}
	if !idRegex.MatchString(id) {
		return Record{}, fmt.Errorf("record ID must be alphanumeric with underscores and hyphens")
	}
	if content == "" {
		return Record{}, fmt.Errorf("content is required")
	}
	if len(content) > MaxContentSize {
		return Record{}, fmt.Errorf("content too large (max %d bytes)", MaxContentSize)
	}
	if meta.Experience < 0 {
		return Record{}, fmt.Errorf("experience must be non-negative")
	}
	if uploadDate.IsZero() {
		return Record{}, fmt.Errorf("upload date is required")
	}

	return Record{
		id:         id,
		content:    content,
		uploadDate: uploadDate.UTC(),
		metadata:   meta.Clone(),
	}, nil
}

// Reconstruct hydrates a Record from storage without validation.
func Reconstruct(id, content string, embedding []float32, uploadDate time.Time, meta Metadata, score float64) Record {
	return Record{
		id:         id,
		content:    content,
		embedding:  embedding,
		uploadDate: uploadDate,
		metadata:   meta,
		score:      score,
	}
}

// ID returns the record identifier.
func (r *Record) ID() string { return r.id }

// Content returns the free-text body.
func (r *Record) Content() string { return r.content }

// Embedding returns the vector, nil when generation failed or was skipped.
func (r *Record) Embedding() []float32 { return r.embedding }

// HasEmbedding reports whether the record takes part in vector retrieval.
func (r *Record) HasEmbedding() bool { return len(r.embedding) > 0 }

// UploadDate returns the ingestion timestamp.
func (r *Record) UploadDate() time.Time { return r.uploadDate }

// Metadata returns the structured fields.
func (r *Record) Metadata() Metadata { return r.metadata }

// Score is the relevance assigned by the retrieval that produced this record.
// Zero for records not produced by a search.
func (r *Record) Score() float64 { return r.score }

// WithEmbedding returns a copy carrying the given vector.
func (r *Record) WithEmbedding(v []float32) Record {
	c := *r
	c.embedding = v
	return c
}

// Sanitized returns a copy without content and embedding.
func (r *Record) Sanitized() Record {
	c := *r
	c.content = ""
	c.embedding = nil
	return c
}

// IsSanitized reports whether heavy fields are absent.
func (r *Record) IsSanitized() bool {
	return r.content == "" && r.embedding == nil
}
