// Package ordering resolves logical sort options into concrete ordering.
package ordering

import (
	"strings"

	"github.com/kailas-cloud/cvsearch/internal/domain/record"
)

// Key is a logical sort key.
type Key string

// Sort keys.
const (
	Relevance  Key = "relevance"
	UploadDate Key = "uploadDate"
	Experience Key = "experience"
)

// TieBreakField orders records that compare equal on the primary key.
const TieBreakField = record.FieldID

// Spec is a resolved ordering. When Natural is true the retrieval order
// (vector similarity) is kept and no sort stage is applied.
type Spec struct {
	Key        Key
	Field      string
	ByScore    bool
	Descending bool
	Natural    bool
}

// Resolve maps sortBy and sortOrder to a Spec. "asc" sorts ascending and any
// other order value descending. An unknown key falls back to uploadDate
// descending. Relevance on the vector path keeps retrieval order.
func Resolve(sortBy, sortOrder string, forVector bool) Spec {
	desc := !strings.EqualFold(strings.TrimSpace(sortOrder), "asc")

	switch Key(strings.TrimSpace(sortBy)) {
	case Relevance, "":
		if forVector {
			return Spec{Key: Relevance, ByScore: true, Descending: true, Natural: true}
		}
		return Spec{Key: Relevance, ByScore: true, Descending: desc}
	case UploadDate:
		return Spec{Key: UploadDate, Field: record.FieldUploadDate, Descending: desc}
	case Experience:
		return Spec{Key: Experience, Field: record.FieldExperience, Descending: desc}
	}
	return Spec{Key: UploadDate, Field: record.FieldUploadDate, Descending: true}
}

// IsKnownKey reports whether s names a supported sort key.
func IsKnownKey(s string) bool {
	switch Key(s) {
	case Relevance, UploadDate, Experience:
		return true
	}
	return false
}

// Less compares two records under the spec: primary key in the resolved
// direction, then id ascending. Score-based specs use the retrieval score.
func (s Spec) Less(a, b *record.Record) bool {
	var av, bv float64
	switch {
	case s.ByScore:
		av, bv = a.Score(), b.Score()
	case s.Field == record.FieldExperience:
		av, bv = float64(a.Metadata().Experience), float64(b.Metadata().Experience)
	default:
		av, bv = float64(a.UploadDate().UnixMilli()), float64(b.UploadDate().UnixMilli())
	}
	if av != bv {
		if s.Descending {
			return av > bv
		}
		return av < bv
	}
	return a.ID() < b.ID()
}
