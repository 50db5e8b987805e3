// Package textquery chooses how a free-text query is matched.
package textquery

import (
	"strings"

	"github.com/kailas-cloud/cvsearch/internal/domain/record"
	"github.com/kailas-cloud/cvsearch/internal/domain/search/predicate"
)

// IndexedMaxLen is the exclusive length limit for indexed text queries.
const IndexedMaxLen = 50

// PatternFields are scanned by the literal fallback.
var PatternFields = []string{
	record.FieldContent,
	record.FieldSkills,
	record.FieldJobTitles,
	record.FieldEducation,
}

// Build returns MatchAll for a blank query, a Text node for short plain
// queries, and a literal Pattern for long queries or ones containing a quote
// or wildcard.
func Build(query string) predicate.Node {
	q := strings.TrimSpace(query)
	if q == "" {
		return predicate.MatchAll()
	}
	if IsIndexed(q) {
		return predicate.Text(q)
	}
	return predicate.Pattern(q, PatternFields...)
}

// IsIndexed reports whether q routes to the store's text index.
// Length counts characters, not bytes.
func IsIndexed(q string) bool {
	return len([]rune(q)) < IndexedMaxLen && !strings.ContainsAny(q, `"*`)
}
