// Package filter holds the declarative record filter and its compiler.
package filter

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/kailas-cloud/cvsearch/internal/domain/record"
	"github.com/kailas-cloud/cvsearch/internal/domain/search/predicate"
)

// MaxValuesPerList caps each multi-valued sub-filter.
const MaxValuesPerList = 64

// Logic combines the values of a multi-valued sub-filter.
type Logic string

// Combinators. Anything other than AND behaves as OR.
const (
	LogicOr  Logic = "OR"
	LogicAnd Logic = "AND"
)

// IsAnd reports whether the combinator requires every value (case-insensitive).
func (l Logic) IsAnd() bool { return strings.EqualFold(string(l), string(LogicAnd)) }

// Experience is either an exact number of years or an inclusive range.
// Exact wins when both forms are set.
type Experience struct {
	Exact *int
	Min   *int
	Max   *int
}

// IsEmpty reports whether no bound is set.
func (e Experience) IsEmpty() bool { return e.Exact == nil && e.Min == nil && e.Max == nil }

// DateRange bounds uploadDate inclusively. Either side may be open.
type DateRange struct {
	From *time.Time
	To   *time.Time
}

// IsEmpty reports whether no bound is set.
func (d DateRange) IsEmpty() bool { return d.From == nil && d.To == nil }

// Spec is a set of independently optional record conditions.
// Present sub-filters combine with AND.
type Spec struct {
	Skills      []string
	SkillsLogic Logic
	Experience  Experience
	JobTitles   []string
	Education   []string
	UploadDate  DateRange
	// Custom maps metadata keys to exact values (string, number or bool).
	Custom map[string]any
}

// IsEmpty reports whether the spec imposes no condition at all.
func (s Spec) IsEmpty() bool {
	return len(s.Skills) == 0 &&
		s.Experience.IsEmpty() &&
		len(s.JobTitles) == 0 &&
		len(s.Education) == 0 &&
		s.UploadDate.IsEmpty() &&
		len(s.Custom) == 0
}

// Validate checks structural limits. Unknown custom keys are allowed.
func (s Spec) Validate() error {
	for name, list := range map[string][]string{
		"skills":    s.Skills,
		"jobTitles": s.JobTitles,
		"education": s.Education,
	} {
		if len(list) > MaxValuesPerList {
			return fmt.Errorf("too many %s values (max %d)", name, MaxValuesPerList)
		}
		if slices.Contains(list, "") {
			return fmt.Errorf("%s contains an empty value", name)
		}
	}
	if e := s.Experience; e.Exact != nil && *e.Exact < 0 {
		return fmt.Errorf("experience must be non-negative")
	}
	for k, v := range s.Custom {
		if k == "" {
			return fmt.Errorf("custom filter key is required")
		}
		if !predicate.IsScalar(v) {
			return fmt.Errorf("custom filter %q must be a string, number or boolean", k)
		}
	}
	return nil
}

// Compile turns the spec into a predicate. An empty spec compiles to MatchAll.
func Compile(s Spec) predicate.Node {
	parts := []predicate.Node{compileSkills(s.Skills, s.SkillsLogic)}

	if e := s.Experience; e.Exact != nil {
		parts = append(parts, predicate.Eq(record.FieldExperience, *e.Exact))
	} else {
		parts = append(parts, predicate.Range(record.FieldExperience, intBound(e.Min), intBound(e.Max)))
	}

	parts = append(parts,
		predicate.Any(record.FieldJobTitles, s.JobTitles...),
		predicate.Any(record.FieldEducation, s.Education...),
		predicate.Range(record.FieldUploadDate, timeBound(s.UploadDate.From), timeBound(s.UploadDate.To)),
	)

	keys := make([]string, 0, len(s.Custom))
	for k := range s.Custom {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		parts = append(parts, predicate.Eq(record.CustomPrefix+k, s.Custom[k]))
	}

	return predicate.And(parts...)
}

func compileSkills(skills []string, logic Logic) predicate.Node {
	if logic.IsAnd() {
		return predicate.All(record.FieldSkills, skills...)
	}
	return predicate.Any(record.FieldSkills, skills...)
}

func intBound(v *int) *float64 {
	if v == nil {
		return nil
	}
	f := float64(*v)
	return &f
}

// uploadDate is stored as Unix milliseconds.
func timeBound(t *time.Time) *float64 {
	if t == nil {
		return nil
	}
	f := float64(t.UnixMilli())
	return &f
}
