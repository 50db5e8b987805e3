package chi

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/oapi-codegen/runtime"

	"github.com/kailas-cloud/cvsearch/internal/domain/record"
)

// searchParamsFromQuery translates flattened GET /search parameters into the
// structured request body. Lists are comma-separated (form style, not
// exploded); metadata.<key>=value adds a custom equality filter.
func searchParamsFromQuery(q url.Values) (SearchRequest, error) {
	var req SearchRequest

	if err := bind(q, "limit", &req.Limit); err != nil {
		return SearchRequest{}, err
	}
	if err := bind(q, "page", &req.Page); err != nil {
		return SearchRequest{}, err
	}
	req.Query = q.Get("query")
	req.SortBy = q.Get("sortBy")
	req.SortOrder = q.Get("sortOrder")
	req.SearchType = q.Get("searchType")

	var f FilterSpec
	for name, dest := range map[string]*[]string{
		"skills":    &f.Skills,
		"jobTitles": &f.JobTitles,
		"education": &f.Education,
	} {
		if err := bind(q, name, dest); err != nil {
			return SearchRequest{}, err
		}
		*dest = trimAll(*dest)
	}
	f.SkillsLogic = q.Get("skillsLogic")

	if raw := q.Get("experience"); raw != "" {
		exp, err := parseExperience(raw)
		if err != nil {
			return SearchRequest{}, err
		}
		f.Experience = exp
	}

	from, to := q.Get("uploadDateFrom"), q.Get("uploadDateTo")
	if from != "" || to != "" {
		f.UploadDate = &DateRange{From: from, To: to}
	}

	for key, values := range q {
		name, ok := strings.CutPrefix(key, record.CustomPrefix)
		if !ok || len(values) == 0 {
			continue
		}
		if name == "" {
			return SearchRequest{}, fmt.Errorf("custom filter key is required")
		}
		if f.Custom == nil {
			f.Custom = make(map[string]any)
		}
		f.Custom[name] = customValue(values[0])
	}

	if !f.isZero() {
		req.Filters = &f
	}
	return req, nil
}

// customValue types a metadata.<key> value the way a JSON body would:
// true/false become booleans and canonical numbers become float64.
// Anything else, including "007" and double-quoted values, stays a string.
func customValue(raw string) any {
	if len(raw) >= 2 && raw[0] == '"' && raw[len(raw)-1] == '"' {
		return raw[1 : len(raw)-1]
	}
	switch raw {
	case "true":
		return true
	case "false":
		return false
	}
	if n, err := strconv.ParseFloat(raw, 64); err == nil && strconv.FormatFloat(n, 'f', -1, 64) == raw {
		return n
	}
	return raw
}

func bind(q url.Values, name string, dest any) error {
	if err := runtime.BindQueryParameter("form", false, false, name, q, dest); err != nil {
		return fmt.Errorf("invalid parameter %s: %w", name, err)
	}
	return nil
}

// parseExperience accepts "3", "2-5", "2-" and "-5".
func parseExperience(raw string) (*Experience, error) {
	lo, hi, isRange := strings.Cut(raw, "-")
	if !isRange {
		n, err := parseNonNegative(raw)
		if err != nil {
			return nil, err
		}
		return &Experience{Exact: &n}, nil
	}

	var e Experience
	if lo != "" {
		n, err := parseNonNegative(lo)
		if err != nil {
			return nil, err
		}
		e.Min = &n
	}
	if hi != "" {
		n, err := parseNonNegative(hi)
		if err != nil {
			return nil, err
		}
		e.Max = &n
	}
	if e.Min == nil && e.Max == nil {
		return nil, fmt.Errorf("invalid experience %q", raw)
	}
	return &e, nil
}

func parseNonNegative(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid experience value %q", s)
	}
	return n, nil
}

func trimAll(ss []string) []string {
	out := ss[:0]
	for _, s := range ss {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func (f *FilterSpec) isZero() bool {
	return len(f.Skills) == 0 && f.Experience == nil && len(f.JobTitles) == 0 &&
		len(f.Education) == 0 && f.UploadDate == nil && len(f.Custom) == 0
}
