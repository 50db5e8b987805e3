package predicate

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/kailas-cloud/cvsearch/internal/domain/record"
)

// Document is a decoded stored record: JSON objects as map[string]any,
// arrays as []any, numbers as float64.
type Document map[string]any

// Lookup resolves a dotted field path.
func (d Document) Lookup(path string) (any, bool) {
	var cur any = map[string]any(d)
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Evaluate reports whether doc satisfies the predicate.
// Text nodes use a term-containment approximation of a full-text index:
// every query term must occur in the content field, ignoring case.
func (n Node) Evaluate(doc Document) bool {
	switch n.kind {
	case KindMatchAll:
		return true
	case KindAnd:
		for _, c := range n.children {
			if !c.Evaluate(doc) {
				return false
			}
		}
		return true
	case KindOr:
		for _, c := range n.children {
			if c.Evaluate(doc) {
				return true
			}
		}
		return false
	case KindEq:
		return containsAny(elements(doc, n.field), n.values)
	case KindAny:
		return containsAny(elements(doc, n.field), n.values)
	case KindAll:
		have := elements(doc, n.field)
		for _, want := range n.values {
			if !containsAny(have, []any{want}) {
				return false
			}
		}
		return true
	case KindRange:
		return inRange(doc, n)
	case KindText:
		return matchTerms(doc, n.text)
	case KindPattern:
		return matchPattern(doc, n)
	}
	return false
}

func elements(doc Document, field string) []any {
	v, ok := doc.Lookup(field)
	if !ok || v == nil {
		return nil
	}
	if arr, ok := v.([]any); ok {
		return arr
	}
	if arr, ok := v.([]string); ok {
		return stringsToAny(arr)
	}
	return []any{v}
}

func containsAny(have, want []any) bool {
	for _, h := range have {
		h = normalize(h)
		if !IsScalar(h) {
			continue
		}
		for _, w := range want {
			if h == w {
				return true
			}
		}
	}
	return false
}

func inRange(doc Document, n Node) bool {
	v, ok := doc.Lookup(n.field)
	if !ok {
		return false
	}
	f, ok := normalize(v).(float64)
	if !ok {
		return false
	}
	if n.min != nil && f < *n.min {
		return false
	}
	if n.max != nil && f > *n.max {
		return false
	}
	return true
}

func matchTerms(doc Document, query string) bool {
	v, _ := doc.Lookup(record.FieldContent)
	content, _ := v.(string)
	content = strings.ToLower(content)
	terms := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(terms) == 0 {
		return false
	}
	for _, t := range terms {
		if !strings.Contains(content, t) {
			return false
		}
	}
	return true
}

func matchPattern(doc Document, n Node) bool {
	re, err := regexp.Compile(n.Regexp())
	if err != nil {
		return false
	}
	for _, f := range n.fields {
		for _, e := range elements(doc, f) {
			if s, ok := e.(string); ok && re.MatchString(s) {
				return true
			}
		}
	}
	return false
}

// IsScalar reports whether v is a string, number or bool.
func IsScalar(v any) bool {
	switch normalize(v).(type) {
	case string, float64, bool:
		return true
	}
	return false
}
