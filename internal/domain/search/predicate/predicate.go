// Package predicate models compiled search conditions as a store-neutral tree.
// Store drivers render the tree into their own query language; Evaluate
// checks it against a decoded document in process.
package predicate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Kind identifies a node type.
type Kind int

// Node kinds.
const (
	KindMatchAll Kind = iota
	KindEq
	KindRange
	KindAny
	KindAll
	KindAnd
	KindOr
	KindText
	KindPattern
)

func (k Kind) String() string {
	switch k {
	case KindMatchAll:
		return "match_all"
	case KindEq:
		return "eq"
	case KindRange:
		return "range"
	case KindAny:
		return "any"
	case KindAll:
		return "all"
	case KindAnd:
		return "and"
	case KindOr:
		return "or"
	case KindText:
		return "text"
	case KindPattern:
		return "pattern"
	default:
		return "unknown"
	}
}

// Node is an immutable predicate tree node. The zero value matches everything.
type Node struct {
	kind     Kind
	field    string
	values   []any
	min, max *float64
	children []Node
	text     string
	fields   []string
}

// MatchAll imposes no constraint.
func MatchAll() Node { return Node{kind: KindMatchAll} }

// Eq requires field to equal value. On array fields any element may match.
// Integer values are normalized to float64.
func Eq(field string, value any) Node {
	return Node{kind: KindEq, field: field, values: []any{normalize(value)}}
}

// Range requires min <= field <= max. A nil bound is open.
func Range(field string, minBound, maxBound *float64) Node {
	if minBound == nil && maxBound == nil {
		return MatchAll()
	}
	return Node{kind: KindRange, field: field, min: minBound, max: maxBound}
}

// Any requires the field to hold at least one of values.
func Any(field string, values ...string) Node {
	if len(values) == 0 {
		return MatchAll()
	}
	return Node{kind: KindAny, field: field, values: stringsToAny(values)}
}

// All requires the field to hold every one of values.
func All(field string, values ...string) Node {
	if len(values) == 0 {
		return MatchAll()
	}
	return Node{kind: KindAll, field: field, values: stringsToAny(values)}
}

// Text is a query delegated to the store's native full-text index.
func Text(query string) Node {
	return Node{kind: KindText, text: query}
}

// Pattern is a case-insensitive literal substring match over fields, combined with OR.
func Pattern(literal string, fields ...string) Node {
	return Node{kind: KindPattern, text: literal, fields: fields}
}

// And combines nodes conjunctively. MatchAll children are dropped and nested
// And nodes flattened; an empty result is MatchAll.
func And(nodes ...Node) Node {
	var kept []Node
	for _, n := range nodes {
		switch n.kind {
		case KindMatchAll:
			continue
		case KindAnd:
			kept = append(kept, n.children...)
		default:
			kept = append(kept, n)
		}
	}
	switch len(kept) {
	case 0:
		return MatchAll()
	case 1:
		return kept[0]
	}
	return Node{kind: KindAnd, children: kept}
}

// Or combines nodes disjunctively. Any MatchAll child makes the whole node MatchAll.
func Or(nodes ...Node) Node {
	var kept []Node
	for _, n := range nodes {
		switch n.kind {
		case KindMatchAll:
			return MatchAll()
		case KindOr:
			kept = append(kept, n.children...)
		default:
			kept = append(kept, n)
		}
	}
	switch len(kept) {
	case 0:
		return MatchAll()
	case 1:
		return kept[0]
	}
	return Node{kind: KindOr, children: kept}
}

// Kind returns the node type.
func (n Node) Kind() Kind { return n.kind }

// Field returns the target field of a leaf node.
func (n Node) Field() string { return n.field }

// Values returns the operands of Eq, Any and All.
func (n Node) Values() []any { return n.values }

// Min returns the inclusive lower bound of a Range node.
func (n Node) Min() *float64 { return n.min }

// Max returns the inclusive upper bound of a Range node.
func (n Node) Max() *float64 { return n.max }

// Children returns the operands of And and Or.
func (n Node) Children() []Node { return n.children }

// Query returns the raw query of a Text node or the literal of a Pattern node.
func (n Node) Query() string { return n.text }

// Fields returns the fields a Pattern node scans.
func (n Node) Fields() []string { return n.fields }

// Regexp returns the case-insensitive expression equivalent to a Pattern node.
// Metacharacters in the literal are escaped.
func (n Node) Regexp() string {
	return "(?i)" + regexp.QuoteMeta(n.text)
}

// IsMatchAll reports whether the node imposes no constraint.
func (n Node) IsMatchAll() bool { return n.kind == KindMatchAll }

// SplitText separates a top-level Text node from the rest of a conjunction.
// Stores that rank text matches through a dedicated join use it.
func SplitText(n Node) (text Node, rest Node, ok bool) {
	if n.kind == KindText {
		return n, MatchAll(), true
	}
	if n.kind != KindAnd {
		return Node{}, n, false
	}
	var others []Node
	found := false
	for _, c := range n.children {
		if c.kind == KindText && !found {
			text = c
			found = true
			continue
		}
		others = append(others, c)
	}
	if !found {
		return Node{}, n, false
	}
	return text, And(others...), true
}

// String renders a compact debug form, e.g. and(any(skills,[Go]),range(experience,2,5)).
func (n Node) String() string {
	switch n.kind {
	case KindMatchAll:
		return "*"
	case KindEq:
		return fmt.Sprintf("eq(%s,%v)", n.field, n.values[0])
	case KindRange:
		return fmt.Sprintf("range(%s,%s,%s)", n.field, bound(n.min), bound(n.max))
	case KindAny, KindAll:
		return fmt.Sprintf("%s(%s,%v)", n.kind, n.field, n.values)
	case KindText:
		return fmt.Sprintf("text(%q)", n.text)
	case KindPattern:
		return fmt.Sprintf("pattern(%q,%s)", n.text, strings.Join(n.fields, "|"))
	case KindAnd, KindOr:
		parts := make([]string, len(n.children))
		for i, c := range n.children {
			parts[i] = c.String()
		}
		return n.kind.String() + "(" + strings.Join(parts, ",") + ")"
	}
	return "?"
}

func bound(f *float64) string {
	if f == nil {
		return "_"
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

func stringsToAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func normalize(v any) any {
	switch x := v.(type) {
	case int:
		return float64(x)
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case float32:
		return float64(x)
	case uint:
		return float64(x)
	case uint32:
		return float64(x)
	case uint64:
		return float64(x)
	}
	return v
}
