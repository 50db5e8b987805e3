package redis

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/kailas-cloud/cvsearch/internal/db"
	"github.com/kailas-cloud/cvsearch/internal/domain/search/predicate"
)

// renderer turns a predicate tree into FT.SEARCH query syntax (DIALECT 2).
// The schema, when known, decides between TAG, NUMERIC and TEXT syntax.
type renderer struct {
	schema *db.IndexDefinition
}

var errUnrenderable = errors.New("predicate cannot be rendered")

// render returns "*" for MatchAll.
func (r renderer) render(n predicate.Node) (string, error) {
	switch n.Kind() {
	case predicate.KindMatchAll:
		return "*", nil
	case predicate.KindEq:
		return r.eq(n.Field(), n.Values()[0])
	case predicate.KindRange:
		return numericRange(db.FieldKey(n.Field()), n.Min(), n.Max()), nil
	case predicate.KindAny:
		return tagSet(db.FieldKey(n.Field()), n.Values()), nil
	case predicate.KindAll:
		parts := make([]string, len(n.Values()))
		for i, v := range n.Values() {
			parts[i] = tagSet(db.FieldKey(n.Field()), []any{v})
		}
		return "(" + strings.Join(parts, " ") + ")", nil
	case predicate.KindAnd:
		return r.join(n.Children(), " ")
	case predicate.KindOr:
		return r.join(n.Children(), " | ")
	case predicate.KindText:
		return r.text(n.Query())
	case predicate.KindPattern:
		return r.pattern(n)
	}
	return "", fmt.Errorf("%w: kind %s", errUnrenderable, n.Kind())
}

func (r renderer) join(children []predicate.Node, sep string) (string, error) {
	parts := make([]string, 0, len(children))
	for _, c := range children {
		s, err := r.render(c)
		if err != nil {
			return "", err
		}
		parts = append(parts, s)
	}
	return "(" + strings.Join(parts, sep) + ")", nil
}

func (r renderer) fieldType(field string) (db.IndexFieldType, bool) {
	if r.schema == nil {
		return 0, false
	}
	f, ok := r.schema.Field(db.FieldKey(field))
	if !ok {
		return 0, false
	}
	return f.Type, true
}

func (r renderer) eq(field string, v any) (string, error) {
	alias := db.FieldKey(field)
	typ, known := r.fieldType(field)

	switch x := v.(type) {
	case float64:
		if known && typ == db.IndexFieldTag {
			return tagSet(alias, []any{x}), nil
		}
		return numericRange(alias, &x, &x), nil
	case string:
		if known && typ == db.IndexFieldNumeric {
			return "", fmt.Errorf("%w: numeric field %s compared with %q", errUnrenderable, field, x)
		}
		if known && typ == db.IndexFieldText {
			return fmt.Sprintf(`@%s:"%s"`, alias, escapeQuery(x)), nil
		}
		return tagSet(alias, []any{x}), nil
	case bool:
		return tagSet(alias, []any{x}), nil
	}
	return "", fmt.Errorf("%w: unsupported value %T for %s", errUnrenderable, v, field)
}

func (r renderer) text(query string) (string, error) {
	terms := escapeQuery(query)
	if r.schema == nil {
		return "(" + terms + ")", nil
	}
	texts := r.schema.FieldsOfType(db.IndexFieldText)
	if len(texts) == 0 {
		return "", fmt.Errorf("%w: index %s has no TEXT field", errUnrenderable, r.schema.Name)
	}
	keys := make([]string, len(texts))
	for i := range texts {
		keys[i] = texts[i].Key()
	}
	return fmt.Sprintf("@%s:(%s)", strings.Join(keys, "|"), terms), nil
}

// pattern matches the literal as a phrase on TEXT fields and as an infix
// wildcard on TAG fields. Both are case-insensitive in Redis.
func (r renderer) pattern(n predicate.Node) (string, error) {
	parts := make([]string, 0, len(n.Fields()))
	for _, f := range n.Fields() {
		alias := db.FieldKey(f)
		typ, known := r.fieldType(f)
		switch {
		case known && typ == db.IndexFieldText:
			parts = append(parts, fmt.Sprintf(`@%s:"%s"`, alias, escapeQuery(n.Query())))
		case known && typ == db.IndexFieldTag, !known:
			parts = append(parts, fmt.Sprintf("@%s:{*%s*}", alias, tagEscaper.Replace(n.Query())))
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("%w: no searchable pattern field", errUnrenderable)
	}
	return "(" + strings.Join(parts, " | ") + ")", nil
}

func tagSet(alias string, values []any) string {
	escaped := make([]string, len(values))
	for i, v := range values {
		escaped[i] = tagEscaper.Replace(scalarString(v))
	}
	return fmt.Sprintf("@%s:{%s}", alias, strings.Join(escaped, " | "))
}

func numericRange(alias string, lo, hi *float64) string {
	minBound, maxBound := "-inf", "+inf"
	if lo != nil {
		minBound = formatFloat(*lo)
	}
	if hi != nil {
		maxBound = formatFloat(*hi)
	}
	return fmt.Sprintf("@%s:[%s %s]", alias, minBound, maxBound)
}

func scalarString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return formatFloat(x)
	case bool:
		return strconv.FormatBool(x)
	}
	return fmt.Sprint(v)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

var tagEscaper = strings.NewReplacer(
	`\`, `\\`,
	",", "\\,",
	".", "\\.",
	"<", "\\<",
	">", "\\>",
	"{", "\\{",
	"}", "\\}",
	"[", "\\[",
	"]", "\\]",
	"\"", "\\\"",
	"'", "\\'",
	":", "\\:",
	";", "\\;",
	"!", "\\!",
	"@", "\\@",
	"#", "\\#",
	"$", "\\$",
	"%", "\\%",
	"^", "\\^",
	"&", "\\&",
	"*", "\\*",
	"(", "\\(",
	")", "\\)",
	"-", "\\-",
	"+", "\\+",
	"=", "\\=",
	"~", "\\~",
	"|", "\\|",
	"/", "\\/",
	" ", "\\ ",
)

func escapeQuery(s string) string {
	return queryEscaper.Replace(s)
}

var queryEscaper = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\'`,
	`"`, `\"`,
	`@`, `\@`,
	`{`, `\{`,
	`}`, `\}`,
	`(`, `\(`,
	`)`, `\)`,
	`|`, `\|`,
	`-`, `\-`,
	`~`, `\~`,
	`*`, `\*`,
	`[`, `\[`,
	`]`, `\]`,
	`!`, `\!`,
	`%`, `\%`,
	`^`, `\^`,
	`$`, `\$`,
	`<`, `\<`,
	`>`, `\>`,
	`=`, `\=`,
	`;`, `\;`,
	`+`, `\+`,
	`:`, `\:`,
	`.`, `\.`,
	`,`, `\,`,
	`/`, `\/`,
)

func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
