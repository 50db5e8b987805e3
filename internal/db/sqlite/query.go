package sqlite

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kailas-cloud/cvsearch/internal/db"
	"github.com/kailas-cloud/cvsearch/internal/domain/search/predicate"
)

var errUnrenderable = errors.New("predicate cannot be rendered")

// renderer turns a predicate tree into a SQL condition over documents d.
// Membership tests go through json_each, which yields a single row for a
// scalar, so array and scalar fields share one form. String comparisons
// ignore case, like untagged Redis TAG fields.
type renderer struct {
	schema *db.IndexDefinition
	fts    string
}

// path resolves a logical field to its JSON path. Fields outside the schema
// are addressed directly: "metadata.region" becomes "$.metadata.region".
func (r renderer) path(field string) string {
	if r.schema != nil {
		if f, ok := r.schema.Field(db.FieldKey(field)); ok {
			return f.JSONPath()
		}
	}
	return "$." + field
}

func (r renderer) fieldType(field string) (db.IndexFieldType, bool) {
	if r.schema == nil {
		return 0, false
	}
	f, ok := r.schema.Field(db.FieldKey(field))
	return f.Type, ok
}

func (r renderer) render(n predicate.Node) (string, []any, error) {
	switch n.Kind() {
	case predicate.KindMatchAll:
		return "1", nil, nil
	case predicate.KindEq, predicate.KindAny:
		return r.member(n.Field(), n.Values())
	case predicate.KindAll:
		parts := make([]string, 0, len(n.Values()))
		var args []any
		for _, v := range n.Values() {
			sql, a, err := r.member(n.Field(), []any{v})
			if err != nil {
				return "", nil, err
			}
			parts = append(parts, sql)
			args = append(args, a...)
		}
		return "(" + strings.Join(parts, " AND ") + ")", args, nil
	case predicate.KindRange:
		return r.rangeCond(n)
	case predicate.KindAnd:
		return r.join(n.Children(), " AND ")
	case predicate.KindOr:
		return r.join(n.Children(), " OR ")
	case predicate.KindText:
		if r.fts == "" {
			return "", nil, fmt.Errorf("%w: index has no TEXT field", errUnrenderable)
		}
		fts := quoteIdent(r.fts)
		return fmt.Sprintf("d.id IN (SELECT rowid FROM %s WHERE %s MATCH ?)", fts, fts),
			[]any{ftsQuery(n.Query())}, nil
	case predicate.KindPattern:
		return r.pattern(n)
	}
	return "", nil, fmt.Errorf("%w: kind %s", errUnrenderable, n.Kind())
}

func (r renderer) join(children []predicate.Node, sep string) (string, []any, error) {
	parts := make([]string, 0, len(children))
	var args []any
	for _, c := range children {
		sql, a, err := r.render(c)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, sql)
		args = append(args, a...)
	}
	return "(" + strings.Join(parts, sep) + ")", args, nil
}

func (r renderer) member(field string, values []any) (string, []any, error) {
	if len(values) == 0 {
		return "", nil, fmt.Errorf("%w: empty value list for %s", errUnrenderable, field)
	}
	typ, known := r.fieldType(field)
	args := []any{r.path(field)}
	marks := make([]string, len(values))
	for i, v := range values {
		if _, isString := v.(string); isString && known && typ == db.IndexFieldNumeric {
			return "", nil, fmt.Errorf("%w: numeric field %s compared with %q", errUnrenderable, field, v)
		}
		if !predicate.IsScalar(v) {
			return "", nil, fmt.Errorf("%w: unsupported value %T for %s", errUnrenderable, v, field)
		}
		marks[i] = "?"
		args = append(args, v)
	}
	return fmt.Sprintf("EXISTS (SELECT 1 FROM json_each(d.body, ?) WHERE value COLLATE NOCASE IN (%s))",
		strings.Join(marks, ", ")), args, nil
}

func (r renderer) rangeCond(n predicate.Node) (string, []any, error) {
	p := r.path(n.Field())
	var parts []string
	var args []any
	if n.Min() != nil {
		parts = append(parts, "json_extract(d.body, ?) >= ?")
		args = append(args, p, *n.Min())
	}
	if n.Max() != nil {
		parts = append(parts, "json_extract(d.body, ?) <= ?")
		args = append(args, p, *n.Max())
	}
	if len(parts) == 0 {
		return "1", nil, nil
	}
	return "(" + strings.Join(parts, " AND ") + ")", args, nil
}

// pattern is a literal, case-insensitive substring test over the string
// elements of each field, ORed. Numeric fields are skipped.
func (r renderer) pattern(n predicate.Node) (string, []any, error) {
	like := "%" + escapeLike(n.Query()) + "%"
	parts := make([]string, 0, len(n.Fields()))
	var args []any
	for _, f := range n.Fields() {
		if typ, known := r.fieldType(f); known && (typ == db.IndexFieldNumeric || typ == db.IndexFieldVector) {
			continue
		}
		parts = append(parts,
			`EXISTS (SELECT 1 FROM json_each(d.body, ?) WHERE type = 'text' AND value LIKE ? ESCAPE '\')`)
		args = append(args, r.path(f), like)
	}
	if len(parts) == 0 {
		return "", nil, fmt.Errorf("%w: no searchable pattern field", errUnrenderable)
	}
	return "(" + strings.Join(parts, " OR ") + ")", args, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// ftsQuery quotes every whitespace-separated term as an FTS5 string, so
// operators and punctuation in user input are matched literally. Terms are ANDed.
func ftsQuery(q string) string {
	terms := strings.Fields(q)
	for i, t := range terms {
		terms[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	return strings.Join(terms, " ")
}
