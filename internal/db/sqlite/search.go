package sqlite

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/kailas-cloud/cvsearch/internal/db"
	"github.com/kailas-cloud/cvsearch/internal/domain/search/ordering"
	"github.com/kailas-cloud/cvsearch/internal/domain/search/predicate"
)

// SearchText runs a predicate query. A top-level Text node is joined against
// the FTS5 table and scored by bm25 (negated, so higher is better); nested
// Text nodes only filter.
func (s *Store) SearchText(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error) {
	if q.IndexName == "" {
		return nil, fmt.Errorf("index name is required")
	}
	def, fts, err := s.schema(ctx, q.IndexName)
	if err != nil {
		return nil, err
	}
	r := renderer{schema: def, fts: fts}

	from := "documents d"
	conds := []string{prefixLiteral("d.key", def.Prefixes)}
	var args []any
	score := "0"

	where := q.Where
	if text, rest, ok := predicate.SplitText(q.Where); ok && fts != "" {
		t := quoteIdent(fts)
		from += " JOIN " + t + " ON " + t + ".rowid = d.id"
		conds = append(conds, t+" MATCH ?")
		args = append(args, ftsQuery(text.Query()))
		score = "-bm25(" + t + ")"
		where = rest
	}

	cond, condArgs, err := r.render(where)
	if err != nil {
		return nil, db.Rejected(db.OpSearch, err)
	}
	conds = append(conds, cond)
	args = append(args, condArgs...)
	whereSQL := strings.Join(conds, " AND ")

	if q.Limit <= 0 {
		var total int
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+from+" WHERE "+whereSQL, args...).Scan(&total)
		if err != nil {
			return nil, classify(db.OpSearch, err)
		}
		return &db.SearchResult{Total: total}, nil
	}

	query := fmt.Sprintf("SELECT d.key, d.body, %s AS score FROM %s WHERE %s ORDER BY %s LIMIT ? OFFSET ?",
		score, from, whereSQL, r.orderBy(q.Sort))
	args = append(args, q.Limit, q.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(db.OpSearch, err)
	}
	defer func() { _ = rows.Close() }()

	// Total is left at zero; an exact count is a separate Limit 0 query.
	res := &db.SearchResult{}
	for rows.Next() {
		var key, body string
		var sc float64
		if err := rows.Scan(&key, &body, &sc); err != nil {
			return nil, &db.Error{Op: db.OpSearch, Err: err}
		}
		doc, err := decodeBody(body)
		if err != nil {
			return nil, &db.Error{Op: db.OpSearch, Err: fmt.Errorf("key %s: %w", key, err)}
		}
		res.Entries = append(res.Entries, db.SearchEntry{Key: key, Score: sc, Fields: project(doc, body, q.ReturnFields)})
	}
	if err := rows.Err(); err != nil {
		return nil, classify(db.OpSearch, err)
	}

	return res, nil
}

func (r renderer) orderBy(spec ordering.Spec) string {
	dir := "ASC"
	if spec.Descending {
		dir = "DESC"
	}
	tie := fmt.Sprintf("json_extract(d.body, %s) ASC", quoteLiteral(r.path(ordering.TieBreakField)))
	switch {
	case spec.Natural:
		return "score DESC, " + tie
	case spec.ByScore:
		return "score " + dir + ", " + tie
	case spec.Field != "":
		return fmt.Sprintf("json_extract(d.body, %s) %s, %s", quoteLiteral(r.path(spec.Field)), dir, tie)
	}
	return tie
}

type candidate struct {
	key   string
	body  string
	doc   map[string]any
	score float64
}

// SearchKNN ranks documents that satisfy the filter by cosine similarity to
// the query vector and keeps the best K. The scan is exact; EFRuntime is ignored.
func (s *Store) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if q.IndexName == "" {
		return nil, fmt.Errorf("index name is required")
	}
	if len(q.Vector) == 0 {
		return nil, fmt.Errorf("vector is required")
	}
	if q.K <= 0 {
		return nil, fmt.Errorf("k must be positive")
	}

	def, fts, err := s.schema(ctx, q.IndexName)
	if err != nil {
		return nil, err
	}
	r := renderer{schema: def, fts: fts}

	field := q.VectorField
	if field == "" {
		field = "embedding"
	}
	vecPath := r.path(field)

	cond, args, err := r.render(q.Filter)
	if err != nil {
		return nil, db.Rejected(db.OpSearch, err)
	}
	query := fmt.Sprintf("SELECT d.key, d.body FROM documents d WHERE %s AND json_type(d.body, %s) = 'array' AND %s",
		prefixLiteral("d.key", def.Prefixes), quoteLiteral(vecPath), cond)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(db.OpSearch, err)
	}
	defer func() { _ = rows.Close() }()

	var pool []candidate
	for rows.Next() {
		var key, body string
		if err := rows.Scan(&key, &body); err != nil {
			return nil, &db.Error{Op: db.OpSearch, Err: err}
		}
		doc, err := decodeBody(body)
		if err != nil {
			return nil, &db.Error{Op: db.OpSearch, Err: fmt.Errorf("key %s: %w", key, err)}
		}
		vec, ok := vectorAt(doc, vecPath)
		if !ok || len(vec) != len(q.Vector) {
			continue
		}
		pool = append(pool, candidate{key: key, body: body, doc: doc, score: max(0, cosineSimilarity(q.Vector, vec))})
	}
	if err := rows.Err(); err != nil {
		return nil, classify(db.OpSearch, err)
	}

	slices.SortFunc(pool, func(a, b candidate) int {
		if c := cmp.Compare(b.score, a.score); c != 0 {
			return c
		}
		return strings.Compare(a.key, b.key)
	})
	if len(pool) > q.K {
		pool = pool[:q.K]
	}

	res := &db.SearchResult{Total: len(pool)}
	if q.Limit <= 0 {
		return res, nil
	}

	r.sortCandidates(pool, q.Sort)
	lo := min(q.Offset, len(pool))
	hi := min(lo+q.Limit, len(pool))
	for _, c := range pool[lo:hi] {
		res.Entries = append(res.Entries, db.SearchEntry{Key: c.key, Score: c.score, Fields: project(c.doc, c.body, q.ReturnFields)})
	}
	return res, nil
}

// sortCandidates reorders a similarity-ranked pool for field and ascending
// score sorts. Natural order is kept as is.
func (r renderer) sortCandidates(pool []candidate, spec ordering.Spec) {
	if spec.Natural || (spec.ByScore && spec.Descending) {
		return
	}
	tiePath := r.path(ordering.TieBreakField)
	tie := func(a, b candidate) int {
		return strings.Compare(scalarAt(a.doc, tiePath), scalarAt(b.doc, tiePath))
	}
	value := func(c candidate) float64 { return c.score }
	if !spec.ByScore && spec.Field != "" {
		p := r.path(spec.Field)
		value = func(c candidate) float64 { return numberAt(c.doc, p) }
	}
	slices.SortStableFunc(pool, func(a, b candidate) int {
		c := cmp.Compare(value(a), value(b))
		if spec.Descending {
			c = -c
		}
		if c != 0 {
			return c
		}
		return tie(a, b)
	})
}

func decodeBody(body string) (map[string]any, error) {
	var doc map[string]any
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// lookup resolves a "$.a.b" path inside a decoded body.
func lookup(doc map[string]any, path string) (any, bool) {
	return predicate.Document(doc).Lookup(strings.TrimPrefix(path, "$."))
}

func vectorAt(doc map[string]any, path string) ([]float32, bool) {
	v, ok := lookup(doc, path)
	if !ok {
		return nil, false
	}
	arr, ok := v.([]any)
	if !ok {
		return nil, false
	}
	vec := make([]float32, len(arr))
	for i, e := range arr {
		f, ok := e.(float64)
		if !ok {
			return nil, false
		}
		vec[i] = float32(f)
	}
	return vec, true
}

func numberAt(doc map[string]any, path string) float64 {
	v, _ := lookup(doc, path)
	f, _ := v.(float64)
	return f
}

func scalarAt(doc map[string]any, path string) string {
	v, ok := lookup(doc, path)
	if !ok {
		return ""
	}
	s, _ := renderValue(v)
	return s
}

// project renders the requested top-level fields the way an FT.SEARCH RETURN
// clause does. Without fields the whole body is returned under "$".
func project(doc map[string]any, body string, fields []string) map[string]string {
	if len(fields) == 0 {
		return map[string]string{"$": body}
	}
	out := make(map[string]string, len(fields))
	for _, f := range fields {
		v, ok := doc[f]
		if !ok {
			continue
		}
		if s, ok := renderValue(v); ok {
			out[f] = s
		}
	}
	return out
}

// renderValue returns strings as is, numbers in plain decimal and composite
// values as JSON. Null renders as nothing.
func renderValue(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return x, true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(x), true
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", false
	}
	return string(b), true
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
