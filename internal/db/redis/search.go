package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/cvsearch/internal/db"
	"github.com/kailas-cloud/cvsearch/internal/domain/search/ordering"
)

const vectorScoreField = "__vector_score"

// SearchKNN runs a filtered KNN query via FT.SEARCH:
// (filter)=>[KNN K @field $BLOB EF_RUNTIME ef AS __vector_score].
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

	r := renderer{schema: s.schema(q.IndexName)}
	filterStr, err := r.render(q.Filter)
	if err != nil {
		return nil, db.Rejected(db.OpSearch, err)
	}

	field := q.VectorField
	if field == "" {
		field = "embedding"
	}
	knn := fmt.Sprintf("[KNN %d @%s $BLOB", q.K, field)
	if q.EFRuntime > 0 {
		knn += " EF_RUNTIME " + strconv.Itoa(q.EFRuntime)
	}
	knn += " AS " + vectorScoreField + "]"

	queryStr := "(" + filterStr + ")=>" + knn
	if filterStr == "*" {
		queryStr = "*=>" + knn
	}

	args := []string{q.IndexName, queryStr}
	if q.Limit > 0 {
		args = appendReturn(args, q.ReturnFields, vectorScoreField)
		args = appendSort(args, q.Sort)
	}
	args = append(args,
		"LIMIT", strconv.Itoa(q.Offset), strconv.Itoa(q.Limit),
		"PARAMS", "2", "BLOB", vectorToBytes(q.Vector),
		"DIALECT", "2",
	)

	cmd := s.b().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, classify(db.OpSearch, err)
	}

	return parseKNNResult(raw)
}

// SearchText runs a predicate query via FT.SEARCH. Text nodes are scored by
// the engine (BM25); scores are returned with WITHSCORES.
func (s *Store) SearchText(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error) {
	if q.IndexName == "" {
		return nil, fmt.Errorf("index name is required")
	}

	r := renderer{schema: s.schema(q.IndexName)}
	queryStr, err := r.render(q.Where)
	if err != nil {
		return nil, db.Rejected(db.OpSearch, err)
	}

	args := []string{q.IndexName, queryStr}
	withScores := q.Limit > 0
	if withScores {
		args = append(args, "WITHSCORES")
		args = appendReturn(args, q.ReturnFields)
		args = appendSort(args, q.Sort)
	}
	args = append(args,
		"LIMIT", strconv.Itoa(q.Offset), strconv.Itoa(q.Limit),
		"DIALECT", "2",
	)

	cmd := s.b().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, classify(db.OpSearch, err)
	}

	if !withScores {
		return parseTotal(raw)
	}
	return parseScoredResult(raw)
}

// appendReturn projects JSON paths under their field names: RETURN n $.f AS f ...
func appendReturn(args, fields []string, extra ...string) []string {
	if len(fields) == 0 {
		return args
	}
	ret := make([]string, 0, len(fields)*3+len(extra))
	for _, f := range fields {
		ret = append(ret, "$."+f, "AS", f)
	}
	ret = append(ret, extra...)
	args = append(args, "RETURN", strconv.Itoa(len(ret)))
	return append(args, ret...)
}

// appendSort adds SORTBY for field sorts and for vector order. Text
// relevance keeps the engine's score order, which is always descending.
func appendSort(args []string, spec ordering.Spec) []string {
	dir := "ASC"
	if spec.Descending {
		dir = "DESC"
	}
	switch {
	case spec.Natural:
		return append(args, "SORTBY", vectorScoreField, "ASC")
	case spec.ByScore:
		return args
	case spec.Field != "":
		return append(args, "SORTBY", db.FieldKey(spec.Field), dir)
	}
	return args
}

// --- Result parsing ---

func parseTotal(raw []rueidis.RedisMessage) (*db.SearchResult, error) {
	if len(raw) == 0 {
		return &db.SearchResult{}, nil
	}
	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}
	return &db.SearchResult{Total: int(total)}, nil
}

func parseKNNResult(raw []rueidis.RedisMessage) (*db.SearchResult, error) {
	res, err := parseTotal(raw)
	if err != nil || res.Total == 0 {
		return res, err
	}

	entries := make([]db.SearchEntry, 0, len(raw)/2)
	// 2-stride: [total, key1, fields1, key2, fields2, ...]
	for i := 1; i+1 < len(raw); i += 2 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}
		fields, err := raw[i+1].ToArray()
		if err != nil {
			continue
		}

		entry := db.SearchEntry{Key: key, Fields: parseFieldPairs(fields)}
		if scoreStr, ok := entry.Fields[vectorScoreField]; ok {
			if d, err := strconv.ParseFloat(scoreStr, 64); err == nil {
				entry.Score = max(0, 1.0-d) // cosine distance to similarity, clamped to [0,1]
			}
			delete(entry.Fields, vectorScoreField)
		}
		entries = append(entries, entry)
	}

	res.Entries = entries
	return res, nil
}

func parseScoredResult(raw []rueidis.RedisMessage) (*db.SearchResult, error) {
	res, err := parseTotal(raw)
	if err != nil || res.Total == 0 {
		return res, err
	}

	entries := make([]db.SearchEntry, 0, len(raw)/3)
	// 3-stride: [total, key1, score1, fields1, ...]
	for i := 1; i+2 < len(raw); i += 3 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}
		scoreStr, err := raw[i+1].ToString()
		if err != nil {
			continue
		}
		score, err := strconv.ParseFloat(scoreStr, 64)
		if err != nil {
			continue
		}
		fields, err := raw[i+2].ToArray()
		if err != nil {
			continue
		}
		entries = append(entries, db.SearchEntry{Key: key, Score: score, Fields: parseFieldPairs(fields)})
	}

	res.Entries = entries
	return res, nil
}

func parseFieldPairs(fields []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(fields)/2)
	for j := 0; j+1 < len(fields); j += 2 {
		name, err := fields[j].ToString()
		if err != nil {
			continue
		}
		value, err := fields[j+1].ToString()
		if err != nil {
			continue
		}
		m[name] = value
	}
	return m
}
