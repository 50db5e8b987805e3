package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/kailas-cloud/cvsearch/internal/db"
)

// CreateIndex issues FT.CREATE ... ON JSON for the definition. The schema is
// cached even when the index already exists, so a restarted process renders
// queries against the field types it was created with.
func (s *Store) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	args, err := buildCreateArgs(def)
	if err != nil {
		return err
	}

	err = s.do(ctx, s.b().Arbitrary("FT.CREATE").Args(args...).Build()).Error()
	switch {
	case err == nil:
	case isRedisErr(err, "index already exists"):
		s.remember(def)
		return db.ErrIndexExists
	default:
		return &db.Error{Op: db.OpCreateIndex, Err: err}
	}
	s.remember(def)
	return nil
}

// DropIndex removes the index and forgets its schema. Records stay in place.
func (s *Store) DropIndex(ctx context.Context, name string) error {
	err := s.do(ctx, s.b().Arbitrary("FT.DROPINDEX").Args(name).Build()).Error()
	if err != nil {
		if isRedisErr(err, "unknown index name") {
			return db.ErrIndexNotFound
		}
		return &db.Error{Op: db.OpDropIndex, Err: err}
	}
	s.mu.Lock()
	delete(s.schemas, name)
	s.mu.Unlock()
	return nil
}

// IndexExists reports whether FT.INFO knows the index.
func (s *Store) IndexExists(ctx context.Context, name string) (bool, error) {
	err := s.do(ctx, s.b().Arbitrary("FT.INFO").Args(name).Build()).Error()
	if err == nil {
		return true, nil
	}
	if isRedisErr(err, "unknown index name") {
		return false, nil
	}
	return false, &db.Error{Op: db.OpIndexInfo, Err: err}
}

// buildCreateArgs renders everything after FT.CREATE:
//
//	<name> ON JSON [PREFIX n p...] SCHEMA <field>...
func buildCreateArgs(def *db.IndexDefinition) ([]string, error) {
	if def.Name == "" {
		return nil, errors.New("index name is required")
	}
	if len(def.Fields) == 0 {
		return nil, errors.New("at least one field is required")
	}

	args := make([]string, 0, 4+len(def.Prefixes)+len(def.Fields)*4)
	args = append(args, def.Name, "ON", "JSON")
	if n := len(def.Prefixes); n > 0 {
		args = append(args, "PREFIX", strconv.Itoa(n))
		args = append(args, def.Prefixes...)
	}
	args = append(args, "SCHEMA")

	for i := range def.Fields {
		fa, err := buildFieldArgs(&def.Fields[i])
		if err != nil {
			return nil, err
		}
		args = append(args, fa...)
	}
	return args, nil
}

func buildFieldArgs(f *db.IndexField) ([]string, error) {
	if f.Name == "" {
		return nil, errors.New("field name is required")
	}

	args := []string{f.Name}
	if f.Alias != "" {
		args = append(args, "AS", f.Alias)
	}

	switch f.Type {
	case db.IndexFieldNumeric:
		args = append(args, "NUMERIC")
	case db.IndexFieldText:
		args = append(args, "TEXT")
	case db.IndexFieldTag:
		args = append(args, "TAG")
		if f.TagSeparator != "" {
			args = append(args, "SEPARATOR", f.TagSeparator)
		}
	case db.IndexFieldVector:
		va, err := buildVectorFieldArgs(f)
		if err != nil {
			return nil, err
		}
		args = append(args, va...)
	default:
		return nil, fmt.Errorf("field %s: unknown field type %d", f.Key(), f.Type)
	}

	if f.Sortable {
		args = append(args, "SORTABLE")
	}
	return args, nil
}

// buildVectorFieldArgs renders VECTOR <algo> <nattrs> TYPE FLOAT32 DIM d DISTANCE_METRIC COSINE [...].
// HNSW tuning is only emitted when set; the server defaults apply otherwise.
func buildVectorFieldArgs(f *db.IndexField) ([]string, error) {
	if f.VectorDim <= 0 {
		return nil, fmt.Errorf("field %s: vector DIM must be positive", f.Key())
	}
	if f.VectorDistance != "" && f.VectorDistance != db.DistanceCosine {
		return nil, fmt.Errorf("field %s: unsupported distance %s", f.Key(), f.VectorDistance)
	}

	algo := f.VectorAlgo
	if algo == "" {
		algo = db.VectorHNSW
	}

	attrs := []string{
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(f.VectorDim),
		"DISTANCE_METRIC", string(db.DistanceCosine),
	}
	if algo == db.VectorHNSW {
		if f.VectorM > 0 {
			attrs = append(attrs, "M", strconv.Itoa(f.VectorM))
		}
		if f.VectorEFConstruct > 0 {
			attrs = append(attrs, "EF_CONSTRUCTION", strconv.Itoa(f.VectorEFConstruct))
		}
	}

	out := make([]string, 0, 3+len(attrs))
	out = append(out, "VECTOR", string(algo), strconv.Itoa(len(attrs)))
	return append(out, attrs...), nil
}
