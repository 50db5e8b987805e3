package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kailas-cloud/cvsearch/internal/db"
)

const upsertDocument = `INSERT INTO documents (key, body) VALUES (?, json(?))
	ON CONFLICT(key) DO UPDATE SET body = excluded.body`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// JSONSet stores a JSON document. Path "$" replaces the whole document;
// any other path updates a value inside an existing one.
func (s *Store) JSONSet(ctx context.Context, key, path string, data []byte) error {
	return jsonSet(ctx, s.db, key, path, data)
}

func jsonSet(ctx context.Context, ex execer, key, path string, data []byte) error {
	if path == "" || path == "$" {
		if _, err := ex.ExecContext(ctx, upsertDocument, key, string(data)); err != nil {
			return classify(db.OpJSONSet, err)
		}
		return nil
	}

	res, err := ex.ExecContext(ctx,
		`UPDATE documents SET body = json_set(body, ?, json(?)) WHERE key = ?`, path, string(data), key)
	if err != nil {
		return classify(db.OpJSONSet, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return db.ErrKeyNotFound
	}
	return nil
}

// JSONSetMulti stores several documents in one transaction.
func (s *Store) JSONSetMulti(ctx context.Context, items []db.JSONSetItem) error {
	if len(items) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &db.Error{Op: db.OpJSONSet, Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	for _, item := range items {
		if err := jsonSet(ctx, tx, item.Key, item.Path, item.Data); err != nil {
			return fmt.Errorf("key %s: %w", item.Key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return &db.Error{Op: db.OpJSONSet, Err: err}
	}
	return nil
}

// JSONGet returns the whole document when no path is given. A single path
// returns its value wrapped in a JSON array, like a JSONPath result.
func (s *Store) JSONGet(ctx context.Context, key string, paths ...string) ([]byte, error) {
	var (
		raw sql.NullString
		err error
	)
	switch {
	case len(paths) == 0:
		err = s.db.QueryRowContext(ctx, `SELECT body FROM documents WHERE key = ?`, key).Scan(&raw)
	case len(paths) == 1:
		err = s.db.QueryRowContext(ctx,
			`SELECT json_array(json(body -> ?)) FROM documents WHERE key = ? AND json_type(body, ?) IS NOT NULL`,
			paths[0], key, paths[0]).Scan(&raw)
	default:
		return nil, &db.Error{Op: db.OpJSONGet, Err: errors.New("multiple paths are not supported")}
	}

	if errors.Is(err, sql.ErrNoRows) {
		return nil, db.ErrKeyNotFound
	}
	if err != nil {
		return nil, classify(db.OpJSONGet, err)
	}
	if !raw.Valid || raw.String == "" {
		return nil, db.ErrKeyNotFound
	}
	return []byte(raw.String), nil
}

// Del deletes a document. Deleting a missing key is not an error.
func (s *Store) Del(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE key = ?`, key); err != nil {
		return &db.Error{Op: db.OpDel, Err: err}
	}
	return nil
}

// Exists checks if a document exists.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE key = ?`, key).Scan(&n); err != nil {
		return false, &db.Error{Op: db.OpExists, Err: err}
	}
	return n > 0, nil
}
