package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/kailas-cloud/cvsearch/internal/db"
)

// live matches rows whose TTL has not passed; the single argument is now in ms.
const live = `(expires_at IS NULL OR expires_at > ?)`

// Get retrieves a value by key. Expired keys read as missing.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM kv WHERE key = ? AND `+live, key, s.nowMillis()).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, db.ErrKeyNotFound
	}
	if err != nil {
		return nil, &db.Error{Op: db.OpGet, Err: err}
	}
	return value, nil
}

// Set stores a value without expiry.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	return s.put(ctx, key, value, sql.NullInt64{})
}

// SetWithTTL stores a value with an expiration. A non-positive ttl stores without expiry.
func (s *Store) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return s.Set(ctx, key, value)
	}
	return s.put(ctx, key, value, sql.NullInt64{Int64: s.now().Add(ttl).UnixMilli(), Valid: true})
}

func (s *Store) put(ctx context.Context, key string, value []byte, expiresAt sql.NullInt64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv (key, value, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key, value, expiresAt)
	if err != nil {
		return &db.Error{Op: db.OpSet, Err: err}
	}
	return nil
}

// IncrCounter adds val to the integer at key and returns the new value.
// A missing or expired counter restarts from zero and takes ttl; a live one
// keeps the expiry it was created with.
func (s *Store) IncrCounter(ctx context.Context, key string, val int64, ttl time.Duration) (int64, error) {
	now := s.nowMillis()
	var expiresAt sql.NullInt64
	if ttl > 0 {
		expiresAt = sql.NullInt64{Int64: now + ttl.Milliseconds(), Valid: true}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, &db.Error{Op: db.OpIncrBy, Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM kv WHERE key = ? AND NOT `+live, key, now); err != nil {
		return 0, &db.Error{Op: db.OpIncrBy, Err: err}
	}
	var n int64
	err = tx.QueryRowContext(ctx,
		`INSERT INTO kv (key, value, expires_at) VALUES (?, CAST(? AS TEXT), ?)
		 ON CONFLICT(key) DO UPDATE SET value = CAST(CAST(kv.value AS INTEGER) + ? AS TEXT)
		 RETURNING CAST(value AS INTEGER)`,
		key, val, expiresAt, val).Scan(&n)
	if err != nil {
		return 0, &db.Error{Op: db.OpIncrBy, Err: err}
	}
	if err := tx.Commit(); err != nil {
		return 0, &db.Error{Op: db.OpIncrBy, Err: err}
	}
	return n, nil
}

func (s *Store) nowMillis() int64 {
	return s.now().UnixMilli()
}
