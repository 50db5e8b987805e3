// Package sqlite implements db.Store on a single SQLite file through the
// pure-Go modernc driver. Documents are JSON bodies; TEXT index fields are
// mirrored into FTS5 tables by triggers, vector fields are ranked in process.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/kailas-cloud/cvsearch/internal/db"
)

// Compile-time check: Store implements db.Store.
var _ db.Store = (*Store)(nil)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Config holds the database location.
type Config struct {
	Path string
}

// Store implements db.Store on SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time

	mu      sync.RWMutex
	schemas map[string]*db.IndexDefinition
}

// NewStore opens (creating if needed) the database at cfg.Path and applies the schema.
func NewStore(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("path is required")
	}

	dsn := cfg.Path
	if cfg.Path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
		dsn += "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if cfg.Path == MemoryPath {
		// every connection would otherwise see its own empty database
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	s := &Store{db: conn, now: time.Now, schemas: make(map[string]*db.IndexDefinition)}
	if err := s.migrate(context.Background()); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

var bootstrapDDL = []string{
	`CREATE TABLE IF NOT EXISTS documents (
		id   INTEGER PRIMARY KEY AUTOINCREMENT,
		key  TEXT NOT NULL UNIQUE,
		body TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS kv (
		key        TEXT PRIMARY KEY,
		value      BLOB NOT NULL,
		expires_at INTEGER
	)`,
	`CREATE TABLE IF NOT EXISTS search_indexes (
		name       TEXT PRIMARY KEY,
		definition TEXT NOT NULL,
		fts_table  TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
}

func (s *Store) migrate(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &db.Error{Op: db.OpMigrate, Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range bootstrapDDL {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return &db.Error{Op: db.OpMigrate, Err: err}
		}
	}
	if err := tx.Commit(); err != nil {
		return &db.Error{Op: db.OpMigrate, Err: err}
	}
	return nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() {
	_ = s.db.Close()
}

// WaitForReady polls Ping until the database responds or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		if err := s.Ping(ctx); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for sqlite: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

// schema returns the definition of a created index, or a rejected-query error.
func (s *Store) schema(ctx context.Context, name string) (*db.IndexDefinition, string, error) {
	s.mu.RLock()
	def, ok := s.schemas[name]
	s.mu.RUnlock()
	if ok {
		return def, ftsFor(def), nil
	}

	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT definition FROM search_indexes WHERE name = ?`, name).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", db.Rejected(db.OpSearch, fmt.Errorf("%s: %w", name, db.ErrIndexNotFound))
	}
	if err != nil {
		return nil, "", &db.Error{Op: db.OpIndexInfo, Err: err}
	}

	def = &db.IndexDefinition{}
	if err := json.Unmarshal([]byte(raw), def); err != nil {
		return nil, "", &db.Error{Op: db.OpIndexInfo, Err: fmt.Errorf("decode definition: %w", err)}
	}

	s.mu.Lock()
	s.schemas[name] = def
	s.mu.Unlock()
	return def, ftsFor(def), nil
}

// classify marks SQL errors (bad syntax, bad FTS5 query, malformed JSON) as
// rejected queries. Busy, I/O and context failures stay plain store errors.
func classify(op string, err error) error {
	var se *sqlite.Error
	if errors.As(err, &se) && se.Code()&0xff == sqlite3.SQLITE_ERROR {
		return db.Rejected(op, err)
	}
	return &db.Error{Op: op, Err: err}
}
