package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/kailas-cloud/cvsearch/internal/db"
)

// CreateIndex registers the definition and, when it has TEXT fields, creates an
// FTS5 table kept in sync with matching documents by triggers. Documents stored
// before the index are backfilled. The definition is remembered either way.
func (s *Store) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	if err := def.Validate(); err != nil {
		return err
	}

	exists, err := s.IndexExists(ctx, def.Name)
	if err != nil {
		return err
	}
	if exists {
		s.remember(def)
		return db.ErrIndexExists
	}

	raw, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("encode definition: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &db.Error{Op: db.OpCreateIndex, Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	fts := ftsTableName(def.Name)
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO search_indexes (name, definition, fts_table) VALUES (?, ?, ?)`,
		def.Name, string(raw), fts); err != nil {
		return &db.Error{Op: db.OpCreateIndex, Err: err}
	}

	for _, stmt := range ftsDDL(def) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return &db.Error{Op: db.OpCreateIndex, Err: fmt.Errorf("%w (%s)", err, firstLine(stmt))}
		}
	}

	if err := tx.Commit(); err != nil {
		return &db.Error{Op: db.OpCreateIndex, Err: err}
	}
	s.remember(def)
	return nil
}

// DropIndex removes the definition, its FTS table and triggers. Documents stay.
func (s *Store) DropIndex(ctx context.Context, name string) error {
	exists, err := s.IndexExists(ctx, name)
	if err != nil {
		return err
	}
	if !exists {
		return db.ErrIndexNotFound
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &db.Error{Op: db.OpDropIndex, Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	fts := ftsTableName(name)
	stmts := []string{
		`DROP TRIGGER IF EXISTS ` + quoteIdent(fts+"_ai"),
		`DROP TRIGGER IF EXISTS ` + quoteIdent(fts+"_au"),
		`DROP TRIGGER IF EXISTS ` + quoteIdent(fts+"_ad"),
		`DROP TABLE IF EXISTS ` + quoteIdent(fts),
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return &db.Error{Op: db.OpDropIndex, Err: err}
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM search_indexes WHERE name = ?`, name); err != nil {
		return &db.Error{Op: db.OpDropIndex, Err: err}
	}
	if err := tx.Commit(); err != nil {
		return &db.Error{Op: db.OpDropIndex, Err: err}
	}

	s.mu.Lock()
	delete(s.schemas, name)
	s.mu.Unlock()
	return nil
}

// IndexExists checks the index registry.
func (s *Store) IndexExists(ctx context.Context, name string) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM search_indexes WHERE name = ?`, name).Scan(&n); err != nil {
		return false, &db.Error{Op: db.OpIndexInfo, Err: err}
	}
	return n > 0, nil
}

func (s *Store) remember(def *db.IndexDefinition) {
	s.mu.Lock()
	s.schemas[def.Name] = def
	s.mu.Unlock()
}

// ftsDDL returns the FTS5 table, sync triggers and backfill for the TEXT
// fields of def, or nothing when it has none.
func ftsDDL(def *db.IndexDefinition) []string {
	texts := def.FieldsOfType(db.IndexFieldText)
	if len(texts) == 0 {
		return nil
	}

	fts := quoteIdent(ftsTableName(def.Name))
	cols := make([]string, len(texts))
	newVals := make([]string, len(texts))
	bodyVals := make([]string, len(texts))
	for i := range texts {
		cols[i] = quoteIdent(texts[i].Key())
		path := quoteLiteral(texts[i].JSONPath())
		newVals[i] = "COALESCE(json_extract(new.body, " + path + "), '')"
		bodyVals[i] = "COALESCE(json_extract(body, " + path + "), '')"
	}
	colList := strings.Join(cols, ", ")

	insertNew := fmt.Sprintf("INSERT INTO %s (rowid, %s) VALUES (new.id, %s);",
		fts, colList, strings.Join(newVals, ", "))
	deleteOld := fmt.Sprintf("DELETE FROM %s WHERE rowid = old.id;", fts)

	return []string{
		fmt.Sprintf("CREATE VIRTUAL TABLE %s USING fts5(%s, tokenize='porter unicode61')", fts, colList),
		fmt.Sprintf("CREATE TRIGGER %s AFTER INSERT ON documents WHEN %s BEGIN %s END",
			quoteIdent(ftsTableName(def.Name)+"_ai"), prefixLiteral("new.key", def.Prefixes), insertNew),
		fmt.Sprintf("CREATE TRIGGER %s AFTER UPDATE ON documents WHEN %s BEGIN %s %s END",
			quoteIdent(ftsTableName(def.Name)+"_au"), prefixLiteral("new.key", def.Prefixes), deleteOld, insertNew),
		fmt.Sprintf("CREATE TRIGGER %s AFTER DELETE ON documents WHEN %s BEGIN %s END",
			quoteIdent(ftsTableName(def.Name)+"_ad"), prefixLiteral("old.key", def.Prefixes), deleteOld),
		fmt.Sprintf("INSERT INTO %s (rowid, %s) SELECT id, %s FROM documents WHERE %s",
			fts, colList, strings.Join(bodyVals, ", "), prefixLiteral("key", def.Prefixes)),
	}
}

// ftsFor returns the FTS table of def, or "" when def has no TEXT field.
func ftsFor(def *db.IndexDefinition) string {
	if len(def.FieldsOfType(db.IndexFieldText)) == 0 {
		return ""
	}
	return ftsTableName(def.Name)
}

// ftsTableName derives a safe table name from an index name: "cv:idx" becomes "fts_cv_idx".
func ftsTableName(index string) string {
	var b strings.Builder
	b.WriteString("fts_")
	for _, r := range index {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

// prefixLiteral renders a key-prefix condition with inlined literals, for DDL
// where parameters are not allowed.
func prefixLiteral(col string, prefixes []string) string {
	if len(prefixes) == 0 {
		return "1"
	}
	parts := make([]string, len(prefixes))
	for i, p := range prefixes {
		parts[i] = fmt.Sprintf("substr(%s, 1, %s) = %s", col, strconv.Itoa(utf8.RuneCountInString(p)), quoteLiteral(p))
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
