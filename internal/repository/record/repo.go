// Package record stores records as JSON documents and bootstraps their search index.
package record

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kailas-cloud/cvsearch/internal/db"
	"github.com/kailas-cloud/cvsearch/internal/domain"
	domrec "github.com/kailas-cloud/cvsearch/internal/domain/record"
)

// store is the consumer interface for records (ISP).
type store interface {
	JSONSet(ctx context.Context, key, path string, data []byte) error
	JSONSetMulti(ctx context.Context, items []db.JSONSetItem) error
	JSONGet(ctx context.Context, key string, paths ...string) ([]byte, error)
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
}

// Config describes where records live and how they are indexed.
type Config struct {
	IndexName string
	Prefix    string
	Vector    domain.VectorConfig
	// CustomTags are custom metadata keys indexed for equality filters.
	CustomTags []string
}

// Repo implements the record use cases' storage contracts.
type Repo struct {
	store store
	cfg   Config
}

// New creates a record repository.
func New(s store, cfg Config) *Repo {
	return &Repo{store: s, cfg: cfg}
}

// Upsert creates or replaces a record. Returns true if created.
func (r *Repo) Upsert(ctx context.Context, rec *domrec.Record) (bool, error) {
	key := r.key(rec.ID())
	data, err := json.Marshal(buildDoc(rec))
	if err != nil {
		return false, fmt.Errorf("marshal record: %w", err)
	}

	exists, err := r.store.Exists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("check exists %s: %w", key, err)
	}

	if err := r.store.JSONSet(ctx, key, "$", data); err != nil {
		return false, fmt.Errorf("json.set %s: %w", key, err)
	}
	return !exists, nil
}

// BatchUpsert stores several records in one round trip.
func (r *Repo) BatchUpsert(ctx context.Context, recs []domrec.Record) error {
	items := make([]db.JSONSetItem, 0, len(recs))
	for i := range recs {
		data, err := json.Marshal(buildDoc(&recs[i]))
		if err != nil {
			return fmt.Errorf("marshal record %s: %w", recs[i].ID(), err)
		}
		items = append(items, db.JSONSetItem{Key: r.key(recs[i].ID()), Path: "$", Data: data})
	}
	if err := r.store.JSONSetMulti(ctx, items); err != nil {
		return fmt.Errorf("json.set batch: %w", err)
	}
	return nil
}

// Get returns a record by ID.
func (r *Repo) Get(ctx context.Context, id string) (domrec.Record, error) {
	key := r.key(id)
	raw, err := r.store.JSONGet(ctx, key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domrec.Record{}, domain.ErrNotFound
		}
		return domrec.Record{}, fmt.Errorf("json.get %s: %w", key, err)
	}

	var doc recordDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return domrec.Record{}, fmt.Errorf("decode %s: %w", key, err)
	}
	if doc.ID == "" {
		doc.ID = id
	}
	return doc.toRecord(0), nil
}

// Delete removes a record.
func (r *Repo) Delete(ctx context.Context, id string) error {
	key := r.key(id)

	exists, err := r.store.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("check exists %s: %w", key, err)
	}
	if !exists {
		return domain.ErrNotFound
	}

	if err := r.store.Del(ctx, key); err != nil {
		return fmt.Errorf("del %s: %w", key, err)
	}
	return nil
}

func (r *Repo) key(id string) string {
	return r.cfg.Prefix + id
}
