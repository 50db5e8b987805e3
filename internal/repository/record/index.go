package record

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/cvsearch/internal/db"
	domrec "github.com/kailas-cloud/cvsearch/internal/domain/record"
)

// EnsureIndex creates the record index unless it already exists.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	def, err := buildIndex(r.cfg)
	if err != nil {
		return err
	}
	if err := r.store.CreateIndex(ctx, def); err != nil {
		if errors.Is(err, db.ErrIndexExists) {
			return nil
		}
		return fmt.Errorf("create index %s: %w", def.Name, err)
	}
	return nil
}

// buildIndex lays out the record schema: content is full-text, list fields
// are tags over every element, experience and uploadDate sort, and the
// embedding is an HNSW cosine vector. Custom metadata keys are tags keyed
// metadata_<key>.
func buildIndex(cfg Config) (*db.IndexDefinition, error) {
	if cfg.Vector.Dimensions <= 0 {
		return nil, fmt.Errorf("vector dimensions must be positive")
	}

	b := db.NewIndex(cfg.IndexName).
		Prefix(cfg.Prefix).
		Tag("$."+domrec.FieldID, domrec.FieldID).
		Text("$."+domrec.FieldContent, domrec.FieldContent).
		Tag("$."+domrec.FieldSkills+"[*]", domrec.FieldSkills).
		Tag("$."+domrec.FieldJobTitles+"[*]", domrec.FieldJobTitles).
		Tag("$."+domrec.FieldEducation+"[*]", domrec.FieldEducation).
		Numeric("$."+domrec.FieldExperience, domrec.FieldExperience).Sortable().
		Numeric("$."+domrec.FieldUploadDate, domrec.FieldUploadDate).Sortable()

	for _, k := range cfg.CustomTags {
		field := domrec.CustomPrefix + k
		b = b.Tag("$."+field, db.FieldKey(field))
	}

	def, err := b.VectorHNSW("$."+domrec.FieldEmbedding, domrec.FieldEmbedding,
		cfg.Vector.Dimensions, db.DistanceCosine, cfg.Vector.HNSWM, cfg.Vector.HNSWEFConstruction).
		Build()
	if err != nil {
		return nil, fmt.Errorf("build index: %w", err)
	}
	return def, nil
}
