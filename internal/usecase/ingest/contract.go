package ingest

import (
	"context"

	"github.com/kailas-cloud/cvsearch/internal/domain"
	"github.com/kailas-cloud/cvsearch/internal/domain/record"
)

// BulkWriter stores several records in one round trip.
type BulkWriter interface {
	BatchUpsert(ctx context.Context, records []record.Record) error
}

// Embedder vectorizes record content.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
