package search

import (
	"context"

	"github.com/kailas-cloud/cvsearch/internal/domain"
	"github.com/kailas-cloud/cvsearch/internal/domain/record"
	"github.com/kailas-cloud/cvsearch/internal/domain/search/predicate"
	"github.com/kailas-cloud/cvsearch/internal/domain/search/retrieval"
)

// VectorStore runs filtered nearest-neighbour retrieval.
type VectorStore interface {
	SearchVector(ctx context.Context, q retrieval.Vector, offset, limit int) ([]record.Record, error)
	CountVector(ctx context.Context, q retrieval.Vector) (int, error)
}

// TextStore runs predicate retrieval with full-text scoring.
type TextStore interface {
	SearchText(ctx context.Context, q retrieval.Text, offset, limit int) ([]record.Record, error)
	CountText(ctx context.Context, where predicate.Node) (int, error)
}

// Embedder vectorizes query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
