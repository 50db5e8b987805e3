package record

import (
	"context"

	domrec "github.com/kailas-cloud/cvsearch/internal/domain/record"
)

// Repository reads and removes single records.
type Repository interface {
	Get(ctx context.Context, id string) (domrec.Record, error)
	Delete(ctx context.Context, id string) error
}
