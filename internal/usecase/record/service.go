// Package record serves single-record reads and deletes.
package record

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/cvsearch/internal/domain"
	domrec "github.com/kailas-cloud/cvsearch/internal/domain/record"
)

// Service handles record lookups by id.
type Service struct {
	repo Repository
}

// New creates a record service.
func New(repo Repository) *Service {
	return &Service{repo: repo}
}

// Get returns a record without its content and embedding.
func (s *Service) Get(ctx context.Context, id string) (domrec.Record, error) {
	if id == "" {
		return domrec.Record{}, fmt.Errorf("%w: id is required", domain.ErrInvalidRequest)
	}
	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		return domrec.Record{}, classify("get record", err)
	}
	return rec.Sanitized(), nil
}

// Delete removes a record.
func (s *Service) Delete(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: id is required", domain.ErrInvalidRequest)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return classify("delete record", err)
	}
	return nil
}

// classify keeps ErrNotFound and context errors as they are and marks
// everything else as a store outage.
func classify(op string, err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStoreUnavailable, err)
}
