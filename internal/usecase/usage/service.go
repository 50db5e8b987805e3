// Package usage reports embedding token consumption.
package usage

import (
	"context"
	"time"

	domusage "github.com/kailas-cloud/cvsearch/internal/domain/usage"
)

// Service handles usage reporting.
type Service struct {
	br  BudgetReader
	now func() time.Time
}

// New creates a Service. br can be nil when no tracker is wired; reports are then empty.
func New(br BudgetReader) *Service {
	return &Service{br: br, now: time.Now}
}

// Report builds the usage report for the current period.
func (s *Service) Report(_ context.Context, period domusage.Period) domusage.Report {
	start, end := period.Bounds(s.now())
	if s.br == nil {
		return domusage.NewReport(period, start, end, 0, domusage.Budget{})
	}

	used, budget := s.br.Snapshot(period)
	return domusage.NewReport(period, start, end, used, budget)
}
