// Package health aggregates store and embedding provider checks.
package health

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/cvsearch/internal/logger"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded means search still works on the text path only.
	Degraded Status = "degraded"
	// Unhealthy means the record store is unreachable.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Component names in Report.Checks.
const (
	ComponentStore     = "store"
	ComponentEmbedding = "embedding"
)

// DefaultTimeout bounds each component check.
const DefaultTimeout = 2 * time.Second

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	store     StorePinger
	embedding EmbeddingChecker
	timeout   time.Duration
}

// New creates a Service. embedding can be nil.
func New(store StorePinger, embedding EmbeddingChecker) *Service {
	return &Service{store: store, embedding: embedding, timeout: DefaultTimeout}
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := map[string]CheckResult{
		ComponentStore: s.run(ctx, ComponentStore, s.store.Ping),
	}
	if s.embedding != nil {
		checks[ComponentEmbedding] = s.run(ctx, ComponentEmbedding, s.embedding.HealthCheck)
	}

	status := Healthy
	switch {
	case checks[ComponentStore] == CheckError:
		status = Unhealthy
	case checks[ComponentEmbedding] == CheckError:
		status = Degraded
	}
	return Report{Status: status, Checks: checks}
}

func (s *Service) run(ctx context.Context, name string, check func(context.Context) error) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := check(ctx); err != nil {
		logger.FromContext(ctx).Warn("Health check failed", zap.String("component", name), zap.Error(err))
		return CheckError
	}
	return CheckOK
}
