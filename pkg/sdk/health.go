package cvsearch

import (
	"context"
)

// HealthStatus represents the aggregated system health.
type HealthStatus struct {
	Status string            // "ok", "degraded" or "error"
	Checks map[string]string // component -> "ok"/"error"
}

// Healthy reports whether search works, possibly on the text path only.
func (h HealthStatus) Healthy() bool { return h.Status != "error" }

// Health checks the store and, when it supports it, the embedder.
func (c *Client) Health(ctx context.Context) HealthStatus {
	report := c.healthSvc.Check(ctx)
	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}
	return HealthStatus{
		Status: string(report.Status),
		Checks: checks,
	}
}
