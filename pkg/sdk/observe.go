package cvsearch

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// sdkMetrics holds prometheus metrics registered for the SDK.
type sdkMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	searches   *prometheus.CounterVec
}

func newSDKMetrics(reg prometheus.Registerer) (*sdkMetrics, error) {
	m := &sdkMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cvsearch",
			Subsystem: "sdk",
			Name:      "operations_total",
			Help:      "SDK operations by name and outcome.",
		}, []string{"operation", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cvsearch",
			Subsystem: "sdk",
			Name:      "operation_duration_seconds",
			Help:      "SDK operation duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cvsearch",
			Subsystem: "sdk",
			Name:      "searches_total",
			Help:      "Completed SDK searches by retrieval method.",
		}, []string{"method"}),
	}
	if err := registerOrReuse(reg, &m.operations); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.duration); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.searches); err != nil {
		return nil, err
	}
	return m, nil
}

// registerOrReuse registers a collector or adopts the one already registered,
// so several clients can share a registry.
func registerOrReuse[T prometheus.Collector](reg prometheus.Registerer, c *T) error {
	if err := reg.Register(*c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			existing, ok := are.ExistingCollector.(T)
			if !ok {
				return fmt.Errorf("cvsearch: metric already registered with incompatible type: %T", are.ExistingCollector)
			}
			*c = existing
			return nil
		}
		return fmt.Errorf("cvsearch: register metric: %w", err)
	}
	return nil
}

// observer provides logging and metrics for SDK operations. A nil observer
// is valid and does nothing.
type observer struct {
	logger  *slog.Logger
	metrics *sdkMetrics
}

func newObserver(logger *slog.Logger, reg prometheus.Registerer) (*observer, error) {
	var m *sdkMetrics
	if reg != nil {
		var err error
		if m, err = newSDKMetrics(reg); err != nil {
			return nil, err
		}
	}
	return &observer{logger: logger, metrics: m}, nil
}

// outcome buckets errors so callers can tell bad input from outages.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidRequest):
		return "invalid"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	}
	return "error"
}

func (o *observer) observe(op string, start time.Time, err error) {
	if o == nil {
		return
	}
	dur := time.Since(start)

	if o.metrics != nil {
		o.metrics.operations.WithLabelValues(op, outcome(err)).Inc()
		o.metrics.duration.WithLabelValues(op).Observe(dur.Seconds())
	}

	if o.logger == nil {
		return
	}
	switch outcome(err) {
	case "ok":
		o.logger.Debug("operation completed", "op", op, "duration", dur)
	case "error":
		o.logger.Warn("operation failed", "op", op, "duration", dur, "error", err)
	default:
		o.logger.Debug("operation rejected", "op", op, "duration", dur, "error", err)
	}
}

func (o *observer) searched(method string) {
	if o == nil || o.metrics == nil {
		return
	}
	o.metrics.searches.WithLabelValues(method).Inc()
}
