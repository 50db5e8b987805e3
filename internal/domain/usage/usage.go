// Package usage describes embedding token consumption over a period.
package usage

import (
	"fmt"
	"time"
)

// Period is the aggregation granularity.
type Period string

// Aggregation periods. Counters reset at UTC midnight and on the first of the month.
const (
	PeriodDay   Period = "day"
	PeriodMonth Period = "month"
)

// ParsePeriod accepts day or month. Empty means day.
func ParsePeriod(s string) (Period, error) {
	switch Period(s) {
	case "", PeriodDay:
		return PeriodDay, nil
	case PeriodMonth:
		return PeriodMonth, nil
	}
	return "", fmt.Errorf("unknown period %q (want day or month)", s)
}

// Bounds returns the [start, end) window of the period containing t.
func (p Period) Bounds(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	if p == PeriodMonth {
		start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 1, 0)
	}
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1)
}

// Budget is a token cap snapshot. A zero limit means unlimited.
type Budget struct {
	limit     int64
	remaining int64
}

// NewBudget creates a budget snapshot. remaining is ignored when limit is zero.
func NewBudget(limit, remaining int64) Budget {
	if limit <= 0 {
		return Budget{}
	}
	return Budget{limit: limit, remaining: max(remaining, 0)}
}

// Limit returns the token cap, 0 when unlimited.
func (b Budget) Limit() int64 { return b.limit }

// Unlimited reports whether no cap is configured.
func (b Budget) Unlimited() bool { return b.limit == 0 }

// Remaining returns tokens left. Meaningless when Unlimited.
func (b Budget) Remaining() int64 { return b.remaining }

// Exhausted reports whether a capped budget is spent.
func (b Budget) Exhausted() bool { return !b.Unlimited() && b.remaining == 0 }

// Report is the embedding usage of one period.
type Report struct {
	period     Period
	start, end time.Time
	tokensUsed int64
	budget     Budget
}

// NewReport creates a usage report.
func NewReport(period Period, start, end time.Time, tokensUsed int64, b Budget) Report {
	return Report{period: period, start: start, end: end, tokensUsed: tokensUsed, budget: b}
}

// Period returns the aggregation granularity.
func (r *Report) Period() Period { return r.period }

// Start returns the first instant of the period.
func (r *Report) Start() time.Time { return r.start }

// End returns the instant the counters reset.
func (r *Report) End() time.Time { return r.end }

// TokensUsed returns tokens consumed in the period.
func (r *Report) TokensUsed() int64 { return r.tokensUsed }

// Budget returns the budget status.
func (r *Report) Budget() Budget { return r.budget }
