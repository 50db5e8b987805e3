package embedding

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/cvsearch/internal/domain"
	domusage "github.com/kailas-cloud/cvsearch/internal/domain/usage"
)

// BudgetAction defines behavior when token budget is exceeded.
type BudgetAction string

const (
	// BudgetActionWarn logs a warning but allows the request.
	BudgetActionWarn BudgetAction = "warn"
	// BudgetActionReject blocks the request.
	BudgetActionReject BudgetAction = "reject"
)

// Counter TTLs outlive their period so a restart late in the period still
// finds the running total.
const (
	dailyTTL   = 48 * time.Hour
	monthlyTTL = 62 * 24 * time.Hour
)

// BudgetStore persists budget counters shared by every replica.
// Add returns the stored total; ttl applies only when the counter is created.
type BudgetStore interface {
	Add(ctx context.Context, key string, tokens int64, ttl time.Duration) (int64, error)
	Get(ctx context.Context, key string) (int64, error)
}

// BudgetConfig holds token limits. Zero means unlimited.
type BudgetConfig struct {
	Provider     string
	KeyPrefix    string
	DailyLimit   int64
	MonthlyLimit int64
	Action       BudgetAction
}

// BudgetTracker is an in-memory token budget tracker with optional persistence.
// Check never leaves the process; Record writes behind to the store.
type BudgetTracker struct {
	mu             sync.Mutex
	cfg            BudgetConfig
	dailyUsed      int64
	monthlyUsed    int64
	lastDayReset   time.Time
	lastMonthReset time.Time
	now            func() time.Time
	store          BudgetStore
	logger         *zap.Logger
}

// NewBudgetTracker creates a budget tracker with the given limits.
func NewBudgetTracker(cfg BudgetConfig, logger *zap.Logger) *BudgetTracker {
	if cfg.Action == "" {
		cfg.Action = BudgetActionReject
	}
	b := &BudgetTracker{cfg: cfg, now: time.Now, logger: logger}
	b.lastDayReset, _ = domusage.PeriodDay.Bounds(b.now())
	b.lastMonthReset, _ = domusage.PeriodMonth.Bounds(b.now())
	return b
}

// WithStore attaches a persistence store and loads current counters.
func (b *BudgetTracker) WithStore(ctx context.Context, store BudgetStore) *BudgetTracker {
	b.store = store
	b.loadFromStore(ctx)
	return b
}

func (b *BudgetTracker) loadFromStore(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now().UTC()
	if val, err := b.store.Get(ctx, b.dailyKey(now)); err == nil {
		b.dailyUsed = val
	} else {
		b.logger.Warn("Failed to load daily budget from store", zap.Error(err))
	}
	if val, err := b.store.Get(ctx, b.monthlyKey(now)); err == nil {
		b.monthlyUsed = val
	} else {
		b.logger.Warn("Failed to load monthly budget from store", zap.Error(err))
	}

	b.logger.Info("Budget loaded from store",
		zap.String("provider", b.cfg.Provider),
		zap.Int64("daily_used", b.dailyUsed),
		zap.Int64("monthly_used", b.monthlyUsed),
	)
}

func (b *BudgetTracker) dailyKey(t time.Time) string {
	return fmt.Sprintf("%sbudget:%s:daily:%s", b.cfg.KeyPrefix, b.cfg.Provider, t.Format("2006-01-02"))
}

func (b *BudgetTracker) monthlyKey(t time.Time) string {
	return fmt.Sprintf("%sbudget:%s:monthly:%s", b.cfg.KeyPrefix, b.cfg.Provider, t.Format("2006-01"))
}

// Check verifies the budget allows a new request.
func (b *BudgetTracker) Check(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.resetIfNeeded()

	dailyExceeded := b.cfg.DailyLimit > 0 && b.dailyUsed >= b.cfg.DailyLimit
	monthlyExceeded := b.cfg.MonthlyLimit > 0 && b.monthlyUsed >= b.cfg.MonthlyLimit
	if !dailyExceeded && !monthlyExceeded {
		return nil
	}

	if b.cfg.Action == BudgetActionReject {
		return domain.ErrEmbeddingQuotaExceeded
	}

	b.logger.Warn("Token budget exceeded",
		zap.String("provider", b.cfg.Provider),
		zap.Int64("daily_used", b.dailyUsed),
		zap.Int64("daily_limit", b.cfg.DailyLimit),
		zap.Int64("monthly_used", b.monthlyUsed),
		zap.Int64("monthly_limit", b.cfg.MonthlyLimit),
	)
	return nil
}

// Record registers consumed tokens after a request.
func (b *BudgetTracker) Record(tokens int64) {
	b.mu.Lock()
	b.resetIfNeeded()
	b.dailyUsed += tokens
	b.monthlyUsed += tokens
	store := b.store
	day, month := b.lastDayReset, b.lastMonthReset
	b.mu.Unlock()

	if store == nil {
		return
	}

	// Detached from the request so a cancelled search still gets billed.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	daily, err := store.Add(ctx, b.dailyKey(day), tokens, dailyTTL)
	if err != nil {
		b.logger.Warn("Failed to persist daily budget", zap.Error(err))
	}
	monthly, err := store.Add(ctx, b.monthlyKey(month), tokens, monthlyTTL)
	if err != nil {
		b.logger.Warn("Failed to persist monthly budget", zap.Error(err))
	}

	// Other replicas bill the same counters; adopt their total if it is ahead.
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetIfNeeded()
	if b.lastDayReset.Equal(day) {
		b.dailyUsed = max(b.dailyUsed, daily)
	}
	if b.lastMonthReset.Equal(month) {
		b.monthlyUsed = max(b.monthlyUsed, monthly)
	}
}

// Snapshot returns the tokens billed in the current period and the budget left.
func (b *BudgetTracker) Snapshot(p domusage.Period) (int64, domusage.Budget) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetIfNeeded()
	if p == domusage.PeriodMonth {
		return b.monthlyUsed, domusage.NewBudget(b.cfg.MonthlyLimit, b.cfg.MonthlyLimit-b.monthlyUsed)
	}
	return b.dailyUsed, domusage.NewBudget(b.cfg.DailyLimit, b.cfg.DailyLimit-b.dailyUsed)
}

// DailyUsed returns tokens consumed today.
func (b *BudgetTracker) DailyUsed() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetIfNeeded()
	return b.dailyUsed
}

// MonthlyUsed returns tokens consumed this month.
func (b *BudgetTracker) MonthlyUsed() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetIfNeeded()
	return b.monthlyUsed
}

// resetIfNeeded zeroes counters when the day or month rolls over.
func (b *BudgetTracker) resetIfNeeded() {
	now := b.now()
	today, _ := domusage.PeriodDay.Bounds(now)
	thisMonth, _ := domusage.PeriodMonth.Bounds(now)

	if today.After(b.lastDayReset) {
		b.dailyUsed = 0
		b.lastDayReset = today
	}
	if thisMonth.After(b.lastMonthReset) {
		b.monthlyUsed = 0
		b.lastMonthReset = thisMonth
	}
}
