package usage

import domusage "github.com/kailas-cloud/cvsearch/internal/domain/usage"

// BudgetReader reads the token tracker shared by the record and query embedders.
type BudgetReader interface {
	Snapshot(p domusage.Period) (int64, domusage.Budget)
}
