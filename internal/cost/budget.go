// Package cost estimates LLM spend and enforces a per-run budget.
package cost

import "fmt"

// BudgetStatus represents the current budget state
type BudgetStatus int

const (
	// BudgetHealthy indicates normal operation - under budget limits
	BudgetHealthy BudgetStatus = iota
	// BudgetWarning indicates approaching budget limits (>80% by default)
	BudgetWarning
	// BudgetExceeded indicates budget limits have been exceeded
	BudgetExceeded
)

// String returns a human-readable string representation of the budget status
func (s BudgetStatus) String() string {
	switch s {
	case BudgetHealthy:
		return "HEALTHY"
	case BudgetWarning:
		return "WARNING"
	case BudgetExceeded:
		return "EXCEEDED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// Budget checks a ledger against the configured limits.
type Budget struct {
	config Config
	prices *PriceTable
}

// NewBudget validates cfg and builds a budget.
func NewBudget(cfg Config) (*Budget, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Budget{config: cfg, prices: NewPriceTable(cfg.Pricing)}, nil
}

// Prices returns the price table used for estimates.
func (b *Budget) Prices() *PriceTable {
	return b.prices
}

// Status reports where the ledger stands against the limits.
func (b *Budget) Status(l Ledger) BudgetStatus {
	if !b.config.Enabled {
		return BudgetHealthy
	}
	t := l.Totals()
	ratio := 0.0
	if b.config.MaxCostPerRun > 0 {
		ratio = t.Cost / b.config.MaxCostPerRun
	}
	if b.config.MaxTokensPerRun > 0 {
		if r := float64(t.TotalTokens()) / float64(b.config.MaxTokensPerRun); r > ratio {
			ratio = r
		}
	}
	switch {
	case ratio >= 1.0:
		return BudgetExceeded
	case ratio >= b.config.AlertThreshold:
		return BudgetWarning
	default:
		return BudgetHealthy
	}
}

// CanProceed reports whether another call may start, with a reason when it
// may not.
func (b *Budget) CanProceed(l Ledger) (bool, string) {
	if b.Status(l) != BudgetExceeded {
		return true, ""
	}
	t := l.Totals()
	return false, fmt.Sprintf("run budget exceeded: $%.4f spent (limit $%.2f), %d tokens (limit %d)",
		t.Cost, b.config.MaxCostPerRun, t.TotalTokens(), b.config.MaxTokensPerRun)
}
