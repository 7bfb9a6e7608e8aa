package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Budget tracks spending against a monthly limit for one transaction
// category. Budget bookkeeping lives outside the ledger core; the model
// exists because the persistence layer stores budgets alongside accounts.
type Budget struct {
	ID             int64           `json:"id"`
	UserID         int64           `json:"user_id"`
	Category       string          `json:"category"`
	MonthlyLimit   decimal.Decimal `json:"monthly_limit"`
	CurrentSpent   decimal.Decimal `json:"current_spent"`
	StartDate      time.Time       `json:"start_date"`
	EndDate        time.Time       `json:"end_date"`
	AlertEnabled   bool            `json:"alert_enabled"`
	AlertThreshold float64         `json:"alert_threshold"` // fraction of the limit, 0.0-1.0
}

// Remaining returns the unspent part of the limit.
func (b *Budget) Remaining() decimal.Decimal {
	return b.MonthlyLimit.Sub(b.CurrentSpent)
}

// SpentFraction returns spent/limit, zero when no limit is set.
func (b *Budget) SpentFraction() float64 {
	if !b.MonthlyLimit.IsPositive() {
		return 0
	}
	f, _ := b.CurrentSpent.Div(b.MonthlyLimit).Float64()
	return f
}

// IsOverBudget reports whether spending has exceeded the limit.
func (b *Budget) IsOverBudget() bool {
	return b.CurrentSpent.GreaterThan(b.MonthlyLimit)
}

// ShouldAlert reports whether spending has crossed the alert threshold.
func (b *Budget) ShouldAlert() bool {
	return b.AlertEnabled && b.SpentFraction() >= b.AlertThreshold
}
