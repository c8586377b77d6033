package ports

import (
	"context"
)

// BudgetAlert describes a principal crossing the warning fraction of its daily budget.
type BudgetAlert struct {
	PrincipalID    string
	Tier           string
	OperationClass string
	Day            string
	CostCurrentUSD float64
	CostLimitUSD   float64
	Threshold      float64
}

// AlertNotifier delivers operational budget alerts (e-mail, chat, ...).
type AlertNotifier interface {
	NotifyBudgetWarning(ctx context.Context, alert BudgetAlert) error
}
