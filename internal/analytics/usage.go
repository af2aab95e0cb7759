package analytics

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"savemate/internal/core"
	"savemate/internal/spending"
)

// BudgetsWithUsage decorates a user's budgets for one month with used and
// remaining amounts computed live from the spending store. The derived
// figures are never persisted.
func BudgetsWithUsage(ctx context.Context, budgets BudgetStore, store spending.Store, userID string, month core.Month) ([]core.BudgetUsage, error) {
	records, err := budgets.ListBudgets(ctx, userID, month.Year, int(month.Mon))
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}

	spent, err := store.ListSpending(ctx, userID, spending.MonthQuery(month, ""))
	if err != nil {
		return nil, fmt.Errorf("list spending: %w", err)
	}

	byCategory := make(map[string]decimal.Decimal)
	for _, r := range spent {
		byCategory[r.Category] = byCategory[r.Category].Add(r.Amount)
	}

	usages := make([]core.BudgetUsage, 0, len(records))
	for _, b := range records {
		usages = append(usages, b.WithUsage(byCategory[b.Category]))
	}
	return usages, nil
}
