package storage

import (
	"context"
	"fmt"
	"time"

	"moneytracker/internal/core"
)

func (r *SQLiteRepository) ListBudgets(ctx context.Context, ownerID string) ([]core.Budget, error) {
	rows, err := r.queries.ListBudgets(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	budgets := make([]core.Budget, 0, len(rows))
	for _, row := range rows {
		createdAt, err := parseTime(row.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("parse created_at of budget %s: %w", row.ID, err)
		}
		budgets = append(budgets, core.Budget{
			ID:               row.ID,
			OwnerID:          row.OwnerID,
			Category:         row.Category,
			Limit:            core.Money{Minor: row.LimitMinor},
			Period:           core.BudgetPeriod(row.Period),
			WarningThreshold: int(row.WarningThreshold),
			CreatedAt:        createdAt,
		})
	}
	return budgets, nil
}

func (r *SQLiteRepository) InsertBudget(ctx context.Context, b core.Budget) error {
	err := r.queries.CreateBudget(ctx, BudgetRow{
		ID:               b.ID,
		OwnerID:          b.OwnerID,
		Category:         b.Category,
		LimitMinor:       b.Limit.Minor,
		Period:           string(b.Period),
		WarningThreshold: int64(b.WarningThreshold),
		CreatedAt:        formatTime(b.CreatedAt),
	}, foldCategory(b.Category))
	if err != nil {
		return fmt.Errorf("create budget: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteBudget(ctx context.Context, ownerID, id string) error {
	n, err := r.queries.DeleteBudget(ctx, ownerID, id)
	if err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// CategorySpend matches the category case-insensitively.
func (r *SQLiteRepository) CategorySpend(ctx context.Context, ownerID, category string, start, end time.Time) (core.Money, error) {
	n, err := r.queries.GetCategorySpend(ctx, ownerID, foldCategory(category), formatTime(start), formatTime(end))
	if err != nil {
		return core.Money{}, fmt.Errorf("get category spend: %w", err)
	}
	return core.Money{Minor: n}, nil
}
