package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"moneytracker/internal/core"
	"moneytracker/internal/ports"
)

// DefaultWarningThreshold is the percentage of a budget that triggers a warning.
const DefaultWarningThreshold = 80

var _ ports.BudgetAlertFeed = (*BudgetService)(nil)

// BudgetService manages spending limits and reports the ones that were
// reached or exceeded in their current period.
type BudgetService struct {
	repo ports.BudgetRepository
	now  func() time.Time
}

func NewBudgetService(repo ports.BudgetRepository) *BudgetService {
	return &BudgetService{repo: repo, now: time.Now}
}

func (s *BudgetService) List(ctx context.Context, ownerID string) ([]core.Budget, error) {
	return s.repo.ListBudgets(ctx, ownerID)
}

func (s *BudgetService) Create(ctx context.Context, ownerID string, b core.Budget) (core.Budget, error) {
	b.Category = strings.TrimSpace(b.Category)
	if b.Period == "" {
		b.Period = core.BudgetMonthly
	}
	if b.WarningThreshold == 0 {
		b.WarningThreshold = DefaultWarningThreshold
	}
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}
	b.ID = uuid.NewString()
	b.OwnerID = ownerID
	b.CreatedAt = s.now().UTC()
	if err := s.repo.InsertBudget(ctx, b); err != nil {
		return core.Budget{}, err
	}
	return b, nil
}

func (s *BudgetService) Delete(ctx context.Context, ownerID, id string) error {
	return s.repo.DeleteBudget(ctx, ownerID, id)
}

// GetAlerts evaluates every budget of ownerID against completed expenses in
// the budget's current period.
func (s *BudgetService) GetAlerts(ctx context.Context, ownerID string) ([]core.BudgetAlert, error) {
	budgets, err := s.repo.ListBudgets(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	spent := make([]core.Money, len(budgets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, b := range budgets {
		g.Go(func() error {
			start, end := b.Period.Window(now)
			m, err := s.repo.CategorySpend(gctx, ownerID, b.Category, start, end)
			if err != nil {
				return fmt.Errorf("budget %s: %w", b.ID, err)
			}
			spent[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	alerts := []core.BudgetAlert{}
	for i, b := range budgets {
		if a, ok := core.EvaluateBudget(b, spent[i]); ok {
			alerts = append(alerts, a)
		}
	}
	return alerts, nil
}
