package services

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"moneytracker/internal/core"
	"moneytracker/internal/ports"
)

// StatsService derives aggregates from the ledger on every call. Nothing is
// cached: the ledger is the only source of truth.
type StatsService struct {
	reader ports.StatsReader
}

func NewStatsService(reader ports.StatsReader) *StatsService {
	return &StatsService{reader: reader}
}

// Summarize returns income, expenses, pending count, total count and balance
// for ownerID. An owner without transactions gets an all-zero summary.
func (s *StatsService) Summarize(ctx context.Context, ownerID string) (core.Summary, error) {
	sum, err := s.reader.Summary(ctx, ownerID)
	if err != nil {
		return core.Summary{}, fmt.Errorf("summarize: %w", err)
	}
	return sum, nil
}

// Report aggregates the period containing anchor and compares its expenses
// with the previous period of the same kind.
func (s *StatsService) Report(ctx context.Context, ownerID string, period core.ReportPeriod, anchor time.Time) (core.Report, error) {
	start, end := period.Window(anchor)
	prevStart, prevEnd := period.Previous(anchor)

	var current, previous core.PeriodTotals
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		current, err = s.reader.PeriodTotals(gctx, ownerID, start, end)
		return err
	})
	g.Go(func() error {
		var err error
		previous, err = s.reader.PeriodTotals(gctx, ownerID, prevStart, prevEnd)
		return err
	})
	if err := g.Wait(); err != nil {
		return core.Report{}, fmt.Errorf("report %s: %w", period, err)
	}

	categories := current.ByCategory
	if categories == nil {
		categories = []core.CategoryAmount{}
	}
	return core.Report{
		Period:     period,
		Start:      start,
		End:        end,
		Income:     current.Income,
		Expenses:   current.Expenses,
		NetBalance: core.Money{Minor: current.Income.Minor - current.Expenses.Minor},
		Categories: categories,
		Trend:      core.ExpenseTrend(current.Expenses, previous.Expenses),
	}, nil
}
