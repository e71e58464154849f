package core

import (
	"testing"
	"time"
)

func TestReportPeriodWindow(t *testing.T) {
	day := func(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }
	anchor := time.Date(2025, 10, 16, 15, 30, 0, 0, time.UTC) // Thursday

	cases := []struct {
		p          ReportPeriod
		start, end time.Time
	}{
		{Daily, day(2025, 10, 16), day(2025, 10, 17)},
		{Weekly, day(2025, 10, 13), day(2025, 10, 20)},
		{Monthly, day(2025, 10, 1), day(2025, 11, 1)},
	}
	for _, tc := range cases {
		start, end := tc.p.Window(anchor)
		if !start.Equal(tc.start) || !end.Equal(tc.end) {
			t.Errorf("%s window = [%s, %s), want [%s, %s)", tc.p, start, end, tc.start, tc.end)
		}
	}

	// Sunday still belongs to the week that started on Monday.
	start, _ := Weekly.Window(day(2025, 10, 19))
	if !start.Equal(day(2025, 10, 13)) {
		t.Fatalf("sunday week start = %s", start)
	}

	start, end := Monthly.Previous(day(2025, 3, 15))
	if !start.Equal(day(2025, 2, 1)) || !end.Equal(day(2025, 3, 1)) {
		t.Fatalf("previous month = [%s, %s)", start, end)
	}
}

func TestParseReportPeriod(t *testing.T) {
	if p, err := ParseReportPeriod(""); err != nil || p != Monthly {
		t.Fatalf("blank period should default to monthly, got %q %v", p, err)
	}
	if p, err := ParseReportPeriod("Weekly"); err != nil || p != Weekly {
		t.Fatalf("expected weekly, got %q %v", p, err)
	}
	if _, err := ParseReportPeriod("hourly"); !IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestExpenseTrend(t *testing.T) {
	if got := ExpenseTrend(Money{Minor: 150}, Money{Minor: 100}); got != 50 {
		t.Fatalf("expected 50, got %v", got)
	}
	if got := ExpenseTrend(Money{Minor: 50}, Money{Minor: 100}); got != -50 {
		t.Fatalf("expected -50, got %v", got)
	}
	if got := ExpenseTrend(Money{Minor: 50}, Money{}); got != 0 {
		t.Fatalf("expected 0 without previous expenses, got %v", got)
	}
}

func TestEvaluateBudget(t *testing.T) {
	b := Budget{ID: "b1", Category: "Food", Limit: Money{Minor: 10000}, Period: BudgetMonthly, WarningThreshold: 80}

	if _, ok := EvaluateBudget(b, Money{Minor: 5000}); ok {
		t.Fatalf("50%% should not alert")
	}
	a, ok := EvaluateBudget(b, Money{Minor: 8000})
	if !ok || a.AlertType != AlertWarning || a.PercentageUsed != 80 {
		t.Fatalf("expected warning at 80%%, got %+v ok=%v", a, ok)
	}
	a, ok = EvaluateBudget(b, Money{Minor: 10000})
	if !ok || a.AlertType != AlertWarning {
		t.Fatalf("spending exactly the limit is a warning, got %+v", a)
	}
	a, ok = EvaluateBudget(b, Money{Minor: 12000})
	if !ok || a.AlertType != AlertExceeded || a.BudgetID != "b1" {
		t.Fatalf("expected exceeded, got %+v", a)
	}
}

func TestBudgetValidate(t *testing.T) {
	good := Budget{Category: "Food", Limit: Money{Minor: 1}, Period: BudgetWeekly, WarningThreshold: 80}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	bads := []Budget{
		{Category: "", Limit: Money{Minor: 1}, Period: BudgetWeekly, WarningThreshold: 80},
		{Category: "Food", Limit: Money{}, Period: BudgetWeekly, WarningThreshold: 80},
		{Category: "Food", Limit: Money{Minor: 1}, Period: "daily", WarningThreshold: 80},
		{Category: "Food", Limit: Money{Minor: 1}, Period: BudgetYearly, WarningThreshold: 0},
	}
	for i, b := range bads {
		if err := b.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}
