package core

import (
	"strings"
	"time"
)

// Summary is the per-owner aggregate shown on the dashboard.
type Summary struct {
	TotalIncome       Money `json:"totalIncome"`
	TotalExpenses     Money `json:"totalExpenses"`
	PendingCount      int64 `json:"pendingTransactions"`
	TotalTransactions int64 `json:"totalTransactions"`
	Balance           Money `json:"balance"`
}

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string `json:"name"`
	Amount Money  `json:"amount"`
}

// ReportPeriod selects the window of a period report.
type ReportPeriod string

const (
	Daily   ReportPeriod = "daily"
	Weekly  ReportPeriod = "weekly"
	Monthly ReportPeriod = "monthly"
)

func ParseReportPeriod(s string) (ReportPeriod, error) {
	switch p := ReportPeriod(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return Monthly, nil
	case Daily, Weekly, Monthly:
		return p, nil
	default:
		return "", NewValidationError("period", "must be daily, weekly or monthly")
	}
}

// Window returns the half-open [start, end) range containing anchor.
// Weeks start on Monday.
func (p ReportPeriod) Window(anchor time.Time) (time.Time, time.Time) {
	y, m, d := anchor.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, anchor.Location())
	switch p {
	case Daily:
		return day, day.AddDate(0, 0, 1)
	case Weekly:
		offset := (int(day.Weekday()) + 6) % 7
		start := day.AddDate(0, 0, -offset)
		return start, start.AddDate(0, 0, 7)
	default:
		start := time.Date(y, m, 1, 0, 0, 0, 0, anchor.Location())
		return start, start.AddDate(0, 1, 0)
	}
}

// Previous returns the window immediately before the one containing anchor.
func (p ReportPeriod) Previous(anchor time.Time) (time.Time, time.Time) {
	start, _ := p.Window(anchor)
	return p.Window(start.Add(-time.Nanosecond))
}

// PeriodTotals is the raw aggregate of one report window.
type PeriodTotals struct {
	Income     Money
	Expenses   Money
	ByCategory []CategoryAmount
}

// Report is a period view: totals, expense breakdown and trend against the
// previous period of the same length.
type Report struct {
	Period     ReportPeriod     `json:"period"`
	Start      time.Time        `json:"start"`
	End        time.Time        `json:"end"`
	Income     Money            `json:"income"`
	Expenses   Money            `json:"expenses"`
	NetBalance Money            `json:"netBalance"`
	Categories []CategoryAmount `json:"categories"`
	Trend      float64          `json:"trend"`
}

// ExpenseTrend is the percentage change of expenses, 0 when there is no base.
func ExpenseTrend(current, previous Money) float64 {
	if previous.Minor == 0 {
		return 0
	}
	return float64(current.Minor-previous.Minor) * 100 / float64(previous.Minor)
}

// BudgetPeriod is the recurrence of a budget limit.
type BudgetPeriod string

const (
	BudgetWeekly  BudgetPeriod = "weekly"
	BudgetMonthly BudgetPeriod = "monthly"
	BudgetYearly  BudgetPeriod = "yearly"
)

// Window returns the current budget window containing now.
func (p BudgetPeriod) Window(now time.Time) (time.Time, time.Time) {
	switch p {
	case BudgetWeekly:
		return Weekly.Window(now)
	case BudgetYearly:
		start := time.Date(now.Year(), 1, 1, 0, 0, 0, 0, now.Location())
		return start, start.AddDate(1, 0, 0)
	default:
		return Monthly.Window(now)
	}
}

type Budget struct {
	ID               string       `json:"id"`
	OwnerID          string       `json:"-"`
	Category         string       `json:"category"`
	Limit            Money        `json:"limitAmount"`
	Period           BudgetPeriod `json:"period"`
	WarningThreshold int          `json:"warningThreshold"`
	CreatedAt        time.Time    `json:"createdAt"`
}

func (b Budget) Validate() error {
	if strings.TrimSpace(b.Category) == "" {
		return NewValidationError("category", "is required")
	}
	if err := b.Limit.Validate(); err != nil {
		return NewValidationError("limitAmount", "must be a positive number with at most 2 decimal places")
	}
	switch b.Period {
	case BudgetWeekly, BudgetMonthly, BudgetYearly:
	default:
		return NewValidationError("period", "must be weekly, monthly or yearly")
	}
	if b.WarningThreshold < 1 || b.WarningThreshold > 100 {
		return NewValidationError("warningThreshold", "must be between 1 and 100")
	}
	return nil
}

type AlertType string

const (
	AlertWarning  AlertType = "warning"
	AlertExceeded AlertType = "exceeded"
)

// BudgetAlert is one entry of the budget alert feed.
type BudgetAlert struct {
	BudgetID       string       `json:"budgetId"`
	Category       string       `json:"category"`
	AlertType      AlertType    `json:"alertType"`
	SpentAmount    Money        `json:"spentAmount"`
	LimitAmount    Money        `json:"limitAmount"`
	PercentageUsed float64      `json:"percentageUsed"`
	Period         BudgetPeriod `json:"period"`
}

// EvaluateBudget returns the alert for spent against b, or false when the
// spend is below the warning threshold.
func EvaluateBudget(b Budget, spent Money) (BudgetAlert, bool) {
	if b.Limit.Minor <= 0 {
		return BudgetAlert{}, false
	}
	pct := float64(spent.Minor) * 100 / float64(b.Limit.Minor)
	alert := BudgetAlert{
		BudgetID:       b.ID,
		Category:       b.Category,
		SpentAmount:    spent,
		LimitAmount:    b.Limit,
		PercentageUsed: pct,
		Period:         b.Period,
	}
	switch {
	case spent.Minor > b.Limit.Minor:
		alert.AlertType = AlertExceeded
	case pct >= float64(b.WarningThreshold):
		alert.AlertType = AlertWarning
	default:
		return BudgetAlert{}, false
	}
	return alert, true
}
