package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"moneytracker/internal/core"

	_ "modernc.org/sqlite"
)

// timeLayout is fixed-width so TEXT comparison orders like time.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func foldCategory(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// SQLiteRepository is the ledger's persistent store: transactions, budgets
// and the attachment cleanup queue share one database file.
type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	now     func() time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		now:     time.Now,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) Insert(ctx context.Context, t core.Transaction) error {
	err := r.queries.CreateTransaction(ctx, CreateTransactionParams{
		ID:            t.ID,
		OwnerID:       t.OwnerID,
		Type:          string(t.Type),
		AmountMinor:   t.Amount.Minor,
		Currency:      t.Currency,
		Category:      t.Category,
		CategoryFold:  foldCategory(t.Category),
		Date:          formatTime(t.Date),
		PaymentMethod: t.PaymentMethod,
		Notes:         t.Notes,
		Status:        string(t.Status),
		AttachmentRef: nullString(t.AttachmentRef),
		CreatedAt:     formatTime(t.CreatedAt),
		UpdatedAt:     formatTime(t.UpdatedAt),
	})
	if err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, ownerID, id string) (core.Transaction, error) {
	row, err := r.queries.GetTransaction(ctx, ownerID, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return row.toCore()
}

func (r *SQLiteRepository) List(ctx context.Context, ownerID string, f core.Filter, p core.Page) (core.TransactionPage, error) {
	arg := ListTransactionsParams{
		OwnerID:      ownerID,
		Type:         string(f.Type),
		Status:       strings.TrimSpace(string(f.Status)),
		CategoryFold: foldCategory(f.Category),
		Limit:        int64(p.Size),
		Offset:       int64(p.Offset()),
	}

	total, err := r.queries.CountTransactions(ctx, arg)
	if err != nil {
		return core.TransactionPage{}, fmt.Errorf("count transactions: %w", err)
	}
	rows, err := r.queries.ListTransactions(ctx, arg)
	if err != nil {
		return core.TransactionPage{}, fmt.Errorf("list transactions: %w", err)
	}

	items := make([]core.Transaction, 0, len(rows))
	for _, row := range rows {
		t, err := row.toCore()
		if err != nil {
			return core.TransactionPage{}, err
		}
		items = append(items, t)
	}
	return core.TransactionPage{Transactions: items, Page: p, TotalItems: total}, nil
}

// Update overwrites every mutable field, the attachment ref included.
func (r *SQLiteRepository) Update(ctx context.Context, t core.Transaction) error {
	n, err := r.queries.UpdateTransaction(ctx, UpdateTransactionParams{
		Type:          string(t.Type),
		AmountMinor:   t.Amount.Minor,
		Currency:      t.Currency,
		Category:      t.Category,
		CategoryFold:  foldCategory(t.Category),
		Date:          formatTime(t.Date),
		PaymentMethod: t.PaymentMethod,
		Notes:         t.Notes,
		Status:        string(t.Status),
		AttachmentRef: nullString(t.AttachmentRef),
		UpdatedAt:     formatTime(t.UpdatedAt),
		OwnerID:       t.OwnerID,
		ID:            t.ID,
	})
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) SetAttachment(ctx context.Context, ownerID, id string, ref *string, updatedAt time.Time) error {
	n, err := r.queries.SetAttachmentRef(ctx, nullString(ref), formatTime(updatedAt), ownerID, id)
	if err != nil {
		return fmt.Errorf("set attachment ref: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, ownerID, id string) error {
	n, err := r.queries.DeleteTransaction(ctx, ownerID, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// Summary implements ports.StatsReader.
func (r *SQLiteRepository) Summary(ctx context.Context, ownerID string) (core.Summary, error) {
	row, err := r.queries.GetSummary(ctx, ownerID)
	if err != nil {
		return core.Summary{}, fmt.Errorf("get summary: %w", err)
	}
	return core.Summary{
		TotalIncome:       core.Money{Minor: row.IncomeMinor},
		TotalExpenses:     core.Money{Minor: row.ExpenseMinor},
		PendingCount:      row.PendingCount,
		TotalTransactions: row.TotalCount,
		Balance:           core.Money{Minor: row.IncomeMinor - row.ExpenseMinor},
	}, nil
}

// PeriodTotals implements ports.StatsReader.
func (r *SQLiteRepository) PeriodTotals(ctx context.Context, ownerID string, start, end time.Time) (core.PeriodTotals, error) {
	from, to := formatTime(start), formatTime(end)
	income, expenses, err := r.queries.GetPeriodTotals(ctx, ownerID, from, to)
	if err != nil {
		return core.PeriodTotals{}, fmt.Errorf("get period totals: %w", err)
	}
	cats, err := r.queries.GetCategoryExpenses(ctx, ownerID, from, to)
	if err != nil {
		return core.PeriodTotals{}, fmt.Errorf("get category expenses: %w", err)
	}

	totals := core.PeriodTotals{
		Income:     core.Money{Minor: income},
		Expenses:   core.Money{Minor: expenses},
		ByCategory: make([]core.CategoryAmount, 0, len(cats)),
	}
	for _, c := range cats {
		totals.ByCategory = append(totals.ByCategory, core.CategoryAmount{
			Name:   c.Category,
			Amount: core.Money{Minor: c.TotalMinor},
		})
	}
	return totals, nil
}

func (row TransactionRow) toCore() (core.Transaction, error) {
	t := core.Transaction{
		ID:            row.ID,
		OwnerID:       row.OwnerID,
		Type:          core.TransactionType(row.Type),
		Amount:        core.Money{Minor: row.AmountMinor},
		Currency:      row.Currency,
		Category:      row.Category,
		PaymentMethod: row.PaymentMethod,
		Notes:         row.Notes,
		Status:        core.TransactionStatus(row.Status),
	}
	if row.AttachmentRef.Valid {
		ref := row.AttachmentRef.String
		t.AttachmentRef = &ref
	}
	var err error
	if t.Date, err = parseTime(row.Date); err != nil {
		return core.Transaction{}, fmt.Errorf("parse date of %s: %w", row.ID, err)
	}
	if t.CreatedAt, err = parseTime(row.CreatedAt); err != nil {
		return core.Transaction{}, fmt.Errorf("parse created_at of %s: %w", row.ID, err)
	}
	if t.UpdatedAt, err = parseTime(row.UpdatedAt); err != nil {
		return core.Transaction{}, fmt.Errorf("parse updated_at of %s: %w", row.ID, err)
	}
	return t, nil
}

func nullString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
