package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

// TransactionRow mirrors the transactions table.
type TransactionRow struct {
	Seq           int64
	ID            string
	OwnerID       string
	Type          string
	AmountMinor   int64
	Currency      string
	Category      string
	Date          string
	PaymentMethod string
	Notes         string
	Status        string
	AttachmentRef sql.NullString
	CreatedAt     string
	UpdatedAt     string
}

const transactionColumns = `seq, id, owner_id, type, amount_minor, currency, category, date,
       payment_method, notes, status, attachment_ref, created_at, updated_at`

func scanTransaction(sc interface{ Scan(...any) error }) (TransactionRow, error) {
	var r TransactionRow
	err := sc.Scan(&r.Seq, &r.ID, &r.OwnerID, &r.Type, &r.AmountMinor, &r.Currency, &r.Category, &r.Date,
		&r.PaymentMethod, &r.Notes, &r.Status, &r.AttachmentRef, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

const createTransaction = `
INSERT INTO transactions (id, owner_id, type, amount_minor, currency, category, category_fold, date,
                          payment_method, notes, status, attachment_ref, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

type CreateTransactionParams struct {
	ID            string
	OwnerID       string
	Type          string
	AmountMinor   int64
	Currency      string
	Category      string
	CategoryFold  string
	Date          string
	PaymentMethod string
	Notes         string
	Status        string
	AttachmentRef sql.NullString
	CreatedAt     string
	UpdatedAt     string
}

func (q *Queries) CreateTransaction(ctx context.Context, arg CreateTransactionParams) error {
	_, err := q.db.ExecContext(ctx, createTransaction,
		arg.ID, arg.OwnerID, arg.Type, arg.AmountMinor, arg.Currency, arg.Category, arg.CategoryFold, arg.Date,
		arg.PaymentMethod, arg.Notes, arg.Status, arg.AttachmentRef, arg.CreatedAt, arg.UpdatedAt)
	return err
}

const getTransaction = `SELECT ` + transactionColumns + ` FROM transactions WHERE owner_id = ? AND id = ?`

func (q *Queries) GetTransaction(ctx context.Context, ownerID, id string) (TransactionRow, error) {
	return scanTransaction(q.db.QueryRowContext(ctx, getTransaction, ownerID, id))
}

const listFilter = `
WHERE owner_id = ?
  AND (? = '' OR type = ?)
  AND (? = '' OR status = ?)
  AND (? = '' OR instr(category_fold, ?) > 0)`

type ListTransactionsParams struct {
	OwnerID      string
	Type         string
	Status       string
	CategoryFold string
	Limit        int64
	Offset       int64
}

func (arg ListTransactionsParams) filterArgs() []interface{} {
	return []interface{}{arg.OwnerID, arg.Type, arg.Type, arg.Status, arg.Status, arg.CategoryFold, arg.CategoryFold}
}

const listTransactions = `SELECT ` + transactionColumns + ` FROM transactions` + listFilter + `
ORDER BY created_at DESC, seq DESC
LIMIT ? OFFSET ?`

func (q *Queries) ListTransactions(ctx context.Context, arg ListTransactionsParams) ([]TransactionRow, error) {
	args := append(arg.filterArgs(), arg.Limit, arg.Offset)
	rows, err := q.db.QueryContext(ctx, listTransactions, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []TransactionRow
	for rows.Next() {
		r, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

const countTransactions = `SELECT COUNT(*) FROM transactions` + listFilter

func (q *Queries) CountTransactions(ctx context.Context, arg ListTransactionsParams) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countTransactions, arg.filterArgs()...).Scan(&n)
	return n, err
}

const updateTransaction = `
UPDATE transactions
SET type = ?, amount_minor = ?, currency = ?, category = ?, category_fold = ?, date = ?,
    payment_method = ?, notes = ?, status = ?, attachment_ref = ?, updated_at = ?
WHERE owner_id = ? AND id = ?`

type UpdateTransactionParams struct {
	Type          string
	AmountMinor   int64
	Currency      string
	Category      string
	CategoryFold  string
	Date          string
	PaymentMethod string
	Notes         string
	Status        string
	AttachmentRef sql.NullString
	UpdatedAt     string
	OwnerID       string
	ID            string
}

func (q *Queries) UpdateTransaction(ctx context.Context, arg UpdateTransactionParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateTransaction,
		arg.Type, arg.AmountMinor, arg.Currency, arg.Category, arg.CategoryFold, arg.Date,
		arg.PaymentMethod, arg.Notes, arg.Status, arg.AttachmentRef, arg.UpdatedAt, arg.OwnerID, arg.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const setAttachmentRef = `UPDATE transactions SET attachment_ref = ?, updated_at = ? WHERE owner_id = ? AND id = ?`

func (q *Queries) SetAttachmentRef(ctx context.Context, ref sql.NullString, updatedAt, ownerID, id string) (int64, error) {
	res, err := q.db.ExecContext(ctx, setAttachmentRef, ref, updatedAt, ownerID, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const attachmentInUse = `SELECT EXISTS (SELECT 1 FROM transactions WHERE attachment_ref = ?)`

func (q *Queries) AttachmentInUse(ctx context.Context, ref string) (bool, error) {
	var inUse bool
	err := q.db.QueryRowContext(ctx, attachmentInUse, ref).Scan(&inUse)
	return inUse, err
}

const deleteTransaction = `DELETE FROM transactions WHERE owner_id = ? AND id = ?`

func (q *Queries) DeleteTransaction(ctx context.Context, ownerID, id string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteTransaction, ownerID, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const getSummary = `
SELECT
    COALESCE(SUM(CASE WHEN type = 'income'  AND status = 'completed' THEN amount_minor ELSE 0 END), 0),
    COALESCE(SUM(CASE WHEN type = 'expense' AND status = 'completed' THEN amount_minor ELSE 0 END), 0),
    COALESCE(SUM(CASE WHEN status = 'pending' THEN 1 ELSE 0 END), 0),
    COUNT(*)
FROM transactions
WHERE owner_id = ?`

type SummaryRow struct {
	IncomeMinor  int64
	ExpenseMinor int64
	PendingCount int64
	TotalCount   int64
}

func (q *Queries) GetSummary(ctx context.Context, ownerID string) (SummaryRow, error) {
	var r SummaryRow
	err := q.db.QueryRowContext(ctx, getSummary, ownerID).Scan(&r.IncomeMinor, &r.ExpenseMinor, &r.PendingCount, &r.TotalCount)
	return r, err
}

const getPeriodTotals = `
SELECT
    COALESCE(SUM(CASE WHEN type = 'income'  THEN amount_minor ELSE 0 END), 0),
    COALESCE(SUM(CASE WHEN type = 'expense' THEN amount_minor ELSE 0 END), 0)
FROM transactions
WHERE owner_id = ? AND date >= ? AND date < ?`

func (q *Queries) GetPeriodTotals(ctx context.Context, ownerID, start, end string) (income, expenses int64, err error) {
	err = q.db.QueryRowContext(ctx, getPeriodTotals, ownerID, start, end).Scan(&income, &expenses)
	return income, expenses, err
}

const getCategoryExpenses = `
SELECT category, SUM(amount_minor) AS total
FROM transactions
WHERE owner_id = ? AND type = 'expense' AND date >= ? AND date < ?
GROUP BY category
ORDER BY total DESC, category`

type CategorySumRow struct {
	Category   string
	TotalMinor int64
}

func (q *Queries) GetCategoryExpenses(ctx context.Context, ownerID, start, end string) ([]CategorySumRow, error) {
	rows, err := q.db.QueryContext(ctx, getCategoryExpenses, ownerID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CategorySumRow
	for rows.Next() {
		var r CategorySumRow
		if err := rows.Scan(&r.Category, &r.TotalMinor); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

// Budgets

type BudgetRow struct {
	ID               string
	OwnerID          string
	Category         string
	LimitMinor       int64
	Period           string
	WarningThreshold int64
	CreatedAt        string
}

const listBudgets = `
SELECT id, owner_id, category, limit_minor, period, warning_threshold, created_at
FROM budgets
WHERE owner_id = ?
ORDER BY created_at, id`

func (q *Queries) ListBudgets(ctx context.Context, ownerID string) ([]BudgetRow, error) {
	rows, err := q.db.QueryContext(ctx, listBudgets, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []BudgetRow
	for rows.Next() {
		var r BudgetRow
		if err := rows.Scan(&r.ID, &r.OwnerID, &r.Category, &r.LimitMinor, &r.Period, &r.WarningThreshold, &r.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

const createBudget = `
INSERT INTO budgets (id, owner_id, category, category_fold, limit_minor, period, warning_threshold, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateBudget(ctx context.Context, r BudgetRow, categoryFold string) error {
	_, err := q.db.ExecContext(ctx, createBudget,
		r.ID, r.OwnerID, r.Category, categoryFold, r.LimitMinor, r.Period, r.WarningThreshold, r.CreatedAt)
	return err
}

const deleteBudget = `DELETE FROM budgets WHERE owner_id = ? AND id = ?`

func (q *Queries) DeleteBudget(ctx context.Context, ownerID, id string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteBudget, ownerID, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const getCategorySpend = `
SELECT COALESCE(SUM(amount_minor), 0)
FROM transactions
WHERE owner_id = ? AND type = 'expense' AND status = 'completed'
  AND category_fold = ? AND date >= ? AND date < ?`

func (q *Queries) GetCategorySpend(ctx context.Context, ownerID, categoryFold, start, end string) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, getCategorySpend, ownerID, categoryFold, start, end).Scan(&n)
	return n, err
}

// Attachment cleanup queue

type CleanupRow struct {
	ID        int64
	Ref       string
	Status    string
	Attempts  int64
	LastError string
	CreatedAt string
	UpdatedAt string
}

const cleanupColumns = `id, ref, status, attempts, last_error, created_at, updated_at`

func scanCleanup(sc interface{ Scan(...any) error }) (CleanupRow, error) {
	var r CleanupRow
	err := sc.Scan(&r.ID, &r.Ref, &r.Status, &r.Attempts, &r.LastError, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

const enqueueCleanup = `
INSERT INTO attachment_cleanup (ref, status, created_at, updated_at)
VALUES (?, 'pending', ?, ?)
RETURNING id`

func (q *Queries) EnqueueCleanup(ctx context.Context, ref, now string) (int64, error) {
	var id int64
	err := q.db.QueryRowContext(ctx, enqueueCleanup, ref, now, now).Scan(&id)
	return id, err
}

const getCleanup = `SELECT ` + cleanupColumns + ` FROM attachment_cleanup WHERE id = ?`

func (q *Queries) GetCleanup(ctx context.Context, id int64) (CleanupRow, error) {
	return scanCleanup(q.db.QueryRowContext(ctx, getCleanup, id))
}

const claimCleanups = `
UPDATE attachment_cleanup
SET status = 'processing', attempts = attempts + 1, updated_at = ?
WHERE id IN (
    SELECT id FROM attachment_cleanup
    WHERE status = 'pending'
    ORDER BY created_at, id
    LIMIT ?
)
RETURNING ` + cleanupColumns

func (q *Queries) ClaimCleanups(ctx context.Context, now string, limit int64) ([]CleanupRow, error) {
	rows, err := q.db.QueryContext(ctx, claimCleanups, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CleanupRow
	for rows.Next() {
		r, err := scanCleanup(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

const claimCleanup = `
UPDATE attachment_cleanup
SET status = 'processing', attempts = attempts + 1, updated_at = ?
WHERE id = ? AND status = 'pending'
RETURNING ` + cleanupColumns

func (q *Queries) ClaimCleanup(ctx context.Context, now string, id int64) (CleanupRow, error) {
	return scanCleanup(q.db.QueryRowContext(ctx, claimCleanup, now, id))
}

const markCleanupDone = `UPDATE attachment_cleanup SET status = 'done', last_error = '', updated_at = ? WHERE id = ?`

func (q *Queries) MarkCleanupDone(ctx context.Context, now string, id int64) error {
	_, err := q.db.ExecContext(ctx, markCleanupDone, now, id)
	return err
}

const markCleanupRetry = `
UPDATE attachment_cleanup
SET status = CASE WHEN attempts >= ? THEN 'failed' ELSE 'pending' END,
    last_error = ?, updated_at = ?
WHERE id = ?`

func (q *Queries) MarkCleanupRetry(ctx context.Context, maxAttempts int64, cause, now string, id int64) error {
	_, err := q.db.ExecContext(ctx, markCleanupRetry, maxAttempts, cause, now, id)
	return err
}

const resetStaleCleanups = `
UPDATE attachment_cleanup SET status = 'pending', updated_at = ?
WHERE status = 'processing' AND updated_at < ?`

func (q *Queries) ResetStaleCleanups(ctx context.Context, now, cutoff string) (int64, error) {
	res, err := q.db.ExecContext(ctx, resetStaleCleanups, now, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const purgeCleanups = `DELETE FROM attachment_cleanup WHERE status IN ('done', 'failed') AND updated_at < ?`

func (q *Queries) PurgeCleanups(ctx context.Context, cutoff string) (int64, error) {
	res, err := q.db.ExecContext(ctx, purgeCleanups, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
