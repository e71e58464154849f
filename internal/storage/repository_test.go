package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"moneytracker/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "ledger.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func testTx(id, owner string, typ core.TransactionType, minor int64, category string, at time.Time) core.Transaction {
	return core.Transaction{
		ID:            id,
		OwnerID:       owner,
		Type:          typ,
		Amount:        core.Money{Minor: minor},
		Currency:      "USD",
		Category:      category,
		Date:          at,
		PaymentMethod: "cash",
		Status:        core.Completed,
		CreatedAt:     at,
		UpdatedAt:     at,
	}
}

func TestMigrationsApplied(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	repo, err := NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	defer repo.Close()

	v, dirty, err := SchemaVersion(path)
	if err != nil {
		t.Fatalf("schema version: %v", err)
	}
	if v != 4 || dirty {
		t.Fatalf("expected clean version 4, got %d dirty=%v", v, dirty)
	}
	// Re-running is a no-op.
	if err := RunMigrations(path); err != nil {
		t.Fatalf("second migration run: %v", err)
	}
}

func TestInsertGetRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	at := time.Date(2025, 4, 2, 9, 30, 15, 123456789, time.UTC)
	ref := "/attachments/transactions/u1/t1/receipt.png"
	in := testTx("t1", "u1", core.Expense, 4999, "Groceries", at)
	in.Notes = "weekly shop"
	in.AttachmentRef = &ref
	if err := repo.Insert(ctx, in); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := repo.Get(ctx, "u1", "t1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Amount != in.Amount || got.Category != in.Category || got.Notes != in.Notes || got.Type != in.Type {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if !got.Date.Equal(at) || !got.CreatedAt.Equal(at) {
		t.Fatalf("timestamps not preserved: %v %v", got.Date, got.CreatedAt)
	}
	if got.AttachmentRef == nil || *got.AttachmentRef != ref {
		t.Fatalf("attachment ref not preserved: %v", got.AttachmentRef)
	}

	if _, err := repo.Get(ctx, "u2", "t1"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("other owner should see not found, got %v", err)
	}
	if _, err := repo.Get(ctx, "u1", "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListPaginationAndOrder(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 15; i++ {
		tx := testTx(fmt.Sprintf("t%02d", i), "u1", core.Expense, 100, "Food", base.Add(time.Duration(i)*time.Minute))
		if err := repo.Insert(ctx, tx); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}
	if err := repo.Insert(ctx, testTx("other", "u2", core.Expense, 100, "Food", base)); err != nil {
		t.Fatalf("insert other owner: %v", err)
	}

	page, err := repo.List(ctx, "u1", core.Filter{}, core.Page{Number: 2, Size: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Transactions) != 5 || page.TotalItems != 15 || page.TotalPages() != 2 {
		t.Fatalf("expected 5 items of 15 over 2 pages, got %d/%d/%d", len(page.Transactions), page.TotalItems, page.TotalPages())
	}
	if page.Transactions[0].ID != "t04" || page.Transactions[4].ID != "t00" {
		t.Fatalf("unexpected order: first=%s last=%s", page.Transactions[0].ID, page.Transactions[4].ID)
	}
}

func TestListTiesBrokenByInsertOrder(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for _, id := range []string{"a", "b", "c"} {
		if err := repo.Insert(ctx, testTx(id, "u1", core.Income, 100, "Salary", at)); err != nil {
			t.Fatalf("insert %s: %v", id, err)
		}
	}
	page, err := repo.List(ctx, "u1", core.Filter{}, core.Page{Number: 1, Size: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var ids string
	for _, tx := range page.Transactions {
		ids += tx.ID
	}
	if ids != "cba" {
		t.Fatalf("expected newest insert first, got %q", ids)
	}
}

func TestListFilters(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	at := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

	rows := []core.Transaction{
		testTx("1", "u1", core.Expense, 100, "Groceries", at),
		testTx("2", "u1", core.Expense, 100, "Home GROCERY run", at),
		testTx("3", "u1", core.Income, 100, "Salary", at),
		testTx("4", "u1", core.Expense, 100, "Rent", at),
	}
	rows[3].Status = core.Pending
	for _, tx := range rows {
		if err := repo.Insert(ctx, tx); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	cases := []struct {
		name   string
		filter core.Filter
		want   int64
	}{
		{"all", core.Filter{}, 4},
		{"type", core.Filter{Type: core.Income}, 1},
		{"status", core.Filter{Status: core.Pending}, 1},
		{"category substring", core.Filter{Category: "grocer"}, 2},
		{"category pattern chars are literal", core.Filter{Category: "gro.*"}, 0},
		{"combined", core.Filter{Type: core.Expense, Status: core.Completed, Category: "groceries"}, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			page, err := repo.List(ctx, "u1", tc.filter, core.Page{Number: 1, Size: 10})
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if page.TotalItems != tc.want || int64(len(page.Transactions)) != tc.want {
				t.Fatalf("expected %d matches, got %d (%d rows)", tc.want, page.TotalItems, len(page.Transactions))
			}
		})
	}
}

func TestUpdateSetAttachmentDelete(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	at := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	ref := "gs://old"

	tx := testTx("t1", "u1", core.Expense, 100, "Food", at)
	tx.AttachmentRef = &ref
	if err := repo.Insert(ctx, tx); err != nil {
		t.Fatalf("insert: %v", err)
	}

	newRef := "gs://new"
	tx.Notes = "changed"
	tx.AttachmentRef = &newRef
	tx.UpdatedAt = at.Add(time.Hour)
	if err := repo.Update(ctx, tx); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ := repo.Get(ctx, "u1", "t1")
	if got.Notes != "changed" || got.AttachmentRef == nil || *got.AttachmentRef != newRef {
		t.Fatalf("update not applied: %+v", got)
	}
	if !got.UpdatedAt.Equal(at.Add(time.Hour)) || !got.CreatedAt.Equal(at) {
		t.Fatalf("timestamps wrong: created=%v updated=%v", got.CreatedAt, got.UpdatedAt)
	}

	if err := repo.SetAttachment(ctx, "u1", "t1", nil, at.Add(2*time.Hour)); err != nil {
		t.Fatalf("clear attachment: %v", err)
	}
	got, _ = repo.Get(ctx, "u1", "t1")
	if got.HasAttachment() {
		t.Fatalf("attachment should be cleared")
	}

	other := tx
	other.OwnerID = "u2"
	if err := repo.Update(ctx, other); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("cross-owner update should be not found, got %v", err)
	}
	if err := repo.SetAttachment(ctx, "u2", "t1", &ref, at); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("cross-owner set attachment should be not found, got %v", err)
	}
	if err := repo.Delete(ctx, "u2", "t1"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("cross-owner delete should be not found, got %v", err)
	}

	if err := repo.Delete(ctx, "u1", "t1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := repo.Delete(ctx, "u1", "t1"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("second delete should be not found, got %v", err)
	}
}

func TestSummary(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	s, err := repo.Summary(ctx, "nobody")
	if err != nil {
		t.Fatalf("empty summary: %v", err)
	}
	if s != (core.Summary{}) {
		t.Fatalf("expected zero summary, got %+v", s)
	}

	at := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	pending := testTx("p", "u1", core.Expense, 5000, "Travel", at)
	pending.Status = core.Pending
	for _, tx := range []core.Transaction{
		testTx("i", "u1", core.Income, 100000, "Salary", at),
		testTx("e", "u1", core.Expense, 30000, "Rent", at),
		pending,
		testTx("x", "u2", core.Income, 999, "Other owner", at),
	} {
		if err := repo.Insert(ctx, tx); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	s, err = repo.Summary(ctx, "u1")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	want := core.Summary{
		TotalIncome:       core.Money{Minor: 100000},
		TotalExpenses:     core.Money{Minor: 30000},
		PendingCount:      1,
		TotalTransactions: 3,
		Balance:           core.Money{Minor: 70000},
	}
	if s != want {
		t.Fatalf("expected %+v, got %+v", want, s)
	}
}

func TestPeriodTotals(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	day := func(d int) time.Time { return time.Date(2025, 6, d, 12, 0, 0, 0, time.UTC) }

	for _, tx := range []core.Transaction{
		testTx("1", "u1", core.Income, 10000, "Salary", day(2)),
		testTx("2", "u1", core.Expense, 2000, "Food", day(3)),
		testTx("3", "u1", core.Expense, 500, "Food", day(4)),
		testTx("4", "u1", core.Expense, 4000, "Rent", day(5)),
		testTx("5", "u1", core.Expense, 9999, "Outside", day(20)),
	} {
		if err := repo.Insert(ctx, tx); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	totals, err := repo.PeriodTotals(ctx, "u1", day(1), day(10))
	if err != nil {
		t.Fatalf("period totals: %v", err)
	}
	if totals.Income.Minor != 10000 || totals.Expenses.Minor != 6500 {
		t.Fatalf("unexpected totals %+v", totals)
	}
	if len(totals.ByCategory) != 2 || totals.ByCategory[0].Name != "Rent" || totals.ByCategory[1].Amount.Minor != 2500 {
		t.Fatalf("unexpected categories %+v", totals.ByCategory)
	}
}

func TestBudgets(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Date(2025, 7, 15, 0, 0, 0, 0, time.UTC)

	b := core.Budget{ID: "b1", OwnerID: "u1", Category: "Food", Limit: core.Money{Minor: 10000}, Period: core.BudgetMonthly, WarningThreshold: 80, CreatedAt: now}
	if err := repo.InsertBudget(ctx, b); err != nil {
		t.Fatalf("insert budget: %v", err)
	}
	list, err := repo.ListBudgets(ctx, "u1")
	if err != nil || len(list) != 1 || list[0].Limit.Minor != 10000 || list[0].Period != core.BudgetMonthly {
		t.Fatalf("unexpected budgets %+v (err=%v)", list, err)
	}
	if list, _ := repo.ListBudgets(ctx, "u2"); len(list) != 0 {
		t.Fatalf("budgets leaked across owners: %+v", list)
	}

	pending := testTx("3", "u1", core.Expense, 7000, "food", now)
	pending.Status = core.Pending
	for _, tx := range []core.Transaction{
		testTx("1", "u1", core.Expense, 6000, "FOOD", now),
		testTx("2", "u1", core.Expense, 3000, "Food", now.AddDate(0, -1, 0)),
		pending,
	} {
		if err := repo.Insert(ctx, tx); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	start, end := b.Period.Window(now)
	spent, err := repo.CategorySpend(ctx, "u1", "Food", start, end)
	if err != nil {
		t.Fatalf("category spend: %v", err)
	}
	if spent.Minor != 6000 {
		t.Fatalf("expected 6000, got %d", spent.Minor)
	}

	if err := repo.DeleteBudget(ctx, "u2", "b1"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("cross-owner budget delete should be not found, got %v", err)
	}
	if err := repo.DeleteBudget(ctx, "u1", "b1"); err != nil {
		t.Fatalf("delete budget: %v", err)
	}
}

func TestCleanupQueue(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	clock := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return clock }

	id1, err := repo.EnqueueCleanup(ctx, "ref-1")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	id2, _ := repo.EnqueueCleanup(ctx, "ref-2")

	jobs, err := repo.ClaimCleanups(ctx, 1)
	if err != nil || len(jobs) != 1 || jobs[0].ID != id1 || jobs[0].Attempts != 1 || jobs[0].Status != core.CleanupProcessing {
		t.Fatalf("unexpected claim %+v (err=%v)", jobs, err)
	}
	if _, err := repo.ClaimCleanup(ctx, id1); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("claimed job must not be claimed twice, got %v", err)
	}
	job, err := repo.ClaimCleanup(ctx, id2)
	if err != nil || job.Ref != "ref-2" {
		t.Fatalf("claim by id: %+v %v", job, err)
	}

	if err := repo.MarkCleanupDone(ctx, id2); err != nil {
		t.Fatalf("mark done: %v", err)
	}

	// id1 fails until it runs out of retries.
	if err := repo.MarkCleanupRetry(ctx, id1, "boom", 2); err != nil {
		t.Fatalf("mark retry: %v", err)
	}
	if job, _ := repo.GetCleanup(ctx, id1); job.Status != core.CleanupPending || job.LastError != "boom" {
		t.Fatalf("expected pending after first failure, got %+v", job)
	}
	if jobs, _ := repo.ClaimCleanups(ctx, 10); len(jobs) != 1 {
		t.Fatalf("expected one reclaimable job, got %d", len(jobs))
	}
	if err := repo.MarkCleanupRetry(ctx, id1, "boom again", 2); err != nil {
		t.Fatalf("mark retry: %v", err)
	}
	if job, _ := repo.GetCleanup(ctx, id1); job.Status != core.CleanupFailed || job.Attempts != 2 {
		t.Fatalf("expected failed after max retries, got %+v", job)
	}

	// Stale processing jobs are handed back.
	id3, _ := repo.EnqueueCleanup(ctx, "ref-3")
	if _, err := repo.ClaimCleanups(ctx, 10); err != nil {
		t.Fatalf("claim: %v", err)
	}
	clock = clock.Add(time.Hour)
	n, err := repo.ResetStaleCleanups(ctx, 30*time.Minute)
	if err != nil || n != 1 {
		t.Fatalf("expected 1 reset, got %d (err=%v)", n, err)
	}
	if job, _ := repo.GetCleanup(ctx, id3); job.Status != core.CleanupPending {
		t.Fatalf("expected pending after reset, got %+v", job)
	}

	clock = clock.Add(48 * time.Hour)
	purged, err := repo.PurgeCleanups(ctx, 24*time.Hour)
	if err != nil || purged != 2 {
		t.Fatalf("expected done and failed jobs purged, got %d (err=%v)", purged, err)
	}
	if _, err := repo.GetCleanup(ctx, id3); err != nil {
		t.Fatalf("pending job must survive purge: %v", err)
	}
}

func TestAttachmentInUse(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	at := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	ref := "gs://bucket/receipt.png"

	if inUse, err := repo.AttachmentInUse(ctx, ref); err != nil || inUse {
		t.Fatalf("empty table: inUse=%v err=%v", inUse, err)
	}
	tx := testTx("t1", "u1", core.Expense, 100, "Food", at)
	tx.AttachmentRef = &ref
	if err := repo.Insert(ctx, tx); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if inUse, err := repo.AttachmentInUse(ctx, ref); err != nil || !inUse {
		t.Fatalf("referenced blob: inUse=%v err=%v", inUse, err)
	}
	if err := repo.SetAttachment(ctx, "u1", "t1", nil, at); err != nil {
		t.Fatalf("clear attachment: %v", err)
	}
	if inUse, _ := repo.AttachmentInUse(ctx, ref); inUse {
		t.Fatal("cleared ref must not be in use")
	}
}
