package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"moneytracker/internal/core"
)

func TestLRUCacheEviction(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a") // a is now most recent
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Fatal("b should have been evicted")
	}
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("a should survive, got %v %v", v, ok)
	}
	c.Set("a", 10)
	if v, _ := c.Get("a"); v != 10 || c.Size() != 2 {
		t.Fatalf("overwrite failed: %v size=%d", v, c.Size())
	}
	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Fatal("a should be deleted")
	}
	hits, misses := c.Stats()
	if hits != 3 || misses != 2 {
		t.Fatalf("Stats() = %d hits, %d misses", hits, misses)
	}
}

func TestLRUCacheExpiry(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewLRUCache[string](10, time.Minute)
	c.now = func() time.Time { return now }

	c.Set("a", "x")
	c.Set("b", "y")
	now = now.Add(30 * time.Second)
	c.Set("b", "z")

	now = now.Add(45 * time.Second)
	if _, ok := c.Get("a"); ok {
		t.Fatal("a should have expired")
	}

	m := NewManager()
	m.Register(c)
	now = now.Add(time.Minute)
	if n := m.CleanAll(); n != 1 || c.Size() != 0 {
		t.Fatalf("CleanAll() = %d, size %d", n, c.Size())
	}
	m.StartCleanup(time.Hour)
	m.Stop()
	m.Stop()
}

type countingFeed struct {
	calls  int
	err    error
	during func()
}

func (f *countingFeed) GetAlerts(context.Context, string) ([]core.BudgetAlert, error) {
	f.calls++
	if f.during != nil {
		f.during()
	}
	if f.err != nil {
		return nil, f.err
	}
	return []core.BudgetAlert{{Category: "Food", AlertType: core.AlertWarning}}, nil
}

func TestAlertFeed(t *testing.T) {
	inner := &countingFeed{}
	feed := NewAlertFeed(inner, 10, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		alerts, err := feed.GetAlerts(ctx, "u1")
		if err != nil || len(alerts) != 1 {
			t.Fatalf("GetAlerts: %v %v", alerts, err)
		}
	}
	if inner.calls != 1 {
		t.Fatalf("expected one upstream call, got %d", inner.calls)
	}

	feed.GetAlerts(ctx, "u2")
	feed.Invalidate("u1")
	feed.GetAlerts(ctx, "u1")
	if inner.calls != 3 {
		t.Fatalf("expected refetch after invalidation, got %d calls", inner.calls)
	}

	inner.err = errors.New("db down")
	feed.Invalidate("u1")
	if _, err := feed.GetAlerts(ctx, "u1"); err == nil {
		t.Fatal("upstream errors must not be cached as empty results")
	}
	if feed.Cache().Size() != 1 {
		t.Fatalf("only u2 should be cached, size %d", feed.Cache().Size())
	}
}

func TestAlertFeedInvalidationDuringFetch(t *testing.T) {
	inner := &countingFeed{}
	feed := NewAlertFeed(inner, 10, time.Minute)
	ctx := context.Background()

	// A ledger change lands while the alerts are being computed.
	inner.during = func() { feed.Invalidate("u1") }
	if _, err := feed.GetAlerts(ctx, "u1"); err != nil {
		t.Fatalf("GetAlerts: %v", err)
	}
	if feed.Cache().Size() != 0 {
		t.Fatal("a result computed across an invalidation must not be cached")
	}

	inner.during = nil
	feed.GetAlerts(ctx, "u1")
	feed.GetAlerts(ctx, "u1")
	if inner.calls != 2 {
		t.Fatalf("expected the next fetch to be cached, got %d calls", inner.calls)
	}
}
