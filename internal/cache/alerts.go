package cache

import (
	"context"
	"sync"
	"time"

	"moneytracker/internal/core"
	"moneytracker/internal/ports"
)

var _ ports.BudgetAlertFeed = (*AlertFeed)(nil)

// AlertFeed memoizes budget alerts per owner. Entries are dropped when the
// owner's ledger or budgets change, and otherwise expire after the ttl so
// a new period is picked up.
type AlertFeed struct {
	inner ports.BudgetAlertFeed
	cache *LRUCache[[]core.BudgetAlert]

	// generation counts invalidations. A result computed across one is not
	// stored, since it may predate the change.
	mu         sync.Mutex
	generation uint64
}

func NewAlertFeed(inner ports.BudgetAlertFeed, maxOwners int, ttl time.Duration) *AlertFeed {
	return &AlertFeed{inner: inner, cache: NewLRUCache[[]core.BudgetAlert](maxOwners, ttl)}
}

func (f *AlertFeed) GetAlerts(ctx context.Context, ownerID string) ([]core.BudgetAlert, error) {
	if alerts, ok := f.cache.Get(ownerID); ok {
		return alerts, nil
	}
	f.mu.Lock()
	gen := f.generation
	f.mu.Unlock()

	alerts, err := f.inner.GetAlerts(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	if f.generation == gen {
		f.cache.Set(ownerID, alerts)
	}
	f.mu.Unlock()
	return alerts, nil
}

// Invalidate forgets the cached alerts of ownerID.
func (f *AlertFeed) Invalidate(ownerID string) {
	f.mu.Lock()
	f.generation++
	f.cache.Delete(ownerID)
	f.mu.Unlock()
}

// Cache exposes the underlying LRU for registration with a Manager.
func (f *AlertFeed) Cache() *LRUCache[[]core.BudgetAlert] {
	return f.cache
}
