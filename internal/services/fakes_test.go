package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"moneytracker/internal/attachments"
	"moneytracker/internal/core"
	"moneytracker/internal/storage"
)

var errBoom = errors.New("boom")

// memStore is an in-memory AttachmentStore with switchable failures.
type memStore struct {
	mu         sync.Mutex
	blobs      map[string][]byte
	uploads    int
	deletes    []string
	failUpload bool
	failDelete bool
	onUpload   func()
}

func newMemStore() *memStore {
	return &memStore{blobs: map[string][]byte{}}
}

func (m *memStore) EnsureContainer(context.Context) error { return nil }

func (m *memStore) Upload(ctx context.Context, data []byte, name, _ string, owner, tx string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploads++
	if m.onUpload != nil {
		m.onUpload()
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if m.failUpload {
		return "", &core.StorageError{Op: "upload", Err: errBoom}
	}
	ref := "mem://" + attachments.ObjectKey(owner, tx, name)
	m.blobs[ref] = data
	return ref, nil
}

func (m *memStore) Delete(_ context.Context, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes = append(m.deletes, ref)
	if m.failDelete {
		return &core.StorageError{Op: "delete", Err: errBoom}
	}
	delete(m.blobs, ref)
	return nil
}

func (m *memStore) has(ref string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.blobs[ref]
	return ok
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.blobs)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []core.LedgerEvent
	fail   bool
}

func (p *recordingPublisher) PublishLedgerEvent(_ context.Context, e core.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errBoom
	}
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) kinds() []core.EventKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]core.EventKind, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Kind)
	}
	return out
}

// flakyRepo lets a test fail individual repository writes.
type flakyRepo struct {
	*storage.SQLiteRepository
	setAttachmentErr error
	updateErr        error
}

func (r *flakyRepo) SetAttachment(ctx context.Context, owner, id string, ref *string, at time.Time) error {
	if r.setAttachmentErr != nil && ref != nil {
		return r.setAttachmentErr
	}
	return r.SQLiteRepository.SetAttachment(ctx, owner, id, ref, at)
}

func (r *flakyRepo) Update(ctx context.Context, t core.Transaction) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	return r.SQLiteRepository.Update(ctx, t)
}

type ledgerFixture struct {
	repo    *flakyRepo
	store   *memStore
	events  *recordingPublisher
	ledger  *LedgerService
	changed []string
}

func newLedgerFixture(t *testing.T) *ledgerFixture {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	f := &ledgerFixture{
		repo:   &flakyRepo{SQLiteRepository: repo},
		store:  newMemStore(),
		events: &recordingPublisher{},
	}
	cfg := DefaultLedgerConfig()
	cfg.CompensationTimeout = 5 * time.Second
	f.ledger = NewLedgerService(f.repo, f.store, f.events, repo, cfg)
	f.ledger.OnChange(func(owner string) { f.changed = append(f.changed, owner) })
	return f
}

func (f *ledgerFixture) count(t *testing.T, owner string) int64 {
	t.Helper()
	page, err := f.repo.List(context.Background(), owner, core.Filter{}, core.Page{Number: 1, Size: 1})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	return page.TotalItems
}

func pngUpload(name string) *core.Upload {
	data := []byte("\x89PNG fake")
	return &core.Upload{Filename: name, ContentType: "image/png", Size: int64(len(data)), Data: data}
}

func expense(minor int64, category string) core.NewTransaction {
	return core.NewTransaction{Type: core.Expense, Amount: core.Money{Minor: minor}, Category: category}
}
