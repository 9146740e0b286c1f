package accounts

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// memRepo is an in-memory Repository; WithTx serialises callers the way row
// locks would and discards writes of failed transactions.
type memRepo struct {
	mu       sync.Mutex
	nextID   int64
	accounts map[int64]Account
	posted   map[int64]bool
	drafted  map[int64]bool
}

func newMemRepo() *memRepo {
	return &memRepo{accounts: map[int64]Account{}, posted: map[int64]bool{}, drafted: map[int64]bool{}}
}

func (m *memRepo) List(ctx context.Context, orgID int64) ([]Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&memTx{repo: m}).List(ctx, orgID)
}

func (m *memRepo) Get(ctx context.Context, orgID, id int64) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&memTx{repo: m}).Get(ctx, orgID, id)
}

func (m *memRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot := make(map[int64]Account, len(m.accounts))
	for k, v := range m.accounts {
		snapshot[k] = v
	}
	nextID := m.nextID
	if err := fn(ctx, &memTx{repo: m}); err != nil {
		m.accounts = snapshot
		m.nextID = nextID
		return err
	}
	return nil
}

type memTx struct {
	repo *memRepo
}

func (t *memTx) List(_ context.Context, orgID int64) ([]Account, error) {
	var out []Account
	for _, a := range t.repo.accounts {
		if a.OrganizationID == orgID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (t *memTx) Get(_ context.Context, orgID, id int64) (Account, error) {
	a, ok := t.repo.accounts[id]
	if !ok || a.OrganizationID != orgID {
		return Account{}, shared.ErrAccountNotFound
	}
	return a, nil
}

func (t *memTx) GetForUpdate(ctx context.Context, orgID, id int64) (Account, error) {
	return t.Get(ctx, orgID, id)
}

func (t *memTx) Insert(_ context.Context, a Account) (Account, error) {
	for _, existing := range t.repo.accounts {
		if existing.OrganizationID == a.OrganizationID && existing.Code == a.Code {
			return Account{}, shared.ErrDuplicateCode
		}
	}
	t.repo.nextID++
	a.ID = t.repo.nextID
	a.CreatedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	a.UpdatedAt = a.CreatedAt
	t.repo.accounts[a.ID] = a
	return a, nil
}

func (t *memTx) Update(_ context.Context, a Account) (Account, error) {
	current, ok := t.repo.accounts[a.ID]
	if !ok || current.OrganizationID != a.OrganizationID {
		return Account{}, shared.ErrAccountNotFound
	}
	for _, existing := range t.repo.accounts {
		if existing.ID != a.ID && existing.OrganizationID == a.OrganizationID && existing.Code == a.Code {
			return Account{}, shared.ErrDuplicateCode
		}
	}
	t.repo.accounts[a.ID] = a
	return a, nil
}

func (t *memTx) Delete(ctx context.Context, orgID, id int64) error {
	if _, err := t.Get(ctx, orgID, id); err != nil {
		return err
	}
	delete(t.repo.accounts, id)
	return nil
}

func (t *memTx) ReparentChildren(_ context.Context, orgID, id int64, parentID *int64) error {
	for k, a := range t.repo.accounts {
		if a.OrganizationID == orgID && a.ParentID != nil && *a.ParentID == id {
			a.ParentID = parentID
			t.repo.accounts[k] = a
		}
	}
	return nil
}

func (t *memTx) HasPostedLines(_ context.Context, _ int64, id int64) (bool, error) {
	return t.repo.posted[id], nil
}

func (t *memTx) HasLines(_ context.Context, _ int64, id int64) (bool, error) {
	return t.repo.posted[id] || t.repo.drafted[id], nil
}
