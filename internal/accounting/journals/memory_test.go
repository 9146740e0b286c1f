package journals

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/tenant"
)

type memAccount struct {
	orgID int64
	ref   AccountRef
}

// memRepo is an in-memory Repository. WithTx holds a single mutex, so
// concurrent transactions run one after another and a failed one leaves no
// trace.
type memRepo struct {
	mu        sync.Mutex
	nextID    int64
	nextLine  int64
	entries   map[int64]JournalEntry
	accounts  map[int64]memAccount
	sequences map[int64]int64
}

func newMemRepo() *memRepo {
	return &memRepo{
		entries:   map[int64]JournalEntry{},
		accounts:  map[int64]memAccount{},
		sequences: map[int64]int64{},
	}
}

func (m *memRepo) addAccount(orgID, id int64, code string, posting bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[id] = memAccount{orgID: orgID, ref: AccountRef{ID: id, Code: code, IsPosting: posting, IsActive: true}}
}

func (m *memRepo) count(status Status) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.entries {
		if e.Status == status {
			n++
		}
	}
	return n
}

func visible(scope tenant.Scope, e JournalEntry) bool {
	if e.OrganizationID != scope.OrganizationID {
		return false
	}
	if scope.HasCompany() {
		return e.CompanyID != nil && *e.CompanyID == *scope.CompanyID
	}
	return true
}

func (m *memRepo) List(_ context.Context, scope tenant.Scope, filter ListFilter) ([]JournalEntry, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []JournalEntry
	for _, e := range m.entries {
		if !visible(scope, e) {
			continue
		}
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		if filter.From != nil && e.Date.Before(*filter.From) {
			continue
		}
		if filter.To != nil && e.Date.After(*filter.To) {
			continue
		}
		if filter.Query != "" && !strings.Contains(strings.ToLower(e.Description), strings.ToLower(filter.Query)) {
			continue
		}
		e.Lines = nil
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number > out[j].Number })
	total := len(out)
	start := (filter.Page - 1) * filter.PerPage
	if start > total {
		start = total
	}
	end := start + filter.PerPage
	if end > total {
		end = total
	}
	return out[start:end], total, nil
}

func (m *memRepo) Get(_ context.Context, scope tenant.Scope, id int64) (JournalEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok || !visible(scope, e) {
		return JournalEntry{}, shared.ErrJournalNotFound
	}
	return e, nil
}

func (m *memRepo) FindBySource(_ context.Context, scope tenant.Scope, sourceType, sourceID string) (JournalEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if visible(scope, e) && e.SourceType == sourceType && e.SourceID == sourceID {
			return e, nil
		}
	}
	return JournalEntry{}, shared.ErrJournalNotFound
}

func (m *memRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := make(map[int64]JournalEntry, len(m.entries))
	for k, v := range m.entries {
		entries[k] = v
	}
	sequences := make(map[int64]int64, len(m.sequences))
	for k, v := range m.sequences {
		sequences[k] = v
	}
	nextID, nextLine := m.nextID, m.nextLine
	if err := fn(ctx, &memTx{repo: m}); err != nil {
		m.entries, m.sequences = entries, sequences
		m.nextID, m.nextLine = nextID, nextLine
		return err
	}
	return nil
}

type memTx struct {
	repo *memRepo
}

func (t *memTx) NextNumber(_ context.Context, orgID int64) (int64, error) {
	t.repo.sequences[orgID]++
	return t.repo.sequences[orgID], nil
}

func (t *memTx) InsertEntry(_ context.Context, e JournalEntry) (JournalEntry, error) {
	for _, existing := range t.repo.entries {
		if e.SourceType != "" && existing.OrganizationID == e.OrganizationID &&
			existing.SourceType == e.SourceType && existing.SourceID == e.SourceID {
			return JournalEntry{}, shared.ErrSourceAlreadyLinked
		}
		if e.ReversalOfID != nil && existing.ReversalOfID != nil && *existing.ReversalOfID == *e.ReversalOfID {
			return JournalEntry{}, shared.ErrAlreadyVoided
		}
	}
	t.repo.nextID++
	e.ID = t.repo.nextID
	e.CreatedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	e.UpdatedAt = e.CreatedAt
	e.Lines = nil
	t.repo.entries[e.ID] = e
	return e, nil
}

func (t *memTx) InsertLines(_ context.Context, entryID int64, lines []JournalLine) ([]JournalLine, error) {
	e := t.repo.entries[entryID]
	out := make([]JournalLine, 0, len(lines))
	for idx, line := range lines {
		t.repo.nextLine++
		line.ID = t.repo.nextLine
		line.EntryID = entryID
		line.Position = idx + 1
		out = append(out, line)
	}
	e.Lines = append(append([]JournalLine(nil), e.Lines...), out...)
	t.repo.entries[entryID] = e
	return out, nil
}

func (t *memTx) DeleteLines(_ context.Context, entryID int64) error {
	e := t.repo.entries[entryID]
	e.Lines = nil
	t.repo.entries[entryID] = e
	return nil
}

func (t *memTx) DeleteEntry(_ context.Context, orgID, id int64) error {
	e, ok := t.repo.entries[id]
	if !ok || e.OrganizationID != orgID || e.Status != StatusDraft {
		return shared.ErrJournalNotFound
	}
	delete(t.repo.entries, id)
	return nil
}

func (t *memTx) UpdateHeader(_ context.Context, e JournalEntry) (JournalEntry, error) {
	current, ok := t.repo.entries[e.ID]
	if !ok || current.OrganizationID != e.OrganizationID || current.Status != StatusDraft {
		return JournalEntry{}, shared.ErrJournalNotFound
	}
	current.CompanyID = e.CompanyID
	current.Date = e.Date
	current.Description = e.Description
	current.SourceType = e.SourceType
	current.SourceID = e.SourceID
	t.repo.entries[e.ID] = current
	return current, nil
}

func (t *memTx) GetForUpdate(_ context.Context, scope tenant.Scope, id int64) (JournalEntry, error) {
	e, ok := t.repo.entries[id]
	if !ok || !visible(scope, e) {
		return JournalEntry{}, shared.ErrJournalNotFound
	}
	return e, nil
}

func (t *memTx) MarkPosted(_ context.Context, e JournalEntry) error {
	current, ok := t.repo.entries[e.ID]
	if !ok || current.Status != StatusDraft {
		return shared.ErrAlreadyPosted
	}
	current.Status = StatusPosted
	current.PostedAt = e.PostedAt
	current.PostedBy = e.PostedBy
	t.repo.entries[e.ID] = current
	return nil
}

func (t *memTx) MarkVoid(_ context.Context, e JournalEntry) error {
	current, ok := t.repo.entries[e.ID]
	if !ok || current.Status != StatusPosted {
		return shared.ErrAlreadyVoided
	}
	current.Status = StatusVoid
	current.ReversedByID = e.ReversedByID
	current.VoidReason = e.VoidReason
	current.VoidedAt = e.VoidedAt
	t.repo.entries[e.ID] = current
	return nil
}

func (t *memTx) LookupAccounts(_ context.Context, orgID int64, ids []int64, _ bool) (map[int64]AccountRef, error) {
	refs := map[int64]AccountRef{}
	for _, id := range ids {
		if a, ok := t.repo.accounts[id]; ok && a.orgID == orgID {
			refs[id] = a.ref
		}
	}
	return refs, nil
}
