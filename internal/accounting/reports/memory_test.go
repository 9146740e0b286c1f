package reports

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/tenant"
)

type memLine struct {
	orgID   int64
	company *int64
	status  string
	row     LedgerRow
}

// memRepo evaluates report queries over an in-memory line table.
type memRepo struct {
	accounts map[int64]memAccount
	lines    []memLine
	nextLine int64
	nextID   int64
}

type memAccount struct {
	orgID int64
	code  string
	name  string
	typ   accounts.AccountType
}

func newMemRepo() *memRepo {
	return &memRepo{accounts: map[int64]memAccount{}}
}

func (m *memRepo) account(orgID, id int64, code, name string, typ accounts.AccountType) {
	m.accounts[id] = memAccount{orgID: orgID, code: code, name: name, typ: typ}
}

type memEntryLine struct {
	account       int64
	debit, credit string
}

// entry appends an entry and returns its id.
func (m *memRepo) entry(orgID int64, date time.Time, status string, lines ...memEntryLine) int64 {
	m.nextID++
	for idx, l := range lines {
		m.nextLine++
		acc := m.accounts[l.account]
		m.lines = append(m.lines, memLine{
			orgID:  orgID,
			status: status,
			row: LedgerRow{
				LineID:      m.nextLine,
				Position:    idx + 1,
				EntryID:     m.nextID,
				EntryNumber: m.nextID,
				Date:        date,
				AccountID:   l.account,
				AccountCode: acc.code,
				AccountName: acc.name,
				AccountType: acc.typ,
				Description: "asiento",
				Debit:       amount(l.debit),
				Credit:      amount(l.credit),
			},
		})
	}
	return m.nextID
}

func (m *memRepo) setStatus(entryID int64, status string) {
	for i := range m.lines {
		if m.lines[i].row.EntryID == entryID {
			m.lines[i].status = status
		}
	}
}

func amount(v string) decimal.Decimal {
	if v == "" {
		return decimal.Zero
	}
	return decimal.RequireFromString(v)
}

func (m *memRepo) matches(scope tenant.Scope, l memLine) bool {
	if l.orgID != scope.OrganizationID || (l.status != "POSTED" && l.status != "VOID") {
		return false
	}
	if scope.HasCompany() && (l.company == nil || *l.company != *scope.CompanyID) {
		return false
	}
	return true
}

func (m *memRepo) Account(_ context.Context, scope tenant.Scope, id int64) (AccountTotals, error) {
	acc, ok := m.accounts[id]
	if !ok || acc.orgID != scope.OrganizationID {
		return AccountTotals{}, shared.ErrAccountNotFound
	}
	return AccountTotals{AccountID: id, Code: acc.code, Name: acc.name, Type: acc.typ}, nil
}

func (m *memRepo) Totals(_ context.Context, scope tenant.Scope, r Range, accountID int64) ([]AccountTotals, error) {
	byAccount := map[int64]*AccountTotals{}
	for _, l := range m.lines {
		if !m.matches(scope, l) || (accountID > 0 && l.row.AccountID != accountID) {
			continue
		}
		if r.To != nil && l.row.Date.After(*r.To) {
			continue
		}
		t, ok := byAccount[l.row.AccountID]
		if !ok {
			t = &AccountTotals{AccountID: l.row.AccountID, Code: l.row.AccountCode, Name: l.row.AccountName, Type: l.row.AccountType}
			byAccount[l.row.AccountID] = t
		}
		if r.From != nil && l.row.Date.Before(*r.From) {
			t.OpeningDebit = t.OpeningDebit.Add(l.row.Debit)
			t.OpeningCredit = t.OpeningCredit.Add(l.row.Credit)
			continue
		}
		t.Debit = t.Debit.Add(l.row.Debit)
		t.Credit = t.Credit.Add(l.row.Credit)
	}
	out := make([]AccountTotals, 0, len(byAccount))
	for _, t := range byAccount {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (m *memRepo) Movements(_ context.Context, scope tenant.Scope, r Range, limit, offset int) ([]LedgerRow, int, error) {
	var out []LedgerRow
	for _, l := range m.lines {
		if !m.matches(scope, l) {
			continue
		}
		if (r.From != nil && l.row.Date.Before(*r.From)) || (r.To != nil && l.row.Date.After(*r.To)) {
			continue
		}
		out = append(out, l.row)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		if out[i].EntryID != out[j].EntryID {
			return out[i].EntryID < out[j].EntryID
		}
		return out[i].LineID < out[j].LineID
	})
	total := len(out)
	if limit > 0 {
		if offset > total {
			offset = total
		}
		end := offset + limit
		if end > total {
			end = total
		}
		out = out[offset:end]
	}
	return out, total, nil
}
