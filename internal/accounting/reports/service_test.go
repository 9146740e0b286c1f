package reports

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/tenant"
)

var (
	orgA = tenant.Scope{OrganizationID: 1}
	orgB = tenant.Scope{OrganizationID: 2}
	jan1 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
)

const (
	cash  int64 = 1
	sales int64 = 2
)

func scenarioA() *memRepo {
	repo := newMemRepo()
	repo.account(1, cash, "1011", "Caja", accounts.AccountTypeAsset)
	repo.account(1, sales, "7011", "Ventas", accounts.AccountTypeIncome)
	repo.entry(1, jan1, "POSTED", memEntryLine{account: cash, debit: "100"}, memEntryLine{account: sales, credit: "100"})
	return repo
}

func TestScenarioPostedBalances(t *testing.T) {
	svc := NewService(scenarioA())
	ctx := context.Background()

	bal, err := svc.AccountBalance(ctx, orgA, cash, Range{})
	require.NoError(t, err)
	assert.Equal(t, "100.00", bal.Balance.StringFixed(2))
	assert.Equal(t, "100.00", bal.TotalDebit.StringFixed(2))

	bal, err = svc.AccountBalance(ctx, orgA, sales, Range{})
	require.NoError(t, err)
	assert.Equal(t, "100.00", bal.Balance.StringFixed(2))
	assert.Equal(t, "100.00", bal.TotalCredit.StringFixed(2))

	tb, err := svc.TrialBalance(ctx, orgA, Range{})
	require.NoError(t, err)
	assert.Equal(t, "100.00", tb.Totals.Debit.StringFixed(2))
	assert.Equal(t, "100.00", tb.Totals.Credit.StringFixed(2))
	assert.True(t, tb.Balanced())
}

func TestScenarioVoidNetsToZero(t *testing.T) {
	repo := scenarioA()
	repo.setStatus(1, "VOID")
	repo.entry(1, jan1, "POSTED", memEntryLine{account: cash, credit: "100"}, memEntryLine{account: sales, debit: "100"})
	svc := NewService(repo)
	ctx := context.Background()

	for _, id := range []int64{cash, sales} {
		bal, err := svc.AccountBalance(ctx, orgA, id, Range{})
		require.NoError(t, err)
		assert.True(t, bal.Balance.IsZero(), "account %d balance %s", id, bal.Balance)
	}
	tb, err := svc.TrialBalance(ctx, orgA, Range{})
	require.NoError(t, err)
	assert.True(t, tb.Balanced())
	for _, row := range tb.Rows {
		assert.True(t, row.DebitBalance.IsZero())
		assert.True(t, row.CreditBalance.IsZero())
	}
}

func TestDraftsNeverContribute(t *testing.T) {
	repo := scenarioA()
	repo.entry(1, jan1, "DRAFT", memEntryLine{account: cash, debit: "999"}, memEntryLine{account: sales, credit: "999"})
	svc := NewService(repo)

	bal, err := svc.AccountBalance(context.Background(), orgA, cash, Range{})
	require.NoError(t, err)
	assert.Equal(t, "100.00", bal.Balance.StringFixed(2))

	rows, total, err := svc.LedgerRows(context.Background(), orgA, Range{}, 1, 50)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, rows, 2)
}

func TestRangesAreInclusiveAndOpening(t *testing.T) {
	repo := scenarioA()
	feb1 := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	repo.entry(1, feb1, "POSTED", memEntryLine{account: cash, debit: "40"}, memEntryLine{account: sales, credit: "40"})
	svc := NewService(repo)
	ctx := context.Background()

	bal, err := svc.AccountBalance(ctx, orgA, cash, Range{From: &feb1, To: &feb1})
	require.NoError(t, err)
	assert.Equal(t, "40.00", bal.Balance.StringFixed(2))

	bal, err = svc.AccountBalance(ctx, orgA, cash, Range{To: &jan1})
	require.NoError(t, err)
	assert.Equal(t, "100.00", bal.Balance.StringFixed(2))

	tb, err := svc.TrialBalance(ctx, orgA, Range{From: &feb1})
	require.NoError(t, err)
	require.Len(t, tb.Rows, 2)
	assert.Equal(t, "100.00", tb.Rows[0].Opening.StringFixed(2))
	assert.Equal(t, "40.00", tb.Rows[0].DebitTotal.StringFixed(2))
	assert.Equal(t, "140.00", tb.Rows[0].DebitBalance.StringFixed(2))
	assert.True(t, tb.Balanced())

	ledger, err := svc.Ledger(ctx, orgA, Range{From: &feb1})
	require.NoError(t, err)
	require.Contains(t, ledger, cash)
	assert.Len(t, ledger[cash].Movements, 1)
	assert.Equal(t, "140.00", ledger[cash].Balance.StringFixed(2))

	_, err = svc.TrialBalance(ctx, orgA, Range{From: &feb1, To: &jan1})
	assert.ErrorIs(t, err, shared.ErrInvalidRange)
}

func TestReportsAreTenantScoped(t *testing.T) {
	svc := NewService(scenarioA())
	ctx := context.Background()

	_, err := svc.AccountBalance(ctx, orgB, cash, Range{})
	assert.ErrorIs(t, err, shared.ErrAccountNotFound)

	tb, err := svc.TrialBalance(ctx, orgB, Range{})
	require.NoError(t, err)
	assert.Empty(t, tb.Rows)

	ledger, err := svc.Ledger(ctx, orgB, Range{})
	require.NoError(t, err)
	assert.Empty(t, ledger)

	_, err = svc.TrialBalance(ctx, tenant.Scope{}, Range{})
	assert.ErrorIs(t, err, tenant.ErrNoTenant)
}

func TestAccountBalanceWithoutMovements(t *testing.T) {
	repo := scenarioA()
	repo.account(1, 3, "1041", "Banco", accounts.AccountTypeAsset)
	bal, err := NewService(repo).AccountBalance(context.Background(), orgA, 3, Range{})
	require.NoError(t, err)
	assert.True(t, bal.Balance.IsZero())
	assert.Equal(t, "1041", bal.Code)
}
