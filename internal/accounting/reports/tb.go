package reports

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// Range is an inclusive date range; a nil bound is open.
type Range struct {
	From *time.Time
	To   *time.Time
}

// Validate rejects a range whose start is after its end.
func (r Range) Validate() error {
	if r.From != nil && r.To != nil && r.From.After(*r.To) {
		return shared.ErrInvalidRange
	}
	return nil
}

// AccountTotals is the posted activity of one account: movements before the
// range start (brought forward) and movements inside the range.
type AccountTotals struct {
	AccountID     int64
	Code          string
	Name          string
	Type          accounts.AccountType
	OpeningDebit  decimal.Decimal
	OpeningCredit decimal.Decimal
	Debit         decimal.Decimal
	Credit        decimal.Decimal
}

// Opening is the normal-side balance brought forward.
func (a AccountTotals) Opening() decimal.Decimal {
	return a.Type.Balance(a.OpeningDebit, a.OpeningCredit)
}

// Closing is the normal-side balance at the end of the range.
func (a AccountTotals) Closing() decimal.Decimal {
	return a.Type.Balance(a.OpeningDebit.Add(a.Debit), a.OpeningCredit.Add(a.Credit))
}

// GroupKey returns the two digit class used for grouping rows.
func (a AccountTotals) GroupKey() string {
	if len(a.Code) >= 2 {
		return a.Code[:2]
	}
	return a.Code
}

// split places a debit-minus-credit amount on the side where it is positive.
func split(net decimal.Decimal) (debit, credit decimal.Decimal) {
	if net.IsNegative() {
		return decimal.Zero, net.Neg()
	}
	return net, decimal.Zero
}

// TrialBalanceRow is one account of the trial balance.
type TrialBalanceRow struct {
	AccountID     int64                `json:"accountId"`
	Code          string               `json:"code"`
	Name          string               `json:"name"`
	Type          accounts.AccountType `json:"accountType"`
	Opening       decimal.Decimal      `json:"opening"`
	OpeningDebit  decimal.Decimal      `json:"openingDebit"`
	OpeningCredit decimal.Decimal      `json:"openingCredit"`
	DebitTotal    decimal.Decimal      `json:"debitTotal"`
	CreditTotal   decimal.Decimal      `json:"creditTotal"`
	Balance       decimal.Decimal      `json:"balance"`
	DebitBalance  decimal.Decimal      `json:"debitBalance"`
	CreditBalance decimal.Decimal      `json:"creditBalance"`
}

// TrialBalanceTotals sums the row columns.
type TrialBalanceTotals struct {
	Debit         decimal.Decimal `json:"debit"`
	Credit        decimal.Decimal `json:"credit"`
	DebitBalance  decimal.Decimal `json:"debitBalance"`
	CreditBalance decimal.Decimal `json:"creditBalance"`
}

func (t *TrialBalanceTotals) add(row TrialBalanceRow) {
	t.Debit = t.Debit.Add(row.DebitTotal)
	t.Credit = t.Credit.Add(row.CreditTotal)
	t.DebitBalance = t.DebitBalance.Add(row.DebitBalance)
	t.CreditBalance = t.CreditBalance.Add(row.CreditBalance)
}

// TrialBalanceGroup aggregates rows of one account class.
type TrialBalanceGroup struct {
	Key      string             `json:"key"`
	Accounts int                `json:"accounts"`
	Totals   TrialBalanceTotals `json:"totals"`
}

// TrialBalance is the full report.
type TrialBalance struct {
	Rows   []TrialBalanceRow   `json:"rows"`
	Totals TrialBalanceTotals  `json:"totals"`
	Groups []TrialBalanceGroup `json:"groups"`
}

// Balanced reports whether the movement totals close.
func (tb TrialBalance) Balanced() bool {
	return tb.Totals.Debit.Equal(tb.Totals.Credit) && tb.Totals.DebitBalance.Equal(tb.Totals.CreditBalance)
}

// BuildTrialBalance converts account totals into rows ordered by code. Accounts
// with neither activity in range nor a brought-forward balance are skipped.
func BuildTrialBalance(totals []AccountTotals) TrialBalance {
	result := TrialBalance{Rows: []TrialBalanceRow{}, Groups: []TrialBalanceGroup{}}
	sorted := append([]AccountTotals(nil), totals...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Code < sorted[j].Code })

	groups := make(map[string]*TrialBalanceGroup)
	var keys []string
	for _, acc := range sorted {
		openingNet := acc.OpeningDebit.Sub(acc.OpeningCredit)
		if acc.Debit.IsZero() && acc.Credit.IsZero() && openingNet.IsZero() {
			continue
		}
		openingDebit, openingCredit := split(openingNet)
		closingDebit, closingCredit := split(openingNet.Add(acc.Debit).Sub(acc.Credit))
		row := TrialBalanceRow{
			AccountID:     acc.AccountID,
			Code:          acc.Code,
			Name:          acc.Name,
			Type:          acc.Type,
			Opening:       acc.Opening(),
			OpeningDebit:  openingDebit,
			OpeningCredit: openingCredit,
			DebitTotal:    acc.Debit,
			CreditTotal:   acc.Credit,
			Balance:       acc.Closing(),
			DebitBalance:  closingDebit,
			CreditBalance: closingCredit,
		}
		result.Rows = append(result.Rows, row)
		result.Totals.add(row)

		key := acc.GroupKey()
		grp, ok := groups[key]
		if !ok {
			grp = &TrialBalanceGroup{Key: key}
			groups[key] = grp
			keys = append(keys, key)
		}
		grp.Accounts++
		grp.Totals.add(row)
	}
	for _, key := range keys {
		result.Groups = append(result.Groups, *groups[key])
	}
	return result
}
