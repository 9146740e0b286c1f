package reports

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
)

// LedgerRow is one posted line with its entry and account context.
type LedgerRow struct {
	LineID      int64                `json:"lineId"`
	Position    int                  `json:"position"`
	EntryID     int64                `json:"entryId"`
	EntryNumber int64                `json:"entryNumber"`
	Date        time.Time            `json:"date"`
	AccountID   int64                `json:"accountId"`
	AccountCode string               `json:"accountCode"`
	AccountName string               `json:"accountName"`
	AccountType accounts.AccountType `json:"accountType"`
	Description string               `json:"description"`
	Debit       decimal.Decimal      `json:"debit"`
	Credit      decimal.Decimal      `json:"credit"`
}

// Movement is a ledger row with the running normal-side balance after it.
type Movement struct {
	LineID      int64           `json:"lineId"`
	EntryID     int64           `json:"entryId"`
	EntryNumber int64           `json:"entryNumber"`
	Date        time.Time       `json:"date"`
	Description string          `json:"description"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Balance     decimal.Decimal `json:"balance"`
}

// AccountLedger is the movement history of one account in a range. The
// running balance starts from the brought-forward Opening.
type AccountLedger struct {
	AccountID   int64                `json:"accountId"`
	Code        string               `json:"code"`
	Name        string               `json:"name"`
	Type        accounts.AccountType `json:"accountType"`
	Opening     decimal.Decimal      `json:"opening"`
	TotalDebit  decimal.Decimal      `json:"totalDebit"`
	TotalCredit decimal.Decimal      `json:"totalCredit"`
	Movements   []Movement           `json:"movements"`
	Balance     decimal.Decimal      `json:"balance"`
}

// BuildLedger groups rows by account. Rows are ordered by (date, entry id,
// line id) before running balances are computed; accounts without rows are
// omitted. openings maps account id to its brought-forward totals.
func BuildLedger(rows []LedgerRow, openings map[int64]AccountTotals) map[int64]AccountLedger {
	sorted := append([]LedgerRow(nil), rows...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.EntryID != b.EntryID {
			return a.EntryID < b.EntryID
		}
		return a.LineID < b.LineID
	})

	result := make(map[int64]AccountLedger)
	for _, row := range sorted {
		ledger, ok := result[row.AccountID]
		if !ok {
			ledger = AccountLedger{
				AccountID: row.AccountID,
				Code:      row.AccountCode,
				Name:      row.AccountName,
				Type:      row.AccountType,
				Movements: []Movement{},
			}
			if open, ok := openings[row.AccountID]; ok {
				ledger.Opening = open.Opening()
			}
			ledger.Balance = ledger.Opening
		}
		ledger.TotalDebit = ledger.TotalDebit.Add(row.Debit)
		ledger.TotalCredit = ledger.TotalCredit.Add(row.Credit)
		ledger.Balance = ledger.Balance.Add(row.AccountType.Balance(row.Debit, row.Credit))
		ledger.Movements = append(ledger.Movements, Movement{
			LineID:      row.LineID,
			EntryID:     row.EntryID,
			EntryNumber: row.EntryNumber,
			Date:        row.Date,
			Description: row.Description,
			Debit:       row.Debit,
			Credit:      row.Credit,
			Balance:     ledger.Balance,
		})
		result[row.AccountID] = ledger
	}
	return result
}
