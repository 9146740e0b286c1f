package reports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/tenant"
)

// Balance is the activity of one account in a range.
type Balance struct {
	AccountID   int64                `json:"accountId"`
	Code        string               `json:"code"`
	Type        accounts.AccountType `json:"accountType"`
	TotalDebit  decimal.Decimal      `json:"totalDebit"`
	TotalCredit decimal.Decimal      `json:"totalCredit"`
	Balance     decimal.Decimal      `json:"balance"`
}

// Service is the balance aggregator. Every result is derived from lines.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// AccountBalance sums the account lines dated inside r.
func (s *Service) AccountBalance(ctx context.Context, scope tenant.Scope, accountID int64, r Range) (Balance, error) {
	if err := scope.Validate(); err != nil {
		return Balance{}, err
	}
	if err := r.Validate(); err != nil {
		return Balance{}, err
	}
	acc, err := s.repo.Account(ctx, scope, accountID)
	if err != nil {
		return Balance{}, err
	}
	totals, err := s.repo.Totals(ctx, scope, r, accountID)
	if err != nil {
		return Balance{}, err
	}
	for _, t := range totals {
		if t.AccountID == accountID {
			acc.Debit, acc.Credit = t.Debit, t.Credit
		}
	}
	return Balance{
		AccountID:   acc.AccountID,
		Code:        acc.Code,
		Type:        acc.Type,
		TotalDebit:  acc.Debit,
		TotalCredit: acc.Credit,
		Balance:     acc.Type.Balance(acc.Debit, acc.Credit),
	}, nil
}

// Ledger returns per-account movements with running balances.
func (s *Service) Ledger(ctx context.Context, scope tenant.Scope, r Range) (map[int64]AccountLedger, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	rows, _, err := s.repo.Movements(ctx, scope, r, 0, 0)
	if err != nil {
		return nil, err
	}
	openings := map[int64]AccountTotals{}
	if r.From != nil {
		totals, err := s.repo.Totals(ctx, scope, r, 0)
		if err != nil {
			return nil, err
		}
		for _, t := range totals {
			openings[t.AccountID] = t
		}
	}
	return BuildLedger(rows, openings), nil
}

// LedgerRows returns one page of posted lines in date order plus the total.
func (s *Service) LedgerRows(ctx context.Context, scope tenant.Scope, r Range, page, perPage int) ([]LedgerRow, int, error) {
	if err := scope.Validate(); err != nil {
		return nil, 0, err
	}
	if err := r.Validate(); err != nil {
		return nil, 0, err
	}
	if page < 1 {
		page = 1
	}
	offset := 0
	if perPage > 0 {
		offset = (page - 1) * perPage
	}
	return s.repo.Movements(ctx, scope, r, perPage, offset)
}

// TrialBalance lists every account with activity or a brought-forward balance.
func (s *Service) TrialBalance(ctx context.Context, scope tenant.Scope, r Range) (TrialBalance, error) {
	totals, err := s.totals(ctx, scope, r)
	if err != nil {
		return TrialBalance{}, err
	}
	return BuildTrialBalance(totals), nil
}

// ProfitAndLoss reports income and expense activity inside r.
func (s *Service) ProfitAndLoss(ctx context.Context, scope tenant.Scope, r Range) (ProfitAndLoss, error) {
	totals, err := s.totals(ctx, scope, r)
	if err != nil {
		return ProfitAndLoss{}, err
	}
	return BuildProfitAndLoss(totals), nil
}

// BalanceSheet reports closing balances as of asOf, or of all history when nil.
func (s *Service) BalanceSheet(ctx context.Context, scope tenant.Scope, asOf *time.Time) (BalanceSheet, error) {
	totals, err := s.totals(ctx, scope, Range{To: asOf})
	if err != nil {
		return BalanceSheet{}, err
	}
	return BuildBalanceSheet(totals), nil
}

func (s *Service) totals(ctx context.Context, scope tenant.Scope, r Range) ([]AccountTotals, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return s.repo.Totals(ctx, scope, r, 0)
}
