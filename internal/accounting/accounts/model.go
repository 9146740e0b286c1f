package accounts

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// AccountType enumerates CoA categories.
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeIncome    AccountType = "INCOME"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// NormalSide is the side on which an account type increases.
type NormalSide string

const (
	SideDebit  NormalSide = "DEBIT"
	SideCredit NormalSide = "CREDIT"
)

// PostingLevel is the minimum code length of a leaf account.
const PostingLevel = 4

const maxCodeLength = 12

// ParseAccountType normalises raw into an AccountType. REVENUE is accepted as INCOME.
func ParseAccountType(raw string) (AccountType, error) {
	switch AccountType(strings.ToUpper(strings.TrimSpace(raw))) {
	case AccountTypeAsset:
		return AccountTypeAsset, nil
	case AccountTypeLiability:
		return AccountTypeLiability, nil
	case AccountTypeEquity:
		return AccountTypeEquity, nil
	case AccountTypeIncome, "REVENUE":
		return AccountTypeIncome, nil
	case AccountTypeExpense:
		return AccountTypeExpense, nil
	}
	return "", shared.ErrInvalidAccountType
}

// NormalSide returns DEBIT for assets and expenses, CREDIT otherwise.
func (t AccountType) NormalSide() NormalSide {
	switch t {
	case AccountTypeAsset, AccountTypeExpense:
		return SideDebit
	default:
		return SideCredit
	}
}

// Balance signs debit and credit totals according to the normal side.
func (t AccountType) Balance(debit, credit decimal.Decimal) decimal.Decimal {
	if t.NormalSide() == SideDebit {
		return debit.Sub(credit)
	}
	return credit.Sub(debit)
}

// Account models a chart of accounts node.
type Account struct {
	ID             int64       `json:"id"`
	OrganizationID int64       `json:"organizationId"`
	CompanyID      *int64      `json:"companyId,omitempty"`
	Code           string      `json:"code"`
	Name           string      `json:"name"`
	Type           AccountType `json:"accountType"`
	Level          int         `json:"level"`
	IsPosting      bool        `json:"isPosting"`
	ParentID       *int64      `json:"parentId,omitempty"`
	IsActive       bool        `json:"isActive"`
	CreatedAt      time.Time   `json:"createdAt"`
	UpdatedAt      time.Time   `json:"updatedAt"`
}

// Postable reports whether journal lines may reference the account.
func (a Account) Postable() bool {
	return a.IsPosting && a.IsActive
}

// ValidateCode checks that code is 1-12 ASCII digits.
func ValidateCode(code string) error {
	if code == "" || len(code) > maxCodeLength {
		return shared.ErrInvalidCode
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return shared.ErrInvalidCode
		}
	}
	return nil
}

// LevelOf is the hierarchy depth implied by code.
func LevelOf(code string) int {
	return len(code)
}

// DefaultPosting reports whether code is a leaf by length.
func DefaultPosting(code string) bool {
	return LevelOf(code) >= PostingLevel
}

// CreateInput carries the fields of a new account.
type CreateInput struct {
	Code      string `json:"code" validate:"required,max=12"`
	Name      string `json:"name" validate:"required,max=150"`
	Type      string `json:"accountType" validate:"required"`
	CompanyID *int64 `json:"companyId,omitempty" validate:"omitempty,gt=0"`
	ParentID  *int64 `json:"parentId,omitempty" validate:"omitempty,gt=0"`
	IsPosting *bool  `json:"isPosting,omitempty"`
}

// UpdateInput carries optional changes. ParentID 0 detaches the account to the root.
type UpdateInput struct {
	Code      *string `json:"code,omitempty" validate:"omitempty,max=12"`
	Name      *string `json:"name,omitempty" validate:"omitempty,max=150"`
	Type      *string `json:"accountType,omitempty"`
	ParentID  *int64  `json:"parentId,omitempty" validate:"omitempty,gte=0"`
	IsPosting *bool   `json:"isPosting,omitempty"`
}
