package journals

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// LineInput describes a journal line in a draft request.
type LineInput struct {
	AccountID   int64           `json:"accountId" validate:"required,gt=0"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Description string          `json:"description,omitempty" validate:"max=255"`
}

// DraftInput groups the fields of a new or replaced draft.
type DraftInput struct {
	CompanyID   *int64      `json:"companyId,omitempty" validate:"omitempty,gt=0"`
	Date        time.Time   `json:"-"`
	Description string      `json:"description" validate:"max=500"`
	SourceType  string      `json:"sourceType,omitempty" validate:"max=59"`
	SourceID    string      `json:"sourceId,omitempty" validate:"max=128"`
	Lines       []LineInput `json:"lines" validate:"dive"`
	AutoPost    bool        `json:"autopost,omitempty"`
}

// Validate checks shape rules that do not need the database.
func (in DraftInput) Validate() error {
	if in.Date.IsZero() {
		return shared.ErrInvalidDate
	}
	if utf8.RuneCountInString(strings.TrimSpace(in.SourceType)) > MaxSourceTypeLen ||
		utf8.RuneCountInString(strings.TrimSpace(in.SourceID)) > MaxSourceIDLen {
		return shared.ErrInvalidSource
	}
	return ValidateLines(in.toLines())
}

func (in DraftInput) toLines() []JournalLine {
	lines := make([]JournalLine, 0, len(in.Lines))
	for idx, l := range in.Lines {
		lines = append(lines, JournalLine{
			AccountID:   l.AccountID,
			Position:    idx + 1,
			Debit:       l.Debit,
			Credit:      l.Credit,
			Description: strings.TrimSpace(l.Description),
		})
	}
	return lines
}

// VoidInput wraps parameters for voiding. A nil Date keeps the original date.
type VoidInput struct {
	Reason string
	Date   *time.Time
}

// VoidResult pairs the voided entry with its reversal.
type VoidResult struct {
	Voided   JournalEntry `json:"voided"`
	Reversal JournalEntry `json:"reversal"`
}

// ListFilter narrows a journal listing.
type ListFilter struct {
	From    *time.Time
	To      *time.Time
	Status  Status
	Query   string
	Page    int
	PerPage int
}
