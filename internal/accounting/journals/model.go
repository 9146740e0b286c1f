package journals

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// Status is the lifecycle state of a journal entry.
type Status string

const (
	StatusDraft  Status = "DRAFT"
	StatusPosted Status = "POSTED"
	StatusVoid   Status = "VOID"
)

// ReversalSourceSuffix tags the source type of a reversal entry.
const ReversalSourceSuffix = ":VOID"

// Column limits of source_type and source_id. A source type leaves room for the
// reversal suffix.
const (
	MaxSourceTypeLen = 64 - len(ReversalSourceSuffix)
	MaxSourceIDLen   = 128
)

// ParseStatus validates a status filter value.
func ParseStatus(raw string) (Status, error) {
	switch s := Status(raw); s {
	case StatusDraft, StatusPosted, StatusVoid:
		return s, nil
	}
	return "", shared.ErrInvalidStatus
}

// post is the DRAFT -> POSTED transition.
func (s Status) post() (Status, error) {
	switch s {
	case StatusDraft:
		return StatusPosted, nil
	case StatusPosted:
		return "", shared.ErrAlreadyPosted
	case StatusVoid:
		return "", shared.ErrVoidedEntry
	}
	return "", shared.ErrInvalidStatus
}

// void is the POSTED -> VOID transition.
func (s Status) void() (Status, error) {
	switch s {
	case StatusPosted:
		return StatusVoid, nil
	case StatusDraft:
		return "", shared.ErrNotPosted
	case StatusVoid:
		return "", shared.ErrAlreadyVoided
	}
	return "", shared.ErrInvalidStatus
}

// editable reports whether header and lines may still change.
func (s Status) editable() error {
	switch s {
	case StatusDraft:
		return nil
	case StatusPosted:
		return shared.ErrAlreadyPosted
	case StatusVoid:
		return shared.ErrVoidedEntry
	}
	return shared.ErrInvalidStatus
}

// JournalEntry is a dated set of lines moving value between accounts.
type JournalEntry struct {
	ID             int64         `json:"id"`
	OrganizationID int64         `json:"organizationId"`
	CompanyID      *int64        `json:"companyId,omitempty"`
	Number         int64         `json:"number"`
	Date           time.Time     `json:"date"`
	Description    string        `json:"description"`
	Status         Status        `json:"status"`
	SourceType     string        `json:"sourceType,omitempty"`
	SourceID       string        `json:"sourceId,omitempty"`
	ReversalOfID   *int64        `json:"reversalOfId,omitempty"`
	ReversedByID   *int64        `json:"reversedById,omitempty"`
	VoidReason     string        `json:"voidReason,omitempty"`
	CreatedBy      int64         `json:"createdBy,omitempty"`
	PostedBy       *int64        `json:"postedBy,omitempty"`
	PostedAt       *time.Time    `json:"postedAt,omitempty"`
	VoidedAt       *time.Time    `json:"voidedAt,omitempty"`
	CreatedAt      time.Time     `json:"createdAt"`
	UpdatedAt      time.Time     `json:"updatedAt"`
	Lines          []JournalLine `json:"lines,omitempty"`
}

// JournalLine is a single debit or credit against one account.
type JournalLine struct {
	ID          int64           `json:"id"`
	EntryID     int64           `json:"entryId"`
	AccountID   int64           `json:"accountId"`
	Position    int             `json:"position"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Description string          `json:"description,omitempty"`
}

// AccountRef is the subset of an account the store needs to validate lines.
type AccountRef struct {
	ID        int64
	Code      string
	IsPosting bool
	IsActive  bool
}

// Totals sums debits and credits exactly.
func Totals(lines []JournalLine) (debit, credit decimal.Decimal) {
	debit, credit = decimal.Zero, decimal.Zero
	for _, line := range lines {
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	return debit, credit
}

// ValidateLines checks that lines is non-empty and each line carries exactly
// one positive amount with at most two decimals.
func ValidateLines(lines []JournalLine) error {
	if len(lines) == 0 {
		return shared.ErrEmptyEntry
	}
	for idx, line := range lines {
		if line.AccountID <= 0 {
			return &shared.LineError{Line: idx, Err: shared.ErrAccountNotFound}
		}
		if !shared.ValidAmount(line.Debit) || !shared.ValidAmount(line.Credit) {
			return &shared.LineError{Line: idx, Err: shared.ErrInvalidAmount}
		}
		if line.Debit.IsPositive() == line.Credit.IsPositive() {
			return &shared.LineError{Line: idx, Err: shared.ErrInvalidLine}
		}
	}
	return nil
}

// CheckBalance returns an *shared.UnbalancedError unless debits equal credits.
func CheckBalance(lines []JournalLine) error {
	debit, credit := Totals(lines)
	if !debit.Equal(credit) {
		return &shared.UnbalancedError{Debit: debit, Credit: credit}
	}
	return nil
}

// CheckPostable verifies that every line hits a postable account of the tenant.
func CheckPostable(lines []JournalLine, accounts map[int64]AccountRef) error {
	for idx, line := range lines {
		ref, ok := accounts[line.AccountID]
		if !ok {
			return &shared.NonPostableAccountError{Line: idx, AccountID: line.AccountID}
		}
		if !ref.IsPosting || !ref.IsActive {
			return &shared.NonPostableAccountError{Line: idx, AccountID: ref.ID, Code: ref.Code}
		}
	}
	return nil
}

// Post moves a draft to POSTED after the balance check.
func (e *JournalEntry) Post(at time.Time, actorID int64) error {
	next, err := e.Status.post()
	if err != nil {
		return err
	}
	if err := ValidateLines(e.Lines); err != nil {
		return err
	}
	if err := CheckBalance(e.Lines); err != nil {
		return err
	}
	e.Status = next
	e.PostedAt = &at
	if actorID > 0 {
		e.PostedBy = &actorID
	}
	return nil
}

// Reversal builds the mirrored, already posted counter-entry of e.
func (e *JournalEntry) Reversal(date time.Time, reason string, at time.Time, actorID int64) (JournalEntry, error) {
	if _, err := e.Status.void(); err != nil {
		return JournalEntry{}, err
	}
	description := fmt.Sprintf("Anulacion del asiento %d", e.Number)
	if reason != "" {
		description += ": " + reason
	}
	originalID := e.ID
	rev := JournalEntry{
		OrganizationID: e.OrganizationID,
		CompanyID:      e.CompanyID,
		Date:           date,
		Description:    description,
		Status:         StatusPosted,
		ReversalOfID:   &originalID,
		CreatedBy:      actorID,
		PostedAt:       &at,
		Lines:          make([]JournalLine, 0, len(e.Lines)),
	}
	if e.SourceType != "" {
		rev.SourceType = e.SourceType + ReversalSourceSuffix
		rev.SourceID = e.SourceID
	}
	if actorID > 0 {
		rev.PostedBy = &actorID
	}
	for idx, line := range e.Lines {
		rev.Lines = append(rev.Lines, JournalLine{
			AccountID:   line.AccountID,
			Position:    idx + 1,
			Debit:       line.Credit,
			Credit:      line.Debit,
			Description: line.Description,
		})
	}
	return rev, nil
}

// MarkVoid moves a posted entry to VOID linked to its reversal.
func (e *JournalEntry) MarkVoid(reversalID int64, reason string, at time.Time) error {
	next, err := e.Status.void()
	if err != nil {
		return err
	}
	e.Status = next
	e.ReversedByID = &reversalID
	e.VoidReason = reason
	e.VoidedAt = &at
	return nil
}
