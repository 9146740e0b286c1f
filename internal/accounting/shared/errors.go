package shared

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Kind classifies ledger errors for transport mapping.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindConflict
)

// Error is a ledger sentinel carrying its Kind.
type Error struct {
	kind Kind
	msg  string
}

func newError(kind Kind, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

func (e *Error) Error() string { return e.msg }

// Kind reports the classification of the sentinel.
func (e *Error) Kind() Kind { return e.kind }

var (
	// ErrInvalidCode indicates an empty or non numeric account code.
	ErrInvalidCode = newError(KindValidation, "accounting: account code must be 1-12 digits")
	// ErrInvalidName indicates a blank account name.
	ErrInvalidName = newError(KindValidation, "accounting: account name required")
	// ErrInvalidAccountType indicates an unknown account type.
	ErrInvalidAccountType = newError(KindValidation, "accounting: invalid account type")
	// ErrInvalidParent indicates a parent that is the account itself or one of its descendants.
	ErrInvalidParent = newError(KindValidation, "accounting: invalid parent account")
	// ErrDuplicateCode indicates the code already exists for the organization.
	ErrDuplicateCode = newError(KindConflict, "accounting: account code already exists")
	// ErrAccountHasPostings blocks structural changes on accounts with posted lines.
	ErrAccountHasPostings = newError(KindConflict, "accounting: account has posted lines")
	// ErrAccountInUse blocks deleting an account referenced by any line or mapping.
	ErrAccountInUse = newError(KindConflict, "accounting: account is referenced by journal lines or mappings")
	// ErrAccountNotFound indicates missing (or foreign) account.
	ErrAccountNotFound = newError(KindNotFound, "accounting: account not found")

	// ErrEmptyEntry indicates a journal entry without lines.
	ErrEmptyEntry = newError(KindValidation, "accounting: journal entry requires at least one line")
	// ErrInvalidLine indicates a line that is not exactly one of debit or credit.
	ErrInvalidLine = newError(KindValidation, "accounting: line must carry exactly one positive debit or credit")
	// ErrInvalidAmount indicates a negative amount or more than two decimals.
	ErrInvalidAmount = newError(KindValidation, "accounting: amount must be non-negative with at most two decimals")
	// ErrInvalidDate indicates a missing entry date.
	ErrInvalidDate = newError(KindValidation, "accounting: entry date required")
	// ErrUnbalanced indicates debit != credit.
	ErrUnbalanced = newError(KindValidation, "accounting: journal lines must balance")
	// ErrNonPostableAccount indicates a line against a grouping, disabled or foreign account.
	ErrNonPostableAccount = newError(KindValidation, "accounting: account does not accept postings")

	// ErrAlreadyPosted indicates the entry is POSTED and cannot be posted or edited.
	ErrAlreadyPosted = newError(KindConflict, "accounting: journal entry already posted")
	// ErrVoidedEntry indicates the entry is VOID and cannot be posted or edited.
	ErrVoidedEntry = newError(KindConflict, "accounting: journal entry is void")
	// ErrNotPosted indicates a void attempt on a draft.
	ErrNotPosted = newError(KindConflict, "accounting: journal entry is not posted")
	// ErrAlreadyVoided indicates a second void attempt.
	ErrAlreadyVoided = newError(KindConflict, "accounting: journal entry already voided")
	// ErrInvalidStatus indicates an unknown status value.
	ErrInvalidStatus = newError(KindValidation, "accounting: invalid journal status")
	// ErrInvalidSource indicates a source type or id longer than the store accepts.
	ErrInvalidSource = newError(KindValidation, "accounting: source type must be at most 59 characters and source id at most 128")
	// ErrSourceAlreadyLinked indicates the business event already produced an entry.
	ErrSourceAlreadyLinked = newError(KindConflict, "accounting: source already linked")
	// ErrJournalNotFound indicates missing entry.
	ErrJournalNotFound = newError(KindNotFound, "accounting: journal entry not found")

	// ErrInvalidRange indicates a date range whose start is after its end.
	ErrInvalidRange = newError(KindValidation, "accounting: range start must not be after its end")
	// ErrMappingNotFound indicates account mapping missing.
	ErrMappingNotFound = newError(KindNotFound, "accounting: account mapping not found")
	// ErrInvalidMapping indicates a mapping without module, key or account.
	ErrInvalidMapping = newError(KindValidation, "accounting: mapping requires module, key and account")
	// ErrInvalidSale indicates a sale event missing its id or date.
	ErrInvalidSale = newError(KindValidation, "accounting: invalid sale event")
)

// UnbalancedError reports the totals of an entry that failed the balance check.
type UnbalancedError struct {
	Debit  decimal.Decimal
	Credit decimal.Decimal
}

// Difference returns |debit - credit|.
func (e *UnbalancedError) Difference() decimal.Decimal {
	return e.Debit.Sub(e.Credit).Abs()
}

func (e *UnbalancedError) Error() string {
	return fmt.Sprintf("accounting: journal entry unbalanced by %s (debit %s, credit %s)",
		e.Difference().StringFixed(2), e.Debit.StringFixed(2), e.Credit.StringFixed(2))
}

func (e *UnbalancedError) Unwrap() error { return ErrUnbalanced }

// NonPostableAccountError names the offending line account.
type NonPostableAccountError struct {
	Line      int
	AccountID int64
	Code      string
}

func (e *NonPostableAccountError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("accounting: line %d: account %d does not accept postings", e.Line+1, e.AccountID)
	}
	return fmt.Sprintf("accounting: line %d: account %s does not accept postings", e.Line+1, e.Code)
}

func (e *NonPostableAccountError) Unwrap() error { return ErrNonPostableAccount }

// LineError attaches the line position to a line validation failure.
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line+1, e.Err)
}

func (e *LineError) Unwrap() error { return e.Err }

// KindOf returns the classification of err, KindInternal when unknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	return KindInternal
}
