package journals

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	internalShared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/tenant"
)

// AuditPort records journal mutations.
type AuditPort interface {
	Record(ctx context.Context, log internalShared.AuditLog) error
}

// MetricsRecorder counts lifecycle outcomes.
type MetricsRecorder interface {
	EntryPosted()
	EntryVoided()
	EntryRejected(reason string)
}

// Service implements the journal entry store.
type Service struct {
	repo    Repository
	audit   AuditPort
	metrics MetricsRecorder
	logger  *slog.Logger
	now     func() time.Time
}

// NewService wires the store. audit and metrics may be nil.
func NewService(repo Repository, audit AuditPort, metrics MetricsRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, metrics: metrics, logger: logger, now: time.Now}
}

// WithNow overrides the clock.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// List returns one page of entries without lines plus the total count.
func (s *Service) List(ctx context.Context, scope tenant.Scope, filter ListFilter) ([]JournalEntry, int, error) {
	if err := scope.Validate(); err != nil {
		return nil, 0, err
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PerPage <= 0 {
		filter.PerPage = 20
	}
	return s.repo.List(ctx, scope, filter)
}

// Get returns an entry with its lines.
func (s *Service) Get(ctx context.Context, scope tenant.Scope, id int64) (JournalEntry, error) {
	if err := scope.Validate(); err != nil {
		return JournalEntry{}, err
	}
	return s.repo.Get(ctx, scope, id)
}

// FindBySource returns the entry produced by a business event.
func (s *Service) FindBySource(ctx context.Context, scope tenant.Scope, sourceType, sourceID string) (JournalEntry, error) {
	if err := scope.Validate(); err != nil {
		return JournalEntry{}, err
	}
	return s.repo.FindBySource(ctx, scope, sourceType, sourceID)
}

// CreateDraft stores a new DRAFT entry with the next organization number.
// With AutoPost the entry is posted in the same transaction, so nothing is
// stored when posting fails.
func (s *Service) CreateDraft(ctx context.Context, scope tenant.Scope, in DraftInput) (JournalEntry, error) {
	if err := scope.Validate(); err != nil {
		return JournalEntry{}, err
	}
	companyID, err := resolveCompany(scope, in.CompanyID)
	if err != nil {
		return JournalEntry{}, err
	}
	if err := in.Validate(); err != nil {
		s.rejected(err)
		return JournalEntry{}, err
	}
	lines := in.toLines()
	var entry JournalEntry
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := ensureAccountsExist(ctx, tx, scope.OrganizationID, lines); err != nil {
			return err
		}
		number, err := tx.NextNumber(ctx, scope.OrganizationID)
		if err != nil {
			return err
		}
		inserted, err := tx.InsertEntry(ctx, JournalEntry{
			OrganizationID: scope.OrganizationID,
			CompanyID:      companyID,
			Number:         number,
			Date:           in.Date,
			Description:    strings.TrimSpace(in.Description),
			Status:         StatusDraft,
			SourceType:     strings.TrimSpace(in.SourceType),
			SourceID:       strings.TrimSpace(in.SourceID),
			CreatedBy:      scope.ActorID,
		})
		if err != nil {
			return err
		}
		inserted.Lines, err = tx.InsertLines(ctx, inserted.ID, lines)
		if err != nil {
			return err
		}
		if in.AutoPost {
			if err := s.postLocked(ctx, tx, &inserted, scope.ActorID); err != nil {
				return err
			}
		}
		entry = inserted
		return nil
	})
	if err != nil {
		s.rejected(err)
		return JournalEntry{}, err
	}
	s.record(ctx, scope, "journal.create", entry, nil)
	if entry.Status == StatusPosted {
		s.posted(ctx, scope, entry)
	}
	return entry, nil
}

// UpdateDraft replaces header and lines of a DRAFT entry.
func (s *Service) UpdateDraft(ctx context.Context, scope tenant.Scope, id int64, in DraftInput) (JournalEntry, error) {
	if err := scope.Validate(); err != nil {
		return JournalEntry{}, err
	}
	companyID, err := resolveCompany(scope, in.CompanyID)
	if err != nil {
		return JournalEntry{}, err
	}
	if err := in.Validate(); err != nil {
		return JournalEntry{}, err
	}
	lines := in.toLines()
	var entry JournalEntry
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, scope, id)
		if err != nil {
			return err
		}
		if err := current.Status.editable(); err != nil {
			return err
		}
		if err := ensureAccountsExist(ctx, tx, scope.OrganizationID, lines); err != nil {
			return err
		}
		current.CompanyID = companyID
		current.Date = in.Date
		current.Description = strings.TrimSpace(in.Description)
		current.SourceType = strings.TrimSpace(in.SourceType)
		current.SourceID = strings.TrimSpace(in.SourceID)
		updated, err := tx.UpdateHeader(ctx, current)
		if err != nil {
			return err
		}
		if err := tx.DeleteLines(ctx, id); err != nil {
			return err
		}
		updated.Lines, err = tx.InsertLines(ctx, id, lines)
		if err != nil {
			return err
		}
		if in.AutoPost {
			if err := s.postLocked(ctx, tx, &updated, scope.ActorID); err != nil {
				return err
			}
		}
		entry = updated
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	s.record(ctx, scope, "journal.update", entry, nil)
	if entry.Status == StatusPosted {
		s.posted(ctx, scope, entry)
	}
	return entry, nil
}

// DeleteDraft removes a DRAFT entry and its lines.
func (s *Service) DeleteDraft(ctx context.Context, scope tenant.Scope, id int64) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	var deleted JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, scope, id)
		if err != nil {
			return err
		}
		if err := current.Status.editable(); err != nil {
			return err
		}
		deleted = current
		return tx.DeleteEntry(ctx, scope.OrganizationID, id)
	})
	if err != nil {
		return err
	}
	s.record(ctx, scope, "journal.delete", deleted, nil)
	return nil
}

// Post moves a DRAFT to POSTED. Of two concurrent posts exactly one wins; the
// other observes the committed status and fails with ErrAlreadyPosted.
func (s *Service) Post(ctx context.Context, scope tenant.Scope, id int64) (JournalEntry, error) {
	if err := scope.Validate(); err != nil {
		return JournalEntry{}, err
	}
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, scope, id)
		if err != nil {
			return err
		}
		if err := s.postLocked(ctx, tx, &current, scope.ActorID); err != nil {
			return err
		}
		entry = current
		return nil
	})
	if err != nil {
		s.rejected(err)
		return JournalEntry{}, err
	}
	s.posted(ctx, scope, entry)
	return entry, nil
}

// Void reverses a POSTED entry. The reversal is inserted already posted with
// mirrored lines, and both entries are linked to each other.
func (s *Service) Void(ctx context.Context, scope tenant.Scope, id int64, in VoidInput) (VoidResult, error) {
	if err := scope.Validate(); err != nil {
		return VoidResult{}, err
	}
	reason := strings.TrimSpace(in.Reason)
	var result VoidResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, scope, id)
		if err != nil {
			return err
		}
		date := current.Date
		if in.Date != nil && !in.Date.IsZero() {
			date = *in.Date
		}
		now := s.now()
		reversal, err := current.Reversal(date, reason, now, scope.ActorID)
		if err != nil {
			return err
		}
		reversal.Number, err = tx.NextNumber(ctx, scope.OrganizationID)
		if err != nil {
			return err
		}
		lines := reversal.Lines
		inserted, err := tx.InsertEntry(ctx, reversal)
		if err != nil {
			return err
		}
		inserted.Lines, err = tx.InsertLines(ctx, inserted.ID, lines)
		if err != nil {
			return err
		}
		if err := current.MarkVoid(inserted.ID, reason, now); err != nil {
			return err
		}
		if err := tx.MarkVoid(ctx, current); err != nil {
			return err
		}
		result = VoidResult{Voided: current, Reversal: inserted}
		return nil
	})
	if err != nil {
		return VoidResult{}, err
	}
	if s.metrics != nil {
		s.metrics.EntryVoided()
	}
	s.record(ctx, scope, "journal.void", result.Voided, map[string]any{
		"reversal_id":     result.Reversal.ID,
		"reversal_number": result.Reversal.Number,
		"reason":          reason,
	})
	return result, nil
}

// postLocked validates and posts an entry whose row is locked by tx.
func (s *Service) postLocked(ctx context.Context, tx TxRepository, entry *JournalEntry, actorID int64) error {
	if err := entry.Status.editable(); err != nil {
		return err
	}
	refs, err := tx.LookupAccounts(ctx, entry.OrganizationID, accountIDs(entry.Lines), true)
	if err != nil {
		return err
	}
	if err := entry.Post(s.now(), actorID); err != nil {
		return err
	}
	if err := CheckPostable(entry.Lines, refs); err != nil {
		return err
	}
	return tx.MarkPosted(ctx, *entry)
}

func ensureAccountsExist(ctx context.Context, tx TxRepository, orgID int64, lines []JournalLine) error {
	refs, err := tx.LookupAccounts(ctx, orgID, accountIDs(lines), false)
	if err != nil {
		return err
	}
	for idx, line := range lines {
		if _, ok := refs[line.AccountID]; !ok {
			return &shared.LineError{Line: idx, Err: shared.ErrAccountNotFound}
		}
	}
	return nil
}

func accountIDs(lines []JournalLine) []int64 {
	seen := make(map[int64]struct{}, len(lines))
	ids := make([]int64, 0, len(lines))
	for _, line := range lines {
		if _, ok := seen[line.AccountID]; ok {
			continue
		}
		seen[line.AccountID] = struct{}{}
		ids = append(ids, line.AccountID)
	}
	return ids
}

// resolveCompany pins company scoped callers to their company.
func resolveCompany(scope tenant.Scope, requested *int64) (*int64, error) {
	if !scope.HasCompany() {
		if requested != nil && *requested <= 0 {
			return nil, nil
		}
		return requested, nil
	}
	if requested != nil && *requested != *scope.CompanyID {
		return nil, tenant.ErrNoTenant
	}
	company := *scope.CompanyID
	return &company, nil
}

func (s *Service) posted(ctx context.Context, scope tenant.Scope, entry JournalEntry) {
	if s.metrics != nil {
		s.metrics.EntryPosted()
	}
	debit, _ := Totals(entry.Lines)
	s.record(ctx, scope, "journal.post", entry, map[string]any{"total": debit.StringFixed(2)})
}

func (s *Service) rejected(err error) {
	if s.metrics == nil {
		return
	}
	switch {
	case errors.Is(err, shared.ErrUnbalanced):
		s.metrics.EntryRejected("unbalanced")
	case errors.Is(err, shared.ErrNonPostableAccount):
		s.metrics.EntryRejected("non_postable")
	case errors.Is(err, shared.ErrEmptyEntry), errors.Is(err, shared.ErrInvalidLine), errors.Is(err, shared.ErrInvalidAmount):
		s.metrics.EntryRejected("invalid_line")
	}
}

func (s *Service) record(ctx context.Context, scope tenant.Scope, action string, entry JournalEntry, extra map[string]any) {
	if s.audit == nil {
		return
	}
	meta := map[string]any{
		"number": entry.Number,
		"status": string(entry.Status),
	}
	if entry.SourceType != "" {
		meta["source_type"] = entry.SourceType
		meta["source_id"] = entry.SourceID
	}
	for k, v := range extra {
		meta[k] = v
	}
	err := s.audit.Record(ctx, internalShared.AuditLog{
		OrganizationID: scope.OrganizationID,
		ActorID:        scope.ActorID,
		Action:         action,
		Entity:         "journal_entry",
		EntityID:       strconv.FormatInt(entry.ID, 10),
		Meta:           meta,
		At:             s.now(),
	})
	if err != nil {
		s.logger.Warn("journal audit failed", slog.String("action", action), slog.Any("error", err))
	}
}
