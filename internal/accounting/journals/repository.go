package journals

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	"github.com/odyssey-erp/odyssey-ledger/internal/tenant"
)

// Repository encapsulates DB operations for journals.
type Repository interface {
	List(ctx context.Context, scope tenant.Scope, filter ListFilter) ([]JournalEntry, int, error)
	Get(ctx context.Context, scope tenant.Scope, id int64) (JournalEntry, error)
	FindBySource(ctx context.Context, scope tenant.Scope, sourceType, sourceID string) (JournalEntry, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes methods available within a transaction.
type TxRepository interface {
	NextNumber(ctx context.Context, orgID int64) (int64, error)
	InsertEntry(ctx context.Context, entry JournalEntry) (JournalEntry, error)
	InsertLines(ctx context.Context, entryID int64, lines []JournalLine) ([]JournalLine, error)
	DeleteLines(ctx context.Context, entryID int64) error
	DeleteEntry(ctx context.Context, orgID, id int64) error
	UpdateHeader(ctx context.Context, entry JournalEntry) (JournalEntry, error)
	// GetForUpdate locks the entry row and returns it with its lines.
	GetForUpdate(ctx context.Context, scope tenant.Scope, id int64) (JournalEntry, error)
	MarkPosted(ctx context.Context, entry JournalEntry) error
	MarkVoid(ctx context.Context, entry JournalEntry) error
	// LookupAccounts returns the organization accounts among ids. With lock the
	// rows are held FOR SHARE until commit.
	LookupAccounts(ctx context.Context, orgID int64, ids []int64, lock bool) (map[int64]AccountRef, error)
}

const entryColumns = `id, organization_id, company_id, number, date, description, status, source_type, source_id,
reversal_of_id, reversed_by_id, void_reason, COALESCE(created_by, 0), posted_by, posted_at, voided_at, created_at, updated_at`

type repository struct {
	db *pgxpool.Pool
}

// NewRepository returns the pgx backed journal store.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (r *repository) List(ctx context.Context, scope tenant.Scope, filter ListFilter) ([]JournalEntry, int, error) {
	where := []string{"organization_id = $1"}
	args := []any{scope.OrganizationID}
	add := func(cond string, val any) {
		args = append(args, val)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if scope.HasCompany() {
		add("company_id = $%d", *scope.CompanyID)
	}
	if filter.From != nil {
		add("date >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("date <= $%d", *filter.To)
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		add(`(description ILIKE $%[1]d ESCAPE '\' OR source_id ILIKE $%[1]d ESCAPE '\')`, "%"+likeEscaper.Replace(q)+"%")
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM journal_entries WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit, offset := filter.PerPage, (filter.Page-1)*filter.PerPage
	if offset < 0 {
		offset = 0
	}
	args = append(args, limit, offset)
	rows, err := r.db.Query(ctx, fmt.Sprintf(`SELECT %s FROM journal_entries WHERE %s ORDER BY date DESC, number DESC LIMIT $%d OFFSET $%d`,
		entryColumns, clause, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var entries []JournalEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, entry)
	}
	return entries, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, scope tenant.Scope, id int64) (JournalEntry, error) {
	return getEntry(ctx, r.db, scope, `id = $2`, id, false)
}

func (r *repository) FindBySource(ctx context.Context, scope tenant.Scope, sourceType, sourceID string) (JournalEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM journal_entries WHERE organization_id=$1 AND source_type=$2 AND source_id=$3`
	entry, err := scanEntry(r.db.QueryRow(ctx, query, scope.OrganizationID, sourceType, sourceID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JournalEntry{}, shared.ErrJournalNotFound
		}
		return JournalEntry{}, err
	}
	if scope.HasCompany() && (entry.CompanyID == nil || *entry.CompanyID != *scope.CompanyID) {
		return JournalEntry{}, shared.ErrJournalNotFound
	}
	entry.Lines, err = loadLines(ctx, r.db, entry.ID)
	return entry, err
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) NextNumber(ctx context.Context, orgID int64) (int64, error) {
	var next int64
	err := r.tx.QueryRow(ctx, `INSERT INTO journal_sequences (organization_id, last_number) VALUES ($1, 1)
ON CONFLICT (organization_id) DO UPDATE SET last_number = journal_sequences.last_number + 1
RETURNING last_number`, orgID).Scan(&next)
	return next, err
}

func (r *txRepository) InsertEntry(ctx context.Context, e JournalEntry) (JournalEntry, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO journal_entries (organization_id, company_id, number, date, description, status,
source_type, source_id, reversal_of_id, created_by, posted_by, posted_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NULLIF($10, 0),$11,$12) RETURNING `+entryColumns,
		e.OrganizationID, e.CompanyID, e.Number, e.Date, e.Description, e.Status,
		e.SourceType, e.SourceID, e.ReversalOfID, e.CreatedBy, e.PostedBy, e.PostedAt)
	inserted, err := scanEntry(row)
	if err != nil {
		if db.IsUniqueViolation(err, "uq_journal_entries_source") {
			return JournalEntry{}, shared.ErrSourceAlreadyLinked
		}
		if db.IsUniqueViolation(err, "uq_journal_entries_reversal_of") {
			return JournalEntry{}, shared.ErrAlreadyVoided
		}
		return JournalEntry{}, err
	}
	return inserted, nil
}

func (r *txRepository) InsertLines(ctx context.Context, entryID int64, lines []JournalLine) ([]JournalLine, error) {
	out := make([]JournalLine, 0, len(lines))
	for idx, line := range lines {
		line.EntryID = entryID
		line.Position = idx + 1
		err := r.tx.QueryRow(ctx, `INSERT INTO journal_lines (entry_id, account_id, position, debit, credit, description)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`,
			entryID, line.AccountID, line.Position, shared.ToNumeric(line.Debit), shared.ToNumeric(line.Credit), line.Description).Scan(&line.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, line)
	}
	return out, nil
}

func (r *txRepository) DeleteLines(ctx context.Context, entryID int64) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM journal_lines WHERE entry_id=$1`, entryID)
	return err
}

func (r *txRepository) DeleteEntry(ctx context.Context, orgID, id int64) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM journal_entries WHERE organization_id=$1 AND id=$2 AND status='DRAFT'`, orgID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrJournalNotFound
	}
	return nil
}

func (r *txRepository) UpdateHeader(ctx context.Context, e JournalEntry) (JournalEntry, error) {
	row := r.tx.QueryRow(ctx, `UPDATE journal_entries SET company_id=$3, date=$4, description=$5, source_type=$6, source_id=$7, updated_at=NOW()
WHERE organization_id=$1 AND id=$2 AND status='DRAFT' RETURNING `+entryColumns,
		e.OrganizationID, e.ID, e.CompanyID, e.Date, e.Description, e.SourceType, e.SourceID)
	updated, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JournalEntry{}, shared.ErrJournalNotFound
		}
		if db.IsUniqueViolation(err, "uq_journal_entries_source") {
			return JournalEntry{}, shared.ErrSourceAlreadyLinked
		}
		return JournalEntry{}, err
	}
	return updated, nil
}

func (r *txRepository) GetForUpdate(ctx context.Context, scope tenant.Scope, id int64) (JournalEntry, error) {
	return getEntry(ctx, r.tx, scope, `id = $2`, id, true)
}

func (r *txRepository) MarkPosted(ctx context.Context, e JournalEntry) error {
	tag, err := r.tx.Exec(ctx, `UPDATE journal_entries SET status='POSTED', posted_by=$3, posted_at=$4, updated_at=NOW()
WHERE organization_id=$1 AND id=$2 AND status='DRAFT'`, e.OrganizationID, e.ID, e.PostedBy, e.PostedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrAlreadyPosted
	}
	return nil
}

func (r *txRepository) MarkVoid(ctx context.Context, e JournalEntry) error {
	tag, err := r.tx.Exec(ctx, `UPDATE journal_entries SET status='VOID', reversed_by_id=$3, void_reason=$4, voided_at=$5, updated_at=NOW()
WHERE organization_id=$1 AND id=$2 AND status='POSTED'`, e.OrganizationID, e.ID, e.ReversedByID, e.VoidReason, e.VoidedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrAlreadyVoided
	}
	return nil
}

func (r *txRepository) LookupAccounts(ctx context.Context, orgID int64, ids []int64, lock bool) (map[int64]AccountRef, error) {
	query := `SELECT id, code, is_posting, is_active FROM accounts WHERE organization_id=$1 AND id = ANY($2) ORDER BY id`
	if lock {
		query += ` FOR SHARE`
	}
	rows, err := r.tx.Query(ctx, query, orgID, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	refs := make(map[int64]AccountRef, len(ids))
	for rows.Next() {
		var ref AccountRef
		if err := rows.Scan(&ref.ID, &ref.Code, &ref.IsPosting, &ref.IsActive); err != nil {
			return nil, err
		}
		refs[ref.ID] = ref
	}
	return refs, rows.Err()
}

func getEntry(ctx context.Context, q queryer, scope tenant.Scope, cond string, arg any, lock bool) (JournalEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM journal_entries WHERE organization_id = $1 AND ` + cond
	args := []any{scope.OrganizationID, arg}
	if scope.HasCompany() {
		args = append(args, *scope.CompanyID)
		query += fmt.Sprintf(` AND company_id = $%d`, len(args))
	}
	if lock {
		query += ` FOR UPDATE`
	}
	entry, err := scanEntry(q.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JournalEntry{}, shared.ErrJournalNotFound
		}
		return JournalEntry{}, err
	}
	entry.Lines, err = loadLines(ctx, q, entry.ID)
	if err != nil {
		return JournalEntry{}, err
	}
	return entry, nil
}

func loadLines(ctx context.Context, q queryer, entryID int64) ([]JournalLine, error) {
	rows, err := q.Query(ctx, `SELECT id, entry_id, account_id, position, debit, credit, description
FROM journal_lines WHERE entry_id=$1 ORDER BY position, id`, entryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []JournalLine
	for rows.Next() {
		var line JournalLine
		if err := rows.Scan(&line.ID, &line.EntryID, &line.AccountID, &line.Position, &line.Debit, &line.Credit, &line.Description); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func scanEntry(row pgx.Row) (JournalEntry, error) {
	var e JournalEntry
	err := row.Scan(&e.ID, &e.OrganizationID, &e.CompanyID, &e.Number, &e.Date, &e.Description, &e.Status, &e.SourceType, &e.SourceID,
		&e.ReversalOfID, &e.ReversedByID, &e.VoidReason, &e.CreatedBy, &e.PostedBy, &e.PostedAt, &e.VoidedAt, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}
