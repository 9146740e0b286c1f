package reports

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/tenant"
)

// Repository reads posted activity. Lines of entries that reached POSTED
// count, including a VOID original together with its posted reversal; drafts
// never do.
type Repository interface {
	// Account returns the account metadata with zero totals.
	Account(ctx context.Context, scope tenant.Scope, id int64) (AccountTotals, error)
	// Totals aggregates per account; accountID 0 means every account.
	Totals(ctx context.Context, scope tenant.Scope, r Range, accountID int64) ([]AccountTotals, error)
	// Movements lists posted lines in range ordered by date, entry and line.
	// limit <= 0 returns every row.
	Movements(ctx context.Context, scope tenant.Scope, r Range, limit, offset int) ([]LedgerRow, int, error)
}

const postedStatuses = `('POSTED','VOID')`

type repository struct {
	db *pgxpool.Pool
}

// NewRepository returns the pgx backed reader.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

func (r *repository) Account(ctx context.Context, scope tenant.Scope, id int64) (AccountTotals, error) {
	var acc AccountTotals
	err := r.db.QueryRow(ctx, `SELECT id, code, name, type FROM accounts WHERE organization_id=$1 AND id=$2`,
		scope.OrganizationID, id).Scan(&acc.AccountID, &acc.Code, &acc.Name, &acc.Type)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AccountTotals{}, shared.ErrAccountNotFound
		}
		return AccountTotals{}, err
	}
	return acc, nil
}

func (r *repository) Totals(ctx context.Context, scope tenant.Scope, rng Range, accountID int64) ([]AccountTotals, error) {
	args := []any{scope.OrganizationID, rng.From, rng.To}
	where := `e.organization_id = $1 AND a.organization_id = $1 AND e.status IN ` + postedStatuses + `
AND ($3::date IS NULL OR e.date <= $3::date)`
	if scope.HasCompany() {
		args = append(args, *scope.CompanyID)
		where += fmt.Sprintf(` AND e.company_id = $%d`, len(args))
	}
	if accountID > 0 {
		args = append(args, accountID)
		where += fmt.Sprintf(` AND l.account_id = $%d`, len(args))
	}
	rows, err := r.db.Query(ctx, `SELECT a.id, a.code, a.name, a.type,
COALESCE(SUM(l.debit) FILTER (WHERE $2::date IS NOT NULL AND e.date < $2::date), 0),
COALESCE(SUM(l.credit) FILTER (WHERE $2::date IS NOT NULL AND e.date < $2::date), 0),
COALESCE(SUM(l.debit) FILTER (WHERE $2::date IS NULL OR e.date >= $2::date), 0),
COALESCE(SUM(l.credit) FILTER (WHERE $2::date IS NULL OR e.date >= $2::date), 0)
FROM journal_lines l
JOIN journal_entries e ON e.id = l.entry_id
JOIN accounts a ON a.id = l.account_id
WHERE `+where+`
GROUP BY a.id, a.code, a.name, a.type
ORDER BY a.code`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AccountTotals
	for rows.Next() {
		var t AccountTotals
		if err := rows.Scan(&t.AccountID, &t.Code, &t.Name, &t.Type, &t.OpeningDebit, &t.OpeningCredit, &t.Debit, &t.Credit); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *repository) Movements(ctx context.Context, scope tenant.Scope, rng Range, limit, offset int) ([]LedgerRow, int, error) {
	args := []any{scope.OrganizationID, rng.From, rng.To}
	where := `e.organization_id = $1 AND e.status IN ` + postedStatuses + `
AND ($2::date IS NULL OR e.date >= $2::date) AND ($3::date IS NULL OR e.date <= $3::date)`
	if scope.HasCompany() {
		args = append(args, *scope.CompanyID)
		where += fmt.Sprintf(` AND e.company_id = $%d`, len(args))
	}
	from := `FROM journal_lines l
JOIN journal_entries e ON e.id = l.entry_id
JOIN accounts a ON a.id = l.account_id
WHERE ` + where

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) `+from, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	query := `SELECT l.id, l.position, e.id, e.number, e.date, a.id, a.code, a.name, a.type,
COALESCE(NULLIF(l.description, ''), e.description), l.debit, l.credit ` + from + `
ORDER BY e.date, e.id, l.position, l.id`
	if limit > 0 {
		args = append(args, limit, offset)
		query += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)-1, len(args))
	}
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []LedgerRow
	for rows.Next() {
		var row LedgerRow
		if err := rows.Scan(&row.LineID, &row.Position, &row.EntryID, &row.EntryNumber, &row.Date, &row.AccountID,
			&row.AccountCode, &row.AccountName, &row.AccountType, &row.Description, &row.Debit, &row.Credit); err != nil {
			return nil, 0, err
		}
		out = append(out, row)
	}
	return out, total, rows.Err()
}
