package accounts

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

// Repository reads and mutates the chart of accounts. Every call is scoped
// to one organization.
type Repository interface {
	List(ctx context.Context, orgID int64) ([]Account, error)
	Get(ctx context.Context, orgID, id int64) (Account, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes methods available within a transaction.
type TxRepository interface {
	List(ctx context.Context, orgID int64) ([]Account, error)
	Get(ctx context.Context, orgID, id int64) (Account, error)
	GetForUpdate(ctx context.Context, orgID, id int64) (Account, error)
	Insert(ctx context.Context, account Account) (Account, error)
	Update(ctx context.Context, account Account) (Account, error)
	Delete(ctx context.Context, orgID, id int64) error
	ReparentChildren(ctx context.Context, orgID, id int64, parentID *int64) error
	HasPostedLines(ctx context.Context, orgID, id int64) (bool, error)
	HasLines(ctx context.Context, orgID, id int64) (bool, error)
}

const accountColumns = `id, organization_id, company_id, code, name, type, level, is_posting, parent_id, is_active, created_at, updated_at`

type repository struct {
	db *pgxpool.Pool
}

// NewRepository returns the pgx backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *repository) List(ctx context.Context, orgID int64) ([]Account, error) {
	return listAccounts(ctx, r.db, orgID)
}

func (r *repository) Get(ctx context.Context, orgID, id int64) (Account, error) {
	return getAccount(ctx, r.db, orgID, id, false)
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) List(ctx context.Context, orgID int64) ([]Account, error) {
	return listAccounts(ctx, r.tx, orgID)
}

func (r *txRepository) Get(ctx context.Context, orgID, id int64) (Account, error) {
	return getAccount(ctx, r.tx, orgID, id, false)
}

func (r *txRepository) GetForUpdate(ctx context.Context, orgID, id int64) (Account, error) {
	return getAccount(ctx, r.tx, orgID, id, true)
}

func (r *txRepository) Insert(ctx context.Context, a Account) (Account, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO accounts (organization_id, company_id, code, name, type, level, is_posting, parent_id, is_active)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING `+accountColumns,
		a.OrganizationID, a.CompanyID, a.Code, a.Name, a.Type, a.Level, a.IsPosting, a.ParentID, a.IsActive)
	created, err := scanAccount(row)
	if err != nil {
		if db.IsUniqueViolation(err, "uq_accounts_org_code") {
			return Account{}, shared.ErrDuplicateCode
		}
		return Account{}, err
	}
	return created, nil
}

func (r *txRepository) Update(ctx context.Context, a Account) (Account, error) {
	row := r.tx.QueryRow(ctx, `UPDATE accounts SET code=$3, name=$4, type=$5, level=$6, is_posting=$7, parent_id=$8, is_active=$9, updated_at=NOW()
WHERE organization_id=$1 AND id=$2 RETURNING `+accountColumns,
		a.OrganizationID, a.ID, a.Code, a.Name, a.Type, a.Level, a.IsPosting, a.ParentID, a.IsActive)
	updated, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, shared.ErrAccountNotFound
		}
		if db.IsUniqueViolation(err, "uq_accounts_org_code") {
			return Account{}, shared.ErrDuplicateCode
		}
		return Account{}, err
	}
	return updated, nil
}

func (r *txRepository) Delete(ctx context.Context, orgID, id int64) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM accounts WHERE organization_id=$1 AND id=$2`, orgID, id)
	if err != nil {
		return deleteError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrAccountNotFound
	}
	return nil
}

// deleteError maps a remaining reference, such as an account mapping, to ErrAccountInUse.
func deleteError(err error) error {
	if db.IsForeignKeyViolation(err) {
		return shared.ErrAccountInUse
	}
	return err
}

func (r *txRepository) ReparentChildren(ctx context.Context, orgID, id int64, parentID *int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE accounts SET parent_id=$3, updated_at=NOW() WHERE organization_id=$1 AND parent_id=$2`, orgID, id, parentID)
	return err
}

func (r *txRepository) HasPostedLines(ctx context.Context, orgID, id int64) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (
SELECT 1 FROM journal_lines l JOIN journal_entries e ON e.id = l.entry_id
WHERE e.organization_id=$1 AND l.account_id=$2 AND e.status IN ('POSTED','VOID'))`, orgID, id).Scan(&exists)
	return exists, err
}

func (r *txRepository) HasLines(ctx context.Context, orgID, id int64) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (
SELECT 1 FROM journal_lines l JOIN journal_entries e ON e.id = l.entry_id
WHERE e.organization_id=$1 AND l.account_id=$2)`, orgID, id).Scan(&exists)
	return exists, err
}

func listAccounts(ctx context.Context, q queryer, orgID int64) ([]Account, error) {
	rows, err := q.Query(ctx, `SELECT `+accountColumns+` FROM accounts WHERE organization_id=$1 ORDER BY code`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func getAccount(ctx context.Context, q queryer, orgID, id int64, lock bool) (Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE organization_id=$1 AND id=$2`
	if lock {
		query += ` FOR UPDATE`
	}
	a, err := scanAccount(q.QueryRow(ctx, query, orgID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, shared.ErrAccountNotFound
		}
		return Account{}, err
	}
	return a, nil
}

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.OrganizationID, &a.CompanyID, &a.Code, &a.Name, &a.Type, &a.Level, &a.IsPosting, &a.ParentID, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}
