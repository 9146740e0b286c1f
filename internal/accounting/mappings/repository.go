package mappings

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

// Repository stores account mappings per organization.
type Repository interface {
	Get(ctx context.Context, orgID int64, module, key string) (AccountMapping, error)
	List(ctx context.Context, orgID int64, module string) ([]AccountMapping, error)
	Upsert(ctx context.Context, mapping AccountMapping) (AccountMapping, error)
}

const mappingColumns = `organization_id, module, key, account_id, created_at, updated_at`

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

// Get resolves an account mapping for the specified key.
func (r *repository) Get(ctx context.Context, orgID int64, module, key string) (AccountMapping, error) {
	module, key, err := Normalize(module, key)
	if err != nil {
		return AccountMapping{}, err
	}
	mapping, err := scanMapping(r.db.QueryRow(ctx, `SELECT `+mappingColumns+` FROM account_mappings
WHERE organization_id=$1 AND module=$2 AND key=$3`, orgID, module, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AccountMapping{}, shared.ErrMappingNotFound
		}
		return AccountMapping{}, err
	}
	return mapping, nil
}

func (r *repository) List(ctx context.Context, orgID int64, module string) ([]AccountMapping, error) {
	rows, err := r.db.Query(ctx, `SELECT `+mappingColumns+` FROM account_mappings
WHERE organization_id=$1 AND ($2 = '' OR module=upper($2)) ORDER BY module, key`, orgID, module)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AccountMapping
	for rows.Next() {
		m, err := scanMapping(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Upsert points module/key at an account of the same organization.
func (r *repository) Upsert(ctx context.Context, m AccountMapping) (AccountMapping, error) {
	module, key, err := Normalize(m.Module, m.Key)
	if err != nil {
		return AccountMapping{}, err
	}
	if m.AccountID <= 0 {
		return AccountMapping{}, shared.ErrInvalidMapping
	}
	var owned bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE organization_id=$1 AND id=$2)`, m.OrganizationID, m.AccountID).Scan(&owned); err != nil {
		return AccountMapping{}, err
	}
	if !owned {
		return AccountMapping{}, shared.ErrAccountNotFound
	}
	saved, err := scanMapping(r.db.QueryRow(ctx, `INSERT INTO account_mappings (organization_id, module, key, account_id)
VALUES ($1,$2,$3,$4)
ON CONFLICT (organization_id, module, key) DO UPDATE SET account_id=EXCLUDED.account_id, updated_at=NOW()
RETURNING `+mappingColumns, m.OrganizationID, module, key, m.AccountID))
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return AccountMapping{}, shared.ErrAccountNotFound
		}
		return AccountMapping{}, err
	}
	return saved, nil
}

func scanMapping(row pgx.Row) (AccountMapping, error) {
	var m AccountMapping
	err := row.Scan(&m.OrganizationID, &m.Module, &m.Key, &m.AccountID, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}
