package accounts

import (
	"context"

	"github.com/odyssey-erp/odyssey-ledger/internal/tenant"
)

type seedAccount struct {
	Code string
	Name string
	Type AccountType
}

// minimalChart is the bootstrap chart used by sale postings. Parents precede
// children so prefix resolution links them.
var minimalChart = []seedAccount{
	{"10", "Efectivo y equivalentes de efectivo", AccountTypeAsset},
	{"1011", "Caja", AccountTypeAsset},
	{"104", "Cuentas corrientes en instituciones financieras", AccountTypeAsset},
	{"1041", "Cuentas corrientes operativas", AccountTypeAsset},
	{"12", "Cuentas por cobrar comerciales - terceros", AccountTypeAsset},
	{"1212", "Facturas, boletas y otros comprobantes por cobrar", AccountTypeAsset},
	{"20", "Mercaderias", AccountTypeAsset},
	{"2011", "Mercaderias manufacturadas", AccountTypeAsset},
	{"40", "Tributos por pagar", AccountTypeLiability},
	{"4011", "IGV - Cuenta propia", AccountTypeLiability},
	{"42", "Cuentas por pagar comerciales - terceros", AccountTypeLiability},
	{"4212", "Facturas emitidas por pagar", AccountTypeLiability},
	{"50", "Capital", AccountTypeEquity},
	{"5011", "Acciones", AccountTypeEquity},
	{"69", "Costo de ventas", AccountTypeExpense},
	{"6911", "Costo de ventas - mercaderias", AccountTypeExpense},
	{"70", "Ventas", AccountTypeIncome},
	{"7011", "Ventas - mercaderias", AccountTypeIncome},
}

// MinimalChartCodes lists the codes installed by SeedMinimal.
func MinimalChartCodes() []string {
	codes := make([]string, 0, len(minimalChart))
	for _, acc := range minimalChart {
		codes = append(codes, acc.Code)
	}
	return codes
}

// SeedMinimal installs the minimal chart for the organization, skipping codes
// that already exist. It returns the number of accounts created.
func (s *Service) SeedMinimal(ctx context.Context, scope tenant.Scope) (int, error) {
	if err := scope.Validate(); err != nil {
		return 0, err
	}
	created := 0
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		existing, err := tx.List(ctx, scope.OrganizationID)
		if err != nil {
			return err
		}
		byCode := make(map[string]bool, len(existing))
		for _, acc := range existing {
			byCode[acc.Code] = true
		}
		for _, def := range minimalChart {
			if byCode[def.Code] {
				continue
			}
			account := Account{
				OrganizationID: scope.OrganizationID,
				CompanyID:      scope.CompanyID,
				Code:           def.Code,
				Name:           def.Name,
				Type:           def.Type,
				Level:          LevelOf(def.Code),
				IsPosting:      DefaultPosting(def.Code),
				IsActive:       true,
			}
			if parent := resolveParent(existing, def.Code, 0); parent != nil {
				account.ParentID = &parent.ID
			}
			inserted, err := tx.Insert(ctx, account)
			if err != nil {
				return err
			}
			existing = append(existing, inserted)
			for _, child := range prefixReparents(existing, inserted, "") {
				if _, err := tx.Update(ctx, child); err != nil {
					return err
				}
			}
			byCode[def.Code] = true
			created++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if created > 0 && s.cache != nil {
		_ = s.cache.Invalidate(ctx, scope.OrganizationID)
	}
	return created, nil
}
