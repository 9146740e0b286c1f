package integration

import (
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/glosa"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
)

func round2(value decimal.Decimal) decimal.Decimal {
	return value.Round(2)
}

// saleKeys lists the mapping keys a sale needs.
func saleKeys(evt SaleRegistered) []string {
	keys := []string{mappings.KeySalesCash, mappings.KeySalesRevenue}
	if evt.Tax.IsPositive() {
		keys = append(keys, mappings.KeySalesVAT)
	}
	if evt.Cost.IsPositive() {
		keys = append(keys, mappings.KeySalesCOGS, mappings.KeySalesInventory)
	}
	return keys
}

// saleLines builds the balanced lines of a sale: cash against revenue and VAT,
// then cost of sales against inventory.
func saleLines(evt SaleRegistered, resolved map[string]accounts.Account) []journals.LineInput {
	total := round2(evt.Total)
	tax := round2(evt.Tax)
	cost := round2(evt.Cost)

	line := func(key string, debit, credit decimal.Decimal) journals.LineInput {
		acc := resolved[key]
		return journals.LineInput{
			AccountID:   acc.ID,
			Debit:       debit,
			Credit:      credit,
			Description: glosa.For(acc.Code, evt.Serie, evt.Correlativo, evt.ProductLabel, evt.PaymentMethod),
		}
	}

	lines := []journals.LineInput{
		line(mappings.KeySalesCash, total, decimal.Zero),
		line(mappings.KeySalesRevenue, decimal.Zero, total.Sub(tax)),
	}
	if tax.IsPositive() {
		lines = append(lines, line(mappings.KeySalesVAT, decimal.Zero, tax))
	}
	if cost.IsPositive() {
		lines = append(lines,
			line(mappings.KeySalesCOGS, cost, decimal.Zero),
			line(mappings.KeySalesInventory, decimal.Zero, cost),
		)
	}
	return lines
}
