package shared

import "github.com/shopspring/decimal"

// AmountScale is the number of fractional digits kept for money.
const AmountScale = 2

// ValidAmount reports whether d is non-negative with at most two decimals.
func ValidAmount(d decimal.Decimal) bool {
	if d.IsNegative() {
		return false
	}
	return d.Equal(d.Round(AmountScale))
}

// ToNumeric renders an amount for NUMERIC(18,2) columns.
func ToNumeric(d decimal.Decimal) string {
	return d.StringFixed(AmountScale)
}

// Sum adds amounts exactly.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}
