package glosa

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFor(t *testing.T) {
	cases := []struct {
		name    string
		code    string
		label   string
		payment string
		want    string
	}{
		{name: "cash", code: "1011", payment: "YAPE", want: "Cobro F001-123 (YAPE)"},
		{name: "cash default payment", code: "1011", want: "Cobro F001-123 (EFECTIVO)"},
		{name: "bank prefix", code: "1041", payment: "TRANSFERENCIA", want: "Cobro F001-123 (TRANSFERENCIA)"},
		{name: "bank sub-account", code: "10411", payment: "POS", want: "Cobro F001-123 (POS)"},
		{name: "sale strips serials", code: "7011", label: "Laptop X1 SN9837462 Negra", want: "Venta F001-123 Laptop X1 Negra"},
		{name: "sale without label", code: "7011", label: "ABCDEFGHIJ", want: "Venta F001-123"},
		{name: "vat", code: "4011", label: "ignored", want: "IGV por pagar venta F001-123"},
		{name: "cost of sales", code: "6911", want: "Costo de venta F001-123"},
		{name: "inventory", code: "2011", want: "Salida de mercaderia F001-123"},
		{name: "no rule", code: "6011", want: ""},
		{name: "parent of cash is not matched", code: "10", want: ""},
		{name: "1011 is exact only", code: "10111", want: ""},
		{name: "empty", code: "", want: ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, For(tc.code, "F001", "123", tc.label, tc.payment))
		})
	}
}

func TestCleanLabel(t *testing.T) {
	assert.Equal(t, "Mouse USB", CleanLabel("  Mouse   USB  1234567 "))
	assert.Equal(t, "abc", CleanLabel("abc"))
	assert.Equal(t, "", CleanLabel("wireless"))
}
