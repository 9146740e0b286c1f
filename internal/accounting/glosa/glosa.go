// Package glosa derives short narratives for generated journal lines.
package glosa

import (
	"fmt"
	"regexp"
	"strings"
)

var longToken = regexp.MustCompile(`\b\w{7,}\b`)

type rule struct {
	code   string
	prefix bool
	render func(v voucher) string
}

type voucher struct {
	serie       string
	correlativo string
	label       string
	payment     string
}

func (v voucher) ref() string {
	return v.serie + "-" + v.correlativo
}

// Rules are evaluated in order; the first match wins.
var rules = []rule{
	{code: "1011", render: collection},
	{code: "104", prefix: true, render: collection},
	{code: "7011", render: func(v voucher) string {
		label := CleanLabel(v.label)
		if label == "" {
			return fmt.Sprintf("Venta %s", v.ref())
		}
		return fmt.Sprintf("Venta %s %s", v.ref(), label)
	}},
	{code: "4011", render: func(v voucher) string {
		return fmt.Sprintf("IGV por pagar venta %s", v.ref())
	}},
	{code: "6911", render: func(v voucher) string {
		return fmt.Sprintf("Costo de venta %s", v.ref())
	}},
	{code: "2011", render: func(v voucher) string {
		return fmt.Sprintf("Salida de mercaderia %s", v.ref())
	}},
}

func collection(v voucher) string {
	payment := strings.TrimSpace(v.payment)
	if payment == "" {
		payment = "EFECTIVO"
	}
	return fmt.Sprintf("Cobro %s (%s)", v.ref(), payment)
}

// For returns the narrative for a line on accountCode, or "" when no rule applies.
func For(accountCode, serie, correlativo, productLabel, paymentMethod string) string {
	code := strings.TrimSpace(accountCode)
	if code == "" {
		return ""
	}
	v := voucher{
		serie:       strings.TrimSpace(serie),
		correlativo: strings.TrimSpace(correlativo),
		label:       productLabel,
		payment:     paymentMethod,
	}
	for _, r := range rules {
		if r.code == code || (r.prefix && strings.HasPrefix(code, r.code)) {
			return r.render(v)
		}
	}
	return ""
}

// CleanLabel drops serial-like tokens of seven or more word characters and
// collapses the remaining whitespace.
func CleanLabel(label string) string {
	return strings.Join(strings.Fields(longToken.ReplaceAllString(label, " ")), " ")
}
