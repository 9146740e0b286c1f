// Package export renders ledger reports in the pipe-delimited PLE layout.
package export

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
)

const (
	lineEnd     = "\r\n"
	stateActive = "1"
)

// WriteLedgerPLE writes one row per movement:
// Periodo|CUO|Correlativo|Fecha|CodigoCuenta|Glosa|Debe|Haber|Estado|
func WriteLedgerPLE(w io.Writer, rows []reports.LedgerRow) error {
	return write(w, func(bw *bufio.Writer) error {
		for _, row := range rows {
			description := row.Description
			if strings.TrimSpace(description) == "" {
				description = row.AccountName
			}
			if err := writeRow(bw,
				ledgerPeriod(row.Date),
				strconv.FormatInt(row.EntryNumber, 10),
				"M"+strconv.Itoa(row.Position),
				row.Date.Format("02/01/2006"),
				row.AccountCode,
				clean(description),
				money(row.Debit),
				money(row.Credit),
				stateActive,
			); err != nil {
				return err
			}
		}
		return nil
	})
}

// WriteTrialBalancePLE writes one row per trial balance account for the period
// ending on periodEnd:
// Periodo|Codigo|Denominacion|SaldoIniDeudor|SaldoIniAcreedor|MovDebe|MovHaber|SaldoFinDeudor|SaldoFinAcreedor|Estado|
func WriteTrialBalancePLE(w io.Writer, periodEnd time.Time, tb reports.TrialBalance) error {
	period := periodEnd.Format("20060102")
	return write(w, func(bw *bufio.Writer) error {
		for _, row := range tb.Rows {
			if err := writeRow(bw,
				period,
				row.Code,
				clean(row.Name),
				money(row.OpeningDebit),
				money(row.OpeningCredit),
				money(row.DebitTotal),
				money(row.CreditTotal),
				money(row.DebitBalance),
				money(row.CreditBalance),
				stateActive,
			); err != nil {
				return err
			}
		}
		return nil
	})
}

func write(w io.Writer, fn func(*bufio.Writer) error) error {
	enc := transform.NewWriter(w, charmap.ISO8859_1.NewEncoder())
	bw := bufio.NewWriter(enc)
	if err := fn(bw); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flush ple: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encode ple: %w", err)
	}
	return nil
}

func writeRow(bw *bufio.Writer, fields ...string) error {
	for _, f := range fields {
		if _, err := bw.WriteString(f); err != nil {
			return err
		}
		if err := bw.WriteByte('|'); err != nil {
			return err
		}
	}
	_, err := bw.WriteString(lineEnd)
	return err
}

// ledgerPeriod is the YYYYMM00 period code of a movement date.
func ledgerPeriod(d time.Time) string {
	return d.Format("200601") + "00"
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// clean keeps free text on one field: delimiters and line breaks become
// spaces and runes outside Latin-1 become '?'.
func clean(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '|' || r == '\r' || r == '\n' || r == '\t':
			return ' '
		case r > 0xFF:
			return '?'
		}
		return r
	}, strings.TrimSpace(s))
}
