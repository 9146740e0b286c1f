package export

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/tenant"
)

const contentType = "text/plain; charset=ISO-8859-1"

// ReportSource is the slice of the report service the exports read from.
type ReportSource interface {
	TrialBalance(ctx context.Context, scope tenant.Scope, r reports.Range) (reports.TrialBalance, error)
	LedgerRows(ctx context.Context, scope tenant.Scope, r reports.Range, page, perPage int) ([]reports.LedgerRow, int, error)
}

// Handler serves PLE downloads.
type Handler struct {
	source ReportSource
	logger *slog.Logger
	now    func() time.Time
}

func NewHandler(logger *slog.Logger, source ReportSource) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{source: source, logger: logger, now: time.Now}
}

// MountRoutes attaches the export routes next to the JSON reports.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/trial-balance/ple", h.TrialBalance)
	r.Get("/ledger/ple", h.Ledger)
}

func (h *Handler) TrialBalance(w http.ResponseWriter, r *http.Request) {
	rng, err := reports.RangeFromRequest(r)
	if err != nil {
		shared.RespondError(w, h.logger, "export trial balance", err)
		return
	}
	scope, _ := tenant.FromContext(r.Context())
	tb, err := h.source.TrialBalance(r.Context(), scope, rng)
	if err != nil {
		shared.RespondError(w, h.logger, "export trial balance", err)
		return
	}
	periodEnd := h.now()
	if rng.To != nil {
		periodEnd = *rng.To
	}
	var buf bytes.Buffer
	if err := WriteTrialBalancePLE(&buf, periodEnd, tb); err != nil {
		shared.RespondError(w, h.logger, "export trial balance", err)
		return
	}
	h.send(w, fmt.Sprintf("balance-%s.txt", periodEnd.Format("20060102")), buf.Bytes())
}

func (h *Handler) Ledger(w http.ResponseWriter, r *http.Request) {
	rng, err := reports.RangeFromRequest(r)
	if err != nil {
		shared.RespondError(w, h.logger, "export ledger", err)
		return
	}
	scope, _ := tenant.FromContext(r.Context())
	rows, _, err := h.source.LedgerRows(r.Context(), scope, rng, 1, 0)
	if err != nil {
		shared.RespondError(w, h.logger, "export ledger", err)
		return
	}
	var buf bytes.Buffer
	if err := WriteLedgerPLE(&buf, rows); err != nil {
		shared.RespondError(w, h.logger, "export ledger", err)
		return
	}
	h.send(w, fmt.Sprintf("diario-%s.txt", h.now().Format("20060102")), buf.Bytes())
}

func (h *Handler) send(w http.ResponseWriter, filename string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		h.logger.Warn("write export", slog.String("file", filename), slog.Any("error", err))
	}
}
