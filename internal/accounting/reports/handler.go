package reports

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	internalShared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/tenant"
)

// Handler serves report endpoints as JSON.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, logger: logger}
}

// MountRoutes attaches report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/trial-balance", h.TrialBalance)
	r.Get("/ledger", h.Ledger)
	r.Get("/ledger/accounts", h.LedgerByAccount)
	r.Get("/accounts/{id}/balance", h.AccountBalance)
	r.Get("/income-statement", h.ProfitAndLoss)
	r.Get("/balance-sheet", h.BalanceSheet)
}

// RangeFromRequest reads from/to, accepting start/end as aliases.
func RangeFromRequest(r *http.Request) (Range, error) {
	from, err := queryDate(r, "from", "start")
	if err != nil {
		return Range{}, err
	}
	to, err := queryDate(r, "to", "end")
	if err != nil {
		return Range{}, err
	}
	rng := Range{From: from, To: to}
	return rng, rng.Validate()
}

func queryDate(r *http.Request, names ...string) (*time.Time, error) {
	for _, name := range names {
		if r.URL.Query().Get(name) == "" {
			continue
		}
		return httpx.QueryDate(r, name)
	}
	return nil, nil
}

func (h *Handler) TrialBalance(w http.ResponseWriter, r *http.Request) {
	rng, err := RangeFromRequest(r)
	if err != nil {
		shared.RespondError(w, h.logger, "trial balance", err)
		return
	}
	scope, _ := tenant.FromContext(r.Context())
	tb, err := h.service.TrialBalance(r.Context(), scope, rng)
	if err != nil {
		shared.RespondError(w, h.logger, "trial balance", err)
		return
	}
	httpx.JSON(w, http.StatusOK, tb)
}

func (h *Handler) Ledger(w http.ResponseWriter, r *http.Request) {
	rng, err := RangeFromRequest(r)
	if err != nil {
		shared.RespondError(w, h.logger, "ledger", err)
		return
	}
	page, perPage := internalShared.PageFromQuery(r.URL.Query())
	scope, _ := tenant.FromContext(r.Context())
	rows, total, err := h.service.LedgerRows(r.Context(), scope, rng, page, perPage)
	if err != nil {
		shared.RespondError(w, h.logger, "ledger", err)
		return
	}
	if rows == nil {
		rows = []LedgerRow{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"data":       rows,
		"total":      total,
		"pagination": internalShared.NewPagination(page, perPage, total),
	})
}

func (h *Handler) LedgerByAccount(w http.ResponseWriter, r *http.Request) {
	rng, err := RangeFromRequest(r)
	if err != nil {
		shared.RespondError(w, h.logger, "ledger by account", err)
		return
	}
	scope, _ := tenant.FromContext(r.Context())
	ledger, err := h.service.Ledger(r.Context(), scope, rng)
	if err != nil {
		shared.RespondError(w, h.logger, "ledger by account", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": ledger})
}

func (h *Handler) AccountBalance(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	rng, err := RangeFromRequest(r)
	if err != nil {
		shared.RespondError(w, h.logger, "account balance", err)
		return
	}
	scope, _ := tenant.FromContext(r.Context())
	balance, err := h.service.AccountBalance(r.Context(), scope, id, rng)
	if err != nil {
		shared.RespondError(w, h.logger, "account balance", err)
		return
	}
	httpx.JSON(w, http.StatusOK, balance)
}

func (h *Handler) ProfitAndLoss(w http.ResponseWriter, r *http.Request) {
	rng, err := RangeFromRequest(r)
	if err != nil {
		shared.RespondError(w, h.logger, "income statement", err)
		return
	}
	scope, _ := tenant.FromContext(r.Context())
	report, err := h.service.ProfitAndLoss(r.Context(), scope, rng)
	if err != nil {
		shared.RespondError(w, h.logger, "income statement", err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) BalanceSheet(w http.ResponseWriter, r *http.Request) {
	asOf, err := queryDate(r, "asOf", "to")
	if err != nil {
		shared.RespondError(w, h.logger, "balance sheet", err)
		return
	}
	scope, _ := tenant.FromContext(r.Context())
	report, err := h.service.BalanceSheet(r.Context(), scope, asOf)
	if err != nil {
		shared.RespondError(w, h.logger, "balance sheet", err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}
