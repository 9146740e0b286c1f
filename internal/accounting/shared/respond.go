package shared

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-ledger/internal/tenant"
)

// RespondError writes the problem response for a ledger error. Unclassified
// errors are logged and reported as 500.
func RespondError(w http.ResponseWriter, logger *slog.Logger, op string, err error) {
	switch KindOf(err) {
	case KindValidation:
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	case KindNotFound:
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
		return
	case KindConflict:
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
		return
	}
	if errors.Is(err, tenant.ErrNoTenant) {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", err.Error())
		return
	}
	if errors.Is(err, httpx.ErrValidation) || errors.Is(err, httpx.ErrNotFound) || errors.Is(err, httpx.ErrConflict) {
		httpx.RespondError(w, err)
		return
	}
	if logger != nil {
		logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
