package tenant

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Session keys written by the authentication service.
const (
	SessionOrganizationKey = "organization_id"
	SessionCompanyKey      = "company_id"
)

// Middleware resolves the Scope from the caller session. Missing user yields
// 401, missing organization 403.
func Middleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := shared.SessionFromContext(r.Context())
			if sess == nil || sess.User() == "" {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
				return
			}
			scope, err := ScopeFromSession(sess)
			if err != nil {
				if logger != nil {
					logger.Warn("tenant scope unresolved", slog.String("user", sess.User()), slog.Any("error", err))
				}
				httpx.Problem(w, http.StatusForbidden, "Forbidden", ErrNoTenant.Error())
				return
			}
			next.ServeHTTP(w, r.WithContext(WithScope(r.Context(), scope)))
		})
	}
}

// ScopeFromSession reads organization, company and actor ids from sess.
func ScopeFromSession(sess *shared.Session) (Scope, error) {
	if sess == nil {
		return Scope{}, ErrNoTenant
	}
	orgID, err := strconv.ParseInt(sess.Get(SessionOrganizationKey), 10, 64)
	if err != nil || orgID <= 0 {
		return Scope{}, ErrNoTenant
	}
	scope := Scope{OrganizationID: orgID}
	if raw := sess.Get(SessionCompanyKey); raw != "" {
		companyID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || companyID <= 0 {
			return Scope{}, ErrNoTenant
		}
		scope.CompanyID = &companyID
	}
	if actorID, err := strconv.ParseInt(sess.User(), 10, 64); err == nil {
		scope.ActorID = actorID
	}
	return scope, nil
}
