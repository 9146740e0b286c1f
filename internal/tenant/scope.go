// Package tenant resolves and carries the organization/company scope of a caller.
package tenant

import (
	"context"
	"errors"
)

// ErrNoTenant indicates a call without an organization scope.
var ErrNoTenant = errors.New("tenant: organization scope required")

// Scope identifies the tenant a ledger operation runs against.
type Scope struct {
	OrganizationID int64
	CompanyID      *int64
	ActorID        int64
}

// Validate ensures the organization is set.
func (s Scope) Validate() error {
	if s.OrganizationID <= 0 {
		return ErrNoTenant
	}
	return nil
}

// HasCompany reports whether the scope narrows to a single company.
func (s Scope) HasCompany() bool {
	return s.CompanyID != nil && *s.CompanyID > 0
}

type scopeContextKey struct{}

// WithScope stores the resolved scope in ctx.
func WithScope(ctx context.Context, scope Scope) context.Context {
	return context.WithValue(ctx, scopeContextKey{}, scope)
}

// FromContext returns the scope stored by the middleware.
func FromContext(ctx context.Context) (Scope, bool) {
	scope, ok := ctx.Value(scopeContextKey{}).(Scope)
	return scope, ok
}
