// Package requestctx carries authenticated request identity through context.
package requestctx

import "context"

// Principal identifies the authenticated operator serving a request, with the
// role/status snapshot already refreshed from the account directory.
type Principal struct {
	ID     string
	Name   string
	Email  string
	Role   string
	Status string
}

// principalContextKey is the context key for the authenticated principal.
type principalContextKey struct{}

// WithPrincipal stores the authenticated principal in context.
func WithPrincipal(ctx context.Context, principal Principal) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, principalContextKey{}, principal)
}

// PrincipalFromContext returns the principal stored in context, if any.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	principal, ok := ctx.Value(principalContextKey{}).(Principal)
	return principal, ok
}
