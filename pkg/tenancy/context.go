// Package tenancy resolves the namespace a request targets and carries it,
// together with the caller, through the request context.
package tenancy

import "context"

type ctxKey struct{}

// Tenant is the namespace a request acts on and who is acting.
type Tenant struct {
	Namespace string
	User      string
	Groups    []string
}

// WithTenant returns a copy of ctx carrying t.
func WithTenant(ctx context.Context, t Tenant) context.Context {
	return context.WithValue(ctx, ctxKey{}, t)
}

// FromContext returns the tenant stored in ctx.
func FromContext(ctx context.Context) (Tenant, bool) {
	t, ok := ctx.Value(ctxKey{}).(Tenant)
	return t, ok
}

// NamespaceFromContext returns the tenant namespace, or "".
func NamespaceFromContext(ctx context.Context) string {
	t, _ := FromContext(ctx)
	return t.Namespace
}
