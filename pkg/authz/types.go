// Package authz decides whether an authenticated principal may call a
// namespace-scoped route. Decisions are derived from the request path and
// the RoleBindings of the target namespace; admins bypass the bindings.
package authz

import (
	"context"

	"github.com/michelin/ns4kafka-go/pkg/principal"
	"github.com/michelin/ns4kafka-go/pkg/store"
)

// Decision is the outcome of an authorization check.
type Decision int

const (
	// NotApplicable means the engine has no opinion. The HTTP gate denies it.
	NotApplicable Decision = iota
	Allow
	Deny
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "ALLOW"
	case Deny:
		return "DENY"
	default:
		return "NOT_APPLICABLE"
	}
}

// Request is a single authorization question. Principal is nil for
// anonymous callers.
type Request struct {
	Path      string
	Method    string
	Principal *principal.Principal
}

// Authorizer answers authorization requests. Implementations never fail:
// lookup errors resolve to NotApplicable.
type Authorizer interface {
	Authorize(ctx context.Context, req Request) Decision
}

// NamespaceLookup reports namespace existence.
type NamespaceLookup interface {
	Exists(ctx context.Context, name string) (bool, error)
}

// BindingLookup lists the RoleBindings declared in a namespace.
type BindingLookup interface {
	FindAllForNamespace(ctx context.Context, namespace string) ([]store.RoleBinding, error)
}
