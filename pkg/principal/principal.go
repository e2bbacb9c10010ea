// Package principal resolves request credentials into an authenticated
// Principal: a username, its group memberships and the admin flag derived
// from them. Several interchangeable strategies are provided (local users,
// a directory, an OAuth provider and JWT bearer tokens).
package principal

import (
	"context"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
)

// principalCtxKey is an unexported type used as the context key for Principal.
type principalCtxKey struct{}

// Principal is the authenticated caller. It is immutable once built.
type Principal struct {
	username string
	groups   mapset.Set[string]
	isAdmin  bool
}

// New builds a Principal.
func New(username string, groups []string, isAdmin bool) Principal {
	return Principal{
		username: username,
		groups:   mapset.NewSet(groups...),
		isAdmin:  isAdmin,
	}
}

// Username returns the caller name.
func (p Principal) Username() string { return p.username }

// IsAdmin reports whether the caller belongs to an admin group.
func (p Principal) IsAdmin() bool { return p.isAdmin }

// InGroup reports membership of group.
func (p Principal) InGroup(group string) bool {
	return p.groups != nil && p.groups.Contains(group)
}

// Groups returns the sorted group names.
func (p Principal) Groups() []string {
	if p.groups == nil {
		return nil
	}
	out := p.groups.ToSlice()
	sort.Strings(out)
	return out
}

// WithPrincipal returns a new context with the given Principal attached.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalCtxKey{}, p)
}

// FromContext retrieves the Principal from the context.
// Returns the zero value and false for anonymous requests.
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalCtxKey{}).(Principal)
	return p, ok
}

// RoleComputer derives role flags from group membership.
type RoleComputer struct {
	adminGroups mapset.Set[string]
}

// NewRoleComputer creates a RoleComputer for the given admin groups.
func NewRoleComputer(adminGroups ...string) *RoleComputer {
	return &RoleComputer{adminGroups: mapset.NewSet(adminGroups...)}
}

// Compute turns a resolved identity into a Principal.
func (rc *RoleComputer) Compute(id Identity) Principal {
	groups := mapset.NewSet(id.Groups...)
	isAdmin := rc != nil && groups.ContainsAny(rc.adminGroups.ToSlice()...)
	return Principal{username: id.Username, groups: groups, isAdmin: isAdmin}
}
