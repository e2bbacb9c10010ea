// Package acl evaluates the cross-namespace access control entries that
// govern Kafka-native objects (topics, consumer groups, connectors...).
// Matching is existential: any entry covering the name at a sufficient
// level grants access, there is no longest-prefix resolution.
package acl

import (
	"context"
	"strings"

	"github.com/michelin/ns4kafka-go/pkg/resource"
	"github.com/michelin/ns4kafka-go/pkg/store"
)

// Level returns the rank of a permission. Unknown permissions rank 0.
func Level(p resource.Permission) int {
	switch p {
	case resource.PermissionRead:
		return 1
	case resource.PermissionWrite:
		return 2
	case resource.PermissionOwner:
		return 3
	}
	return 0
}

// Satisfies reports whether granted is at least required.
func Satisfies(granted, required resource.Permission) bool {
	return Level(granted) > 0 && Level(granted) >= Level(required)
}

// Matches reports whether entry's pattern covers name.
func Matches(entry resource.AccessControlEntrySpec, name string) bool {
	switch entry.ResourcePatternType {
	case resource.PatternLiteral:
		return entry.Resource == name
	case resource.PatternPrefixed:
		return strings.HasPrefix(name, entry.Resource)
	}
	return false
}

// Covers reports whether owner's pattern includes every name matched by
// other's pattern.
func Covers(owner, other resource.AccessControlEntrySpec) bool {
	if owner.ResourceType != other.ResourceType {
		return false
	}
	switch owner.ResourcePatternType {
	case resource.PatternPrefixed:
		return strings.HasPrefix(other.Resource, owner.Resource)
	case resource.PatternLiteral:
		return other.ResourcePatternType == resource.PatternLiteral && owner.Resource == other.Resource
	}
	return false
}

// EntryLookup lists the entries granted to a namespace.
type EntryLookup interface {
	FindAllGrantedTo(ctx context.Context, namespace string) ([]store.AccessControlEntry, error)
}

// Matcher answers ownership questions for a namespace.
type Matcher struct {
	entries EntryLookup
}

// NewMatcher creates a Matcher.
func NewMatcher(entries EntryLookup) *Matcher {
	return &Matcher{entries: entries}
}

// IsAuthorized reports whether namespace holds at least level on the named
// object of resourceType.
func (m *Matcher) IsAuthorized(ctx context.Context, namespace string, resourceType resource.ACLResourceType, name string, level resource.Permission) (bool, error) {
	entries, err := m.entries.FindAllGrantedTo(ctx, namespace)
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if e.Spec.ResourceType != resourceType {
			continue
		}
		if Matches(e.Spec, name) && Satisfies(e.Spec.Permission, level) {
			return true, nil
		}
	}
	return false, nil
}

// IsOwner is IsAuthorized at OWNER level.
func (m *Matcher) IsOwner(ctx context.Context, namespace string, resourceType resource.ACLResourceType, name string) (bool, error) {
	return m.IsAuthorized(ctx, namespace, resourceType, name, resource.PermissionOwner)
}

// OwnsPattern reports whether namespace holds an OWNER entry covering the
// whole pattern of spec.
func (m *Matcher) OwnsPattern(ctx context.Context, namespace string, spec resource.AccessControlEntrySpec) (bool, error) {
	entries, err := m.entries.FindAllGrantedTo(ctx, namespace)
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if e.Spec.Permission == resource.PermissionOwner && Covers(e.Spec, spec) {
			return true, nil
		}
	}
	return false, nil
}
