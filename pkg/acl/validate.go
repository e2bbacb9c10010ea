package acl

import (
	"context"
	"fmt"
	"slices"

	"github.com/michelin/ns4kafka-go/pkg/resource"
	"github.com/michelin/ns4kafka-go/pkg/store"
)

// NamespaceLookup reports namespace existence.
type NamespaceLookup interface {
	Exists(ctx context.Context, name string) (bool, error)
}

// Validator checks AccessControlEntry declarations before they are stored.
type Validator struct {
	matcher    *Matcher
	namespaces NamespaceLookup
}

// NewValidator creates a Validator.
func NewValidator(matcher *Matcher, namespaces NamespaceLookup) *Validator {
	return &Validator{matcher: matcher, namespaces: namespaces}
}

// ValidateFields checks the enumerations and required fields of spec.
func ValidateFields(spec resource.AccessControlEntrySpec) []string {
	var errs []string
	if !slices.Contains(resource.ACLResourceTypes, spec.ResourceType) {
		errs = append(errs, fmt.Sprintf("invalid value %q for field resourceType", spec.ResourceType))
	}
	if spec.ResourcePatternType != resource.PatternLiteral && spec.ResourcePatternType != resource.PatternPrefixed {
		errs = append(errs, fmt.Sprintf("invalid value %q for field resourcePatternType", spec.ResourcePatternType))
	}
	if Level(spec.Permission) == 0 {
		errs = append(errs, fmt.Sprintf("invalid value %q for field permission", spec.Permission))
	}
	if spec.Resource == "" {
		errs = append(errs, "field resource must not be empty")
	}
	if spec.GrantedTo == "" {
		errs = append(errs, "field grantedTo must not be empty")
	}
	return errs
}

// Validate returns every problem with entry as declared by a caller.
// Admins may declare any well-formed entry whose beneficiary exists.
func (v *Validator) Validate(ctx context.Context, entry store.AccessControlEntry, isAdmin bool) ([]string, error) {
	errs := ValidateFields(entry.Spec)
	if len(errs) > 0 {
		return errs, nil
	}

	exists, err := v.namespaces.Exists(ctx, entry.Spec.GrantedTo)
	if err != nil {
		return nil, err
	}
	if !exists {
		errs = append(errs, fmt.Sprintf("invalid value %q for field grantedTo: namespace not found", entry.Spec.GrantedTo))
	}
	if isAdmin {
		return errs, nil
	}

	if entry.Spec.Permission == resource.PermissionOwner {
		errs = append(errs, "invalid value OWNER for field permission: only admins can grant ownership")
	}
	if entry.Spec.GrantedTo == entry.Namespace {
		errs = append(errs, fmt.Sprintf("invalid value %q for field grantedTo: cannot grant to the granting namespace", entry.Spec.GrantedTo))
	}
	owns, err := v.matcher.OwnsPattern(ctx, entry.Namespace, entry.Spec)
	if err != nil {
		return nil, err
	}
	if !owns {
		errs = append(errs, fmt.Sprintf("invalid value %q for field resource: namespace %s is not owner of the resource", entry.Spec.Resource, entry.Namespace))
	}
	return errs, nil
}
