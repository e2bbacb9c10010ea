package store

import (
	"context"
	"fmt"

	"github.com/michelin/ns4kafka-go/pkg/resource"
)

// Namespaces gives namespace-level access to a Repository.
type Namespaces struct {
	repo Repository
}

// NewNamespaces creates a Namespaces accessor.
func NewNamespaces(repo Repository) *Namespaces {
	return &Namespaces{repo: repo}
}

// FindByName returns the namespace or nil if it does not exist.
func (n *Namespaces) FindByName(ctx context.Context, name string) (*resource.Resource, error) {
	return n.repo.Get(ctx, resource.Key{Kind: resource.KindNamespace, Name: name})
}

// Exists reports whether the namespace exists.
func (n *Namespaces) Exists(ctx context.Context, name string) (bool, error) {
	ns, err := n.FindByName(ctx, name)
	if err != nil {
		return false, err
	}
	return ns != nil, nil
}

// List returns every namespace.
func (n *Namespaces) List(ctx context.Context) ([]*resource.Resource, error) {
	return n.repo.List(ctx, resource.KindNamespace, "")
}

// Create stores a namespace, replacing any previous version.
func (n *Namespaces) Create(ctx context.Context, ns *resource.Resource) error {
	ns.Kind = resource.KindNamespace
	ns.Metadata.Namespace = ""
	return n.repo.Put(ctx, ns)
}

// Delete removes a namespace. Children are left in place.
func (n *Namespaces) Delete(ctx context.Context, name string) (bool, error) {
	return n.repo.Delete(ctx, resource.Key{Kind: resource.KindNamespace, Name: name})
}

// RoleBinding is a decoded RoleBinding resource.
type RoleBinding struct {
	Name      string
	Namespace string
	Spec      resource.RoleBindingSpec
}

// RoleBindings gives typed access to RoleBinding resources.
type RoleBindings struct {
	repo Repository
}

// NewRoleBindings creates a RoleBindings accessor.
func NewRoleBindings(repo Repository) *RoleBindings {
	return &RoleBindings{repo: repo}
}

// FindAllForNamespace returns every binding declared in namespace.
func (b *RoleBindings) FindAllForNamespace(ctx context.Context, namespace string) ([]RoleBinding, error) {
	return b.list(ctx, namespace)
}

// FindAll returns every binding across namespaces.
func (b *RoleBindings) FindAll(ctx context.Context) ([]RoleBinding, error) {
	return b.list(ctx, "")
}

func (b *RoleBindings) list(ctx context.Context, namespace string) ([]RoleBinding, error) {
	rs, err := b.repo.List(ctx, resource.KindRoleBinding, namespace)
	if err != nil {
		return nil, err
	}
	out := make([]RoleBinding, 0, len(rs))
	for _, r := range rs {
		spec, err := resource.DecodeSpec[resource.RoleBindingSpec](r)
		if err != nil {
			return nil, fmt.Errorf("role binding %s: %w", r.Key(), err)
		}
		out = append(out, RoleBinding{Name: r.Metadata.Name, Namespace: r.Metadata.Namespace, Spec: spec})
	}
	return out, nil
}

// Create stores a binding.
func (b *RoleBindings) Create(ctx context.Context, rb RoleBinding) error {
	r, err := resource.New(resource.KindRoleBinding, rb.Namespace, rb.Name, rb.Spec)
	if err != nil {
		return err
	}
	return b.repo.Put(ctx, r)
}

// Delete removes a binding.
func (b *RoleBindings) Delete(ctx context.Context, namespace, name string) (bool, error) {
	return b.repo.Delete(ctx, resource.Key{Kind: resource.KindRoleBinding, Namespace: namespace, Name: name})
}

// AccessControlEntry is a decoded AccessControlEntry resource. Namespace is
// the granting namespace; Spec.GrantedTo is the beneficiary.
type AccessControlEntry struct {
	Name      string
	Namespace string
	Spec      resource.AccessControlEntrySpec
}

// AccessControlEntries gives typed access to AccessControlEntry resources.
type AccessControlEntries struct {
	repo Repository
}

// NewAccessControlEntries creates an AccessControlEntries accessor.
func NewAccessControlEntries(repo Repository) *AccessControlEntries {
	return &AccessControlEntries{repo: repo}
}

// FindAll returns every entry across namespaces.
func (a *AccessControlEntries) FindAll(ctx context.Context) ([]AccessControlEntry, error) {
	return a.list(ctx, "")
}

// FindAllForNamespace returns entries declared by namespace.
func (a *AccessControlEntries) FindAllForNamespace(ctx context.Context, namespace string) ([]AccessControlEntry, error) {
	return a.list(ctx, namespace)
}

// FindAllGrantedTo returns entries whose beneficiary is namespace,
// regardless of which namespace declared them.
func (a *AccessControlEntries) FindAllGrantedTo(ctx context.Context, namespace string) ([]AccessControlEntry, error) {
	all, err := a.list(ctx, "")
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, e := range all {
		if e.Spec.GrantedTo == namespace {
			out = append(out, e)
		}
	}
	return out, nil
}

func (a *AccessControlEntries) list(ctx context.Context, namespace string) ([]AccessControlEntry, error) {
	rs, err := a.repo.List(ctx, resource.KindAccessControlEntry, namespace)
	if err != nil {
		return nil, err
	}
	out := make([]AccessControlEntry, 0, len(rs))
	for _, r := range rs {
		spec, err := resource.DecodeSpec[resource.AccessControlEntrySpec](r)
		if err != nil {
			return nil, fmt.Errorf("access control entry %s: %w", r.Key(), err)
		}
		out = append(out, AccessControlEntry{Name: r.Metadata.Name, Namespace: r.Metadata.Namespace, Spec: spec})
	}
	return out, nil
}

// Create stores an entry as a whole unit.
func (a *AccessControlEntries) Create(ctx context.Context, e AccessControlEntry) error {
	r, err := resource.New(resource.KindAccessControlEntry, e.Namespace, e.Name, e.Spec)
	if err != nil {
		return err
	}
	return a.repo.Put(ctx, r)
}

// Delete removes the entries named name in namespace and returns the ones
// actually removed.
func (a *AccessControlEntries) Delete(ctx context.Context, namespace, name string) ([]AccessControlEntry, error) {
	entries, err := a.list(ctx, namespace)
	if err != nil {
		return nil, err
	}
	var removed []AccessControlEntry
	for _, e := range entries {
		if e.Name != name {
			continue
		}
		ok, err := a.repo.Delete(ctx, resource.Key{Kind: resource.KindAccessControlEntry, Namespace: e.Namespace, Name: e.Name})
		if err != nil {
			return removed, err
		}
		if ok {
			removed = append(removed, e)
		}
	}
	return removed, nil
}

// Quotas gives typed access to the single ResourceQuota of a namespace.
type Quotas struct {
	repo Repository
}

// NewQuotas creates a Quotas accessor.
func NewQuotas(repo Repository) *Quotas {
	return &Quotas{repo: repo}
}

// FindForNamespace returns the namespace quota, or nil if none is set.
func (q *Quotas) FindForNamespace(ctx context.Context, namespace string) (*resource.Resource, error) {
	rs, err := q.repo.List(ctx, resource.KindResourceQuota, namespace)
	if err != nil {
		return nil, err
	}
	if len(rs) == 0 {
		return nil, nil
	}
	return rs[0], nil
}

// Limits returns the decoded limits of the namespace quota, or nil.
func (q *Quotas) Limits(ctx context.Context, namespace string) (resource.ResourceQuotaSpec, error) {
	r, err := q.FindForNamespace(ctx, namespace)
	if err != nil || r == nil {
		return nil, err
	}
	return resource.DecodeSpec[resource.ResourceQuotaSpec](r)
}

// Replace stores r as the only quota of its namespace.
func (q *Quotas) Replace(ctx context.Context, r *resource.Resource) error {
	existing, err := q.repo.List(ctx, resource.KindResourceQuota, r.Metadata.Namespace)
	if err != nil {
		return err
	}
	for _, e := range existing {
		if e.Metadata.Name == r.Metadata.Name {
			continue
		}
		if _, err := q.repo.Delete(ctx, e.Key()); err != nil {
			return err
		}
	}
	return q.repo.Put(ctx, r)
}
