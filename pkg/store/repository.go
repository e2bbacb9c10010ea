// Package store holds the repositories behind every namespace-scoped object:
// namespaces, role bindings, access control entries, quotas and the declared
// Kafka resources. Two backends are provided, an in-memory map and gorm.
package store

import (
	"context"

	"github.com/michelin/ns4kafka-go/pkg/resource"
)

// Repository persists resources keyed by (kind, namespace, name).
// Get returns nil, nil when the resource does not exist.
// List with an empty namespace returns the kind across all namespaces.
type Repository interface {
	Get(ctx context.Context, key resource.Key) (*resource.Resource, error)
	List(ctx context.Context, kind resource.Kind, namespace string) ([]*resource.Resource, error)
	Put(ctx context.Context, r *resource.Resource) error
	Delete(ctx context.Context, key resource.Key) (bool, error)
}

// ChangeFunc is notified after a successful Put or Delete.
type ChangeFunc func(key resource.Key)

// ObservedRepository notifies listeners after every mutation.
type ObservedRepository struct {
	Repository
	onChange []ChangeFunc
}

// NewObservedRepository wraps inner so that fns run after each mutation.
func NewObservedRepository(inner Repository, fns ...ChangeFunc) *ObservedRepository {
	return &ObservedRepository{Repository: inner, onChange: fns}
}

// OnChange registers another listener. Not safe to call concurrently with mutations.
func (o *ObservedRepository) OnChange(fn ChangeFunc) {
	o.onChange = append(o.onChange, fn)
}

func (o *ObservedRepository) Put(ctx context.Context, r *resource.Resource) error {
	if err := o.Repository.Put(ctx, r); err != nil {
		return err
	}
	o.notify(r.Key())
	return nil
}

func (o *ObservedRepository) Delete(ctx context.Context, key resource.Key) (bool, error) {
	deleted, err := o.Repository.Delete(ctx, key)
	if err != nil {
		return false, err
	}
	if deleted {
		o.notify(key)
	}
	return deleted, nil
}

func (o *ObservedRepository) notify(key resource.Key) {
	for _, fn := range o.onChange {
		fn(key)
	}
}
