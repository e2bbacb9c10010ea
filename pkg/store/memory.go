package store

import (
	"context"
	"sort"
	"sync"

	"github.com/michelin/ns4kafka-go/pkg/resource"
)

// MemoryRepository keeps resources in a map guarded by a RWMutex.
// Values are cloned on the way in and out so callers never share state.
type MemoryRepository struct {
	mu    sync.RWMutex
	items map[resource.Key]*resource.Resource
}

// NewMemoryRepository creates an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{items: make(map[resource.Key]*resource.Resource)}
}

func (m *MemoryRepository) Get(_ context.Context, key resource.Key) (*resource.Resource, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.items[key]
	if !ok {
		return nil, nil
	}
	return r.Clone(), nil
}

func (m *MemoryRepository) List(_ context.Context, kind resource.Kind, namespace string) ([]*resource.Resource, error) {
	m.mu.RLock()
	out := make([]*resource.Resource, 0)
	for k, r := range m.items {
		if k.Kind != kind {
			continue
		}
		if namespace != "" && k.Namespace != namespace {
			continue
		}
		out = append(out, r.Clone())
	}
	m.mu.RUnlock()

	sortResources(out)
	return out, nil
}

func (m *MemoryRepository) Put(_ context.Context, r *resource.Resource) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[r.Key()] = r.Clone()
	return nil
}

func (m *MemoryRepository) Delete(_ context.Context, key resource.Key) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[key]; !ok {
		return false, nil
	}
	delete(m.items, key)
	return true, nil
}

func sortResources(rs []*resource.Resource) {
	sort.Slice(rs, func(i, j int) bool {
		if rs[i].Metadata.Namespace != rs[j].Metadata.Namespace {
			return rs[i].Metadata.Namespace < rs[j].Metadata.Namespace
		}
		return rs[i].Metadata.Name < rs[j].Metadata.Name
	})
}
