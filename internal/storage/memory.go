package storage

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore is an in-process object store used by tests and by
// constrained single-node deployments.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
	public  map[string]bool
}

var _ ObjectStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects: make(map[string][]byte),
		public:  make(map[string]bool),
	}
}

func (m *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("storage: object %s not found", key)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (m *MemoryStore) Put(ctx context.Context, key string, data []byte, visibility Visibility) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := make([]byte, len(data))
	copy(stored, data)
	m.objects[key] = stored
	m.public[key] = visibility == VisibilityPublic
	return nil
}

func (m *MemoryStore) Remove(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	delete(m.public, key)
	return nil
}

func (m *MemoryStore) PublicURL(key string) string {
	return "memory://" + key
}

// Exists reports whether a key currently holds an object. Test helper.
func (m *MemoryStore) Exists(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[key]
	return ok
}

// Len returns the number of stored objects. Test helper.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
