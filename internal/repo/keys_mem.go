package repo

import (
	"context"
	"sync"

	"abode/internal/pkg/errors"
	"abode/internal/render"
)

// MemoryKeys is an in-process API-key table for tests and single-node runs.
type MemoryKeys struct {
	mu   sync.RWMutex
	keys map[string]render.Identity
}

func NewMemoryKeys() *MemoryKeys {
	return &MemoryKeys{keys: make(map[string]render.Identity)}
}

// Add registers an API key for the given identity.
func (m *MemoryKeys) Add(key string, id render.Identity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[key] = id
}

func (m *MemoryKeys) Resolve(_ context.Context, key string) (render.Identity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.keys[key]
	if !ok {
		return render.Identity{}, errors.Unauthorized("Unauthorized")
	}
	return id, nil
}
