package repo

import (
	"context"
	"sync"

	"abode/internal/pkg/errors"
	"abode/internal/render"
)

// MemoryProjects is an in-process render.ProjectStore.
type MemoryProjects struct {
	mu       sync.RWMutex
	projects map[string]render.Project
}

func NewMemoryProjects() *MemoryProjects {
	return &MemoryProjects{projects: make(map[string]render.Project)}
}

// Add registers a project, replacing any previous entry with the same id.
func (m *MemoryProjects) Add(p render.Project) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.projects[p.ID] = p
}

func (m *MemoryProjects) Get(_ context.Context, id string) (*render.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.projects[id]
	if !ok {
		return nil, errors.NotFound("project", id)
	}
	return &p, nil
}
