// Package repo contains the storage implementations behind the render
// domain's store interfaces: in-memory for tests and single-node runs,
// PostgreSQL for production.
package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"abode/internal/pkg/errors"
	"abode/internal/render"
)

// MemoryJobs is an in-process render.JobStore. Every test gets its own
// isolated instance instead of sharing a global registry.
type MemoryJobs struct {
	mu   sync.RWMutex
	jobs map[string]*render.Job
}

func NewMemoryJobs() *MemoryJobs {
	return &MemoryJobs{jobs: make(map[string]*render.Job)}
}

func (m *MemoryJobs) Create(_ context.Context, job *render.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.jobs[job.ID]; ok {
		return errors.AlreadyExists("render job", job.ID)
	}
	m.jobs[job.ID] = clone(job)
	return nil
}

func (m *MemoryJobs) Get(_ context.Context, id string) (*render.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, ok := m.jobs[id]
	if !ok {
		return nil, errors.NotFound("render job", id)
	}
	return clone(job), nil
}

func (m *MemoryJobs) Update(_ context.Context, job *render.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.jobs[job.ID]; !ok {
		return errors.NotFound("render job", job.ID)
	}
	m.jobs[job.ID] = clone(job)
	return nil
}

func (m *MemoryJobs) ListByOrg(_ context.Context, orgID string, f render.JobFilter) ([]*render.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*render.Job, 0)
	for _, job := range m.jobs {
		if job.OrgID == orgID && f.Matches(job) {
			out = append(out, clone(job))
		}
	}
	sort.Slice(out, func(a, b int) bool {
		return out[a].CreatedAt.After(out[b].CreatedAt)
	})
	return out, nil
}

func (m *MemoryJobs) Active(_ context.Context) ([]*render.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*render.Job, 0)
	for _, job := range m.jobs {
		if job.Status == render.StatusQueued || job.Status == render.StatusProcessing {
			out = append(out, clone(job))
		}
	}
	return out, nil
}

func (m *MemoryJobs) ScheduledDue(_ context.Context, now time.Time) ([]*render.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*render.Job, 0)
	for _, job := range m.jobs {
		if job.Status == render.StatusScheduled && job.ScheduledFor != nil && !job.ScheduledFor.After(now) {
			out = append(out, clone(job))
		}
	}
	return out, nil
}

// clone copies the job struct so callers never alias stored state. The
// payload maps stay shared; they are opaque and pass through unmodified.
func clone(job *render.Job) *render.Job {
	c := *job
	return &c
}
