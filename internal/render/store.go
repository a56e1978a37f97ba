package render

import (
	"context"
	"time"
)

// Project is the slice of a project this subsystem needs for the
// ownership check at submission time.
type Project struct {
	ID    string
	OrgID string
	Name  string
}

// Identity is the resolved caller: who submitted, and which org pays.
type Identity struct {
	OrgID  string
	UserID string
}

type identityCtxKey struct{}

// WithIdentity stores the authenticated caller in the context. The auth
// middleware calls this; handlers read it back with IdentityFrom.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityCtxKey{}, id)
}

// IdentityFrom returns the authenticated caller, or false when the request
// never passed authentication.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityCtxKey{}).(Identity)
	return id, ok
}

// JobFilter narrows a listing. Empty slices mean "any"; multiple values in
// one slice are OR'd together.
type JobFilter struct {
	Statuses   []Status
	Priorities []Priority
	Types      []JobType
	ProjectID  string
}

// Matches reports whether j satisfies every populated filter dimension.
func (f JobFilter) Matches(j *Job) bool {
	if f.ProjectID != "" && j.ProjectID != f.ProjectID {
		return false
	}
	if len(f.Statuses) > 0 && !containsStatus(f.Statuses, j.Status) {
		return false
	}
	if len(f.Priorities) > 0 && !containsPriority(f.Priorities, j.Priority) {
		return false
	}
	if len(f.Types) > 0 && !containsType(f.Types, j.Type) {
		return false
	}
	return true
}

func containsStatus(set []Status, s Status) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

func containsPriority(set []Priority, p Priority) bool {
	for _, v := range set {
		if v == p {
			return true
		}
	}
	return false
}

func containsType(set []JobType, t JobType) bool {
	for _, v := range set {
		if v == t {
			return true
		}
	}
	return false
}

// JobStore owns the durable render-job collection. Implementations live in
// internal/repo; each test gets its own isolated store.
type JobStore interface {
	// Create persists a new job. The job id must be unused.
	Create(ctx context.Context, job *Job) error
	// Get returns the job or a NOT_FOUND error.
	Get(ctx context.Context, id string) (*Job, error)
	// Update persists mutated lifecycle fields (status, progress, timestamps).
	Update(ctx context.Context, job *Job) error
	// ListByOrg returns the org's jobs matching f, newest first, unpaginated.
	ListByOrg(ctx context.Context, orgID string, f JobFilter) ([]*Job, error)
	// Active returns every queued or processing job across all orgs; this is
	// the ranking snapshot, since the farm serves the whole queue.
	Active(ctx context.Context) ([]*Job, error)
	// ScheduledDue returns scheduled jobs whose ScheduledFor is at or before
	// now, for promotion into the queue.
	ScheduledDue(ctx context.Context, now time.Time) ([]*Job, error)
}

// ProjectStore resolves projects for the submission ownership check.
type ProjectStore interface {
	// Get returns the project or a NOT_FOUND error.
	Get(ctx context.Context, id string) (*Project, error)
}

// Dispatcher hands a queued job id to the external render farm. The farm
// claims ids asynchronously and reports back through the lifecycle manager;
// nothing in this package ever blocks on it.
type Dispatcher interface {
	Dispatch(ctx context.Context, jobID string) error
}
