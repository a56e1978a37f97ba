// Package render implements the render-job queue: submission, credit
// metering, priority ranking, the job lifecycle state machine, and the
// listing/statistics views.
package render

import (
	"time"

	"github.com/google/uuid"
)

// JobType enumerates supported render job categories.
type JobType string

const (
	JobTypeStill       JobType = "still"
	JobTypeWalkthrough JobType = "walkthrough"
	JobTypePanorama    JobType = "panorama"
	JobType360Tour     JobType = "360_tour"
	JobTypeVR          JobType = "vr"
	JobTypeBatch       JobType = "batch"
)

// Quality enumerates supported output resolutions.
type Quality string

const (
	Quality720p  Quality = "720p"
	Quality1080p Quality = "1080p"
	Quality4K    Quality = "4k"
	Quality8K    Quality = "8k"
)

// Priority determines queue ordering and the cost multiplier.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityNormal   Priority = "normal"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Status enumerates job lifecycle states.
type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Valid reports whether t is a recognized job type.
func (t JobType) Valid() bool {
	switch t {
	case JobTypeStill, JobTypeWalkthrough, JobTypePanorama, JobType360Tour, JobTypeVR, JobTypeBatch:
		return true
	}
	return false
}

// Valid reports whether q is a recognized quality.
func (q Quality) Valid() bool {
	switch q {
	case Quality720p, Quality1080p, Quality4K, Quality8K:
		return true
	}
	return false
}

// Valid reports whether p is a recognized priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// Rank returns the ordering weight of a priority; higher runs first.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 3
	case PriorityHigh:
		return 2
	case PriorityNormal:
		return 1
	default:
		return 0
	}
}

// Terminal reports whether s is a final state. Terminal jobs are immutable
// and are retained for listing and audit only.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Active reports whether s participates in queue ranking.
func (s Status) Active() bool {
	return s == StatusScheduled || s == StatusQueued || s == StatusProcessing
}

// Job is a render job. The ownership triple and CreditsCost are fixed at
// creation; only the lifecycle manager mutates status, progress and the
// lifecycle timestamps.
type Job struct {
	ID             string         `json:"id"`
	OrgID          string         `json:"orgId"`
	ProjectID      string         `json:"projectId"`
	UserID         string         `json:"userId"`
	Type           JobType        `json:"type"`
	Quality        Quality        `json:"quality"`
	Priority       Priority       `json:"priority"`
	Status         Status         `json:"status"`
	CreditsCost    int            `json:"creditsCost"`
	Progress       int            `json:"progress"`
	SceneData      map[string]any `json:"sceneData,omitempty"`
	RenderSettings map[string]any `json:"renderSettings,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	ScheduledFor   *time.Time     `json:"scheduledFor,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
	StartedAt      *time.Time     `json:"startedAt,omitempty"`
	CompletedAt    *time.Time     `json:"completedAt,omitempty"`
}

// Engine returns the render engine requested in the job's settings, or ""
// when none was given.
func (j *Job) Engine() string {
	if j.RenderSettings == nil {
		return ""
	}
	if e, ok := j.RenderSettings["engine"].(string); ok {
		return e
	}
	return ""
}

// NewJobID returns a fresh job identifier.
func NewJobID() string {
	return "rj_" + uuid.NewString()
}
