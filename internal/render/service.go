package render

import (
	"context"
	"fmt"
	"time"

	"abode/internal/credits"
	"abode/internal/pkg/errors"
	"abode/internal/pkg/logger"
)

// Service orchestrates the render queue: submission, lifecycle transitions
// and listing. All collaborators are injected; the service itself holds no
// mutable state.
type Service struct {
	jobs     JobStore
	projects ProjectStore
	ledger   credits.Ledger
	dispatch Dispatcher
	log      *logger.Logger
	now      func() time.Time
}

type Deps struct {
	Jobs     JobStore
	Projects ProjectStore
	Ledger   credits.Ledger
	Dispatch Dispatcher
	Log      *logger.Logger
	// Now overrides the clock, for tests. Defaults to time.Now UTC.
	Now func() time.Time
}

func NewService(d Deps) *Service {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	now := d.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		jobs:     d.Jobs,
		projects: d.Projects,
		ledger:   d.Ledger,
		dispatch: d.Dispatch,
		log:      log.WithComponent("render"),
		now:      now,
	}
}

// SubmitRequest is one incoming render request, already decoded from the
// transport. SceneData, Settings and Metadata pass through unchanged.
type SubmitRequest struct {
	ProjectID        string         `json:"projectId"`
	Type             string         `json:"type"`
	Quality          string         `json:"quality"`
	Priority         string         `json:"priority,omitempty"`
	Settings         map[string]any `json:"settings,omitempty"`
	SceneData        map[string]any `json:"sceneData,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
	NotifyOnComplete bool           `json:"notifyOnComplete,omitempty"`
	WebhookURL       string         `json:"webhookUrl,omitempty"`
	ScheduledFor     *time.Time     `json:"scheduledFor,omitempty"`
}

// SubmitResult is the successful outcome of one submission.
type SubmitResult struct {
	JobID               string    `json:"jobId"`
	Status              Status    `json:"status"`
	CreditsCost         int       `json:"creditsCost"`
	Position            int       `json:"position"`
	EstimatedStart      time.Time `json:"estimatedStartTime"`
	EstimatedCompletion time.Time `json:"estimatedCompletionTime"`
}

// Submit runs the submission pipeline: validate, resolve ownership, compute
// cost, reserve credits, persist, dispatch, rank. Every step fails fast; a
// failure before persistence leaves no trace, and a persistence failure
// after a successful reservation triggers a compensating refund. Exactly one
// reservation and one job record exist per successful call.
func (s *Service) Submit(ctx context.Context, caller Identity, req SubmitRequest) (*SubmitResult, error) {
	if caller.OrgID == "" || caller.UserID == "" {
		return nil, errors.Unauthorized("Unauthorized")
	}

	jobType, quality, priority, err := validateSubmit(req)
	if err != nil {
		return nil, err
	}

	project, err := s.projects.Get(ctx, req.ProjectID)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.New(errors.CodeNotFound, "Project not found").WithField("project_id", req.ProjectID)
		}
		return nil, errors.Wrap(err, "render.submit", "project lookup failed")
	}
	if project.OrgID != caller.OrgID {
		return nil, errors.Forbidden("Project does not belong to your organization").
			WithField("project_id", req.ProjectID)
	}

	engine := ""
	if e, ok := req.Settings["engine"].(string); ok {
		engine = e
	}
	cost := Cost(jobType, quality, priority, engine)

	now := s.now()
	jobID := NewJobID()
	log := s.log.FromContext(ctx).WithJobID(jobID).WithOrgID(caller.OrgID)

	description := fmt.Sprintf("Render job queued: %s %s", jobType, quality)
	if err := s.ledger.Reserve(ctx, caller.OrgID, cost, jobID, description); err != nil {
		var ice *credits.InsufficientCreditsError
		if errors.As(err, &ice) {
			log.Warn("submission rejected, insufficient credits",
				"credits_cost", ice.Required,
				"credits_available", ice.Available,
			)
			return nil, errors.InsufficientCredits(ice.Required, ice.Available)
		}
		return nil, errors.Wrap(err, "render.submit", "credit reservation failed")
	}

	status := StatusQueued
	if req.ScheduledFor != nil && req.ScheduledFor.After(now) {
		status = StatusScheduled
	}

	job := &Job{
		ID:             jobID,
		OrgID:          caller.OrgID,
		ProjectID:      req.ProjectID,
		UserID:         caller.UserID,
		Type:           jobType,
		Quality:        quality,
		Priority:       priority,
		Status:         status,
		CreditsCost:    cost,
		SceneData:      req.SceneData,
		RenderSettings: req.Settings,
		Metadata:       submitMetadata(req),
		ScheduledFor:   req.ScheduledFor,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.jobs.Create(ctx, job); err != nil {
		// The reservation already went through; hand the credits back before
		// surfacing the failure.
		if rerr := s.ledger.Refund(ctx, caller.OrgID, cost, jobID, "Render job rollback: store failure"); rerr != nil {
			log.LogError(ctx, "compensating refund failed", rerr)
		}
		return nil, errors.WrapWithCode(err, errors.CodeUnavailable, "render.submit", "failed to persist job")
	}

	if status == StatusQueued {
		if err := s.dispatch.Dispatch(ctx, jobID); err != nil {
			// The job is durably queued; losing the nudge is not a
			// submission failure.
			log.Warn("dispatch failed, job remains queued", "error", err.Error())
		}
	}

	var placement Placement
	if status == StatusScheduled {
		// Scheduled jobs hold no queue slot yet; their estimates come
		// from the requested start time.
		start := req.ScheduledFor.UTC()
		placement = Placement{
			EstimatedStart:      start,
			EstimatedCompletion: start.Add(EstimatedDuration(jobType, quality, engine)),
		}
	} else {
		placement, err = s.placementOf(ctx, jobID)
		if err != nil {
			return nil, err
		}
	}

	log.Info("render job submitted",
		"type", string(jobType),
		"quality", string(quality),
		"priority", string(priority),
		"status", string(status),
		"credits_cost", cost,
		"position", placement.Position,
	)

	return &SubmitResult{
		JobID:               jobID,
		Status:              status,
		CreditsCost:         cost,
		Position:            placement.Position,
		EstimatedStart:      placement.EstimatedStart,
		EstimatedCompletion: placement.EstimatedCompletion,
	}, nil
}

// Get returns one of the caller's jobs together with its live placement.
// Jobs of other orgs are reported as not found rather than forbidden.
func (s *Service) Get(ctx context.Context, caller Identity, jobID string) (*Job, Placement, error) {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, Placement{}, err
	}
	if job.OrgID != caller.OrgID {
		return nil, Placement{}, errors.NotFound("render job", jobID)
	}

	placement := Placement{}
	if job.Status == StatusQueued || job.Status == StatusProcessing {
		placement, err = s.placementOf(ctx, jobID)
		if err != nil {
			return nil, Placement{}, err
		}
	}
	return job, placement, nil
}

// placementOf recomputes the ranking snapshot and returns jobID's slot.
func (s *Service) placementOf(ctx context.Context, jobID string) (Placement, error) {
	active, err := s.jobs.Active(ctx)
	if err != nil {
		return Placement{}, errors.Wrap(err, "render.rank", "failed to load active jobs")
	}
	return Rank(active, s.now())[jobID], nil
}

func validateSubmit(req SubmitRequest) (JobType, Quality, Priority, error) {
	if req.ProjectID == "" {
		return "", "", "", errors.ValidationField("projectId", "projectId is required")
	}
	if req.Type == "" {
		return "", "", "", errors.ValidationField("type", "type is required")
	}
	if req.Quality == "" {
		return "", "", "", errors.ValidationField("quality", "quality is required")
	}

	jobType := JobType(req.Type)
	if !jobType.Valid() {
		return "", "", "", errors.Validationf("Invalid type: %s", req.Type).WithField("field", "type")
	}

	quality := Quality(req.Quality)
	if !quality.Valid() {
		return "", "", "", errors.Validationf("Invalid quality: %s", req.Quality).WithField("field", "quality")
	}

	priority := PriorityNormal
	if req.Priority != "" {
		priority = Priority(req.Priority)
		if !priority.Valid() {
			return "", "", "", errors.Validationf("Invalid priority: %s", req.Priority).WithField("field", "priority")
		}
	}

	return jobType, quality, priority, nil
}

// submitMetadata merges the request's opaque metadata with the notification
// fields the webhook deliverer reads later.
func submitMetadata(req SubmitRequest) map[string]any {
	md := make(map[string]any, len(req.Metadata)+2)
	for k, v := range req.Metadata {
		md[k] = v
	}
	if req.NotifyOnComplete {
		md["notify_on_complete"] = true
	}
	if req.WebhookURL != "" {
		md["webhook_url"] = req.WebhookURL
	}
	if len(md) == 0 {
		return nil
	}
	return md
}
