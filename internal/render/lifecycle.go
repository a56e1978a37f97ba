package render

import (
	"context"
	"fmt"

	"abode/internal/credits"
	"abode/internal/pkg/errors"
)

// Lifecycle transitions. The state machine is:
//
//	scheduled -> queued -> processing -> completed | failed
//
// with cancellation allowed from any non-terminal state. Failure and
// cancellation hand the reserved credits back; completion never does.
// External signals (the farm reporting start/complete/fail) are idempotent:
// replaying a signal the job has already absorbed is a no-op, anything else
// off the edges above is an INVALID_TRANSITION error.

// Start marks a queued job as claimed by the render farm.
func (s *Service) Start(ctx context.Context, jobID string) (*Job, error) {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status == StatusProcessing {
		return job, nil
	}
	if job.Status != StatusQueued {
		return nil, errors.InvalidTransition(string(job.Status), string(StatusProcessing))
	}

	now := s.now()
	job.Status = StatusProcessing
	job.StartedAt = &now
	job.UpdatedAt = now
	if err := s.jobs.Update(ctx, job); err != nil {
		return nil, errors.Wrap(err, "render.start", "failed to update job")
	}

	s.log.FromContext(ctx).WithJobID(jobID).Info("render job started")
	return job, nil
}

// Progress records the farm's progress report, clamped to 0..100. Reports
// for jobs not currently processing are dropped without error; the farm may
// race a cancellation.
func (s *Service) Progress(ctx context.Context, jobID string, percent int) (*Job, error) {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != StatusProcessing {
		return job, nil
	}

	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}

	job.Progress = percent
	job.UpdatedAt = s.now()
	if err := s.jobs.Update(ctx, job); err != nil {
		return nil, errors.Wrap(err, "render.progress", "failed to update job")
	}
	return job, nil
}

// Complete marks a processing job as finished. No refund: the credits were
// spent on real farm time.
func (s *Service) Complete(ctx context.Context, jobID string) (*Job, error) {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status == StatusCompleted {
		return job, nil
	}
	if job.Status != StatusProcessing {
		return nil, errors.InvalidTransition(string(job.Status), string(StatusCompleted))
	}

	now := s.now()
	job.Status = StatusCompleted
	job.Progress = 100
	job.CompletedAt = &now
	job.UpdatedAt = now
	if err := s.jobs.Update(ctx, job); err != nil {
		return nil, errors.Wrap(err, "render.complete", "failed to update job")
	}

	s.log.FromContext(ctx).WithJobID(jobID).Info("render job completed")
	return job, nil
}

// Fail marks a job as failed and refunds its reserved credits. Valid from
// any active state; replaying the signal against an already-failed job is a
// no-op and cannot double-refund.
func (s *Service) Fail(ctx context.Context, jobID, reason string) (*Job, error) {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status == StatusFailed {
		// The replay may still owe the refund if the first attempt hit a
		// transient ledger error after the status was persisted.
		if err := s.refund(ctx, job, "failed"); err != nil {
			return nil, err
		}
		return job, nil
	}
	if !job.Status.Active() {
		return nil, errors.InvalidTransition(string(job.Status), string(StatusFailed))
	}

	now := s.now()
	job.Status = StatusFailed
	job.UpdatedAt = now
	if reason != "" {
		if job.Metadata == nil {
			job.Metadata = map[string]any{}
		}
		job.Metadata["failure_reason"] = reason
	}
	if err := s.jobs.Update(ctx, job); err != nil {
		return nil, errors.Wrap(err, "render.fail", "failed to update job")
	}

	if err := s.refund(ctx, job, "failed"); err != nil {
		return nil, err
	}

	s.log.FromContext(ctx).WithJobID(jobID).WithOrgID(job.OrgID).
		Warn("render job failed", "reason", reason, "credits_refunded", job.CreditsCost)
	return job, nil
}

// Cancel is the user-initiated abort. It refunds exactly like a failure.
// Cancelling a job that already reached a terminal state is an explicit
// error, never a silent success.
func (s *Service) Cancel(ctx context.Context, caller Identity, jobID string) (*Job, error) {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.OrgID != caller.OrgID {
		return nil, errors.NotFound("render job", jobID)
	}
	if job.Status.Terminal() {
		// A failed or cancelled job may still owe its refund when the
		// earlier attempt died between the status update and the ledger
		// write. Settle that debt before rejecting the repeat.
		if job.Status == StatusFailed || job.Status == StatusCancelled {
			if err := s.refund(ctx, job, string(job.Status)); err != nil {
				return nil, err
			}
		}
		return nil, errors.InvalidTransition(string(job.Status), string(StatusCancelled))
	}

	job.Status = StatusCancelled
	job.UpdatedAt = s.now()
	if err := s.jobs.Update(ctx, job); err != nil {
		return nil, errors.Wrap(err, "render.cancel", "failed to update job")
	}

	if err := s.refund(ctx, job, "cancelled"); err != nil {
		return nil, err
	}

	s.log.FromContext(ctx).WithJobID(jobID).WithOrgID(job.OrgID).
		Info("render job cancelled", "credits_refunded", job.CreditsCost)
	return job, nil
}

// PromoteDue moves scheduled jobs whose time has come into the queue and
// dispatches them. Called from the periodic sweep in cmd/api.
func (s *Service) PromoteDue(ctx context.Context) (int, error) {
	now := s.now()
	due, err := s.jobs.ScheduledDue(ctx, now)
	if err != nil {
		return 0, errors.Wrap(err, "render.promote", "failed to load due jobs")
	}

	promoted := 0
	for _, job := range due {
		job.Status = StatusQueued
		job.UpdatedAt = now
		if err := s.jobs.Update(ctx, job); err != nil {
			s.log.LogError(ctx, "failed to promote scheduled job", err, "job_id", job.ID)
			continue
		}
		if err := s.dispatch.Dispatch(ctx, job.ID); err != nil {
			s.log.FromContext(ctx).WithJobID(job.ID).
				Warn("dispatch failed for promoted job", "error", err.Error())
		}
		promoted++
	}

	if promoted > 0 {
		s.log.Info("promoted scheduled jobs", "count", promoted)
	}
	return promoted, nil
}

// refund returns a terminated job's credits once. A ledger that already
// holds a refund for this job means a concurrent signal beat us; that is
// fine.
func (s *Service) refund(ctx context.Context, job *Job, why string) error {
	description := fmt.Sprintf("Render job %s: %s %s", why, job.Type, job.Quality)
	err := s.ledger.Refund(ctx, job.OrgID, job.CreditsCost, job.ID, description)
	if err != nil && !errors.Is(err, credits.ErrAlreadyRefunded) {
		return errors.Wrap(err, "render.refund", "credit refund failed")
	}
	return nil
}
