package render

import (
	"context"
	"sort"

	"abode/internal/pkg/errors"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// ListParams narrows and pages a listing. Limit defaults to 50, capped at
// 200; Offset defaults to 0.
type ListParams struct {
	Filter JobFilter
	Limit  int
	Offset int
}

// Pagination echoes the window back with the total match count.
type Pagination struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Total  int `json:"total"`
}

// Stats aggregates the org's full job set matching the filter, regardless
// of the pagination window. AvgWaitSeconds is the mean queue wait
// (startedAt - createdAt) over jobs that have started.
type Stats struct {
	TotalJobs      int     `json:"totalJobs"`
	Queued         int     `json:"queued"`
	Processing     int     `json:"processing"`
	Scheduled      int     `json:"scheduled"`
	AvgWaitSeconds float64 `json:"avgWaitTime"`
}

// ListedJob is a job plus its live queue placement when it has one.
type ListedJob struct {
	*Job
	Queue *Placement `json:"queue,omitempty"`
}

// ListResult is one page of jobs with pagination and aggregate stats. An
// empty match yields an empty slice and zeroed stats, never an error.
type ListResult struct {
	Jobs       []ListedJob `json:"jobs"`
	Pagination Pagination  `json:"pagination"`
	Stats      Stats       `json:"stats"`
}

// List returns the caller's jobs matching p. Queued jobs come first in
// execution order (the ranker's ordering); everything else follows newest
// first. Placements are recomputed on every call, never read from the job.
func (s *Service) List(ctx context.Context, caller Identity, p ListParams) (*ListResult, error) {
	if caller.OrgID == "" {
		return nil, errors.Unauthorized("Unauthorized")
	}

	jobs, err := s.jobs.ListByOrg(ctx, caller.OrgID, p.Filter)
	if err != nil {
		return nil, errors.Wrap(err, "render.list", "failed to list jobs")
	}

	active, err := s.jobs.Active(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "render.list", "failed to load active jobs")
	}
	placements := Rank(active, s.now())

	orderForListing(jobs)

	limit := p.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset := p.Offset
	if offset < 0 {
		offset = 0
	}

	page := pageOf(jobs, limit, offset)
	out := make([]ListedJob, 0, len(page))
	for _, j := range page {
		lj := ListedJob{Job: j}
		if pl, ok := placements[j.ID]; ok {
			lj.Queue = &pl
		}
		out = append(out, lj)
	}

	return &ListResult{
		Jobs:       out,
		Pagination: Pagination{Limit: limit, Offset: offset, Total: len(jobs)},
		Stats:      computeStats(jobs),
	}, nil
}

// orderForListing sorts queued jobs by execution order ahead of everything
// else; non-queued jobs follow newest first.
func orderForListing(jobs []*Job) {
	sort.SliceStable(jobs, func(a, b int) bool {
		ja, jb := jobs[a], jobs[b]
		aQueued, bQueued := ja.Status == StatusQueued, jb.Status == StatusQueued
		if aQueued != bQueued {
			return aQueued
		}
		if aQueued {
			if ja.Priority.Rank() != jb.Priority.Rank() {
				return ja.Priority.Rank() > jb.Priority.Rank()
			}
			return ja.CreatedAt.Before(jb.CreatedAt)
		}
		return ja.CreatedAt.After(jb.CreatedAt)
	})
}

func pageOf(jobs []*Job, limit, offset int) []*Job {
	if offset >= len(jobs) {
		return nil
	}
	end := offset + limit
	if end > len(jobs) {
		end = len(jobs)
	}
	return jobs[offset:end]
}

func computeStats(jobs []*Job) Stats {
	st := Stats{TotalJobs: len(jobs)}

	waited := 0
	var waitSum float64
	for _, j := range jobs {
		switch j.Status {
		case StatusQueued:
			st.Queued++
		case StatusProcessing:
			st.Processing++
		case StatusScheduled:
			st.Scheduled++
		}
		if j.StartedAt != nil {
			waitSum += j.StartedAt.Sub(j.CreatedAt).Seconds()
			waited++
		}
	}
	if waited > 0 {
		st.AvgWaitSeconds = waitSum / float64(waited)
	}
	return st
}
