package render

import (
	"sort"
	"time"
)

// Placement is a job's computed slot in the execution queue.
//
// Position is the 1-based rank among jobs still waiting to run. Jobs already
// processing are reported at position 0 so callers can tell "running now"
// apart from "waiting". Scheduled jobs do not appear at all until their
// scheduled time promotes them into the queue.
type Placement struct {
	Position            int       `json:"position"`
	EstimatedStart      time.Time `json:"estimatedStartTime"`
	EstimatedCompletion time.Time `json:"estimatedCompletionTime"`
}

// Rank computes each active job's queue placement at the instant now.
//
// Ordering is total and deterministic: priority descending, then CreatedAt
// ascending (strict FIFO within a tier). ETAs model the farm as a single
// server: a job starts after everything ranked ahead of it finishes. The
// result is a pure function of the snapshot and is recomputed on every read,
// never stored.
func Rank(jobs []*Job, now time.Time) map[string]Placement {
	var processing, queued []*Job
	for _, j := range jobs {
		switch j.Status {
		case StatusProcessing:
			processing = append(processing, j)
		case StatusQueued:
			queued = append(queued, j)
		}
	}

	sortQueue(processing)
	sortQueue(queued)

	out := make(map[string]Placement, len(processing)+len(queued))

	// Work already on the farm delays everything behind it.
	backlog := time.Duration(0)
	for _, j := range processing {
		d := EstimatedDuration(j.Type, j.Quality, j.Engine())
		start := now
		if j.StartedAt != nil {
			start = *j.StartedAt
		}
		out[j.ID] = Placement{
			Position:            0,
			EstimatedStart:      start,
			EstimatedCompletion: start.Add(d),
		}
		backlog += remaining(d, j.Progress)
	}

	for i, j := range queued {
		d := EstimatedDuration(j.Type, j.Quality, j.Engine())
		start := now.Add(backlog)
		out[j.ID] = Placement{
			Position:            i + 1,
			EstimatedStart:      start,
			EstimatedCompletion: start.Add(d),
		}
		backlog += d
	}

	return out
}

func sortQueue(jobs []*Job) {
	sort.SliceStable(jobs, func(a, b int) bool {
		if jobs[a].Priority.Rank() != jobs[b].Priority.Rank() {
			return jobs[a].Priority.Rank() > jobs[b].Priority.Rank()
		}
		return jobs[a].CreatedAt.Before(jobs[b].CreatedAt)
	})
}

func remaining(d time.Duration, progress int) time.Duration {
	if progress <= 0 {
		return d
	}
	if progress >= 100 {
		return 0
	}
	return d * time.Duration(100-progress) / 100
}
