package render

import (
	"math"
	"strings"
	"time"
)

// Base credit cost keyed by job type and quality. 720p and 1080p share a
// column in the pricing sheet, so both map to the first entry.
var baseCost = map[JobType]map[Quality]int{
	JobTypeStill:       {Quality720p: 10, Quality1080p: 10, Quality4K: 25, Quality8K: 50},
	JobTypePanorama:    {Quality720p: 15, Quality1080p: 15, Quality4K: 35, Quality8K: 70},
	JobTypeWalkthrough: {Quality720p: 50, Quality1080p: 50, Quality4K: 125, Quality8K: 250},
	JobType360Tour:     {Quality720p: 50, Quality1080p: 50, Quality4K: 125, Quality8K: 250},
	JobTypeVR:          {Quality720p: 50, Quality1080p: 50, Quality4K: 125, Quality8K: 250},
	JobTypeBatch:       {Quality720p: 100, Quality1080p: 100, Quality4K: 250, Quality8K: 500},
}

var priorityMultiplier = map[Priority]float64{
	PriorityLow:      1.0,
	PriorityNormal:   1.0,
	PriorityHigh:     1.25,
	PriorityCritical: 1.5,
}

// Engine multipliers relative to the eevee rasterizer baseline. Cycles path
// tracing and Unreal real-time rendering burn more farm time per frame.
const (
	engineMultEevee  = 1.0
	engineMultCycles = 1.3
	engineMultUnreal = 1.8
)

func engineMultiplier(engine string) float64 {
	switch strings.ToLower(strings.TrimSpace(engine)) {
	case "cycles":
		return engineMultCycles
	case "unreal":
		return engineMultUnreal
	default:
		return engineMultEevee
	}
}

// Cost computes the credit cost of a render job. Pure: identical inputs
// always yield the identical cost. The result is rounded to the nearest
// integer and never drops below 1.
func Cost(t JobType, q Quality, p Priority, engine string) int {
	base := baseCost[t][q]
	cost := float64(base) * priorityMultiplier[p] * engineMultiplier(engine)

	rounded := int(math.Round(cost))
	if rounded < 1 {
		return 1
	}
	return rounded
}

// Rough farm wall-clock per job in seconds at 720p/1080p, used for queue
// ETAs. Derived from typical sample counts, not a promise to the caller.
var baseDurationSeconds = map[JobType]int{
	JobTypeStill:       60,
	JobTypePanorama:    90,
	JobTypeWalkthrough: 420,
	JobType360Tour:     420,
	JobTypeVR:          480,
	JobTypeBatch:       900,
}

var qualityDurationFactor = map[Quality]float64{
	Quality720p:  1.0,
	Quality1080p: 1.0,
	Quality4K:    2.5,
	Quality8K:    5.0,
}

// EstimatedDuration returns the expected render time for a job.
func EstimatedDuration(t JobType, q Quality, engine string) time.Duration {
	secs := float64(baseDurationSeconds[t]) * qualityDurationFactor[q] * engineMultiplier(engine)
	return time.Duration(secs) * time.Second
}
