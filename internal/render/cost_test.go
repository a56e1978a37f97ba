package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCostBaseTable(t *testing.T) {
	tests := []struct {
		jobType JobType
		quality Quality
		want    int
	}{
		{JobTypeStill, Quality720p, 10},
		{JobTypeStill, Quality1080p, 10},
		{JobTypeStill, Quality4K, 25},
		{JobTypeStill, Quality8K, 50},
		{JobTypePanorama, Quality1080p, 15},
		{JobTypePanorama, Quality4K, 35},
		{JobTypePanorama, Quality8K, 70},
		{JobTypeWalkthrough, Quality1080p, 50},
		{JobTypeWalkthrough, Quality4K, 125},
		{JobTypeWalkthrough, Quality8K, 250},
		{JobType360Tour, Quality1080p, 50},
		{JobTypeVR, Quality8K, 250},
		{JobTypeBatch, Quality720p, 100},
		{JobTypeBatch, Quality4K, 250},
		{JobTypeBatch, Quality8K, 500},
	}

	for _, tt := range tests {
		t.Run(string(tt.jobType)+"/"+string(tt.quality), func(t *testing.T) {
			got := Cost(tt.jobType, tt.quality, PriorityNormal, "")
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCostPriorityMultipliers(t *testing.T) {
	assert.Equal(t, 10, Cost(JobTypeStill, Quality1080p, PriorityLow, ""))
	assert.Equal(t, 10, Cost(JobTypeStill, Quality1080p, PriorityNormal, ""))
	assert.Equal(t, 13, Cost(JobTypeStill, Quality1080p, PriorityHigh, ""))
	assert.Equal(t, 15, Cost(JobTypeStill, Quality1080p, PriorityCritical, ""))

	// Scenario from the pricing sheet: a critical 8k still is 50 * 1.5.
	assert.Equal(t, 75, Cost(JobTypeStill, Quality8K, PriorityCritical, ""))
}

// Critical must always cost strictly more than low for identical inputs.
func TestCostPriorityOrdering(t *testing.T) {
	for _, jobType := range []JobType{JobTypeStill, JobTypePanorama, JobTypeWalkthrough, JobType360Tour, JobTypeVR, JobTypeBatch} {
		for _, quality := range []Quality{Quality720p, Quality1080p, Quality4K, Quality8K} {
			low := Cost(jobType, quality, PriorityLow, "")
			critical := Cost(jobType, quality, PriorityCritical, "")
			assert.Greater(t, critical, low, "type=%s quality=%s", jobType, quality)
		}
	}
}

// The most expensive engine must cost strictly more than the cheapest for
// identical type/quality/priority.
func TestCostEngineOrdering(t *testing.T) {
	eevee := Cost(JobTypeWalkthrough, Quality4K, PriorityNormal, "eevee")
	cycles := Cost(JobTypeWalkthrough, Quality4K, PriorityNormal, "cycles")
	unreal := Cost(JobTypeWalkthrough, Quality4K, PriorityNormal, "unreal")

	assert.Greater(t, cycles, eevee)
	assert.Greater(t, unreal, cycles)

	// Unknown engines fall back to the baseline.
	assert.Equal(t, eevee, Cost(JobTypeWalkthrough, Quality4K, PriorityNormal, "crayon"))
	assert.Equal(t, eevee, Cost(JobTypeWalkthrough, Quality4K, PriorityNormal, ""))
}

func TestCostDeterministic(t *testing.T) {
	first := Cost(JobTypeVR, Quality8K, PriorityCritical, "unreal")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Cost(JobTypeVR, Quality8K, PriorityCritical, "unreal"))
	}
	assert.GreaterOrEqual(t, Cost(JobTypeStill, Quality720p, PriorityLow, ""), 1)
}

func TestEstimatedDurationScales(t *testing.T) {
	hd := EstimatedDuration(JobTypeStill, Quality1080p, "")
	uhd := EstimatedDuration(JobTypeStill, Quality8K, "")
	assert.Greater(t, uhd, hd)

	eevee := EstimatedDuration(JobTypeWalkthrough, Quality4K, "eevee")
	cycles := EstimatedDuration(JobTypeWalkthrough, Quality4K, "cycles")
	assert.Greater(t, cycles, eevee)
}
