package dispatch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"conductor/internal/domain"
)

func TestSuccessRate(t *testing.T) {
	assert.Equal(t, float64(100), successRate(0, 0), "no samples means 100")
	assert.Equal(t, float64(100), successRate(4, 0))
	assert.Equal(t, float64(50), successRate(2, 2))
	assert.Equal(t, float64(0), successRate(0, 3))
}

func TestUsageStatsCounts(t *testing.T) {
	s := &usageStats{}

	for i := 0; i < 3; i++ {
		s.recordSuccess(domain.Usage{InputTokens: 10, OutputTokens: 5}, 0.001, time.Second)
	}
	s.recordError(time.Second)

	snap := s.snapshot()
	assert.Equal(t, int64(3), snap.Requests)
	assert.Equal(t, int64(1), snap.Errors)
	assert.Equal(t, int64(4), snap.Requests+snap.Errors)
	assert.Equal(t, int64(30), snap.InputTokens)
	assert.Equal(t, int64(15), snap.OutputTokens)
	assert.Equal(t, int64(45), snap.TotalTokens())
	assert.InDelta(t, 0.003, snap.TotalCost, 1e-12)
	assert.InDelta(t, 75.0, snap.SuccessRate, 1e-9)
	assert.False(t, snap.LastRequest.IsZero())
}

func TestUsageStatsLatencyIsArithmeticMean(t *testing.T) {
	latencies := []time.Duration{
		100 * time.Millisecond,
		300 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
	}

	s := &usageStats{}
	var sum time.Duration
	for i, l := range latencies {
		// Mix successes and errors; both count as latency samples.
		if i%2 == 0 {
			s.recordSuccess(domain.Usage{}, 0, l)
		} else {
			s.recordError(l)
		}
		sum += l
	}

	want := sum / time.Duration(len(latencies))
	got := s.snapshot().AvgLatency
	assert.InDelta(t, float64(want), float64(got), float64(5*time.Millisecond),
		"running average should match the arithmetic mean")
}

func TestUsageStatsErrorDoesNotAddTokens(t *testing.T) {
	s := &usageStats{}
	s.recordError(time.Second)

	snap := s.snapshot()
	assert.Zero(t, snap.InputTokens)
	assert.Zero(t, snap.OutputTokens)
	assert.Zero(t, snap.TotalCost)
	assert.Equal(t, int64(1), snap.Errors)
}

func TestUsageStatsReset(t *testing.T) {
	s := &usageStats{}
	s.recordSuccess(domain.Usage{InputTokens: 1, OutputTokens: 1}, 1, time.Second)
	s.reset()

	snap := s.snapshot()
	assert.Zero(t, snap.Requests)
	assert.Zero(t, snap.Errors)
	assert.Zero(t, snap.TotalCost)
	assert.Zero(t, snap.AvgLatency)
	assert.Equal(t, float64(100), snap.SuccessRate)
	assert.True(t, snap.LastRequest.IsZero())
}
