package dispatch

import (
	"sync"
	"time"

	"conductor/internal/domain"
)

// usageStats accumulates accounting for one adapter, one role, or the
// whole dispatcher. All mutation goes through the mutex so concurrent
// completions never lose updates.
type usageStats struct {
	mu           sync.Mutex
	inputTokens  int64
	outputTokens int64
	totalCost    float64
	requests     int64
	errors       int64
	avgLatency   time.Duration
	lastRequest  time.Time
}

// recordSuccess folds one successful call into the running totals.
func (s *usageStats) recordSuccess(usage domain.Usage, cost float64, latency time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.inputTokens += int64(usage.InputTokens)
	s.outputTokens += int64(usage.OutputTokens)
	s.totalCost += cost
	s.requests++
	s.updateLatencyLocked(latency)
	s.lastRequest = time.Now()
}

// recordError folds one failed call into the running totals.
// Tokens and cost stay untouched; only the error count and latency move.
func (s *usageStats) recordError(latency time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.errors++
	s.updateLatencyLocked(latency)
	s.lastRequest = time.Now()
}

// updateLatencyLocked applies the incremental mean over all samples,
// successes and errors alike. Caller holds the mutex.
func (s *usageStats) updateLatencyLocked(latency time.Duration) {
	n := s.requests + s.errors
	if n <= 1 {
		s.avgLatency = latency
		return
	}
	s.avgLatency += (latency - s.avgLatency) / time.Duration(n)
}

// reset zeroes every counter.
func (s *usageStats) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.inputTokens = 0
	s.outputTokens = 0
	s.totalCost = 0
	s.requests = 0
	s.errors = 0
	s.avgLatency = 0
	s.lastRequest = time.Time{}
}

// snapshot returns a consistent copy for monitoring.
func (s *usageStats) snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return StatsSnapshot{
		InputTokens:  s.inputTokens,
		OutputTokens: s.outputTokens,
		TotalCost:    s.totalCost,
		Requests:     s.requests,
		Errors:       s.errors,
		AvgLatency:   s.avgLatency,
		SuccessRate:  successRate(s.requests, s.errors),
		LastRequest:  s.lastRequest,
	}
}

// successRate is requests/(requests+errors)×100, or 100 with no samples.
func successRate(requests, errors int64) float64 {
	total := requests + errors
	if total == 0 {
		return 100
	}
	return float64(requests) / float64(total) * 100
}

// StatsSnapshot is a read-only view of one usageStats instance.
type StatsSnapshot struct {
	InputTokens  int64         `json:"input_tokens"`
	OutputTokens int64         `json:"output_tokens"`
	TotalCost    float64       `json:"total_cost"`
	Requests     int64         `json:"requests"`
	Errors       int64         `json:"errors"`
	AvgLatency   time.Duration `json:"avg_latency"`
	SuccessRate  float64       `json:"success_rate"`
	LastRequest  time.Time     `json:"last_request"`
}

// TotalTokens is the combined token count of the snapshot.
func (s StatsSnapshot) TotalTokens() int64 { return s.InputTokens + s.OutputTokens }
