package observe

import (
	"sync"
	"time"
)

// ToolStats is a snapshot of one tool's accumulated usage.
type ToolStats struct {
	// Count is the total number of invocations.
	Count int64 `json:"count"`

	// Errors is the number of invocations that failed or timed out.
	Errors int64 `json:"errors"`

	// TotalTime is the accumulated execution time across all invocations.
	TotalTime time.Duration `json:"total_time"`

	// AvgTime is TotalTime / Count.
	AvgTime time.Duration `json:"avg_time"`
}

// UsageStats is an in-process aggregate of per-tool call statistics.
//
// OTel counters are write-only from the application's point of view, so the
// system-health operation keeps this readable aggregate alongside them.
// Safe for concurrent use.
type UsageStats struct {
	mu    sync.RWMutex
	tools map[string]*ToolStats
}

// NewUsageStats returns an empty UsageStats.
func NewUsageStats() *UsageStats {
	return &UsageStats{tools: make(map[string]*ToolStats)}
}

// RecordCall registers one tool invocation. A non-nil err counts as an error.
func (u *UsageStats) RecordCall(tool string, d time.Duration, err error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	st, ok := u.tools[tool]
	if !ok {
		st = &ToolStats{}
		u.tools[tool] = st
	}

	st.Count++
	st.TotalTime += d
	st.AvgTime = st.TotalTime / time.Duration(st.Count)
	if err != nil {
		st.Errors++
	}
}

// Snapshot returns a copy of every tool's stats keyed by tool name.
func (u *UsageStats) Snapshot() map[string]ToolStats {
	u.mu.RLock()
	defer u.mu.RUnlock()
	out := make(map[string]ToolStats, len(u.tools))
	for name, st := range u.tools {
		out[name] = *st
	}
	return out
}

// HealthScore returns the fraction of tools that have never errored, or 1.0
// when no tool has been called yet.
func (u *UsageStats) HealthScore() float64 {
	u.mu.RLock()
	defer u.mu.RUnlock()

	if len(u.tools) == 0 {
		return 1.0
	}
	failed := 0
	for _, st := range u.tools {
		if st.Errors > 0 {
			failed++
		}
	}
	return float64(len(u.tools)-failed) / float64(len(u.tools))
}
