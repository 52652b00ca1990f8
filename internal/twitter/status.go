package twitter

import (
	"context"
	"slices"
	"strings"

	"github.com/magpie-ai/magpie/internal/observe"
	"github.com/magpie-ai/magpie/internal/registry"
)

// ConnectionStatus reports whether the social-media providers are reachable
// and which tools the registry currently serves.
type ConnectionStatus struct {
	// Status is "healthy" when at least one tweet-capable tool is available,
	// "degraded" otherwise.
	Status string `json:"status"`

	// AvailableTools lists the cached tool names, sorted.
	AvailableTools []string `json:"available_tools"`

	// TotalTools is len(AvailableTools).
	TotalTools int `json:"total_tools"`

	// UserID is the managed account identifier.
	UserID string `json:"user_id,omitempty"`

	// Diagnostics carries provider health and cache state.
	Diagnostics *registry.DebugInfo `json:"diagnostics"`
}

// SystemHealth aggregates tool usage and provider connection history into a
// coarse health verdict.
type SystemHealth struct {
	// Status is "healthy" (overall ≥ 0.9), "degraded" (≥ 0.7), or
	// "unhealthy".
	Status string `json:"status"`

	// Overall is the mean of ToolScore and ProviderScore.
	Overall float64 `json:"overall_score"`

	// ToolScore is the fraction of invoked tools that have never errored.
	ToolScore float64 `json:"tool_score"`

	// ProviderScore is the mean connection success rate across providers.
	ProviderScore float64 `json:"provider_score"`

	// Tools holds per-tool usage statistics.
	Tools map[string]observe.ToolStats `json:"tools"`
}

// Status forces a registry refresh and reports the resulting tool inventory.
// The cache is invalidated first so the answer reflects provider reachability
// right now, not a five-minute-old snapshot.
func (f *Facade) Status(ctx context.Context) ConnectionStatus {
	f.registry.Invalidate()
	tools := f.registry.Tools(ctx)

	names := make([]string, 0, len(tools))
	tweetCapable := false
	for name := range tools {
		names = append(names, name)
		if strings.Contains(name, "tweet") {
			tweetCapable = true
		}
	}
	slices.Sort(names)

	status := "degraded"
	if tweetCapable {
		status = "healthy"
	}
	return ConnectionStatus{
		Status:         status,
		AvailableTools: names,
		TotalTools:     len(names),
		UserID:         f.userID,
		Diagnostics:    f.registry.Diagnostics(),
	}
}

// Health computes the aggregate system health from tool usage stats and
// provider connection history. Providers with no recorded outcomes yet do not
// drag the score down.
func (f *Facade) Health() SystemHealth {
	toolScore := f.usage.HealthScore()

	providers := f.tracker.SnapshotAll()
	provScore := 1.0
	var sum float64
	var counted int
	for _, h := range providers {
		if h.SuccessCount+h.FailureCount == 0 {
			continue
		}
		sum += h.SuccessRate()
		counted++
	}
	if counted > 0 {
		provScore = sum / float64(counted)
	}

	overall := (toolScore + provScore) / 2

	status := "unhealthy"
	switch {
	case overall >= 0.9:
		status = "healthy"
	case overall >= 0.7:
		status = "degraded"
	}

	return SystemHealth{
		Status:        status,
		Overall:       overall,
		ToolScore:     toolScore,
		ProviderScore: provScore,
		Tools:         f.usage.Snapshot(),
	}
}
