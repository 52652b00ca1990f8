package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/magpie-ai/magpie/internal/observe"
)

// Result statuses. Every guarded operation resolves to exactly one of these;
// guarded calls never surface a Go error to the caller.
const (
	// StatusSuccess: the tool ran and returned content.
	StatusSuccess = "success"

	// StatusFailed: the operation could not run (tool unavailable) or the
	// provider reported an application-level error.
	StatusFailed = "failed"

	// StatusTimeout: the invocation exceeded the execution timeout.
	StatusTimeout = "timeout"

	// StatusError: the invocation failed for any other reason.
	StatusError = "error"
)

// Result is the uniform outcome envelope for every tool operation.
type Result struct {
	// Status is one of the Status* constants.
	Status string `json:"status"`

	// Content carries the tool output on success.
	Content string `json:"content,omitempty"`

	// Error carries a human-readable message on non-success.
	Error string `json:"error,omitempty"`

	// DebugInfo carries provider health and cache diagnostics, attached to
	// failures so a caller (or an LLM reading the result) can see why.
	DebugInfo *DebugInfo `json:"debug_info,omitempty"`
}

// Guard wraps tool invocations with a per-call execution timeout and converts
// every failure mode into a structured [Result]. It also feeds the usage
// stats and metrics so diagnostics reflect real traffic.
type Guard struct {
	timeout time.Duration
	metrics *observe.Metrics
	usage   *observe.UsageStats
}

// NewGuard creates a Guard. A non-positive timeout defaults to 30s.
func NewGuard(timeout time.Duration, metrics *observe.Metrics, usage *observe.UsageStats) *Guard {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Guard{timeout: timeout, metrics: metrics, usage: usage}
}

// Invoke runs the described tool under the guard.
func (g *Guard) Invoke(ctx context.Context, d ToolDescriptor, args map[string]any) Result {
	return g.Do(ctx, d.Tool.Name, func(ctx context.Context) (string, error) {
		res, err := d.Invoke(ctx, args)
		if err != nil {
			return "", err
		}
		if res.IsError {
			return "", fmt.Errorf("provider reported error: %s", res.Content)
		}
		return res.Content, nil
	})
}

// Do runs fn under the execution timeout and maps its outcome to a [Result]:
// success, timeout (deadline exceeded), or error. It never panics across the
// boundary and never returns a Go error.
func (g *Guard) Do(ctx context.Context, name string, fn func(ctx context.Context) (string, error)) Result {
	cctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	content, err := fn(cctx)
	elapsed := time.Since(start)

	g.usage.RecordCall(name, elapsed, err)
	g.metrics.RecordToolDuration(ctx, name, elapsed)

	switch {
	case err == nil:
		g.metrics.RecordToolCall(ctx, name, StatusSuccess)
		return Result{Status: StatusSuccess, Content: content}
	case errors.Is(err, context.DeadlineExceeded):
		g.metrics.RecordToolCall(ctx, name, StatusTimeout)
		observe.Logger(ctx).Warn("tool invocation timed out", "tool", name, "timeout", g.timeout)
		return Result{
			Status: StatusTimeout,
			Error:  fmt.Sprintf("%s timed out after %s", name, g.timeout),
		}
	default:
		g.metrics.RecordToolCall(ctx, name, StatusError)
		observe.Logger(ctx).Error("tool invocation failed", "tool", name, "err", err)
		return Result{
			Status: StatusError,
			Error:  err.Error(),
		}
	}
}
