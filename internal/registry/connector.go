// Package registry implements the resilient remote-tool-access layer: a
// retrying connector per provider, a time-boxed tool registry cache with
// stale fallback, and an invocation guard that converts provider faults into
// structured results.
package registry

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/magpie-ai/magpie/internal/health"
	"github.com/magpie-ai/magpie/internal/mcp"
	"github.com/magpie-ai/magpie/internal/observe"
	"github.com/magpie-ai/magpie/internal/resilience"
)

// ToolDescriptor is one callable entry in the registry: a discovered tool
// plus the live session that can invoke it.
type ToolDescriptor struct {
	Tool mcp.Tool

	session mcp.Session
}

// NewToolDescriptor binds a discovered tool to the session that serves it.
func NewToolDescriptor(t mcp.Tool, s mcp.Session) ToolDescriptor {
	return ToolDescriptor{Tool: t, session: s}
}

// Invoke calls the underlying provider tool.
func (d ToolDescriptor) Invoke(ctx context.Context, args map[string]any) (*mcp.ToolResult, error) {
	return d.session.CallTool(ctx, d.Tool.Name, args)
}

// ConnectorConfig holds the retry tuning for a [Connector]. Zero values are
// replaced with production defaults.
type ConnectorConfig struct {
	// MaxRetries bounds attempts per Connect call. Default: 3.
	MaxRetries int

	// BaseDelay is the backoff delay before the second attempt; it doubles
	// per attempt. Default: 1s.
	BaseDelay time.Duration

	// MaxDelay caps the backoff delay. Default: 8s.
	MaxDelay time.Duration

	// ConnectTimeout bounds one dial-and-enumerate attempt. Default: 20s.
	ConnectTimeout time.Duration
}

// Connector establishes a session with a single provider and imports its
// tools, retrying with capped exponential backoff. Attempts are gated by the
// provider's circuit breaker. Only the final outcome of a Connect call is
// recorded in the health tracker: a provider that times out on attempt one
// but succeeds on attempt two counts as a net success.
type Connector struct {
	dialer   mcp.Dialer
	tracker  *health.Tracker
	breakers *resilience.BreakerSet
	metrics  *observe.Metrics

	maxRetries     int
	baseDelay      time.Duration
	maxDelay       time.Duration
	connectTimeout time.Duration

	// sleep is a seam for tests; defaults to a context-aware sleep.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewConnector creates a Connector using the given collaborators.
func NewConnector(dialer mcp.Dialer, tracker *health.Tracker, breakers *resilience.BreakerSet, metrics *observe.Metrics, cfg ConnectorConfig) *Connector {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 8 * time.Second
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 20 * time.Second
	}
	return &Connector{
		dialer:         dialer,
		tracker:        tracker,
		breakers:       breakers,
		metrics:        metrics,
		maxRetries:     cfg.MaxRetries,
		baseDelay:      cfg.BaseDelay,
		maxDelay:       cfg.MaxDelay,
		connectTimeout: cfg.ConnectTimeout,
		sleep:          sleepCtx,
	}
}

// Connect attempts to establish a session with server and merge its tools
// into acc, keyed by tool name (later writes win on collision). On success
// the session is returned so the caller can own its lifetime.
//
// When the provider's circuit breaker is open, Connect returns immediately
// without an attempt and without a health record.
func (c *Connector) Connect(ctx context.Context, server mcp.ServerConfig, acc map[string]ToolDescriptor) (mcp.Session, bool) {
	if c.breakers.IsOpen(server.Name) {
		slog.Warn("circuit breaker open, skipping connection attempt", "provider", server.Name)
		return nil, false
	}

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(c.baseDelay, c.maxDelay, attempt)
			slog.Info("waiting before retry", "provider", server.Name, "delay", delay)
			if err := c.sleep(ctx, delay); err != nil {
				lastErr = err
				break
			}
		}

		slog.Info("connecting to provider",
			"provider", server.Name,
			"attempt", attempt+1,
			"max_attempts", c.maxRetries)

		sess, tools, err := c.attempt(ctx, server)
		if err == nil {
			// Wrap the session so a later cache swap defers its close until
			// in-flight invocations drain.
			ts := newTrackedSession(sess)
			for _, t := range tools {
				t.Provider = server.Name
				acc[t.Name] = ToolDescriptor{Tool: t, session: ts}
			}
			slog.Info("connected to provider", "provider", server.Name, "tools", len(tools))
			c.tracker.Record(server.Name, true)
			c.breakers.RecordSuccess(server.Name)
			c.metrics.RecordConnectionAttempt(ctx, server.Name, true)
			return ts, true
		}

		lastErr = err
		if errors.Is(err, context.DeadlineExceeded) {
			slog.Warn("connection to provider timed out", "provider", server.Name, "attempt", attempt+1)
		} else {
			slog.Warn("connection to provider failed", "provider", server.Name, "attempt", attempt+1, "err", err)
		}

		// The caller's deadline has passed; further attempts cannot succeed.
		if ctx.Err() != nil {
			break
		}
	}

	slog.Error("provider unreachable",
		"provider", server.Name,
		"attempts", c.maxRetries,
		"err", lastErr)
	c.tracker.Record(server.Name, false)
	c.breakers.RecordFailure(server.Name)
	c.metrics.RecordConnectionAttempt(ctx, server.Name, false)
	return nil, false
}

// attempt dials and enumerates tools under the per-attempt timeout.
func (c *Connector) attempt(ctx context.Context, server mcp.ServerConfig) (mcp.Session, []mcp.Tool, error) {
	actx, cancel := context.WithTimeout(ctx, c.connectTimeout)
	defer cancel()

	sess, err := c.dialer.Dial(actx, server)
	if err != nil {
		return nil, nil, err
	}
	tools, err := sess.ListTools(actx)
	if err != nil {
		_ = sess.Close()
		return nil, nil, err
	}
	return sess, tools, nil
}

// backoffDelay returns min(base × 2^(attempt−1), max) for attempt ≥ 1.
func backoffDelay(base, max time.Duration, attempt int) time.Duration {
	d := base << (attempt - 1)
	if d > max {
		return max
	}
	return d
}

// sleepCtx blocks for d or until ctx is done, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
