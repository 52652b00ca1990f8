package registry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/magpie-ai/magpie/internal/health"
	"github.com/magpie-ai/magpie/internal/mcp"
	"github.com/magpie-ai/magpie/internal/observe"
)

// CacheStatus summarises the registry cache for diagnostics.
type CacheStatus struct {
	// HasCache reports whether a tool set has ever been cached.
	HasCache bool `json:"has_cache"`

	// AgeSeconds is how old the cached set is. Zero when HasCache is false.
	AgeSeconds float64 `json:"age_seconds"`

	// ToolCount is the number of tools in the cached set.
	ToolCount int `json:"tool_count"`
}

// DebugInfo is the diagnostic payload attached to failed operation results.
type DebugInfo struct {
	// Health maps provider name to its connection history.
	Health map[string]health.ProviderHealth `json:"provider_health"`

	// Cache describes the registry cache at the time of the failure.
	Cache CacheStatus `json:"cache"`
}

// Registry maintains the merged, filtered tool set discovered across all
// configured providers, cached for a bounded TTL with stale fallback.
//
// Tools is the only serving-path entry point. A lookup is served from cache
// when the cache is younger than the TTL and no provider is currently
// failing; otherwise a refresh runs. Concurrent refreshes collapse into one
// via singleflight. A refresh that yields nothing never overwrites a
// non-empty cache: the stale set keeps serving (fail-open).
type Registry struct {
	connector *Connector
	providers []mcp.ServerConfig
	required  map[string]bool
	tracker   *health.Tracker
	metrics   *observe.Metrics

	ttl            time.Duration
	refreshTimeout time.Duration

	mu        sync.RWMutex
	cache     map[string]ToolDescriptor
	fetchedAt time.Time
	sessions  []mcp.Session

	sf singleflight.Group

	now func() time.Time
}

// RegistryConfig tunes a [Registry]. Zero durations get production defaults.
type RegistryConfig struct {
	// TTL is how long a cached tool set counts as fresh. Default: 5m.
	TTL time.Duration

	// RefreshTimeout bounds an entire refresh across all providers.
	// Default: 15s.
	RefreshTimeout time.Duration
}

// New creates a Registry over the given providers. required lists the tool
// names the registry keeps; discovered tools outside the set are discarded.
func New(connector *Connector, providers []mcp.ServerConfig, required []string, tracker *health.Tracker, metrics *observe.Metrics, cfg RegistryConfig) *Registry {
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}
	if cfg.RefreshTimeout <= 0 {
		cfg.RefreshTimeout = 15 * time.Second
	}
	req := make(map[string]bool, len(required))
	for _, name := range required {
		req[name] = true
	}
	return &Registry{
		connector:      connector,
		providers:      providers,
		required:       req,
		tracker:        tracker,
		metrics:        metrics,
		ttl:            cfg.TTL,
		refreshTimeout: cfg.RefreshTimeout,
		now:            time.Now,
	}
}

// Tools returns the current tool set, refreshing it when the cache is stale
// or a provider is failing. The returned map must be treated as read-only.
//
// Tools never returns an error alongside a usable set: when a refresh fails
// outright and a stale cache exists, the stale set is returned.
func (r *Registry) Tools(ctx context.Context) map[string]ToolDescriptor {
	r.mu.RLock()
	cached := r.cache
	age := r.now().Sub(r.fetchedAt)
	r.mu.RUnlock()

	if cached != nil && age < r.ttl && !r.tracker.AnyFailing() {
		r.metrics.RecordCacheLookup(ctx, "hit")
		return cached
	}
	r.metrics.RecordCacheLookup(ctx, "miss")

	// Collapse concurrent refreshes; the refresh itself runs detached from
	// the triggering caller's cancellation so one impatient caller cannot
	// abort the refresh other waiters depend on.
	fresh, _, _ := r.sf.Do("refresh", func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.refreshTimeout)
		defer cancel()
		return r.refresh(rctx), nil
	})
	if m, ok := fresh.(map[string]ToolDescriptor); ok && m != nil {
		return m
	}
	return cached
}

// refresh reconnects to every configured provider, merges and filters the
// discovered tools, and swaps the cache. Returns the tool set now serving.
func (r *Registry) refresh(ctx context.Context) map[string]ToolDescriptor {
	start := r.now()
	slog.Info("refreshing tool registry", "providers", len(r.providers))

	merged := make(map[string]ToolDescriptor)
	var sessions []mcp.Session
	for _, server := range r.providers {
		r.tracker.Ensure(server.Name)
		if sess, ok := r.connector.Connect(ctx, server, merged); ok {
			sessions = append(sessions, sess)
		}
	}

	filtered := make(map[string]ToolDescriptor, len(r.required))
	for name, d := range merged {
		if r.required[name] {
			filtered[name] = d
		} else {
			slog.Debug("discarding tool outside required set", "tool", name, "provider", d.Tool.Provider)
		}
	}

	r.mu.Lock()
	if len(filtered) > 0 || r.cache == nil {
		old := r.sessions
		r.cache = filtered
		r.fetchedAt = r.now()
		r.sessions = sessions
		r.mu.Unlock()

		// Replaced sessions may still serve invocations through descriptors
		// handed out before the swap; trackedSession defers the real close
		// until those drain.
		closeSessions(old)
		r.metrics.RecordRefresh(ctx, r.now().Sub(start))
		slog.Info("tool registry refreshed",
			"tools", len(filtered),
			"discarded", len(merged)-len(filtered),
			"duration", r.now().Sub(start))
		return filtered
	}

	// Refresh produced nothing but a previous set exists: keep serving it.
	stale := r.cache
	cacheAge := r.now().Sub(r.fetchedAt)
	r.mu.Unlock()

	closeSessions(sessions)
	r.metrics.RecordCacheLookup(ctx, "stale")
	r.metrics.RecordRefresh(ctx, r.now().Sub(start))
	slog.Warn("refresh yielded no tools, keeping stale cache",
		"stale_tools", len(stale),
		"cache_age", cacheAge)
	return stale
}

// Invalidate marks the cache stale so the next lookup refreshes. The cached
// set itself is kept as the stale fallback.
func (r *Registry) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fetchedAt = time.Time{}
	slog.Debug("tool registry cache invalidated")
}

// Prewarm kicks off a background refresh so the first real operation does not
// pay the connection cost. Errors are absorbed; the registry stays fail-open.
func (r *Registry) Prewarm(ctx context.Context) {
	go func() {
		tools := r.Tools(ctx)
		slog.Info("registry prewarm complete", "tools", len(tools))
	}()
}

// Status returns a snapshot of the cache state.
func (r *Registry) Status() CacheStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st := CacheStatus{
		HasCache:  r.cache != nil,
		ToolCount: len(r.cache),
	}
	if st.HasCache && !r.fetchedAt.IsZero() {
		st.AgeSeconds = r.now().Sub(r.fetchedAt).Seconds()
	}
	return st
}

// Diagnostics assembles the debug payload attached to failed results.
func (r *Registry) Diagnostics() *DebugInfo {
	return &DebugInfo{
		Health: r.tracker.SnapshotAll(),
		Cache:  r.Status(),
	}
}

// Close tears down every live provider session. The registry must not be
// used after Close.
func (r *Registry) Close() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = nil
	r.cache = nil
	r.mu.Unlock()
	closeSessions(sessions)
}

func closeSessions(sessions []mcp.Session) {
	for _, s := range sessions {
		if err := s.Close(); err != nil {
			slog.Debug("closing provider session", "err", err)
		}
	}
}
