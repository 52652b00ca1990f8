// Package resilience provides the per-provider circuit breaker that gates
// connection attempts to remote tool providers.
//
// The breaker is deliberately two-state (closed/open) with a lazy reset:
// rather than running a background timer, the open→closed transition happens
// as a side effect of the next [BreakerSet.IsOpen] query once the cool-down
// has elapsed. The cost of the check is borne only by callers that actually
// attempt a connection.
//
// All types are safe for concurrent use.
package resilience

import (
	"log/slog"
	"sync"
	"time"
)

// BreakerConfig holds tuning knobs for a [BreakerSet].
type BreakerConfig struct {
	// Threshold is the number of consecutive failures before a provider's
	// breaker opens. Default: 3.
	Threshold int

	// Cooldown is how long an open breaker rejects attempts before the next
	// query closes it again. Default: 5m.
	Cooldown time.Duration
}

// breakerState is the lazily created per-provider record.
type breakerState struct {
	consecutiveFailures int
	lastFailure         time.Time
	open                bool
}

// BreakerSet maintains one circuit breaker per provider name. Entries are
// created on first failure and removed entirely on success.
type BreakerSet struct {
	threshold int
	cooldown  time.Duration

	mu     sync.Mutex
	states map[string]*breakerState

	now func() time.Time
}

// NewBreakerSet creates a [BreakerSet] with the supplied configuration.
// Zero-value config fields are replaced with defaults.
func NewBreakerSet(cfg BreakerConfig) *BreakerSet {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 5 * time.Minute
	}
	return &BreakerSet{
		threshold: cfg.Threshold,
		cooldown:  cfg.Cooldown,
		states:    make(map[string]*breakerState),
		now:       time.Now,
	}
}

// IsOpen reports whether the breaker for provider is open. When the
// cool-down has elapsed since the failure that opened it, the breaker is
// closed and its failure streak zeroed as a side effect of the query.
func (b *BreakerSet) IsOpen(provider string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	st, ok := b.states[provider]
	if !ok || !st.open {
		return false
	}

	if b.now().Sub(st.lastFailure) > b.cooldown {
		st.open = false
		st.consecutiveFailures = 0
		slog.Info("circuit breaker reset after cool-down", "provider", provider)
		return false
	}

	return true
}

// RecordFailure increments provider's failure streak and opens the breaker
// once the streak reaches the threshold.
func (b *BreakerSet) RecordFailure(provider string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	st, ok := b.states[provider]
	if !ok {
		st = &breakerState{}
		b.states[provider] = st
	}

	st.consecutiveFailures++
	st.lastFailure = b.now()

	if st.consecutiveFailures >= b.threshold && !st.open {
		st.open = true
		slog.Warn("circuit breaker opened",
			"provider", provider,
			"consecutive_failures", st.consecutiveFailures)
	}
}

// RecordSuccess clears all breaker state for provider, equivalent to a
// closed breaker with a zero streak.
func (b *BreakerSet) RecordSuccess(provider string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.states, provider)
}

// Snapshot returns provider's current failure streak and open flag for
// diagnostics. It does not perform the lazy reset.
func (b *BreakerSet) Snapshot(provider string) (failures int, open bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	st, ok := b.states[provider]
	if !ok {
		return 0, false
	}
	return st.consecutiveFailures, st.open
}
