// Package health tracks per-provider connection outcomes and exposes HTTP
// liveness/readiness probes.
//
// [Tracker] is pure bookkeeping: it counts successes and failures per
// provider and remembers when each last happened. It performs no I/O and
// never blocks beyond its own mutex. The circuit breaker and the diagnostic
// operations read from it; only the connector writes to it.
package health

import (
	"sync"
	"time"
)

// ProviderHealth is a snapshot of one provider's connection history.
// Counters are monotonically non-decreasing for the lifetime of the process;
// only an explicit administrative [Tracker.Reset] clears them.
type ProviderHealth struct {
	// SuccessCount is the number of successful connection outcomes.
	SuccessCount int64 `json:"success_count"`

	// FailureCount is the number of failed connection outcomes.
	FailureCount int64 `json:"failure_count"`

	// LastSuccess is when the most recent success was recorded.
	// The zero value means no success has been recorded yet.
	LastSuccess time.Time `json:"last_success,omitzero"`

	// LastFailure is when the most recent failure was recorded.
	// The zero value means no failure has been recorded yet.
	LastFailure time.Time `json:"last_failure,omitzero"`
}

// SuccessRate returns the fraction of recorded outcomes that succeeded,
// or 0 when nothing has been recorded.
func (h ProviderHealth) SuccessRate() float64 {
	total := h.SuccessCount + h.FailureCount
	if total == 0 {
		return 0
	}
	return float64(h.SuccessCount) / float64(total)
}

// Failing reports whether the provider's most recent outcome was a failure.
func (h ProviderHealth) Failing() bool {
	return !h.LastFailure.IsZero() && h.LastFailure.After(h.LastSuccess)
}

// Tracker records connection outcomes per provider.
// Safe for concurrent use.
type Tracker struct {
	mu        sync.RWMutex
	providers map[string]*ProviderHealth

	now func() time.Time
}

// NewTracker returns an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{
		providers: make(map[string]*ProviderHealth),
		now:       time.Now,
	}
}

// Ensure creates a zeroed entry for provider if none exists, so diagnostics
// list configured providers even before their first connection attempt.
func (t *Tracker) Ensure(provider string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.providers[provider]; !ok {
		t.providers[provider] = &ProviderHealth{}
	}
}

// Record registers one connection outcome for provider. It never fails and
// never blocks beyond the tracker's mutex.
func (t *Tracker) Record(provider string, success bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	h, ok := t.providers[provider]
	if !ok {
		h = &ProviderHealth{}
		t.providers[provider] = h
	}

	if success {
		h.SuccessCount++
		h.LastSuccess = t.now()
	} else {
		h.FailureCount++
		h.LastFailure = t.now()
	}
}

// Snapshot returns a read-only copy of provider's health and whether the
// provider has any record at all.
func (t *Tracker) Snapshot(provider string) (ProviderHealth, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	h, ok := t.providers[provider]
	if !ok {
		return ProviderHealth{}, false
	}
	return *h, true
}

// SnapshotAll returns a copy of every provider's health keyed by name.
func (t *Tracker) SnapshotAll() map[string]ProviderHealth {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]ProviderHealth, len(t.providers))
	for name, h := range t.providers {
		out[name] = *h
	}
	return out
}

// AnyFailing reports whether any tracked provider's most recent outcome was
// a failure. The registry uses this to decide whether a young cache can be
// trusted or a refresh is warranted.
func (t *Tracker) AnyFailing() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, h := range t.providers {
		if h.Failing() {
			return true
		}
	}
	return false
}

// Reset clears all recorded history. Administrative use only; nothing in the
// serving path calls this.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.providers = make(map[string]*ProviderHealth)
}
