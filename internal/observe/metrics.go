// Package observe provides application-wide observability primitives for
// magpie: OpenTelemetry metrics, tracing helpers, structured-logging
// integration, and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped from the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all magpie metrics.
const meterName = "github.com/magpie-ai/magpie"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// ToolExecutionDuration tracks guarded tool execution latency.
	ToolExecutionDuration metric.Float64Histogram

	// RegistryRefreshDuration tracks how long a full registry refresh takes.
	RegistryRefreshDuration metric.Float64Histogram

	// HTTPRequestDuration tracks HTTP request processing time. Use with
	// attributes: attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram

	// ToolCalls counts tool invocations. Use with attributes:
	//   attribute.String("tool", ...), attribute.String("status", ...)
	ToolCalls metric.Int64Counter

	// ConnectionAttempts counts provider connection outcomes. Use with
	// attributes: attribute.String("provider", ...), attribute.String("status", ...)
	ConnectionAttempts metric.Int64Counter

	// CacheLookups counts registry lookups by result ("hit", "miss", "stale").
	CacheLookups metric.Int64Counter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// remote tool calls: sub-second for healthy providers up to the 30s
// execution timeout.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.ToolExecutionDuration, err = m.Float64Histogram("magpie.tool_execution.duration",
		metric.WithDescription("Latency of guarded tool execution."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.RegistryRefreshDuration, err = m.Float64Histogram("magpie.registry.refresh.duration",
		metric.WithDescription("Duration of full tool registry refreshes."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("magpie.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.ToolCalls, err = m.Int64Counter("magpie.tool.calls",
		metric.WithDescription("Total tool invocations by tool name and status."),
	); err != nil {
		return nil, err
	}
	if met.ConnectionAttempts, err = m.Int64Counter("magpie.provider.connection_attempts",
		metric.WithDescription("Provider connection outcomes by provider and status."),
	); err != nil {
		return nil, err
	}
	if met.CacheLookups, err = m.Int64Counter("magpie.registry.cache_lookups",
		metric.WithDescription("Tool registry lookups by result (hit, miss, stale)."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it
// on first call using [otel.GetMeterProvider]. Subsequent calls return the
// same pointer. Panics if instrument creation fails (should not happen with
// the global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordToolCall records a tool invocation outcome.
func (m *Metrics) RecordToolCall(ctx context.Context, tool, status string) {
	m.ToolCalls.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("tool", tool),
			attribute.String("status", status),
		),
	)
}

// RecordToolDuration records a guarded tool execution duration.
func (m *Metrics) RecordToolDuration(ctx context.Context, tool string, d time.Duration) {
	m.ToolExecutionDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(attribute.String("tool", tool)),
	)
}

// RecordConnectionAttempt records a provider connection outcome.
func (m *Metrics) RecordConnectionAttempt(ctx context.Context, provider string, success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	m.ConnectionAttempts.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("status", status),
		),
	)
}

// RecordCacheLookup records a registry lookup result ("hit", "miss", "stale").
func (m *Metrics) RecordCacheLookup(ctx context.Context, result string) {
	m.CacheLookups.Add(ctx, 1,
		metric.WithAttributes(attribute.String("result", result)),
	)
}

// RecordRefresh records a completed registry refresh.
func (m *Metrics) RecordRefresh(ctx context.Context, d time.Duration) {
	m.RegistryRefreshDuration.Record(ctx, d.Seconds())
}
