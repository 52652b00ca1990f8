package observe

import (
	"context"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// collect gathers all recorded metrics from the reader.
func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect metrics: %v", err)
	}

	out := make(map[string]metricdata.Metrics)
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestMetricsRecording(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	ctx := context.Background()
	m.RecordToolCall(ctx, "post_tweet", "success")
	m.RecordToolCall(ctx, "post_tweet", "timeout")
	m.RecordToolDuration(ctx, "post_tweet", 120*time.Millisecond)
	m.RecordConnectionAttempt(ctx, "alpha", true)
	m.RecordConnectionAttempt(ctx, "alpha", false)
	m.RecordCacheLookup(ctx, "hit")
	m.RecordRefresh(ctx, 2*time.Second)

	got := collect(t, reader)

	calls, ok := got["magpie.tool.calls"].Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("magpie.tool.calls not recorded as int64 sum")
	}
	var total int64
	for _, dp := range calls.DataPoints {
		total += dp.Value
	}
	if total != 2 {
		t.Fatalf("tool calls = %d, want 2", total)
	}

	conns, ok := got["magpie.provider.connection_attempts"].Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("connection attempts not recorded")
	}
	if len(conns.DataPoints) != 2 {
		t.Fatalf("connection attempt series = %d, want 2 (success + failure)", len(conns.DataPoints))
	}

	hist, ok := got["magpie.tool_execution.duration"].Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("tool execution duration not recorded as histogram")
	}
	if hist.DataPoints[0].Count != 1 {
		t.Fatalf("duration count = %d, want 1", hist.DataPoints[0].Count)
	}

	if _, ok := got["magpie.registry.cache_lookups"]; !ok {
		t.Fatal("cache lookups not recorded")
	}
	if _, ok := got["magpie.registry.refresh.duration"]; !ok {
		t.Fatal("refresh duration not recorded")
	}
}

func TestDefaultMetricsSingleton(t *testing.T) {
	a := DefaultMetrics()
	b := DefaultMetrics()
	if a != b {
		t.Fatal("DefaultMetrics must return the same instance")
	}
}
