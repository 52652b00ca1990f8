package app

import (
	"context"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel/metric/noop"

	"github.com/magpie-ai/magpie/internal/agent"
	"github.com/magpie-ai/magpie/internal/config"
	"github.com/magpie-ai/magpie/internal/mcp"
	"github.com/magpie-ai/magpie/internal/mcp/mock"
	"github.com/magpie-ai/magpie/internal/observe"
	"github.com/magpie-ai/magpie/internal/registry"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.MCP.Servers = []mcp.ServerConfig{
		{Name: "alpha", Transport: mcp.TransportStdio, Command: "true"},
	}
	cfg.Twitter.UserID = "acct-1"
	config.ApplyDefaults(cfg)
	// Single attempt keeps failure paths fast in tests.
	cfg.MCP.Resilience.MaxRetries = 1
	return cfg
}

func testAppMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	m, err := observe.NewMetrics(noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("create metrics: %v", err)
	}
	return m
}

type staticCompleter struct{}

func (staticCompleter) Complete(context.Context, agent.CompletionRequest) (*agent.CompletionResponse, error) {
	return &agent.CompletionResponse{Content: "ok"}, nil
}

func TestNewWiresComponentGraph(t *testing.T) {
	dialer := mock.NewDialer()
	dialer.Servers["alpha"] = &mock.Server{
		Tools: []mcp.Tool{{Name: "post_tweet"}},
	}

	a, err := New(testConfig(), testAppMetrics(t), WithDialer(dialer))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Shutdown(context.Background())

	res := a.Facade().PostTweet(context.Background(), "wired end to end")
	if res.Status != registry.StatusSuccess {
		t.Fatalf("PostTweet through the full graph = %q (%s)", res.Status, res.Error)
	}
	if got := dialer.DialCount("alpha"); got != 1 {
		t.Fatalf("dials = %d, want 1", got)
	}
}

func TestNewWithCompleterEnablesAgent(t *testing.T) {
	dialer := mock.NewDialer()
	dialer.Servers["alpha"] = &mock.Server{}

	a, err := New(testConfig(), testAppMetrics(t), WithDialer(dialer), WithCompleter(staticCompleter{}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Shutdown(context.Background())
}

func TestNewRejectsUnknownAgentProvider(t *testing.T) {
	cfg := testConfig()
	cfg.Agent.Provider = "carrier-pigeon"
	cfg.Agent.Model = "homing-v2"

	_, err := New(cfg, testAppMetrics(t), WithDialer(mock.NewDialer()))
	if err == nil || !strings.Contains(err.Error(), "unsupported provider") {
		t.Fatalf("err = %v, want unsupported-provider error", err)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	cfg := testConfig()
	cfg.Server.ListenAddr = "127.0.0.1:0"

	dialer := mock.NewDialer()
	dialer.Servers["alpha"] = &mock.Server{Tools: []mcp.Tool{{Name: "post_tweet"}}}

	a, err := New(cfg, testAppMetrics(t), WithDialer(dialer))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancellation")
	}
}

func TestShutdownIdempotent(t *testing.T) {
	dialer := mock.NewDialer()
	dialer.Servers["alpha"] = &mock.Server{}

	a, err := New(testConfig(), testAppMetrics(t), WithDialer(dialer))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := a.Shutdown(context.Background()); err != nil {
		t.Fatalf("first Shutdown: %v", err)
	}
	if err := a.Shutdown(context.Background()); err != nil {
		t.Fatalf("second Shutdown: %v", err)
	}
}
