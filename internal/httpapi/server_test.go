package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel/metric/noop"

	"github.com/magpie-ai/magpie/internal/agent"
	"github.com/magpie-ai/magpie/internal/config"
	"github.com/magpie-ai/magpie/internal/health"
	"github.com/magpie-ai/magpie/internal/mcp"
	"github.com/magpie-ai/magpie/internal/mcp/mock"
	"github.com/magpie-ai/magpie/internal/observe"
	"github.com/magpie-ai/magpie/internal/registry"
	"github.com/magpie-ai/magpie/internal/resilience"
	"github.com/magpie-ai/magpie/internal/search"
	"github.com/magpie-ai/magpie/internal/twitter"
)

type fixedCompleter struct {
	reply string
}

func (f *fixedCompleter) Complete(context.Context, agent.CompletionRequest) (*agent.CompletionResponse, error) {
	return &agent.CompletionResponse{Content: f.reply}, nil
}

func newTestServer(t *testing.T, srv *mock.Server, withAgent bool) *httptest.Server {
	t.Helper()

	metrics, err := observe.NewMetrics(noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("create metrics: %v", err)
	}

	dialer := mock.NewDialer()
	dialer.Servers["alpha"] = srv

	tracker := health.NewTracker()
	breakers := resilience.NewBreakerSet(resilience.BreakerConfig{})
	connector := registry.NewConnector(dialer, tracker, breakers, metrics, registry.ConnectorConfig{MaxRetries: 1})
	servers := []mcp.ServerConfig{{Name: "alpha", Transport: mcp.TransportStdio, Command: "true"}}
	reg := registry.New(connector, servers, config.DefaultRequiredTools, tracker, metrics, registry.RegistryConfig{})
	guard := registry.NewGuard(time.Second, metrics, observe.NewUsageStats())
	facade := twitter.New(reg, guard, search.New(""), tracker, observe.NewUsageStats(), "acct-1")

	var ag *agent.Agent
	if withAgent {
		ag = agent.New(&fixedCompleter{reply: "hello from magpie"}, facade, "", 0)
	}

	probes := health.NewHandler(
		health.Checker{Name: "registry", Check: func(context.Context) error { return nil }},
	)

	api := New(facade, ag, probes, metrics)
	ts := httptest.NewServer(api.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestStatusEndpoint(t *testing.T) {
	ts := newTestServer(t, &mock.Server{
		Tools: []mcp.Tool{{Name: "post_tweet"}, {Name: "get_trends"}},
	}, false)

	resp, err := http.Get(ts.URL + "/v1/status")
	if err != nil {
		t.Fatalf("GET /v1/status: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var body twitter.ConnectionStatus
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "healthy" || body.TotalTools != 2 {
		t.Fatalf("body = %+v", body)
	}
}

func TestSystemHealthEndpoint(t *testing.T) {
	ts := newTestServer(t, &mock.Server{}, false)

	resp, err := http.Get(ts.URL + "/v1/system-health")
	if err != nil {
		t.Fatalf("GET /v1/system-health: %v", err)
	}
	defer resp.Body.Close()

	var body twitter.SystemHealth
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "healthy" {
		t.Fatalf("pristine system health = %+v", body)
	}
}

func TestChatEndpoint(t *testing.T) {
	ts := newTestServer(t, &mock.Server{}, true)

	resp, err := http.Post(ts.URL+"/v1/chat", "application/json",
		strings.NewReader(`{"message":"hi"}`))
	if err != nil {
		t.Fatalf("POST /v1/chat: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body struct {
		Reply string `json:"reply"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Reply != "hello from magpie" {
		t.Fatalf("reply = %q", body.Reply)
	}
}

func TestChatWithoutAgent(t *testing.T) {
	ts := newTestServer(t, &mock.Server{}, false)

	resp, err := http.Post(ts.URL+"/v1/chat", "application/json",
		strings.NewReader(`{"message":"hi"}`))
	if err != nil {
		t.Fatalf("POST /v1/chat: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}
}

func TestChatEmptyMessage(t *testing.T) {
	ts := newTestServer(t, &mock.Server{}, true)

	resp, err := http.Post(ts.URL+"/v1/chat", "application/json",
		strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("POST /v1/chat: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestProbesAndMetricsRegistered(t *testing.T) {
	ts := newTestServer(t, &mock.Server{}, false)

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, resp.StatusCode)
		}
	}
}
