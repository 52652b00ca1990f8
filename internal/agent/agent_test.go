package agent

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel/metric/noop"

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

// scriptedCompleter returns canned responses in order and records the
// requests it received.
type scriptedCompleter struct {
	responses []*CompletionResponse
	err       error
	requests  []CompletionRequest
}

func (s *scriptedCompleter) Complete(_ context.Context, req CompletionRequest) (*CompletionResponse, error) {
	s.requests = append(s.requests, req)
	if s.err != nil {
		return nil, s.err
	}
	if len(s.responses) == 0 {
		return &CompletionResponse{Content: "exhausted"}, nil
	}
	resp := s.responses[0]
	s.responses = s.responses[1:]
	return resp, nil
}

func newTestFacade(t *testing.T, srv *mock.Server) *twitter.Facade {
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

	return twitter.New(reg, guard, search.New(""), tracker, observe.NewUsageStats(), "acct-1")
}

func TestRespondPlainAnswer(t *testing.T) {
	llm := &scriptedCompleter{
		responses: []*CompletionResponse{{Content: "nothing to do"}},
	}
	a := New(llm, newTestFacade(t, &mock.Server{}), "", 0)

	got, err := a.Respond(context.Background(), "say hi")
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if got != "nothing to do" {
		t.Fatalf("reply = %q", got)
	}

	req := llm.requests[0]
	if req.SystemPrompt == "" {
		t.Error("default system prompt missing")
	}
	if len(req.Tools) != len(Catalog()) {
		t.Errorf("catalog has %d tools in request, want %d", len(req.Tools), len(Catalog()))
	}
}

func TestRespondExecutesToolCallThenAnswers(t *testing.T) {
	srv := &mock.Server{
		Tools:      []mcp.Tool{{Name: "post_tweet"}},
		CallResult: &mcp.ToolResult{Content: `{"tweet_id":"42"}`},
	}
	llm := &scriptedCompleter{
		responses: []*CompletionResponse{
			{ToolCalls: []ToolCall{{ID: "call_1", Name: "post_tweet", Arguments: `{"text":"hi"}`}}},
			{Content: "posted it"},
		},
	}
	a := New(llm, newTestFacade(t, srv), "", 0)

	got, err := a.Respond(context.Background(), "post hi")
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if got != "posted it" {
		t.Fatalf("reply = %q", got)
	}

	// The tool actually ran against the provider.
	calls := srv.Calls()
	if len(calls) != 1 || calls[0].Tool != "post_tweet" {
		t.Fatalf("provider calls = %+v", calls)
	}
	if calls[0].Args["text"] != "hi" {
		t.Fatalf("text = %v", calls[0].Args["text"])
	}

	// The second completion saw the tool result message.
	second := llm.requests[1]
	last := second.Messages[len(second.Messages)-1]
	if last.Role != "tool" || last.ToolCallID != "call_1" {
		t.Fatalf("last message = %+v, want tool result for call_1", last)
	}
	var res registry.Result
	if err := json.Unmarshal([]byte(last.Content), &res); err != nil {
		t.Fatalf("tool result is not a JSON envelope: %v", err)
	}
	if res.Status != registry.StatusSuccess {
		t.Fatalf("tool result status = %q", res.Status)
	}
}

func TestRespondUnknownToolBecomesErrorEnvelope(t *testing.T) {
	llm := &scriptedCompleter{
		responses: []*CompletionResponse{
			{ToolCalls: []ToolCall{{ID: "call_1", Name: "launch_rockets"}}},
			{Content: "that tool does not exist"},
		},
	}
	a := New(llm, newTestFacade(t, &mock.Server{}), "", 0)

	if _, err := a.Respond(context.Background(), "do it"); err != nil {
		t.Fatalf("Respond: %v", err)
	}

	last := llm.requests[1].Messages[len(llm.requests[1].Messages)-1]
	if !strings.Contains(last.Content, "unknown tool") {
		t.Fatalf("tool message = %q, want unknown-tool envelope", last.Content)
	}
}

func TestRespondMalformedArguments(t *testing.T) {
	llm := &scriptedCompleter{
		responses: []*CompletionResponse{
			{ToolCalls: []ToolCall{{ID: "call_1", Name: "post_tweet", Arguments: `{not json`}}},
			{Content: "done"},
		},
	}
	a := New(llm, newTestFacade(t, &mock.Server{}), "", 0)

	if _, err := a.Respond(context.Background(), "post"); err != nil {
		t.Fatalf("Respond: %v", err)
	}

	last := llm.requests[1].Messages[len(llm.requests[1].Messages)-1]
	if !strings.Contains(last.Content, "invalid arguments") {
		t.Fatalf("tool message = %q, want invalid-arguments envelope", last.Content)
	}
}

func TestRespondTurnBudgetExhausted(t *testing.T) {
	// The model asks for the same tool forever.
	llm := &scriptedCompleter{}
	for i := 0; i < 10; i++ {
		llm.responses = append(llm.responses, &CompletionResponse{
			ToolCalls: []ToolCall{{ID: "c", Name: "get_system_health"}},
		})
	}
	a := New(llm, newTestFacade(t, &mock.Server{}), "", 3)

	_, err := a.Respond(context.Background(), "loop forever")
	if err == nil || !strings.Contains(err.Error(), "no final answer after 3 turns") {
		t.Fatalf("err = %v, want turn-budget error", err)
	}
	if len(llm.requests) != 3 {
		t.Fatalf("completions = %d, want 3", len(llm.requests))
	}
}

func TestRespondCompleterError(t *testing.T) {
	llm := &scriptedCompleter{err: errors.New("backend down")}
	a := New(llm, newTestFacade(t, &mock.Server{}), "", 0)

	_, err := a.Respond(context.Background(), "hi")
	if err == nil || !strings.Contains(err.Error(), "backend down") {
		t.Fatalf("err = %v", err)
	}
}

func TestCatalogCoversFixedSurface(t *testing.T) {
	want := []string{
		"post_tweet", "delete_tweet", "like_tweet", "retweet",
		"advanced_search_twitter", "get_trends", "get_tweets_by_ids",
		"get_tweet_replies", "get_tweet_quotations", "get_tweet_thread_context",
		"web_search", "check_twitter_connection_status", "get_system_health",
	}

	catalog := Catalog()
	got := make(map[string]bool, len(catalog))
	for _, td := range catalog {
		got[td.Name] = true
		if td.Parameters["type"] != "object" {
			t.Errorf("%s: parameters schema is not an object", td.Name)
		}
	}
	for _, name := range want {
		if !got[name] {
			t.Errorf("catalog missing %s", name)
		}
	}
	if len(catalog) != len(want) {
		t.Errorf("catalog has %d tools, want %d", len(catalog), len(want))
	}
}
