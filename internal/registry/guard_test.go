package registry

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/magpie-ai/magpie/internal/mcp"
	"github.com/magpie-ai/magpie/internal/mcp/mock"
	"github.com/magpie-ai/magpie/internal/observe"
)

func guardSession(t *testing.T, srv *mock.Server) mcp.Session {
	t.Helper()
	d := mock.NewDialer()
	d.Servers["alpha"] = srv
	sess, err := d.Dial(context.Background(), serverCfg("alpha"))
	if err != nil {
		t.Fatalf("dial mock: %v", err)
	}
	return sess
}

func TestGuardSuccess(t *testing.T) {
	usage := observe.NewUsageStats()
	g := NewGuard(time.Second, testMetrics(t), usage)

	sess := guardSession(t, &mock.Server{
		CallResult: &mcp.ToolResult{Content: `{"tweet_id":"123"}`},
	})
	d := NewToolDescriptor(mcp.Tool{Name: "post_tweet"}, sess)

	res := g.Invoke(context.Background(), d, map[string]any{"llm_text": "hello"})
	if res.Status != StatusSuccess {
		t.Fatalf("status = %q, want success (err: %s)", res.Status, res.Error)
	}
	if res.Content != `{"tweet_id":"123"}` {
		t.Fatalf("content = %q", res.Content)
	}

	stats := usage.Snapshot()["post_tweet"]
	if stats.Count != 1 || stats.Errors != 0 {
		t.Fatalf("usage = %+v, want one clean call", stats)
	}
}

func TestGuardTimeout(t *testing.T) {
	usage := observe.NewUsageStats()
	g := NewGuard(50*time.Millisecond, testMetrics(t), usage)

	sess := guardSession(t, &mock.Server{CallDelay: 5 * time.Second})
	d := NewToolDescriptor(mcp.Tool{Name: "advanced_search_twitter"}, sess)

	start := time.Now()
	res := g.Invoke(context.Background(), d, map[string]any{"llm_text": "golang"})
	elapsed := time.Since(start)

	if res.Status != StatusTimeout {
		t.Fatalf("status = %q, want timeout", res.Status)
	}
	if elapsed > time.Second {
		t.Fatalf("guarded call took %v; timeout not enforced", elapsed)
	}
	if !strings.Contains(res.Error, "timed out") {
		t.Fatalf("error = %q, want timeout message", res.Error)
	}

	stats := usage.Snapshot()["advanced_search_twitter"]
	if stats.Errors != 1 {
		t.Fatalf("usage errors = %d, want 1", stats.Errors)
	}
}

func TestGuardTransportError(t *testing.T) {
	g := NewGuard(time.Second, testMetrics(t), observe.NewUsageStats())

	sess := guardSession(t, &mock.Server{CallErr: errors.New("stream reset")})
	d := NewToolDescriptor(mcp.Tool{Name: "get_trends"}, sess)

	res := g.Invoke(context.Background(), d, map[string]any{"woeid": 1})
	if res.Status != StatusError {
		t.Fatalf("status = %q, want error", res.Status)
	}
	if !strings.Contains(res.Error, "stream reset") {
		t.Fatalf("error = %q", res.Error)
	}
}

func TestGuardProviderReportedError(t *testing.T) {
	g := NewGuard(time.Second, testMetrics(t), observe.NewUsageStats())

	sess := guardSession(t, &mock.Server{
		CallResult: &mcp.ToolResult{Content: "rate limit exceeded", IsError: true},
	})
	d := NewToolDescriptor(mcp.Tool{Name: "post_tweet"}, sess)

	res := g.Invoke(context.Background(), d, nil)
	if res.Status != StatusError {
		t.Fatalf("status = %q, want error", res.Status)
	}
	if !strings.Contains(res.Error, "rate limit exceeded") {
		t.Fatalf("error = %q, want provider message", res.Error)
	}
}

func TestGuardDoWrapsArbitraryWork(t *testing.T) {
	g := NewGuard(50*time.Millisecond, testMetrics(t), observe.NewUsageStats())

	res := g.Do(context.Background(), "web_search", func(ctx context.Context) (string, error) {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(5 * time.Second):
			return "too late", nil
		}
	})
	if res.Status != StatusTimeout {
		t.Fatalf("status = %q, want timeout", res.Status)
	}
}
