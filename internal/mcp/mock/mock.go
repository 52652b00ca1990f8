// Package mock provides scripted in-memory test doubles for [mcp.Dialer] and
// [mcp.Session].
//
// A [Dialer] routes Dial calls to per-provider [Server] scripts keyed by the
// config name. Each Server controls how many dials fail before one succeeds,
// which tools a session lists, and how tool calls behave (result, error, or
// artificial delay). All types are safe for concurrent use.
//
// Typical usage:
//
//	d := mock.NewDialer()
//	d.Servers["alpha"] = &mock.Server{
//	    Tools: []mcp.Tool{{Name: "post_tweet", Provider: "alpha"}},
//	}
//
//	// inject d into the system under test …
//
//	if got := d.DialCount("alpha"); got != 1 {
//	    t.Errorf("expected 1 dial, got %d", got)
//	}
package mock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/magpie-ai/magpie/internal/mcp"
)

// ErrDialRefused is the transport-level error returned by scripted dial failures.
var ErrDialRefused = errors.New("mock: connection refused")

// Call records the name and arguments of one CallTool invocation.
type Call struct {
	Tool string
	Args map[string]any
}

// Server scripts the behaviour of one provider.
type Server struct {
	mu sync.Mutex

	// FailDials makes the first N dials fail with [ErrDialRefused]
	// (or DialErr when set). Decremented on each failed dial.
	FailDials int

	// DialErr overrides the error returned by failing dials.
	DialErr error

	// DialDelay makes every dial block for the given duration or until the
	// context expires, whichever comes first.
	DialDelay time.Duration

	// Tools is returned by ListTools on successful sessions.
	Tools []mcp.Tool

	// ListErr, when set, makes ListTools fail.
	ListErr error

	// CallResult is returned by CallTool when CallErr is nil.
	// When nil, a success result with empty content is returned.
	CallResult *mcp.ToolResult

	// CallErr, when set, makes CallTool fail.
	CallErr error

	// CallDelay makes every CallTool block for the given duration or until
	// the context expires, whichever comes first.
	CallDelay time.Duration

	dials  int
	calls  []Call
	closed int
}

// Calls returns a copy of all recorded CallTool invocations.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// Closed returns how many sessions to this server have been closed.
func (s *Server) Closed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Dialer is a scripted [mcp.Dialer].
type Dialer struct {
	mu sync.Mutex

	// Servers maps provider names to their scripts. Dialing an unknown
	// provider fails with [ErrDialRefused].
	Servers map[string]*Server
}

// Compile-time check: Dialer must implement mcp.Dialer.
var _ mcp.Dialer = (*Dialer)(nil)

// NewDialer returns an empty Dialer ready for scripting.
func NewDialer() *Dialer {
	return &Dialer{Servers: make(map[string]*Server)}
}

// Dial routes to the script registered under cfg.Name.
func (d *Dialer) Dial(ctx context.Context, cfg mcp.ServerConfig) (mcp.Session, error) {
	d.mu.Lock()
	srv, ok := d.Servers[cfg.Name]
	d.mu.Unlock()

	if !ok {
		return nil, ErrDialRefused
	}

	srv.mu.Lock()
	srv.dials++
	fail := srv.FailDials > 0
	if fail {
		srv.FailDials--
	}
	dialErr := srv.DialErr
	delay := srv.DialDelay
	srv.mu.Unlock()

	if delay > 0 {
		if err := wait(ctx, delay); err != nil {
			return nil, err
		}
	}
	if fail {
		if dialErr != nil {
			return nil, dialErr
		}
		return nil, ErrDialRefused
	}
	return &Session{srv: srv}, nil
}

// DialCount returns how many times the named provider has been dialled
// (successful or not).
func (d *Dialer) DialCount(provider string) int {
	d.mu.Lock()
	srv, ok := d.Servers[provider]
	d.mu.Unlock()
	if !ok {
		return 0
	}
	srv.mu.Lock()
	defer srv.mu.Unlock()
	return srv.dials
}

// Session is a scripted [mcp.Session] bound to one [Server].
type Session struct {
	srv *Server
}

// ListTools returns the scripted tool list.
func (s *Session) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	s.srv.mu.Lock()
	defer s.srv.mu.Unlock()
	if s.srv.ListErr != nil {
		return nil, s.srv.ListErr
	}
	out := make([]mcp.Tool, len(s.srv.Tools))
	copy(out, s.srv.Tools)
	return out, nil
}

// CallTool records the call and returns the scripted outcome, honouring
// CallDelay and context cancellation.
func (s *Session) CallTool(ctx context.Context, name string, args map[string]any) (*mcp.ToolResult, error) {
	s.srv.mu.Lock()
	s.srv.calls = append(s.srv.calls, Call{Tool: name, Args: args})
	delay := s.srv.CallDelay
	callErr := s.srv.CallErr
	result := s.srv.CallResult
	s.srv.mu.Unlock()

	if delay > 0 {
		if err := wait(ctx, delay); err != nil {
			return nil, err
		}
	}
	if callErr != nil {
		return nil, callErr
	}
	if result != nil {
		out := *result
		return &out, nil
	}
	return &mcp.ToolResult{Content: `{"status":"ok"}`}, nil
}

func (s *Session) Close() error {
	s.srv.mu.Lock()
	defer s.srv.mu.Unlock()
	s.srv.closed++
	return nil
}

// wait blocks for d or until ctx is done.
func wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
