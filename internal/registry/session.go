package registry

import (
	"context"
	"errors"
	"sync"

	"github.com/magpie-ai/magpie/internal/mcp"
)

// errSessionClosed is returned by CallTool once Close has been requested.
var errSessionClosed = errors.New("registry: provider session closed")

// trackedSession wraps an [mcp.Session] with an in-flight call count so a
// cache swap cannot yank a session out from under a running invocation.
// Callers holding descriptors from a previously returned tool map may still
// be mid-CallTool when a refresh replaces their session; Close therefore only
// marks the session as closing, and the underlying session is closed by
// whichever side finishes last: Close itself when nothing is in flight, or
// the final CallTool to drain otherwise. Calls started after Close fail with
// errSessionClosed.
type trackedSession struct {
	mcp.Session

	mu      sync.Mutex
	active  int
	closing bool
}

func newTrackedSession(s mcp.Session) *trackedSession {
	return &trackedSession{Session: s}
}

// CallTool forwards to the underlying session, holding an in-flight count for
// the duration of the call.
func (t *trackedSession) CallTool(ctx context.Context, name string, args map[string]any) (*mcp.ToolResult, error) {
	t.mu.Lock()
	if t.closing {
		t.mu.Unlock()
		return nil, errSessionClosed
	}
	t.active++
	t.mu.Unlock()
	defer t.release()

	return t.Session.CallTool(ctx, name, args)
}

// release drops one in-flight call; the last call out after a Close request
// closes the underlying session.
func (t *trackedSession) release() {
	t.mu.Lock()
	t.active--
	last := t.closing && t.active == 0
	t.mu.Unlock()
	if last {
		_ = t.Session.Close()
	}
}

// Close marks the session closing. The underlying session is closed now when
// idle, or by the final in-flight call otherwise. Close is idempotent.
func (t *trackedSession) Close() error {
	t.mu.Lock()
	if t.closing {
		t.mu.Unlock()
		return nil
	}
	t.closing = true
	busy := t.active > 0
	t.mu.Unlock()

	if busy {
		return nil
	}
	return t.Session.Close()
}
