// Package mcphost implements [mcp.Dialer] on top of the official MCP Go SDK
// (github.com/modelcontextprotocol/go-sdk).
//
// It supports stdio, streamable-HTTP, and SSE transports. A single SDK
// client is reused across all provider connections; the SDK allows one
// client to manage multiple sessions concurrently.
package mcphost

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/magpie-ai/magpie/internal/mcp"
)

// Dialer connects to MCP providers using the official SDK.
type Dialer struct {
	client *mcpsdk.Client
}

// Compile-time check: Dialer must implement mcp.Dialer.
var _ mcp.Dialer = (*Dialer)(nil)

// NewDialer creates a ready-to-use Dialer.
func NewDialer() *Dialer {
	client := mcpsdk.NewClient(
		&mcpsdk.Implementation{Name: "magpie", Version: "1.0.0"},
		nil,
	)
	return &Dialer{client: client}
}

// Dial establishes a session with the provider described by cfg.
//
// For [mcp.TransportStdio]: cfg.Command is split on spaces into executable +
// args; cfg.Env is passed as additional environment variables.
//
// For [mcp.TransportStreamableHTTP] and [mcp.TransportSSE]: cfg.URL is the
// endpoint address.
func (d *Dialer) Dial(ctx context.Context, cfg mcp.ServerConfig) (mcp.Session, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("mcphost: provider config must have a non-empty name")
	}

	var transport mcpsdk.Transport

	switch cfg.Transport {
	case mcp.TransportStdio:
		executable, args := splitCommand(cfg.Command)
		if executable == "" {
			return nil, fmt.Errorf("mcphost: stdio provider %q requires a non-empty Command", cfg.Name)
		}
		cmd := exec.CommandContext(ctx, executable, args...)
		if len(cfg.Env) > 0 {
			cmd.Env = os.Environ()
			for k, v := range cfg.Env {
				cmd.Env = append(cmd.Env, k+"="+v)
			}
		}
		transport = &mcpsdk.CommandTransport{Command: cmd}

	case mcp.TransportStreamableHTTP:
		if cfg.URL == "" {
			return nil, fmt.Errorf("mcphost: streamable-http provider %q requires a non-empty URL", cfg.Name)
		}
		transport = &mcpsdk.StreamableClientTransport{Endpoint: cfg.URL}

	case mcp.TransportSSE:
		if cfg.URL == "" {
			return nil, fmt.Errorf("mcphost: sse provider %q requires a non-empty URL", cfg.Name)
		}
		transport = &mcpsdk.SSEClientTransport{Endpoint: cfg.URL}

	default:
		return nil, fmt.Errorf("mcphost: unknown transport %q for provider %q", cfg.Transport, cfg.Name)
	}

	cs, err := d.client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("mcphost: connect to provider %q: %w", cfg.Name, err)
	}

	return &session{cs: cs, provider: cfg.Name}, nil
}

// session wraps an SDK client session as an [mcp.Session].
type session struct {
	cs       *mcpsdk.ClientSession
	provider string
}

// ListTools enumerates the provider's tools using the SDK iterator.
func (s *session) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	var tools []mcp.Tool
	for tool, err := range s.cs.Tools(ctx, nil) {
		if err != nil {
			return nil, fmt.Errorf("mcphost: list tools for provider %q: %w", s.provider, err)
		}
		tools = append(tools, mcp.Tool{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: schemaToMap(tool.InputSchema),
			Provider:    s.provider,
		})
	}
	return tools, nil
}

// CallTool invokes the named tool and concatenates all text content from the
// result into a single string.
func (s *session) CallTool(ctx context.Context, name string, args map[string]any) (*mcp.ToolResult, error) {
	res, err := s.cs.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		return nil, fmt.Errorf("mcphost: call tool %q on provider %q: %w", name, s.provider, err)
	}

	var sb strings.Builder
	for _, c := range res.Content {
		if tc, ok := c.(*mcpsdk.TextContent); ok {
			sb.WriteString(tc.Text)
		}
	}

	return &mcp.ToolResult{
		Content: sb.String(),
		IsError: res.IsError,
	}, nil
}

func (s *session) Close() error {
	return s.cs.Close()
}

// schemaToMap converts any schema value to a map[string]any.
func schemaToMap(schema any) map[string]any {
	if schema == nil {
		return map[string]any{"type": "object"}
	}
	if m, ok := schema.(map[string]any); ok {
		return m
	}
	data, err := json.Marshal(schema)
	if err != nil {
		return map[string]any{"type": "object"}
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return map[string]any{"type": "object"}
	}
	return m
}

// splitCommand splits a command string into executable and arguments.
// e.g. "/bin/foo --bar baz" → ("/bin/foo", ["--bar", "baz"]).
func splitCommand(command string) (executable string, args []string) {
	parts := strings.Fields(command)
	if len(parts) == 0 {
		return "", nil
	}
	return parts[0], parts[1:]
}
