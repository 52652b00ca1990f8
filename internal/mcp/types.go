// Package mcp defines the boundary between magpie and remote MCP tool
// providers.
//
// A provider is an independent remote service exposing a set of named,
// invocable tools over an MCP transport. The rest of the application only
// depends on the small surface defined here: dial a provider, enumerate its
// tools, invoke a tool by name, close the session. The wire protocol behind
// that surface is provider-specific and handled by [mcphost].
package mcp

import "context"

// Transport selects the connection mechanism for an MCP provider.
type Transport string

const (
	// TransportStdio spawns a subprocess and communicates over stdin/stdout.
	TransportStdio Transport = "stdio"

	// TransportStreamableHTTP communicates via the MCP Streamable HTTP protocol.
	TransportStreamableHTTP Transport = "streamable-http"

	// TransportSSE communicates via HTTP Server-Sent Events.
	TransportSSE Transport = "sse"
)

// IsValid reports whether t is a recognised transport.
func (t Transport) IsValid() bool {
	switch t {
	case TransportStdio, TransportStreamableHTTP, TransportSSE:
		return true
	}
	return false
}

// ServerConfig describes how to reach a single MCP provider.
type ServerConfig struct {
	// Name is the unique, human-readable identifier for this provider.
	// Used as the key in health and circuit-breaker tables and in logs.
	Name string `yaml:"name"`

	// Transport specifies the connection mechanism.
	Transport Transport `yaml:"transport"`

	// Command is the executable path (and optional arguments) used when
	// Transport is [TransportStdio]. Ignored otherwise.
	Command string `yaml:"command"`

	// URL is the endpoint address used for the HTTP-based transports.
	// Ignored for stdio.
	URL string `yaml:"url"`

	// Env holds additional environment variables injected into the server
	// process when Transport is [TransportStdio]. May be nil.
	Env map[string]string `yaml:"env"`
}

// Tool describes one named tool discovered on a provider.
type Tool struct {
	// Name is the tool's unique identifier within the merged registry.
	Name string

	// Description explains what the tool does, as reported by the provider.
	Description string

	// InputSchema is the JSON Schema for the tool's arguments.
	InputSchema map[string]any

	// Provider is the name of the provider the tool was discovered on.
	// Diagnostic only; dispatch goes through the session the tool came with.
	Provider string
}

// ToolResult holds the outcome of a single tool invocation.
type ToolResult struct {
	// Content is the tool's textual output, typically a JSON string.
	Content string

	// IsError indicates an application-level error reported by the provider
	// (as opposed to a transport failure returned via the Go error value).
	// When IsError is true, Content carries the error message.
	IsError bool
}

// Session is a live connection to one provider.
//
// Implementations must be safe for concurrent use and must respect context
// cancellation on every method that takes a context.
type Session interface {
	// ListTools enumerates the tools the provider currently exposes.
	ListTools(ctx context.Context) ([]Tool, error)

	// CallTool invokes the named tool with the given arguments.
	// A non-nil *ToolResult with IsError set represents a provider-side
	// error; a non-nil Go error represents a transport or protocol failure.
	CallTool(ctx context.Context, name string, args map[string]any) (*ToolResult, error)

	// Close tears down the session. After Close the session must not be used.
	Close() error
}

// Dialer establishes sessions with providers. The concrete implementation
// lives in [mcphost]; tests substitute a scripted double.
type Dialer interface {
	Dial(ctx context.Context, cfg ServerConfig) (Session, error)
}
