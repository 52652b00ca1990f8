// Package agent drives the conversational loop: it sends the tool catalog to
// an LLM backend, executes the tool calls the model requests against the
// twitter facade, and feeds results back until the model produces a final
// answer.
package agent

import "context"

// Message is one turn in a conversation with the model.
type Message struct {
	// Role is "system", "user", "assistant", or "tool".
	Role string

	// Content is the textual body of the message.
	Content string

	// Name carries the tool name on tool-result messages.
	Name string

	// ToolCallID links a tool-result message to the call that produced it.
	ToolCallID string

	// ToolCalls holds the calls an assistant message requested.
	ToolCalls []ToolCall
}

// ToolCall is one tool invocation requested by the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string // JSON-encoded argument object
}

// ToolDefinition describes one callable tool to the model.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any // JSON Schema
}

// CompletionRequest is one request to the LLM backend.
type CompletionRequest struct {
	SystemPrompt string
	Messages     []Message
	Tools        []ToolDefinition
	Temperature  float64
	MaxTokens    int
}

// CompletionResponse is the model's reply.
type CompletionResponse struct {
	Content   string
	ToolCalls []ToolCall
}

// Completer abstracts the LLM backend so the loop can be tested with a
// scripted double.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}
