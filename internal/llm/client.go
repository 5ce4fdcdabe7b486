// Package llm provides the language model client used by the sous-chef
// agent loop. The API is consumed as a stateless request/response
// function: the full message history is resent on every call.
package llm

import "context"

// Message is a single entry in the conversation history.
//
// Role is one of "system", "user", "assistant", or "tool". Tool messages
// carry the result of a tool execution and must set ToolCallID to the id
// of the originating tool call so the provider can correlate them.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Input map[string]any `json:"input"`
}

// Tool declares a callable operation to the model's function-calling
// interface. InputSchema is a JSON-schema subset (object/string/number/
// array/enum, required, min/max).
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// ChatResponse is the provider-neutral result of one model call.
type ChatResponse struct {
	Model        string
	Message      Message
	StopReason   string
	InputTokens  int
	OutputTokens int
}

// Client is the interface the agent loop depends on. The production
// implementation is [AnthropicClient]; tests substitute fakes.
type Client interface {
	Chat(ctx context.Context, messages []Message, tools []Tool) (*ChatResponse, error)
}
