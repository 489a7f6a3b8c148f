// Package llm defines the provider-neutral chat interface the agents speak
// through: ordered messages, tool definitions, and responses carrying text
// and/or tool calls. Provider adapters live in the subpackages.
package llm

import (
	"context"
	"encoding/json"
)

// Role identifies the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one entry in the conversation sent to a provider.
type Message struct {
	Role    Role
	Content string

	// ToolCalls is set on assistant messages that requested tool execution.
	ToolCalls []ToolCall
	// ToolCallID links a RoleTool message to the call it answers.
	ToolCallID string
	// ToolIsError marks a tool result as a failure.
	ToolIsError bool
}

// ToolCall is a provider-issued request to execute one tool.
type ToolCall struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// ToolDefinition advertises one callable tool to the provider.
type ToolDefinition struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// Request is a single chat completion request.
type Request struct {
	Model       string
	System      string
	Messages    []Message
	Tools       []ToolDefinition
	Temperature float32
	MaxTokens   int
}

// Response is the provider's answer: assistant text, any tool calls, and an
// optional structured payload for providers that return one directly.
type Response struct {
	Text             string
	ToolCalls        []ToolCall
	StructuredOutput json.RawMessage
	StopReason       string
}

// Client is implemented by each provider adapter and by the mock.
type Client interface {
	Chat(ctx context.Context, req *Request) (*Response, error)
}
