// Package llm is the reasoning-model client for the conversation agent.
// It speaks the OpenAI chat completions protocol with function calling,
// which covers OpenAI itself and any LiteLLM-proxied model.
package llm

import "context"

// Message is one turn of a chat conversation in provider-neutral form.
type Message struct {
	Role    string // system, user, assistant, tool
	Content string

	// Assistant messages that requested tools
	ToolCalls []ToolCall

	// Tool result messages
	ToolCallID string
}

// ToolCall is a model request to execute a tool.
type ToolCall struct {
	ID   string
	Name string
	Args map[string]interface{}
}

// ToolDefinition describes a tool offered to the model.
type ToolDefinition struct {
	Name        string
	Description string
	InputSchema map[string]interface{}
}

// Usage reports token consumption for a completion.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Response is the model's reply to a chat request.
type Response struct {
	Text       string
	ToolCalls  []ToolCall
	StopReason string
	Usage      Usage
}

// Client is the reasoning-model interface the agent depends on.
type Client interface {
	// Chat sends the conversation so far, with available tools, and
	// returns the model's next message.
	Chat(ctx context.Context, system string, messages []Message, tools []ToolDefinition) (*Response, error)
}
