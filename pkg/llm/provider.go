package llm

import (
	"context"
	"encoding/json"
)

// Message represents a chat message in a provider-agnostic format
type Message struct {
	Role    string // "user", "assistant", "system"
	Content string
}

// Usage reports token consumption for a single provider call
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Tool describes a callable action the model may select.
// Parameters is a JSON Schema object.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
}

// ToolCall is a structured action request returned by the model
type ToolCall struct {
	Name      string
	Arguments json.RawMessage
}

// ToolResult is the outcome of a tool-enabled chat call: either plain
// text (Call == nil) or a structured tool call with its raw arguments.
type ToolResult struct {
	Text  string
	Call  *ToolCall
	Usage Usage
}

// Option allows for optional parameters like Temperature, MaxTokens, etc.
type Option func(*Options)

type Options struct {
	Temperature float64
	MaxTokens   int
	Model       string // Override default model
}

func WithTemperature(temp float64) Option {
	return func(o *Options) {
		o.Temperature = temp
	}
}

func WithMaxTokens(maxTokens int) Option {
	return func(o *Options) {
		o.MaxTokens = maxTokens
	}
}

func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

// LLMProvider defines the contract for any LLM backend
type LLMProvider interface {
	// Chat sends a chat history to the model and returns the response
	Chat(ctx context.Context, history []Message, options ...Option) (string, error)

	// Generate sends a single prompt to the model (convenience method)
	Generate(ctx context.Context, prompt string, options ...Option) (string, error)

	// ChatWithTools sends a chat history along with tool schemas the model
	// may invoke. The model either answers in plain text or selects one tool.
	ChatWithTools(ctx context.Context, history []Message, tools []Tool, options ...Option) (*ToolResult, error)
}
