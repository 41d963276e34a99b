// Package llm resolves model identifiers to generators.
//
// A Catalog maps model ids to a ModelInfo and a Generator. Generators hide
// the provider: the built-in echo provider works offline, the others go
// through multi-llm-provider-go.
package llm

import (
	"context"
	"errors"
)

// Role of a message sent to a model
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a model-requested tool invocation
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// Message is one entry of the prompt
type Message struct {
	Role      Role
	Content   string
	ToolCalls []ToolCall
	// ToolCallID and ToolName are set on RoleTool messages
	ToolCallID string
	ToolName   string
}

// ToolSpec is a tool offered to the model
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
}

// Request is one generation call
type Request struct {
	Model       string
	Messages    []Message
	Tools       []ToolSpec
	Temperature *float64
	MaxTokens   int
	TopP        float64
}

// FinishReason explains why a generation stopped
type FinishReason string

const (
	FinishStop      FinishReason = "stop"
	FinishLength    FinishReason = "length"
	FinishToolCalls FinishReason = "tool_calls"
)

// Usage is the token accounting of one generation call. Zero means the
// provider did not report it.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// Total returns prompt plus completion tokens
func (u Usage) Total() int { return u.PromptTokens + u.CompletionTokens }

// IsZero reports whether the provider left usage empty
func (u Usage) IsZero() bool { return u.PromptTokens == 0 && u.CompletionTokens == 0 }

// Generation is the result of one generation call
type Generation struct {
	Content      string
	ToolCalls    []ToolCall
	FinishReason FinishReason
	Usage        Usage
}

// Generator produces a completion for a request. Content deltas are passed to
// onDelta as they arrive (onDelta may be nil); an error returned by onDelta
// aborts the generation and is returned.
type Generator interface {
	Generate(ctx context.Context, req *Request, onDelta func(string) error) (*Generation, error)
}

// GeneratorFunc adapts a function into a Generator
type GeneratorFunc func(ctx context.Context, req *Request, onDelta func(string) error) (*Generation, error)

func (f GeneratorFunc) Generate(ctx context.Context, req *Request, onDelta func(string) error) (*Generation, error) {
	return f(ctx, req, onDelta)
}

// ErrNoChoices is returned when a provider answers without any choice
var ErrNoChoices = errors.New("model returned no choices")
