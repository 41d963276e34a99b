package agent

import (
	"time"

	"agentd/conversation"
	"agentd/executor"
)

// MessageType selects how MessageContext.Content is interpreted
type MessageType int

const (
	// MessageTypeChat appends Content as a new user turn
	MessageTypeChat MessageType = iota
	// MessageTypeContinue asks the model to continue an existing conversation
	MessageTypeContinue
	// MessageTypeInstruction passes Content as a one-off system instruction
	// that is not stored
	MessageTypeInstruction
)

func (t MessageType) String() string {
	switch t {
	case MessageTypeChat:
		return "chat"
	case MessageTypeContinue:
		return "continue"
	case MessageTypeInstruction:
		return "instruction"
	default:
		return "unknown"
	}
}

// MessageContext frames one request
type MessageContext struct {
	// ConversationID is generated when empty
	ConversationID string
	Type           MessageType
	Content        string
	// HistoryWindow limits how many stored messages are sent to the model; 0 sends all
	HistoryWindow int
	Metadata      map[string]string
}

// Options is the per-request configuration
type Options struct {
	ModelID      string
	Temperature  *float64
	MaxTokens    int
	TopP         float64
	SystemPrompt string
	EnableTools  bool
	// AllowedTools restricts the offered tools; empty offers all
	AllowedTools  []string
	MaxToolRounds int
	ToolTimeout   time.Duration
}

// Request is one ProcessMessage call
type Request struct {
	Context *MessageContext
	Options Options
	// RequestID is generated when empty
	RequestID string
}

// FinishReason explains how a response ended
type FinishReason string

const (
	FinishStop                FinishReason = "stop"
	FinishLength              FinishReason = "length"
	FinishToolRoundsExhausted FinishReason = "tool_rounds_exhausted"
	FinishCancelled           FinishReason = "cancelled"
)

// TokenUsage is the usage accumulated over every generation call of a request
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	LLMCalls         int
}

// Metadata describes how a response was produced
type Metadata struct {
	RequestID    string
	ModelID      string
	Provider     string
	Latency      time.Duration
	FinishReason FinishReason
	StartedAt    time.Time
}

// Response is the result of ProcessMessage
type Response struct {
	ConversationID string
	// Message is the final assistant message as stored
	Message        conversation.Message
	ToolExecutions []executor.Execution
	Usage          TokenUsage
	Metadata       Metadata
	Incomplete     bool
}

// Chunk is one element of a streamed response. Sequence starts at 1; only
// the final chunk carries Usage and Metadata.
type Chunk struct {
	RequestID      string
	ConversationID string
	Sequence       uint64
	Content        string
	ToolExecution  *executor.Execution
	IsFinal        bool
	Usage          *TokenUsage
	Metadata       *Metadata
	Incomplete     bool
}
