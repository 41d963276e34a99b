package events

import (
	"time"
)

// EventType names an agent event
type EventType string

const (
	// Conversation events
	ConversationStart EventType = "conversation_start"
	ConversationEnd   EventType = "conversation_end"
	ConversationError EventType = "conversation_error"

	// LLM events
	LLMGenerationStart EventType = "llm_generation_start"
	LLMGenerationEnd   EventType = "llm_generation_end"

	// Tool events
	ToolCallStart EventType = "tool_call_start"
	ToolCallEnd   EventType = "tool_call_end"
	ToolCallError EventType = "tool_call_error"

	StreamingChunk   EventType = "streaming_chunk"
	ContextCancelled EventType = "context_cancelled"
	TokenUsage       EventType = "token_usage"
)

// EventData is the typed payload of an event
type EventData interface {
	GetEventType() EventType
}

// AgentEvent is one emitted event
type AgentEvent struct {
	Type           EventType `json:"type"`
	Timestamp      time.Time `json:"timestamp"`
	RequestID      string    `json:"request_id,omitempty"`
	ConversationID string    `json:"conversation_id,omitempty"`
	Component      string    `json:"component,omitempty"`
	Data           EventData `json:"data"`
}

// NewAgentEvent wraps data into an event stamped with the current time
func NewAgentEvent(requestID, conversationID string, data EventData) *AgentEvent {
	return &AgentEvent{
		Type:           data.GetEventType(),
		Timestamp:      time.Now(),
		RequestID:      requestID,
		ConversationID: conversationID,
		Component:      GetComponentFromEventType(data.GetEventType()),
		Data:           data,
	}
}

type ConversationStartEvent struct {
	MessageType string `json:"message_type"`
	ModelID     string `json:"model_id"`
	Streaming   bool   `json:"streaming"`
}

func (e *ConversationStartEvent) GetEventType() EventType { return ConversationStart }

type ConversationEndEvent struct {
	FinishReason string        `json:"finish_reason"`
	Duration     time.Duration `json:"duration"`
	Rounds       int           `json:"rounds"`
	Committed    int           `json:"committed_messages"`
	Incomplete   bool          `json:"incomplete,omitempty"`
}

func (e *ConversationEndEvent) GetEventType() EventType { return ConversationEnd }

type ConversationErrorEvent struct {
	Error    string        `json:"error"`
	Duration time.Duration `json:"duration"`
}

func (e *ConversationErrorEvent) GetEventType() EventType { return ConversationError }

type LLMGenerationStartEvent struct {
	Round    int    `json:"round"`
	ModelID  string `json:"model_id"`
	Messages int    `json:"messages"`
	Tools    int    `json:"tools"`
}

func (e *LLMGenerationStartEvent) GetEventType() EventType { return LLMGenerationStart }

type LLMGenerationEndEvent struct {
	Round        int           `json:"round"`
	ModelID      string        `json:"model_id"`
	FinishReason string        `json:"finish_reason"`
	ToolCalls    int           `json:"tool_calls"`
	Duration     time.Duration `json:"duration"`
}

func (e *LLMGenerationEndEvent) GetEventType() EventType { return LLMGenerationEnd }

type ToolCallStartEvent struct {
	Round      int    `json:"round"`
	ToolCallID string `json:"tool_call_id"`
	ToolName   string `json:"tool_name"`
	Arguments  string `json:"arguments"`
}

func (e *ToolCallStartEvent) GetEventType() EventType { return ToolCallStart }

type ToolCallEndEvent struct {
	Round      int           `json:"round"`
	ToolCallID string        `json:"tool_call_id"`
	ToolName   string        `json:"tool_name"`
	Result     string        `json:"result"`
	Duration   time.Duration `json:"duration"`
}

func (e *ToolCallEndEvent) GetEventType() EventType { return ToolCallEnd }

type ToolCallErrorEvent struct {
	Round      int           `json:"round"`
	ToolCallID string        `json:"tool_call_id"`
	ToolName   string        `json:"tool_name"`
	Status     string        `json:"status"`
	Error      string        `json:"error"`
	Duration   time.Duration `json:"duration"`
}

func (e *ToolCallErrorEvent) GetEventType() EventType { return ToolCallError }

type StreamingChunkEvent struct {
	Sequence uint64 `json:"sequence"`
	Length   int    `json:"length"`
	IsFinal  bool   `json:"is_final,omitempty"`
}

func (e *StreamingChunkEvent) GetEventType() EventType { return StreamingChunk }

type ContextCancelledEvent struct {
	Round    int           `json:"round"`
	Reason   string        `json:"reason"`
	Duration time.Duration `json:"duration"`
}

func (e *ContextCancelledEvent) GetEventType() EventType { return ContextCancelled }

type TokenUsageEvent struct {
	PromptTokens     int  `json:"prompt_tokens"`
	CompletionTokens int  `json:"completion_tokens"`
	TotalTokens      int  `json:"total_tokens"`
	LLMCalls         int  `json:"llm_calls"`
	Estimated        bool `json:"estimated,omitempty"`
}

func (e *TokenUsageEvent) GetEventType() EventType { return TokenUsage }

// GetComponentFromEventType returns the component an event type belongs to
func GetComponentFromEventType(eventType EventType) string {
	switch eventType {
	case LLMGenerationStart, LLMGenerationEnd:
		return "llm"
	case ToolCallStart, ToolCallEnd, ToolCallError:
		return "tool"
	case ConversationStart, ConversationEnd, ConversationError, ContextCancelled:
		return "conversation"
	case StreamingChunk:
		return "stream"
	default:
		return "system"
	}
}

// IsStartEvent reports whether eventType opens a start/end pair
func IsStartEvent(eventType EventType) bool {
	return eventType == ConversationStart ||
		eventType == LLMGenerationStart ||
		eventType == ToolCallStart
}

// IsEndEvent reports whether eventType closes a start/end pair
func IsEndEvent(eventType EventType) bool {
	return eventType == ConversationEnd ||
		eventType == LLMGenerationEnd ||
		eventType == ToolCallEnd
}
