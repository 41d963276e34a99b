// Package pb holds the wire types and service bindings of agent.v1.AgentService.
//
// The messages follow protoc-gen-go naming so that proto/agent.proto stays the
// readable contract, but they are plain structs carried by the JSON codec in
// codec.go rather than the protobuf binary format.
package pb

import (
	"strconv"

	"google.golang.org/protobuf/types/known/timestamppb"
)

type Message_MessageRole int32

const (
	Message_MESSAGE_ROLE_UNSPECIFIED Message_MessageRole = 0
	Message_USER                     Message_MessageRole = 1
	Message_ASSISTANT                Message_MessageRole = 2
	Message_SYSTEM                   Message_MessageRole = 3
	Message_TOOL                     Message_MessageRole = 4
)

var (
	Message_MessageRole_name = map[int32]string{
		0: "MESSAGE_ROLE_UNSPECIFIED",
		1: "USER",
		2: "ASSISTANT",
		3: "SYSTEM",
		4: "TOOL",
	}
	Message_MessageRole_value = map[string]int32{
		"MESSAGE_ROLE_UNSPECIFIED": 0,
		"USER":                     1,
		"ASSISTANT":                2,
		"SYSTEM":                   3,
		"TOOL":                     4,
	}
)

func (x Message_MessageRole) String() string { return enumName(Message_MessageRole_name, int32(x)) }

type MessageContext_MessageType int32

const (
	MessageContext_MESSAGE_TYPE_UNSPECIFIED MessageContext_MessageType = 0
	MessageContext_CHAT                     MessageContext_MessageType = 1
	MessageContext_CONTINUE                 MessageContext_MessageType = 2
	MessageContext_INSTRUCTION              MessageContext_MessageType = 3
)

var (
	MessageContext_MessageType_name = map[int32]string{
		0: "MESSAGE_TYPE_UNSPECIFIED",
		1: "CHAT",
		2: "CONTINUE",
		3: "INSTRUCTION",
	}
	MessageContext_MessageType_value = map[string]int32{
		"MESSAGE_TYPE_UNSPECIFIED": 0,
		"CHAT":                     1,
		"CONTINUE":                 2,
		"INSTRUCTION":              3,
	}
)

func (x MessageContext_MessageType) String() string {
	return enumName(MessageContext_MessageType_name, int32(x))
}

type ToolExecution_Status int32

const (
	ToolExecution_STATUS_UNSPECIFIED ToolExecution_Status = 0
	ToolExecution_PENDING            ToolExecution_Status = 1
	ToolExecution_RUNNING            ToolExecution_Status = 2
	ToolExecution_SUCCEEDED          ToolExecution_Status = 3
	ToolExecution_FAILED             ToolExecution_Status = 4
	ToolExecution_TIMEOUT            ToolExecution_Status = 5
	ToolExecution_CANCELLED          ToolExecution_Status = 6
)

var (
	ToolExecution_Status_name = map[int32]string{
		0: "STATUS_UNSPECIFIED",
		1: "PENDING",
		2: "RUNNING",
		3: "SUCCEEDED",
		4: "FAILED",
		5: "TIMEOUT",
		6: "CANCELLED",
	}
	ToolExecution_Status_value = map[string]int32{
		"STATUS_UNSPECIFIED": 0,
		"PENDING":            1,
		"RUNNING":            2,
		"SUCCEEDED":          3,
		"FAILED":             4,
		"TIMEOUT":            5,
		"CANCELLED":          6,
	}
)

func (x ToolExecution_Status) String() string { return enumName(ToolExecution_Status_name, int32(x)) }

func enumName(names map[int32]string, v int32) string {
	if s, ok := names[v]; ok {
		return s
	}
	return strconv.Itoa(int(v))
}

type ToolCall struct {
	Id        string `json:"id,omitempty"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

type Message struct {
	Id             string                 `json:"id,omitempty"`
	ConversationId string                 `json:"conversation_id,omitempty"`
	Role           Message_MessageRole    `json:"role,omitempty"`
	Content        string                 `json:"content,omitempty"`
	Timestamp      *timestamppb.Timestamp `json:"timestamp,omitempty"`
	Sequence       int64                  `json:"sequence,omitempty"`
	ToolCalls      []*ToolCall            `json:"tool_calls,omitempty"`
	ToolCallId     string                 `json:"tool_call_id,omitempty"`
	ToolName       string                 `json:"tool_name,omitempty"`
	Incomplete     bool                   `json:"incomplete,omitempty"`
}

func (x *Message) GetRole() Message_MessageRole {
	if x != nil {
		return x.Role
	}
	return Message_MESSAGE_ROLE_UNSPECIFIED
}

func (x *Message) GetContent() string {
	if x != nil {
		return x.Content
	}
	return ""
}

func (x *Message) GetTimestamp() *timestamppb.Timestamp {
	if x != nil {
		return x.Timestamp
	}
	return nil
}

type MessageContext struct {
	ConversationId string                     `json:"conversation_id,omitempty"`
	Type           MessageContext_MessageType `json:"type,omitempty"`
	Content        string                     `json:"content,omitempty"`
	HistoryWindow  int32                      `json:"history_window,omitempty"`
	Metadata       map[string]string          `json:"metadata,omitempty"`
}

type AgentOptions struct {
	ModelId string `json:"model_id,omitempty"`
	// Temperature is optional; nil leaves the provider default
	Temperature   *float64 `json:"temperature,omitempty"`
	MaxTokens     int32    `json:"max_tokens,omitempty"`
	TopP          float64  `json:"top_p,omitempty"`
	SystemPrompt  string   `json:"system_prompt,omitempty"`
	EnableTools   bool     `json:"enable_tools,omitempty"`
	AllowedTools  []string `json:"allowed_tools,omitempty"`
	MaxToolRounds int32    `json:"max_tool_rounds,omitempty"`
	ToolTimeoutMs int64    `json:"tool_timeout_ms,omitempty"`
}

type ModelCapabilities struct {
	SupportsStreaming bool  `json:"supports_streaming,omitempty"`
	SupportsTools     bool  `json:"supports_tools,omitempty"`
	ContextWindow     int32 `json:"context_window,omitempty"`
	MaxOutputTokens   int32 `json:"max_output_tokens,omitempty"`
}

type ModelInfo struct {
	Id           string             `json:"id,omitempty"`
	Provider     string             `json:"provider,omitempty"`
	DisplayName  string             `json:"display_name,omitempty"`
	Capabilities *ModelCapabilities `json:"capabilities,omitempty"`
}

type ToolExecution struct {
	Id         string                 `json:"id,omitempty"`
	ToolName   string                 `json:"tool_name,omitempty"`
	Input      string                 `json:"input,omitempty"`
	Output     string                 `json:"output,omitempty"`
	Status     ToolExecution_Status   `json:"status,omitempty"`
	Error      string                 `json:"error,omitempty"`
	StartedAt  *timestamppb.Timestamp `json:"started_at,omitempty"`
	DurationMs int64                  `json:"duration_ms,omitempty"`
}

type TokenUsage struct {
	PromptTokens     int32 `json:"prompt_tokens,omitempty"`
	CompletionTokens int32 `json:"completion_tokens,omitempty"`
	TotalTokens      int32 `json:"total_tokens,omitempty"`
	LlmCallCount     int32 `json:"llm_call_count,omitempty"`
}

type ResponseMetadata struct {
	RequestId    string                 `json:"request_id,omitempty"`
	ModelId      string                 `json:"model_id,omitempty"`
	Provider     string                 `json:"provider,omitempty"`
	LatencyMs    int64                  `json:"latency_ms,omitempty"`
	FinishReason string                 `json:"finish_reason,omitempty"`
	StartedAt    *timestamppb.Timestamp `json:"started_at,omitempty"`
}

type ProcessMessageRequest struct {
	Context *MessageContext `json:"context,omitempty"`
	Options *AgentOptions   `json:"options,omitempty"`
}

func (x *ProcessMessageRequest) GetContext() *MessageContext {
	if x != nil {
		return x.Context
	}
	return nil
}

func (x *ProcessMessageRequest) GetOptions() *AgentOptions {
	if x != nil {
		return x.Options
	}
	return nil
}

type ProcessMessageResponse struct {
	ConversationId string            `json:"conversation_id,omitempty"`
	Message        *Message          `json:"message,omitempty"`
	ToolExecutions []*ToolExecution  `json:"tool_executions,omitempty"`
	Usage          *TokenUsage       `json:"usage,omitempty"`
	Metadata       *ResponseMetadata `json:"metadata,omitempty"`
	Incomplete     bool              `json:"incomplete,omitempty"`
}

type MessageChunk struct {
	RequestId      string            `json:"request_id,omitempty"`
	ConversationId string            `json:"conversation_id,omitempty"`
	Sequence       uint64            `json:"sequence,omitempty"`
	Content        string            `json:"content,omitempty"`
	ToolExecution  *ToolExecution    `json:"tool_execution,omitempty"`
	IsFinal        bool              `json:"is_final,omitempty"`
	Usage          *TokenUsage       `json:"usage,omitempty"`
	Metadata       *ResponseMetadata `json:"metadata,omitempty"`
	Incomplete     bool              `json:"incomplete,omitempty"`
}

type GetConversationHistoryRequest struct {
	ConversationId string `json:"conversation_id,omitempty"`
	Limit          int32  `json:"limit,omitempty"`
	// Cursor is the NextCursor of a previous page
	Cursor string `json:"cursor,omitempty"`
}

type GetConversationHistoryResponse struct {
	ConversationId string     `json:"conversation_id,omitempty"`
	Messages       []*Message `json:"messages,omitempty"`
	NextCursor     string     `json:"next_cursor,omitempty"`
}

type ListModelsRequest struct{}

type ListModelsResponse struct {
	Models       []*ModelInfo `json:"models,omitempty"`
	DefaultModel string       `json:"default_model,omitempty"`
}

type HealthCheckRequest struct{}

type HealthCheckResponse struct {
	Status string `json:"status,omitempty"`
}
