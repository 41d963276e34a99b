// Package conversation stores the append-only message log of every conversation.
//
// Messages are immutable once appended. Each conversation has its own sequence
// counter starting at 1, and appends to one conversation never wait on appends
// to another.
package conversation

import (
	"errors"
	"time"
)

// Role identifies who authored a message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem, RoleTool:
		return true
	}
	return false
}

var (
	// ErrNotFound is returned when a conversation identifier is unknown
	ErrNotFound = errors.New("conversation not found")
	// ErrInvalidMessage is returned by Append for malformed messages
	ErrInvalidMessage = errors.New("invalid message")
	// ErrClosed is returned after the store has been closed
	ErrClosed = errors.New("conversation store closed")
)

// ToolCall is a tool invocation requested by the assistant
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Message is one turn in a conversation
type Message struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversation_id"`
	Sequence       int64      `json:"sequence"`
	Role           Role       `json:"role"`
	Content        string     `json:"content"`
	Timestamp      time.Time  `json:"timestamp"`
	ToolCalls      []ToolCall `json:"tool_calls,omitempty"`
	// ToolCallID and ToolName link a tool-role message to the call it answers
	ToolCallID string `json:"tool_call_id,omitempty"`
	ToolName   string `json:"tool_name,omitempty"`
	// Incomplete marks an assistant message cut short by cancellation
	Incomplete bool `json:"incomplete,omitempty"`
}

func (m Message) clone() Message {
	if m.ToolCalls != nil {
		calls := make([]ToolCall, len(m.ToolCalls))
		copy(calls, m.ToolCalls)
		m.ToolCalls = calls
	}
	return m
}

func validate(msg Message) error {
	if !msg.Role.Valid() {
		return errors.Join(ErrInvalidMessage, errors.New("unknown role "+string(msg.Role)))
	}
	if msg.Role == RoleTool && msg.ToolCallID == "" {
		return errors.Join(ErrInvalidMessage, errors.New("tool message without tool_call_id"))
	}
	return nil
}
