package agent

import (
	"errors"

	"agentd/conversation"
	"agentd/executor"
	"agentd/llm"
)

var (
	// ErrInvalidRequest is returned for malformed requests
	ErrInvalidRequest = errors.New("invalid request")
	// ErrInvalidModel is returned for unknown models or unsupported options
	ErrInvalidModel = errors.New("invalid model")
	// ErrNotFound is returned for unknown conversations
	ErrNotFound = conversation.ErrNotFound
	// ErrCancelled is returned when the caller cancels a request in flight
	ErrCancelled = errors.New("request cancelled")
)

// IsToolFailure reports whether err is a mandatory tool failure
func IsToolFailure(err error) bool {
	var toolErr *executor.ToolExecutionError
	return errors.As(err, &toolErr)
}

// IsInvalidModel reports whether err came from model resolution
func IsInvalidModel(err error) bool {
	return errors.Is(err, ErrInvalidModel) || errors.Is(err, llm.ErrUnknownModel)
}
