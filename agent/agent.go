// Package agent implements the message-processing endpoint of agentd.
//
// An Agent turns a request into a model generation, runs any tool calls the
// model asks for through the executor, accumulates token usage and commits
// the resulting messages to the conversation store in a single append. The
// same pipeline backs the unary call and the chunk stream.
package agent

import (
	"time"

	"github.com/google/uuid"

	"agentd/conversation"
	"agentd/events"
	"agentd/executor"
	"agentd/llm"
	loggerv2 "agentd/logger/v2"
)

const (
	DefaultMaxToolRounds = 8
	DefaultStreamBuffer  = 16
	commitTimeout        = 5 * time.Second
)

// AgentOption defines a functional option for configuring an Agent
type AgentOption func(*Agent)

// WithLogger sets a custom logger
func WithLogger(logger loggerv2.Logger) AgentOption {
	return func(a *Agent) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithEmitter sets the event emitter
func WithEmitter(emitter *events.EventEmitter) AgentOption {
	return func(a *Agent) {
		a.emitter = emitter
	}
}

// WithDefaultModel overrides the catalog default model
func WithDefaultModel(modelID string) AgentOption {
	return func(a *Agent) {
		a.defaultModel = modelID
	}
}

// WithMaxToolRounds bounds tool rounds for requests that do not set their own
func WithMaxToolRounds(n int) AgentOption {
	return func(a *Agent) {
		if n > 0 {
			a.maxToolRounds = n
		}
	}
}

// WithStreamBuffer sets the capacity of the chunk channel
func WithStreamBuffer(n int) AgentOption {
	return func(a *Agent) {
		if n > 0 {
			a.streamBuffer = n
		}
	}
}

// WithTokenCounter sets the counter used when a provider reports no usage
func WithTokenCounter(counter *llm.TokenCounter) AgentOption {
	return func(a *Agent) {
		if counter != nil {
			a.counter = counter
		}
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) AgentOption {
	return func(a *Agent) {
		if now != nil {
			a.now = now
		}
	}
}

// WithIDGenerator replaces the request and conversation id generator
func WithIDGenerator(gen func() string) AgentOption {
	return func(a *Agent) {
		if gen != nil {
			a.newID = gen
		}
	}
}

// Agent processes messages against a model catalog, a conversation store and
// a tool coordinator. It is safe for concurrent use.
type Agent struct {
	catalog llm.Catalog
	store   conversation.Store
	tools   *executor.Coordinator

	logger        loggerv2.Logger
	emitter       *events.EventEmitter
	counter       *llm.TokenCounter
	defaultModel  string
	maxToolRounds int
	streamBuffer  int
	now           func() time.Time
	newID         func() string
}

// New creates an Agent. tools may be nil, in which case requests enabling
// tools get no tools offered.
func New(catalog llm.Catalog, store conversation.Store, tools *executor.Coordinator, opts ...AgentOption) *Agent {
	a := &Agent{
		catalog:       catalog,
		store:         store,
		tools:         tools,
		logger:        loggerv2.NewNoop(),
		counter:       llm.NewTokenCounter(""),
		maxToolRounds: DefaultMaxToolRounds,
		streamBuffer:  DefaultStreamBuffer,
		now:           time.Now,
		newID:         uuid.NewString,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ListModels returns the catalog in its configured order
func (a *Agent) ListModels() []llm.ModelInfo {
	return a.catalog.List()
}

// DefaultModel returns the model used when a request names none
func (a *Agent) DefaultModel() string {
	if a.defaultModel != "" {
		return a.defaultModel
	}
	return a.catalog.Default()
}

func (a *Agent) emit(requestID, conversationID string, data events.EventData) {
	a.emitter.Emit(events.NewAgentEvent(requestID, conversationID, data))
}
