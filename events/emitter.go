package events

import (
	"sync"

	loggerv2 "agentd/logger/v2"
)

// EventObserver interface for event consumers
type EventObserver interface {
	OnEvent(event *AgentEvent)
}

// ObserverFunc adapts a function into an EventObserver
type ObserverFunc func(event *AgentEvent)

func (f ObserverFunc) OnEvent(event *AgentEvent) { f(event) }

// EventEmitter fans events out to its observers. A nil *EventEmitter drops
// every event.
type EventEmitter struct {
	mu        sync.RWMutex
	observers []EventObserver
}

// NewEventEmitter creates a new event emitter
func NewEventEmitter(observers ...EventObserver) *EventEmitter {
	return &EventEmitter{observers: observers}
}

// Emit sends an event to all observers
func (e *EventEmitter) Emit(event *AgentEvent) {
	if e == nil || event == nil {
		return
	}
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, observer := range e.observers {
		observer.OnEvent(event)
	}
}

// AddObserver adds an event observer
func (e *EventEmitter) AddObserver(observer EventObserver) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observers = append(e.observers, observer)
}

// LoggingObserver writes every event to a logger at debug level
type LoggingObserver struct {
	logger loggerv2.Logger
}

// NewLoggingObserver creates an observer logging through logger
func NewLoggingObserver(logger loggerv2.Logger) *LoggingObserver {
	if logger == nil {
		logger = loggerv2.NewNoop()
	}
	return &LoggingObserver{logger: logger}
}

func (o *LoggingObserver) OnEvent(event *AgentEvent) {
	fields := []loggerv2.Field{
		loggerv2.String("event", string(event.Type)),
		loggerv2.String("component", event.Component),
	}
	if event.RequestID != "" {
		fields = append(fields, loggerv2.String("request_id", event.RequestID))
	}
	if event.ConversationID != "" {
		fields = append(fields, loggerv2.String("conversation_id", event.ConversationID))
	}
	if event.Data != nil {
		fields = append(fields, loggerv2.Any("data", event.Data))
	}
	o.logger.Debug("agent event", fields...)
}
