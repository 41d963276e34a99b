package events

import (
	"bytes"
	"encoding/json"
	"sync"
	"testing"

	loggerv2 "agentd/logger/v2"
)

func TestEmitterFansOut(t *testing.T) {
	var (
		mu  sync.Mutex
		got []EventType
	)
	record := ObserverFunc(func(e *AgentEvent) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, e.Type)
	})

	emitter := NewEventEmitter(record)
	emitter.AddObserver(record)
	emitter.Emit(NewAgentEvent("req-1", "conv-1", &ToolCallStartEvent{ToolName: "calculator"}))

	if len(got) != 2 || got[0] != ToolCallStart {
		t.Errorf("observed %v, want two tool_call_start", got)
	}
}

func TestNilEmitterDropsEvents(t *testing.T) {
	var emitter *EventEmitter
	emitter.Emit(NewAgentEvent("req", "conv", &TokenUsageEvent{}))
}

func TestNewAgentEvent(t *testing.T) {
	tests := []struct {
		data      EventData
		component string
		start     bool
		end       bool
	}{
		{data: &ConversationStartEvent{}, component: "conversation", start: true},
		{data: &LLMGenerationEndEvent{}, component: "llm", end: true},
		{data: &ToolCallErrorEvent{}, component: "tool"},
		{data: &StreamingChunkEvent{}, component: "stream"},
		{data: &TokenUsageEvent{}, component: "system"},
	}
	for _, tt := range tests {
		e := NewAgentEvent("r", "c", tt.data)
		if e.Type != tt.data.GetEventType() || e.Component != tt.component {
			t.Errorf("%T: type=%s component=%s, want component %s", tt.data, e.Type, e.Component, tt.component)
		}
		if IsStartEvent(e.Type) != tt.start || IsEndEvent(e.Type) != tt.end {
			t.Errorf("%T: start/end classification wrong", tt.data)
		}
		if e.Timestamp.IsZero() {
			t.Errorf("%T: zero timestamp", tt.data)
		}
	}
}

func TestLoggingObserver(t *testing.T) {
	var buf bytes.Buffer
	logger, err := loggerv2.New(loggerv2.Config{Level: "debug", Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("loggerv2.New() error = %v", err)
	}

	NewLoggingObserver(logger).OnEvent(NewAgentEvent("req-9", "conv-9", &ToolCallEndEvent{ToolName: "calculator"}))

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not JSON: %v (%s)", err, buf.String())
	}
	if entry["event"] != string(ToolCallEnd) || entry["request_id"] != "req-9" || entry["conversation_id"] != "conv-9" {
		t.Errorf("log entry = %v", entry)
	}
}
