package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"

	llmproviders "github.com/manishiitg/multi-llm-provider-go"
	"github.com/manishiitg/multi-llm-provider-go/interfaces"
	"github.com/manishiitg/multi-llm-provider-go/llmtypes"

	loggerv2 "agentd/logger/v2"
)

// Provider names served by multi-llm-provider-go
const (
	ProviderBedrock    = string(llmproviders.ProviderBedrock)
	ProviderOpenAI     = string(llmproviders.ProviderOpenAI)
	ProviderAnthropic  = string(llmproviders.ProviderAnthropic)
	ProviderOpenRouter = string(llmproviders.ProviderOpenRouter)
	ProviderVertex     = string(llmproviders.ProviderVertex)
)

// LoggerAdapter adapts loggerv2.Logger to interfaces.Logger
type LoggerAdapter struct {
	logger loggerv2.Logger
}

// NewLoggerAdapter creates a new logger adapter
func NewLoggerAdapter(logger loggerv2.Logger) *LoggerAdapter {
	return &LoggerAdapter{logger: logger}
}

// Infof implements interfaces.Logger
func (l *LoggerAdapter) Infof(format string, v ...any) {
	if l == nil || l.logger == nil {
		return
	}
	l.logger.Info(fmt.Sprintf(format, v...))
}

// Errorf implements interfaces.Logger
func (l *LoggerAdapter) Errorf(format string, v ...any) {
	if l == nil || l.logger == nil {
		return
	}
	l.logger.Error(fmt.Sprintf(format, v...), nil)
}

// Debugf implements interfaces.Logger
func (l *LoggerAdapter) Debugf(format string, args ...interface{}) {
	if l == nil || l.logger == nil {
		return
	}
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// NewProviderFactory returns the factory used by agentd: echo is built in,
// every other provider goes through multi-llm-provider-go
func NewProviderFactory(logger loggerv2.Logger) ProviderFactory {
	if logger == nil {
		logger = loggerv2.NewNoop()
	}
	return func(spec ModelSpec) (Generator, error) {
		switch strings.ToLower(spec.Provider) {
		case ProviderEcho:
			return &EchoGenerator{Delay: spec.StreamDelay}, nil
		case "":
			return nil, fmt.Errorf("provider is required")
		}
		provider, err := llmproviders.ValidateProvider(strings.ToLower(spec.Provider))
		if err != nil {
			return nil, err
		}
		upstream := spec.Upstream
		if upstream == "" {
			upstream = spec.ID
		}
		return &ProviderGenerator{
			provider: provider,
			modelID:  upstream,
			logger:   logger.With(loggerv2.String("model", spec.ID)),
		}, nil
	}
}

// ProviderGenerator generates through multi-llm-provider-go. The upstream
// client is created on first use so missing credentials only affect requests
// that select this model.
type ProviderGenerator struct {
	provider llmproviders.Provider
	modelID  string
	logger   loggerv2.Logger

	mu    sync.Mutex
	model llmtypes.Model
}

func (p *ProviderGenerator) client(ctx context.Context) (llmtypes.Model, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.model != nil {
		return p.model, nil
	}
	model, err := llmproviders.InitializeLLM(llmproviders.Config{
		Provider:     p.provider,
		ModelID:      p.modelID,
		Temperature:  0.7,
		EventEmitter: NewEventEmitterAdapter(p.logger),
		Logger:       NewLoggerAdapter(p.logger),
		Context:      ctx,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s/%s: %w", p.provider, p.modelID, err)
	}
	p.model = model
	return model, nil
}

func (p *ProviderGenerator) Generate(ctx context.Context, req *Request, onDelta func(string) error) (*Generation, error) {
	model, err := p.client(ctx)
	if err != nil {
		return nil, err
	}

	var opts []llmtypes.CallOption
	if req.Temperature != nil {
		opts = append(opts, llmtypes.WithTemperature(*req.Temperature))
	}
	if req.MaxTokens > 0 {
		opts = append(opts, llmtypes.WithMaxTokens(req.MaxTokens))
	}
	if len(req.Tools) > 0 {
		opts = append(opts, llmtypes.WithTools(toProviderTools(req.Tools)))
	}

	var (
		streamChan chan llmtypes.StreamChunk
		streamDone chan error
	)
	if onDelta != nil {
		streamChan = make(chan llmtypes.StreamChunk, 100)
		streamDone = make(chan error, 1)
		opts = append(opts, llmtypes.WithStreamingChan(streamChan))
		go func() {
			var deltaErr error
			for chunk := range streamChan {
				if deltaErr != nil {
					continue // drain so the provider never blocks
				}
				if chunk.Type == llmtypes.StreamChunkTypeContent && chunk.Content != "" {
					deltaErr = onDelta(chunk.Content)
				}
			}
			streamDone <- deltaErr
		}()
	}

	resp, err := model.GenerateContent(ctx, toProviderMessages(req.Messages), opts...)
	if streamChan != nil {
		select {
		case deltaErr := <-streamDone:
			if err == nil && deltaErr != nil {
				err = deltaErr
			}
		case <-ctx.Done():
			// provider returned without closing the stream channel
			if err == nil {
				err = ctx.Err()
			}
		}
	}
	if err != nil {
		return nil, err
	}
	if resp == nil || len(resp.Choices) == 0 {
		return nil, ErrNoChoices
	}

	choice := resp.Choices[0]
	gen := &Generation{
		Content:      choice.Content,
		FinishReason: finishReason(choice.StopReason),
		Usage:        extractUsage(resp),
	}
	for _, tc := range choice.ToolCalls {
		if tc.FunctionCall == nil {
			continue
		}
		gen.ToolCalls = append(gen.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.FunctionCall.Name,
			Arguments: tc.FunctionCall.Arguments,
		})
	}
	if len(gen.ToolCalls) > 0 {
		gen.FinishReason = FinishToolCalls
	}
	return gen, nil
}

func finishReason(stop string) FinishReason {
	switch strings.ToLower(stop) {
	case "length", "max_tokens", "max_output_tokens":
		return FinishLength
	case "tool_calls", "tool_use":
		return FinishToolCalls
	default:
		return FinishStop
	}
}

// extractUsage prefers the unified Usage field and falls back to GenerationInfo
func extractUsage(resp *llmtypes.ContentResponse) Usage {
	var u Usage
	if resp.Usage != nil {
		u.PromptTokens = resp.Usage.InputTokens
		u.CompletionTokens = resp.Usage.OutputTokens
		if !u.IsZero() {
			return u
		}
	}

	info := resp.Choices[0].GenerationInfo
	if info == nil {
		return u
	}
	if info.InputTokens != nil {
		u.PromptTokens = *info.InputTokens
	} else if info.PromptTokens != nil {
		u.PromptTokens = *info.PromptTokens
	}
	if info.OutputTokens != nil {
		u.CompletionTokens = *info.OutputTokens
	} else if info.CompletionTokens != nil {
		u.CompletionTokens = *info.CompletionTokens
	}
	return u
}

func toProviderTools(specs []ToolSpec) []llmtypes.Tool {
	tools := make([]llmtypes.Tool, 0, len(specs))
	for _, spec := range specs {
		params := spec.Parameters
		if params == nil {
			params = map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
		}
		tools = append(tools, llmtypes.Tool{
			Type: "function",
			Function: &llmtypes.FunctionDefinition{
				Name:        spec.Name,
				Description: spec.Description,
				Parameters:  llmtypes.NewParameters(params),
			},
		})
	}
	return tools
}

func toProviderMessages(msgs []Message) []llmtypes.MessageContent {
	out := make([]llmtypes.MessageContent, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case RoleSystem:
			out = append(out, textMessage(llmtypes.ChatMessageTypeSystem, m.Content))
		case RoleUser:
			out = append(out, textMessage(llmtypes.ChatMessageTypeHuman, m.Content))
		case RoleAssistant:
			if m.Content != "" {
				out = append(out, textMessage(llmtypes.ChatMessageTypeAI, m.Content))
			}
			if len(m.ToolCalls) > 0 {
				parts := make([]llmtypes.ContentPart, 0, len(m.ToolCalls))
				for _, tc := range m.ToolCalls {
					parts = append(parts, llmtypes.ToolCall{
						ID: tc.ID,
						FunctionCall: &llmtypes.FunctionCall{
							Name:      tc.Name,
							Arguments: tc.Arguments,
						},
					})
				}
				out = append(out, llmtypes.MessageContent{Role: llmtypes.ChatMessageTypeAI, Parts: parts})
			}
		case RoleTool:
			out = append(out, llmtypes.MessageContent{
				Role: llmtypes.ChatMessageTypeTool,
				Parts: []llmtypes.ContentPart{
					llmtypes.ToolCallResponse{
						ToolCallID: m.ToolCallID,
						Name:       m.ToolName,
						Content:    m.Content,
					},
				},
			})
		}
	}
	return out
}

func textMessage(role llmtypes.ChatMessageType, text string) llmtypes.MessageContent {
	return llmtypes.MessageContent{
		Role:  role,
		Parts: []llmtypes.ContentPart{llmtypes.TextContent{Text: text}},
	}
}

// EventEmitterAdapter reports provider lifecycle events through the logger
type EventEmitterAdapter struct {
	logger loggerv2.Logger
}

// NewEventEmitterAdapter creates an adapter implementing interfaces.EventEmitter
func NewEventEmitterAdapter(logger loggerv2.Logger) *EventEmitterAdapter {
	return &EventEmitterAdapter{logger: logger}
}

func (e *EventEmitterAdapter) EmitLLMInitializationStart(provider string, modelID string, temperature float64, traceID interfaces.TraceID, metadata llmproviders.LLMMetadata) {
	e.logger.Debug("LLM initialization started",
		loggerv2.String("provider", provider),
		loggerv2.String("model_id", modelID))
}

func (e *EventEmitterAdapter) EmitLLMInitializationSuccess(provider string, modelID string, capabilities string, traceID interfaces.TraceID, metadata llmproviders.LLMMetadata) {
	e.logger.Info("LLM initialized",
		loggerv2.String("provider", provider),
		loggerv2.String("model_id", modelID),
		loggerv2.String("capabilities", capabilities))
}

func (e *EventEmitterAdapter) EmitLLMInitializationError(provider string, modelID string, operation string, err error, traceID interfaces.TraceID, metadata llmproviders.LLMMetadata) {
	e.logger.Error("LLM initialization failed", err,
		loggerv2.String("provider", provider),
		loggerv2.String("model_id", modelID),
		loggerv2.String("operation", operation))
}

func (e *EventEmitterAdapter) EmitLLMGenerationSuccess(provider string, modelID string, operation string, messages int, temperature float64, messageContent string, responseLength int, choicesCount int, traceID interfaces.TraceID, metadata llmproviders.LLMMetadata) {
	e.logger.Debug("LLM generation succeeded",
		loggerv2.String("provider", provider),
		loggerv2.String("model_id", modelID),
		loggerv2.Int("messages", messages),
		loggerv2.Int("response_length", responseLength))
}

func (e *EventEmitterAdapter) EmitLLMGenerationError(provider string, modelID string, operation string, messages int, temperature float64, messageContent string, err error, traceID interfaces.TraceID, metadata llmproviders.LLMMetadata) {
	e.logger.Warn("LLM generation failed",
		loggerv2.String("provider", provider),
		loggerv2.String("model_id", modelID),
		loggerv2.String("operation", operation),
		loggerv2.Error(err))
}

func (e *EventEmitterAdapter) EmitToolCallDetected(provider string, modelID string, toolCallID string, toolName string, arguments string, traceID interfaces.TraceID, metadata llmproviders.LLMMetadata) {
	e.logger.Debug("LLM requested tool",
		loggerv2.String("model_id", modelID),
		loggerv2.String("tool", toolName),
		loggerv2.String("tool_call_id", toolCallID))
}
