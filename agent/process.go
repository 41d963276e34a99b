package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"agentd/conversation"
	"agentd/events"
	"agentd/executor"
	"agentd/llm"
	loggerv2 "agentd/logger/v2"
)

// ProcessMessage runs a request to completion. On cancellation it returns the
// incomplete response together with an error wrapping ErrCancelled.
func (a *Agent) ProcessMessage(ctx context.Context, req *Request) (*Response, error) {
	t, err := a.prepare(ctx, req, nil)
	if err != nil {
		return nil, err
	}
	return t.run(ctx)
}

// turn holds the state of one request from validation to commit
type turn struct {
	a         *Agent
	logger    loggerv2.Logger
	requestID string
	convID    string
	msgType   MessageType
	opts      Options
	model     llm.Model
	tools     []llm.ToolSpec
	policy    executor.Policy
	maxRounds int
	started   time.Time

	prompt   []llm.Message
	userTurn *conversation.Message
	batch    []conversation.Message
	execs    []executor.Execution
	usage    TokenUsage
	rounds   int

	// mu guards the fields below; provider callbacks may run on other goroutines
	mu        sync.Mutex
	out       chan<- Chunk
	seq       uint64
	finalSent bool
	partial   strings.Builder
}

// prepare validates req and loads the conversation context. Every error it
// returns is a request error: nothing has been generated or stored.
func (a *Agent) prepare(ctx context.Context, req *Request, out chan<- Chunk) (*turn, error) {
	if req == nil || req.Context == nil {
		return nil, fmt.Errorf("%w: message context is required", ErrInvalidRequest)
	}
	mctx := req.Context
	opts := req.Options
	if err := validate(mctx, opts); err != nil {
		return nil, err
	}

	modelID := opts.ModelID
	if modelID == "" {
		modelID = a.DefaultModel()
	}
	model, err := a.catalog.Lookup(modelID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidModel, err)
	}
	caps := model.Info.Capabilities
	if opts.EnableTools && !caps.SupportsTools {
		return nil, fmt.Errorf("%w: model %s does not support tools", ErrInvalidModel, modelID)
	}
	if caps.MaxOutputTokens > 0 && opts.MaxTokens > caps.MaxOutputTokens {
		return nil, fmt.Errorf("%w: max_tokens %d exceeds the %d supported by %s",
			ErrInvalidModel, opts.MaxTokens, caps.MaxOutputTokens, modelID)
	}

	t := &turn{
		a:         a,
		requestID: req.RequestID,
		convID:    strings.TrimSpace(mctx.ConversationID),
		msgType:   mctx.Type,
		opts:      opts,
		model:     model,
		maxRounds: a.maxToolRounds,
		started:   a.now(),
		out:       out,
	}
	if t.requestID == "" {
		t.requestID = a.newID()
	}
	if opts.MaxToolRounds > 0 {
		t.maxRounds = opts.MaxToolRounds
	}
	if opts.EnableTools && a.tools != nil {
		t.policy = executor.Policy{Allowed: opts.AllowedTools, Timeout: opts.ToolTimeout}
		for _, def := range a.tools.Definitions(t.policy) {
			t.tools = append(t.tools, llm.ToolSpec{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  def.Parameters,
			})
		}
	}

	var history []conversation.Message
	if t.convID == "" {
		t.convID = a.newID()
	} else {
		exists, err := a.store.Exists(ctx, t.convID)
		if err != nil {
			return nil, fmt.Errorf("failed to look up conversation: %w", err)
		}
		if exists {
			h, err := a.store.List(ctx, t.convID, conversation.Page{})
			if err != nil {
				return nil, fmt.Errorf("failed to load conversation: %w", err)
			}
			history = window(h.Messages, mctx.HistoryWindow)
		} else if mctx.Type == MessageTypeContinue {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, t.convID)
		}
	}

	t.logger = a.logger.With(
		loggerv2.String("request_id", t.requestID),
		loggerv2.String("conversation_id", t.convID),
		loggerv2.String("model", modelID))

	if opts.SystemPrompt != "" {
		t.prompt = append(t.prompt, llm.Message{Role: llm.RoleSystem, Content: opts.SystemPrompt})
	}
	for _, msg := range history {
		t.prompt = append(t.prompt, toPromptMessage(msg))
	}
	switch mctx.Type {
	case MessageTypeChat:
		t.userTurn = &conversation.Message{
			Role:      conversation.RoleUser,
			Content:   mctx.Content,
			Timestamp: t.started,
		}
		t.prompt = append(t.prompt, llm.Message{Role: llm.RoleUser, Content: mctx.Content})
	case MessageTypeInstruction:
		t.prompt = append(t.prompt, llm.Message{Role: llm.RoleSystem, Content: mctx.Content})
	}
	return t, nil
}

func validate(mctx *MessageContext, opts Options) error {
	switch mctx.Type {
	case MessageTypeChat, MessageTypeInstruction:
		if strings.TrimSpace(mctx.Content) == "" {
			return fmt.Errorf("%w: content is required for %s messages", ErrInvalidRequest, mctx.Type)
		}
	case MessageTypeContinue:
		if strings.TrimSpace(mctx.ConversationID) == "" {
			return fmt.Errorf("%w: continue requires a conversation id", ErrInvalidRequest)
		}
		if mctx.Content != "" {
			return fmt.Errorf("%w: continue must not carry content", ErrInvalidRequest)
		}
	default:
		return fmt.Errorf("%w: unknown message type %d", ErrInvalidRequest, mctx.Type)
	}

	switch {
	case mctx.HistoryWindow < 0:
		return fmt.Errorf("%w: history window must not be negative", ErrInvalidRequest)
	case opts.MaxTokens < 0:
		return fmt.Errorf("%w: max_tokens must not be negative", ErrInvalidRequest)
	case opts.MaxToolRounds < 0:
		return fmt.Errorf("%w: max_tool_rounds must not be negative", ErrInvalidRequest)
	case opts.ToolTimeout < 0:
		return fmt.Errorf("%w: tool timeout must not be negative", ErrInvalidRequest)
	case opts.Temperature != nil && (*opts.Temperature < 0 || *opts.Temperature > 2):
		return fmt.Errorf("%w: temperature must be within [0, 2]", ErrInvalidRequest)
	case opts.TopP < 0 || opts.TopP > 1:
		return fmt.Errorf("%w: top_p must be within [0, 1]", ErrInvalidRequest)
	}
	return nil
}

// window keeps the last n messages without starting on an orphaned tool result
func window(msgs []conversation.Message, n int) []conversation.Message {
	if n > 0 && len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	for len(msgs) > 0 && msgs[0].Role == conversation.RoleTool {
		msgs = msgs[1:]
	}
	return msgs
}

func toPromptMessage(msg conversation.Message) llm.Message {
	out := llm.Message{
		Role:       llm.Role(msg.Role),
		Content:    msg.Content,
		ToolCallID: msg.ToolCallID,
		ToolName:   msg.ToolName,
	}
	for _, tc := range msg.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, llm.ToolCall{ID: tc.ID, Name: tc.Name, Arguments: tc.Arguments})
	}
	return out
}

func (t *turn) run(ctx context.Context) (*Response, error) {
	a := t.a
	a.emit(t.requestID, t.convID, &events.ConversationStartEvent{
		MessageType: t.msgType.String(),
		ModelID:     t.model.Info.ID,
		Streaming:   t.out != nil,
	})
	t.logger.Debug("Processing message",
		loggerv2.String("type", t.msgType.String()),
		loggerv2.Int("history", len(t.prompt)),
		loggerv2.Int("tools", len(t.tools)))

	toolRounds := 0
	for {
		if err := ctx.Err(); err != nil {
			return t.cancel(ctx, err)
		}
		t.rounds++
		gen, err := t.generate(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return t.cancel(ctx, ctx.Err())
			}
			return nil, t.fail(fmt.Errorf("generation failed: %w", err))
		}

		if len(gen.ToolCalls) == 0 || len(t.tools) == 0 {
			return t.complete(ctx, gen.Content, finishFrom(gen.FinishReason))
		}
		if toolRounds >= t.maxRounds {
			t.logger.Warn("Tool round limit reached", loggerv2.Int("max_tool_rounds", t.maxRounds))
			return t.complete(ctx, gen.Content, FinishToolRoundsExhausted)
		}
		toolRounds++

		if err := t.runTools(ctx, gen); err != nil {
			if ctx.Err() != nil {
				return t.cancel(ctx, ctx.Err())
			}
			return nil, t.fail(err)
		}
	}
}

func finishFrom(reason llm.FinishReason) FinishReason {
	if reason == llm.FinishLength {
		return FinishLength
	}
	return FinishStop
}

// generate performs one model call, forwarding content deltas as chunks
func (t *turn) generate(ctx context.Context) (*llm.Generation, error) {
	t.mu.Lock()
	t.partial.Reset()
	t.mu.Unlock()

	req := &llm.Request{
		Model:       t.model.Info.ID,
		Messages:    t.prompt,
		Tools:       t.tools,
		Temperature: t.opts.Temperature,
		MaxTokens:   t.opts.MaxTokens,
		TopP:        t.opts.TopP,
	}

	var streamed atomic.Bool
	var onDelta func(string) error
	if t.model.Info.Capabilities.SupportsStreaming {
		onDelta = func(delta string) error {
			streamed.Store(true)
			return t.send(ctx, Chunk{Content: delta}, true)
		}
	}

	t.a.emit(t.requestID, t.convID, &events.LLMGenerationStartEvent{
		Round:    t.rounds,
		ModelID:  t.model.Info.ID,
		Messages: len(req.Messages),
		Tools:    len(req.Tools),
	})
	start := t.a.now()
	gen, err := t.model.Generator.Generate(ctx, req, onDelta)
	if err != nil {
		if ctx.Err() != nil {
			t.addUsage(llm.Usage{}, req.Messages, t.partialContent(), nil)
		}
		return nil, err
	}

	if !streamed.Load() && gen.Content != "" {
		// non-streaming models deliver their content as a single chunk
		if err := t.send(ctx, Chunk{Content: gen.Content}, true); err != nil {
			return nil, err
		}
	}
	t.addUsage(gen.Usage, req.Messages, gen.Content, gen.ToolCalls)

	t.a.emit(t.requestID, t.convID, &events.LLMGenerationEndEvent{
		Round:        t.rounds,
		ModelID:      t.model.Info.ID,
		FinishReason: string(gen.FinishReason),
		ToolCalls:    len(gen.ToolCalls),
		Duration:     t.a.now().Sub(start),
	})
	return gen, nil
}

// addUsage accumulates one call, estimating when the provider reported nothing
func (t *turn) addUsage(u llm.Usage, prompt []llm.Message, content string, calls []llm.ToolCall) {
	if u.IsZero() {
		u.PromptTokens = t.a.counter.CountMessages(prompt)
		u.CompletionTokens = t.a.counter.CountText(content)
		for _, tc := range calls {
			u.CompletionTokens += t.a.counter.CountText(tc.Name) + t.a.counter.CountText(tc.Arguments)
		}
	}
	t.usage.PromptTokens += u.PromptTokens
	t.usage.CompletionTokens += u.CompletionTokens
	t.usage.TotalTokens = t.usage.PromptTokens + t.usage.CompletionTokens
	t.usage.LLMCalls++
}

// runTools executes one round of tool calls and appends the assistant call
// message and the tool results to the prompt and the commit batch
func (t *turn) runTools(ctx context.Context, gen *llm.Generation) error {
	a := t.a
	calls := make([]executor.Call, len(gen.ToolCalls))
	assistant := conversation.Message{
		Role:      conversation.RoleAssistant,
		Content:   gen.Content,
		Timestamp: a.now(),
	}
	for i, tc := range gen.ToolCalls {
		calls[i] = executor.Call{ID: tc.ID, Name: tc.Name, Arguments: tc.Arguments}
		assistant.ToolCalls = append(assistant.ToolCalls, conversation.ToolCall{ID: tc.ID, Name: tc.Name, Arguments: tc.Arguments})
		a.emit(t.requestID, t.convID, &events.ToolCallStartEvent{
			Round:      t.rounds,
			ToolCallID: tc.ID,
			ToolName:   tc.Name,
			Arguments:  tc.Arguments,
		})
	}
	t.batch = append(t.batch, assistant)
	t.prompt = append(t.prompt, llm.Message{Role: llm.RoleAssistant, Content: gen.Content, ToolCalls: gen.ToolCalls})

	execs := a.tools.ExecuteAll(ctx, calls, t.policy)
	t.execs = append(t.execs, execs...)

	for _, exec := range execs {
		result := exec.Output
		if exec.Status == executor.StatusSucceeded {
			a.emit(t.requestID, t.convID, &events.ToolCallEndEvent{
				Round:      t.rounds,
				ToolCallID: exec.ID,
				ToolName:   exec.ToolName,
				Result:     exec.Output,
				Duration:   exec.Duration,
			})
		} else {
			result = fmt.Sprintf("Error: tool %s %s: %s", exec.ToolName, exec.Status, exec.Error)
			a.emit(t.requestID, t.convID, &events.ToolCallErrorEvent{
				Round:      t.rounds,
				ToolCallID: exec.ID,
				ToolName:   exec.ToolName,
				Status:     string(exec.Status),
				Error:      exec.Error,
				Duration:   exec.Duration,
			})
		}
		t.batch = append(t.batch, conversation.Message{
			Role:       conversation.RoleTool,
			Content:    result,
			Timestamp:  a.now(),
			ToolCallID: exec.ID,
			ToolName:   exec.ToolName,
		})
		t.prompt = append(t.prompt, llm.Message{
			Role:       llm.RoleTool,
			Content:    result,
			ToolCallID: exec.ID,
			ToolName:   exec.ToolName,
		})
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if toolErr := executor.MandatoryFailure(execs); toolErr != nil {
		return toolErr
	}
	for i := range execs {
		exec := execs[i]
		if err := t.send(ctx, Chunk{ToolExecution: &exec}, false); err != nil {
			return err
		}
	}
	return nil
}

// complete commits the exchange and emits the final chunk
func (t *turn) complete(ctx context.Context, content string, finish FinishReason) (*Response, error) {
	final := conversation.Message{
		Role:      conversation.RoleAssistant,
		Content:   content,
		Timestamp: t.a.now(),
	}
	stored, err := t.commit(ctx, final)
	if err != nil {
		return nil, t.fail(err)
	}
	resp := t.response(stored, finish, false)
	t.sendFinal(resp)
	t.finished(resp, len(t.batch)+2)
	return resp, nil
}

// cancel commits whatever was produced, marked incomplete, and ends the stream
func (t *turn) cancel(ctx context.Context, cause error) (*Response, error) {
	partial := t.partialContent()
	t.a.emit(t.requestID, t.convID, &events.ContextCancelledEvent{
		Round:    t.rounds,
		Reason:   cause.Error(),
		Duration: t.a.now().Sub(t.started),
	})

	var (
		stored    conversation.Message
		committed int
	)
	if partial != "" || len(t.batch) > 0 {
		final := conversation.Message{
			Role:       conversation.RoleAssistant,
			Content:    partial,
			Timestamp:  t.a.now(),
			Incomplete: true,
		}
		var err error
		if stored, err = t.commit(ctx, final); err != nil {
			t.logger.Error("Failed to commit incomplete response", err)
		} else {
			committed = len(t.batch) + 2
		}
	}

	resp := t.response(stored, FinishCancelled, true)
	t.sendFinal(resp)
	t.finished(resp, committed)
	t.logger.Info("Request cancelled", loggerv2.Error(cause), loggerv2.Int("committed", committed))
	return resp, fmt.Errorf("%w: %w", ErrCancelled, cause)
}

// commit appends the user turn, the tool exchange and final in one batch
func (t *turn) commit(ctx context.Context, final conversation.Message) (conversation.Message, error) {
	batch := make([]conversation.Message, 0, len(t.batch)+2)
	if t.userTurn != nil {
		batch = append(batch, *t.userTurn)
	}
	batch = append(batch, t.batch...)
	batch = append(batch, final)

	// the exchange is decided; a caller cancelling now must not lose it
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), commitTimeout)
	defer cancel()
	stored, err := t.a.store.Append(cctx, t.convID, batch...)
	if err != nil {
		return conversation.Message{}, fmt.Errorf("failed to store conversation: %w", err)
	}
	return stored[len(stored)-1], nil
}

func (t *turn) response(msg conversation.Message, finish FinishReason, incomplete bool) *Response {
	return &Response{
		ConversationID: t.convID,
		Message:        msg,
		ToolExecutions: t.execs,
		Usage:          t.usage,
		Incomplete:     incomplete,
		Metadata: Metadata{
			RequestID:    t.requestID,
			ModelID:      t.model.Info.ID,
			Provider:     t.model.Info.Provider,
			Latency:      t.a.now().Sub(t.started),
			FinishReason: finish,
			StartedAt:    t.started,
		},
	}
}

func (t *turn) finished(resp *Response, committed int) {
	t.a.emit(t.requestID, t.convID, &events.TokenUsageEvent{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
		LLMCalls:         resp.Usage.LLMCalls,
	})
	t.a.emit(t.requestID, t.convID, &events.ConversationEndEvent{
		FinishReason: string(resp.Metadata.FinishReason),
		Duration:     resp.Metadata.Latency,
		Rounds:       t.rounds,
		Committed:    committed,
		Incomplete:   resp.Incomplete,
	})
	t.logger.Info("Message processed",
		loggerv2.String("finish_reason", string(resp.Metadata.FinishReason)),
		loggerv2.Int("tool_executions", len(resp.ToolExecutions)),
		loggerv2.Int("total_tokens", resp.Usage.TotalTokens),
		loggerv2.Duration("latency", resp.Metadata.Latency))
}

func (t *turn) fail(err error) error {
	t.a.emit(t.requestID, t.convID, &events.ConversationErrorEvent{
		Error:    err.Error(),
		Duration: t.a.now().Sub(t.started),
	})
	var toolErr *executor.ToolExecutionError
	if errors.As(err, &toolErr) {
		t.logger.Warn("Mandatory tool failed", loggerv2.String("tool", toolErr.ToolName), loggerv2.Error(err))
	} else {
		t.logger.Error("Message processing failed", err)
	}
	return err
}

func (t *turn) partialContent() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.partial.String()
}

// send delivers a non-final chunk. Content chunks are also recorded as the
// partial content of the current round. The context is checked before every
// emission.
func (t *turn) send(ctx context.Context, c Chunk, content bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.finalSent {
		return ErrCancelled
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if content {
		t.partial.WriteString(c.Content)
	}
	if t.out == nil {
		return nil
	}

	c.RequestID = t.requestID
	c.ConversationID = t.convID
	c.Sequence = t.seq + 1
	select {
	case t.out <- c:
		t.seq++
		t.a.emit(t.requestID, t.convID, &events.StreamingChunkEvent{Sequence: c.Sequence, Length: len(c.Content)})
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// sendFinal delivers the one final chunk. It blocks until the consumer takes it.
func (t *turn) sendFinal(resp *Response) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.finalSent {
		return
	}
	t.finalSent = true
	if t.out == nil {
		return
	}
	usage := resp.Usage
	meta := resp.Metadata
	t.seq++
	t.out <- Chunk{
		RequestID:      t.requestID,
		ConversationID: t.convID,
		Sequence:       t.seq,
		IsFinal:        true,
		Usage:          &usage,
		Metadata:       &meta,
		Incomplete:     resp.Incomplete,
	}
	t.a.emit(t.requestID, t.convID, &events.StreamingChunkEvent{Sequence: t.seq, IsFinal: true})
}
