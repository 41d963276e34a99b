package grpcserver

import (
	"context"
	"errors"
	"math"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/timestamppb"

	"agentd/agent"
	"agentd/conversation"
	"agentd/executor"
	"agentd/grpcserver/pb"
	"agentd/llm"
)

// RequestIDHeader is the metadata key a client may use to set the request id
const RequestIDHeader = "x-request-id"

// safeIntToInt32 safely converts int to int32, clamping to int32 range
func safeIntToInt32(v int) int32 {
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	if v < math.MinInt32 {
		return math.MinInt32
	}
	return int32(v)
}

func timestamp(t time.Time) *timestamppb.Timestamp {
	if t.IsZero() {
		return nil
	}
	return timestamppb.New(t)
}

func toRequest(ctx context.Context, in *pb.ProcessMessageRequest) (*agent.Request, error) {
	pctx := in.GetContext()
	if pctx == nil {
		return nil, status.Error(codes.InvalidArgument, "context is required")
	}
	var msgType agent.MessageType
	switch pctx.Type {
	case pb.MessageContext_MESSAGE_TYPE_UNSPECIFIED, pb.MessageContext_CHAT:
		msgType = agent.MessageTypeChat
	case pb.MessageContext_CONTINUE:
		msgType = agent.MessageTypeContinue
	case pb.MessageContext_INSTRUCTION:
		msgType = agent.MessageTypeInstruction
	default:
		return nil, status.Errorf(codes.InvalidArgument, "unknown message type %s", pctx.Type)
	}

	req := &agent.Request{
		Context: &agent.MessageContext{
			ConversationID: pctx.ConversationId,
			Type:           msgType,
			Content:        pctx.Content,
			HistoryWindow:  int(pctx.HistoryWindow),
			Metadata:       pctx.Metadata,
		},
	}
	if opts := in.GetOptions(); opts != nil {
		req.Options = agent.Options{
			ModelID:       opts.ModelId,
			Temperature:   opts.Temperature,
			MaxTokens:     int(opts.MaxTokens),
			TopP:          opts.TopP,
			SystemPrompt:  opts.SystemPrompt,
			EnableTools:   opts.EnableTools,
			AllowedTools:  opts.AllowedTools,
			MaxToolRounds: int(opts.MaxToolRounds),
			ToolTimeout:   time.Duration(opts.ToolTimeoutMs) * time.Millisecond,
		}
	}
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if ids := md.Get(RequestIDHeader); len(ids) > 0 {
			req.RequestID = ids[0]
		}
	}
	return req, nil
}

var rolesToProto = map[conversation.Role]pb.Message_MessageRole{
	conversation.RoleUser:      pb.Message_USER,
	conversation.RoleAssistant: pb.Message_ASSISTANT,
	conversation.RoleSystem:    pb.Message_SYSTEM,
	conversation.RoleTool:      pb.Message_TOOL,
}

func fromMessage(msg conversation.Message) *pb.Message {
	out := &pb.Message{
		Id:             msg.ID,
		ConversationId: msg.ConversationID,
		Role:           rolesToProto[msg.Role],
		Content:        msg.Content,
		Timestamp:      timestamp(msg.Timestamp),
		Sequence:       msg.Sequence,
		ToolCallId:     msg.ToolCallID,
		ToolName:       msg.ToolName,
		Incomplete:     msg.Incomplete,
	}
	for _, tc := range msg.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, &pb.ToolCall{Id: tc.ID, Name: tc.Name, Arguments: tc.Arguments})
	}
	return out
}

var statusToProto = map[executor.Status]pb.ToolExecution_Status{
	executor.StatusPending:   pb.ToolExecution_PENDING,
	executor.StatusRunning:   pb.ToolExecution_RUNNING,
	executor.StatusSucceeded: pb.ToolExecution_SUCCEEDED,
	executor.StatusFailed:    pb.ToolExecution_FAILED,
	executor.StatusTimeout:   pb.ToolExecution_TIMEOUT,
	executor.StatusCancelled: pb.ToolExecution_CANCELLED,
}

func fromExecution(exec executor.Execution) *pb.ToolExecution {
	return &pb.ToolExecution{
		Id:         exec.ID,
		ToolName:   exec.ToolName,
		Input:      exec.Input,
		Output:     exec.Output,
		Status:     statusToProto[exec.Status],
		Error:      exec.Error,
		StartedAt:  timestamp(exec.StartedAt),
		DurationMs: exec.Duration.Milliseconds(),
	}
}

func fromUsage(u agent.TokenUsage) *pb.TokenUsage {
	return &pb.TokenUsage{
		PromptTokens:     safeIntToInt32(u.PromptTokens),
		CompletionTokens: safeIntToInt32(u.CompletionTokens),
		TotalTokens:      safeIntToInt32(u.TotalTokens),
		LlmCallCount:     safeIntToInt32(u.LLMCalls),
	}
}

func fromMetadata(m agent.Metadata) *pb.ResponseMetadata {
	return &pb.ResponseMetadata{
		RequestId:    m.RequestID,
		ModelId:      m.ModelID,
		Provider:     m.Provider,
		LatencyMs:    m.Latency.Milliseconds(),
		FinishReason: string(m.FinishReason),
		StartedAt:    timestamp(m.StartedAt),
	}
}

func fromResponse(resp *agent.Response) *pb.ProcessMessageResponse {
	out := &pb.ProcessMessageResponse{
		ConversationId: resp.ConversationID,
		Usage:          fromUsage(resp.Usage),
		Metadata:       fromMetadata(resp.Metadata),
		Incomplete:     resp.Incomplete,
	}
	if resp.Message.ID != "" {
		out.Message = fromMessage(resp.Message)
	}
	for _, exec := range resp.ToolExecutions {
		out.ToolExecutions = append(out.ToolExecutions, fromExecution(exec))
	}
	return out
}

func fromChunk(c agent.Chunk) *pb.MessageChunk {
	out := &pb.MessageChunk{
		RequestId:      c.RequestID,
		ConversationId: c.ConversationID,
		Sequence:       c.Sequence,
		Content:        c.Content,
		IsFinal:        c.IsFinal,
		Incomplete:     c.Incomplete,
	}
	if c.ToolExecution != nil {
		out.ToolExecution = fromExecution(*c.ToolExecution)
	}
	if c.Usage != nil {
		out.Usage = fromUsage(*c.Usage)
	}
	if c.Metadata != nil {
		out.Metadata = fromMetadata(*c.Metadata)
	}
	return out
}

func fromModelInfo(m llm.ModelInfo) *pb.ModelInfo {
	return &pb.ModelInfo{
		Id:          m.ID,
		Provider:    m.Provider,
		DisplayName: m.DisplayName,
		Capabilities: &pb.ModelCapabilities{
			SupportsStreaming: m.Capabilities.SupportsStreaming,
			SupportsTools:     m.Capabilities.SupportsTools,
			ContextWindow:     safeIntToInt32(m.Capabilities.ContextWindow),
			MaxOutputTokens:   safeIntToInt32(m.Capabilities.MaxOutputTokens),
		},
	}
}

// toStatus maps agent errors onto gRPC status codes
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	var code codes.Code
	switch {
	case errors.Is(err, agent.ErrInvalidRequest), agent.IsInvalidModel(err):
		code = codes.InvalidArgument
	case errors.Is(err, agent.ErrNotFound):
		code = codes.NotFound
	case agent.IsToolFailure(err):
		code = codes.Aborted
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	case errors.Is(err, agent.ErrCancelled), errors.Is(err, context.Canceled):
		code = codes.Canceled
	default:
		code = codes.Internal
	}
	return status.Error(code, err.Error())
}
