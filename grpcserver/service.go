package grpcserver

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"agentd/agent"
	"agentd/grpcserver/pb"
	loggerv2 "agentd/logger/v2"
)

// AgentService implements the gRPC AgentService on top of an agent.Agent
type AgentService struct {
	pb.UnimplementedAgentServiceServer
	agent  *agent.Agent
	logger loggerv2.Logger
}

// NewAgentService creates a new AgentService
func NewAgentService(a *agent.Agent, logger loggerv2.Logger) *AgentService {
	if logger == nil {
		logger = loggerv2.NewNoop()
	}
	return &AgentService{
		agent:  a,
		logger: logger,
	}
}

// HealthCheck implements the health check RPC
func (s *AgentService) HealthCheck(ctx context.Context, req *pb.HealthCheckRequest) (*pb.HealthCheckResponse, error) {
	return &pb.HealthCheckResponse{
		Status: "ok",
	}, nil
}

// ProcessMessage handles a request and returns the complete response
func (s *AgentService) ProcessMessage(ctx context.Context, req *pb.ProcessMessageRequest) (*pb.ProcessMessageResponse, error) {
	r, err := toRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	resp, err := s.agent.ProcessMessage(ctx, r)
	if err != nil {
		s.logRPCError("ProcessMessage", err)
		return nil, toStatus(err)
	}
	return fromResponse(resp), nil
}

// ProcessMessageStream handles a request and streams its chunks
func (s *AgentService) ProcessMessageStream(req *pb.ProcessMessageRequest, stream pb.AgentService_ProcessMessageStreamServer) error {
	r, err := toRequest(stream.Context(), req)
	if err != nil {
		return err
	}
	if err := newChunkPump(s.agent, stream, s.logger).run(r); err != nil {
		s.logRPCError("ProcessMessageStream", err)
		return toStatus(err)
	}
	return nil
}

// GetConversationHistory returns one page of a conversation
func (s *AgentService) GetConversationHistory(ctx context.Context, req *pb.GetConversationHistoryRequest) (*pb.GetConversationHistoryResponse, error) {
	if req.ConversationId == "" {
		return nil, status.Error(codes.InvalidArgument, "conversation_id is required")
	}
	if req.Limit < 0 {
		return nil, status.Error(codes.InvalidArgument, "limit must not be negative")
	}

	h, err := s.agent.GetConversationHistory(ctx, req.ConversationId, int(req.Limit), req.Cursor)
	if err != nil {
		s.logRPCError("GetConversationHistory", err, loggerv2.String("conversation_id", req.ConversationId))
		return nil, toStatus(err)
	}

	resp := &pb.GetConversationHistoryResponse{
		ConversationId: h.ConversationID,
		NextCursor:     h.NextCursor,
		Messages:       make([]*pb.Message, len(h.Messages)),
	}
	for i, msg := range h.Messages {
		resp.Messages[i] = fromMessage(msg)
	}
	return resp, nil
}

// ListModels returns the model catalog
func (s *AgentService) ListModels(ctx context.Context, req *pb.ListModelsRequest) (*pb.ListModelsResponse, error) {
	models := s.agent.ListModels()
	resp := &pb.ListModelsResponse{
		Models:       make([]*pb.ModelInfo, len(models)),
		DefaultModel: s.agent.DefaultModel(),
	}
	for i, m := range models {
		resp.Models[i] = fromModelInfo(m)
	}
	return resp, nil
}

// logRPCError logs server-side failures; client errors only at debug
func (s *AgentService) logRPCError(method string, err error, fields ...loggerv2.Field) {
	fields = append(fields, loggerv2.String("method", method))
	switch status.Code(toStatus(err)) {
	case codes.Internal, codes.Unknown:
		s.logger.Error("RPC failed", err, fields...)
	default:
		s.logger.Debug("RPC rejected", append(fields, loggerv2.Error(err))...)
	}
}
