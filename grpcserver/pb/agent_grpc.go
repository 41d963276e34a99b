package pb

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	AgentService_ProcessMessage_FullMethodName         = "/agent.v1.AgentService/ProcessMessage"
	AgentService_ProcessMessageStream_FullMethodName   = "/agent.v1.AgentService/ProcessMessageStream"
	AgentService_GetConversationHistory_FullMethodName = "/agent.v1.AgentService/GetConversationHistory"
	AgentService_ListModels_FullMethodName             = "/agent.v1.AgentService/ListModels"
	AgentService_HealthCheck_FullMethodName            = "/agent.v1.AgentService/HealthCheck"
)

// AgentServiceClient is the client API for AgentService
type AgentServiceClient interface {
	ProcessMessage(ctx context.Context, in *ProcessMessageRequest, opts ...grpc.CallOption) (*ProcessMessageResponse, error)
	ProcessMessageStream(ctx context.Context, in *ProcessMessageRequest, opts ...grpc.CallOption) (AgentService_ProcessMessageStreamClient, error)
	GetConversationHistory(ctx context.Context, in *GetConversationHistoryRequest, opts ...grpc.CallOption) (*GetConversationHistoryResponse, error)
	ListModels(ctx context.Context, in *ListModelsRequest, opts ...grpc.CallOption) (*ListModelsResponse, error)
	HealthCheck(ctx context.Context, in *HealthCheckRequest, opts ...grpc.CallOption) (*HealthCheckResponse, error)
}

type agentServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewAgentServiceClient returns a client that always selects the JSON codec
func NewAgentServiceClient(cc grpc.ClientConnInterface) AgentServiceClient {
	return &agentServiceClient{cc}
}

func withCodec(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{WithJSONCodec()}, opts...)
}

func (c *agentServiceClient) ProcessMessage(ctx context.Context, in *ProcessMessageRequest, opts ...grpc.CallOption) (*ProcessMessageResponse, error) {
	out := new(ProcessMessageResponse)
	if err := c.cc.Invoke(ctx, AgentService_ProcessMessage_FullMethodName, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *agentServiceClient) ProcessMessageStream(ctx context.Context, in *ProcessMessageRequest, opts ...grpc.CallOption) (AgentService_ProcessMessageStreamClient, error) {
	stream, err := c.cc.NewStream(ctx, &AgentService_ServiceDesc.Streams[0], AgentService_ProcessMessageStream_FullMethodName, withCodec(opts)...)
	if err != nil {
		return nil, err
	}
	x := &agentServiceProcessMessageStreamClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

// AgentService_ProcessMessageStreamClient receives the chunks of a streamed request
type AgentService_ProcessMessageStreamClient interface {
	Recv() (*MessageChunk, error)
	grpc.ClientStream
}

type agentServiceProcessMessageStreamClient struct {
	grpc.ClientStream
}

func (x *agentServiceProcessMessageStreamClient) Recv() (*MessageChunk, error) {
	m := new(MessageChunk)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (c *agentServiceClient) GetConversationHistory(ctx context.Context, in *GetConversationHistoryRequest, opts ...grpc.CallOption) (*GetConversationHistoryResponse, error) {
	out := new(GetConversationHistoryResponse)
	if err := c.cc.Invoke(ctx, AgentService_GetConversationHistory_FullMethodName, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *agentServiceClient) ListModels(ctx context.Context, in *ListModelsRequest, opts ...grpc.CallOption) (*ListModelsResponse, error) {
	out := new(ListModelsResponse)
	if err := c.cc.Invoke(ctx, AgentService_ListModels_FullMethodName, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *agentServiceClient) HealthCheck(ctx context.Context, in *HealthCheckRequest, opts ...grpc.CallOption) (*HealthCheckResponse, error) {
	out := new(HealthCheckResponse)
	if err := c.cc.Invoke(ctx, AgentService_HealthCheck_FullMethodName, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

// AgentServiceServer is the server API for AgentService. Implementations must
// embed UnimplementedAgentServiceServer.
type AgentServiceServer interface {
	ProcessMessage(context.Context, *ProcessMessageRequest) (*ProcessMessageResponse, error)
	ProcessMessageStream(*ProcessMessageRequest, AgentService_ProcessMessageStreamServer) error
	GetConversationHistory(context.Context, *GetConversationHistoryRequest) (*GetConversationHistoryResponse, error)
	ListModels(context.Context, *ListModelsRequest) (*ListModelsResponse, error)
	HealthCheck(context.Context, *HealthCheckRequest) (*HealthCheckResponse, error)
	mustEmbedUnimplementedAgentServiceServer()
}

// UnimplementedAgentServiceServer answers every RPC with codes.Unimplemented
type UnimplementedAgentServiceServer struct{}

func (UnimplementedAgentServiceServer) ProcessMessage(context.Context, *ProcessMessageRequest) (*ProcessMessageResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ProcessMessage not implemented")
}
func (UnimplementedAgentServiceServer) ProcessMessageStream(*ProcessMessageRequest, AgentService_ProcessMessageStreamServer) error {
	return status.Error(codes.Unimplemented, "method ProcessMessageStream not implemented")
}
func (UnimplementedAgentServiceServer) GetConversationHistory(context.Context, *GetConversationHistoryRequest) (*GetConversationHistoryResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetConversationHistory not implemented")
}
func (UnimplementedAgentServiceServer) ListModels(context.Context, *ListModelsRequest) (*ListModelsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListModels not implemented")
}
func (UnimplementedAgentServiceServer) HealthCheck(context.Context, *HealthCheckRequest) (*HealthCheckResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method HealthCheck not implemented")
}
func (UnimplementedAgentServiceServer) mustEmbedUnimplementedAgentServiceServer() {}

func RegisterAgentServiceServer(s grpc.ServiceRegistrar, srv AgentServiceServer) {
	s.RegisterService(&AgentService_ServiceDesc, srv)
}

func _AgentService_ProcessMessage_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ProcessMessageRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AgentServiceServer).ProcessMessage(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: AgentService_ProcessMessage_FullMethodName}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(AgentServiceServer).ProcessMessage(ctx, req.(*ProcessMessageRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _AgentService_ProcessMessageStream_Handler(srv interface{}, stream grpc.ServerStream) error {
	m := new(ProcessMessageRequest)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(AgentServiceServer).ProcessMessageStream(m, &agentServiceProcessMessageStreamServer{stream})
}

// AgentService_ProcessMessageStreamServer sends the chunks of a streamed request
type AgentService_ProcessMessageStreamServer interface {
	Send(*MessageChunk) error
	grpc.ServerStream
}

type agentServiceProcessMessageStreamServer struct {
	grpc.ServerStream
}

func (x *agentServiceProcessMessageStreamServer) Send(m *MessageChunk) error {
	return x.ServerStream.SendMsg(m)
}

func _AgentService_GetConversationHistory_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(GetConversationHistoryRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AgentServiceServer).GetConversationHistory(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: AgentService_GetConversationHistory_FullMethodName}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(AgentServiceServer).GetConversationHistory(ctx, req.(*GetConversationHistoryRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _AgentService_ListModels_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ListModelsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AgentServiceServer).ListModels(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: AgentService_ListModels_FullMethodName}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(AgentServiceServer).ListModels(ctx, req.(*ListModelsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _AgentService_HealthCheck_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(HealthCheckRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AgentServiceServer).HealthCheck(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: AgentService_HealthCheck_FullMethodName}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(AgentServiceServer).HealthCheck(ctx, req.(*HealthCheckRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// AgentService_ServiceDesc is the grpc.ServiceDesc for AgentService
var AgentService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "agent.v1.AgentService",
	HandlerType: (*AgentServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ProcessMessage", Handler: _AgentService_ProcessMessage_Handler},
		{MethodName: "GetConversationHistory", Handler: _AgentService_GetConversationHistory_Handler},
		{MethodName: "ListModels", Handler: _AgentService_ListModels_Handler},
		{MethodName: "HealthCheck", Handler: _AgentService_HealthCheck_Handler},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "ProcessMessageStream",
			Handler:       _AgentService_ProcessMessageStream_Handler,
			ServerStreams: true,
		},
	},
	Metadata: "agent.proto",
}
