package grpcserver

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"agentd/agent"
	"agentd/conversation"
	"agentd/executor"
	"agentd/grpcserver/pb"
	"agentd/llm"
	loggerv2 "agentd/logger/v2"
)

func startServer(t *testing.T) pb.AgentServiceClient {
	t.Helper()

	catalog, err := llm.BuildRegistry(llm.DefaultCatalogFile(), func(spec llm.ModelSpec) (llm.Generator, error) {
		return &llm.EchoGenerator{}, nil
	})
	if err != nil {
		t.Fatalf("BuildRegistry() error = %v", err)
	}
	registry := executor.NewRegistry()
	if err := registry.Register(executor.Builtins()...); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	store := conversation.NewMemoryStore()
	a := agent.New(catalog, store, executor.NewCoordinator(registry),
		agent.WithTokenCounter(llm.NewTokenCounter(llm.HeuristicEncoding)))

	lis := bufconn.Listen(1 << 20)
	srv := NewServer(Config{Network: "tcp", Logger: loggerv2.NewNoop()}, a)
	go srv.Serve(lis)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
		store.Close()
	})

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("grpc.NewClient() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return pb.NewAgentServiceClient(conn)
}

func chatRequest(conversationID, content string) *pb.ProcessMessageRequest {
	return &pb.ProcessMessageRequest{
		Context: &pb.MessageContext{ConversationId: conversationID, Type: pb.MessageContext_CHAT, Content: content},
	}
}

func TestHealthCheckAndModels(t *testing.T) {
	client := startServer(t)
	ctx := context.Background()

	health, err := client.HealthCheck(ctx, &pb.HealthCheckRequest{})
	if err != nil || health.Status != "ok" {
		t.Fatalf("HealthCheck() = %v, %v", health, err)
	}

	models, err := client.ListModels(ctx, &pb.ListModelsRequest{})
	if err != nil {
		t.Fatalf("ListModels() error = %v", err)
	}
	if len(models.Models) != 1 || models.Models[0].Id != "echo" || models.DefaultModel != "echo" {
		t.Fatalf("models = %+v", models)
	}
	if caps := models.Models[0].Capabilities; caps == nil || !caps.SupportsStreaming || caps.MaxOutputTokens != 2048 {
		t.Errorf("capabilities = %+v", caps)
	}
}

func TestProcessMessageRoundTrip(t *testing.T) {
	client := startServer(t)
	ctx := context.Background()

	resp, err := client.ProcessMessage(ctx, chatRequest("conv-rt", "hello over grpc"))
	if err != nil {
		t.Fatalf("ProcessMessage() error = %v", err)
	}
	if resp.ConversationId != "conv-rt" || resp.Message.GetRole() != pb.Message_ASSISTANT || resp.Message.Content != "hello over grpc" {
		t.Fatalf("response = %+v", resp)
	}
	if resp.Usage == nil || resp.Usage.LlmCallCount != 1 || resp.Usage.TotalTokens != resp.Usage.PromptTokens+resp.Usage.CompletionTokens {
		t.Errorf("usage = %+v", resp.Usage)
	}
	if resp.Metadata == nil || resp.Metadata.FinishReason != "stop" || resp.Metadata.ModelId != "echo" {
		t.Errorf("metadata = %+v", resp.Metadata)
	}

	h, err := client.GetConversationHistory(ctx, &pb.GetConversationHistoryRequest{ConversationId: "conv-rt"})
	if err != nil {
		t.Fatalf("GetConversationHistory() error = %v", err)
	}
	if len(h.Messages) != 2 || h.Messages[0].Role != pb.Message_USER || h.Messages[1].Id != resp.Message.Id {
		t.Errorf("history = %+v", h.Messages)
	}
	if h.Messages[1].GetTimestamp() == nil || h.Messages[1].Sequence != 2 {
		t.Errorf("stored message lost identity fields: %+v", h.Messages[1])
	}
}

func TestProcessMessageStream(t *testing.T) {
	client := startServer(t)

	stream, err := client.ProcessMessageStream(context.Background(), chatRequest("", "one two three"))
	if err != nil {
		t.Fatalf("ProcessMessageStream() error = %v", err)
	}
	var (
		chunks []*pb.MessageChunk
		text   string
	)
	for {
		c, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Recv() error = %v", err)
		}
		chunks = append(chunks, c)
		text += c.Content
	}

	if len(chunks) != 4 {
		t.Fatalf("got %d chunks, want 3 content + 1 final", len(chunks))
	}
	for i, c := range chunks {
		if c.Sequence != uint64(i+1) {
			t.Errorf("chunk %d sequence = %d", i, c.Sequence)
		}
	}
	final := chunks[len(chunks)-1]
	if !final.IsFinal || final.Usage == nil || final.Metadata == nil || final.Incomplete {
		t.Errorf("final chunk = %+v", final)
	}
	if text != "one two three" {
		t.Errorf("streamed text = %q", text)
	}
}

func TestProcessMessageWithTools(t *testing.T) {
	client := startServer(t)
	req := chatRequest("", `tool:calculator({"operation":"multiply","a":6,"b":7})`)
	req.Options = &pb.AgentOptions{EnableTools: true}

	resp, err := client.ProcessMessage(context.Background(), req)
	if err != nil {
		t.Fatalf("ProcessMessage() error = %v", err)
	}
	if len(resp.ToolExecutions) != 1 {
		t.Fatalf("tool executions = %+v", resp.ToolExecutions)
	}
	exec := resp.ToolExecutions[0]
	if exec.Status != pb.ToolExecution_SUCCEEDED || exec.Output != "42" || exec.ToolName != "calculator" {
		t.Errorf("execution = %+v", exec)
	}
	if resp.Message.Content != "calculator: 42" {
		t.Errorf("final content = %q", resp.Message.Content)
	}
}

func TestStatusMapping(t *testing.T) {
	client := startServer(t)
	ctx := context.Background()

	tests := []struct {
		name string
		call func() error
		want codes.Code
	}{
		{
			name: "missing context",
			call: func() error {
				_, err := client.ProcessMessage(ctx, &pb.ProcessMessageRequest{})
				return err
			},
			want: codes.InvalidArgument,
		},
		{
			name: "unknown model",
			call: func() error {
				req := chatRequest("", "hi")
				req.Options = &pb.AgentOptions{ModelId: "nope"}
				_, err := client.ProcessMessage(ctx, req)
				return err
			},
			want: codes.InvalidArgument,
		},
		{
			name: "continue unknown conversation",
			call: func() error {
				_, err := client.ProcessMessage(ctx, &pb.ProcessMessageRequest{
					Context: &pb.MessageContext{ConversationId: "ghost", Type: pb.MessageContext_CONTINUE},
				})
				return err
			},
			want: codes.NotFound,
		},
		{
			name: "unknown history",
			call: func() error {
				_, err := client.GetConversationHistory(ctx, &pb.GetConversationHistoryRequest{ConversationId: "ghost"})
				return err
			},
			want: codes.NotFound,
		},
		{
			name: "bad cursor",
			call: func() error {
				_, err := client.GetConversationHistory(ctx, &pb.GetConversationHistoryRequest{ConversationId: "x", Cursor: "-"})
				return err
			},
			want: codes.InvalidArgument,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := status.Code(tt.call()); got != tt.want {
				t.Errorf("code = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestToStatus(t *testing.T) {
	tests := []struct {
		err  error
		want codes.Code
	}{
		{agent.ErrInvalidRequest, codes.InvalidArgument},
		{agent.ErrInvalidModel, codes.InvalidArgument},
		{conversation.ErrNotFound, codes.NotFound},
		{&executor.ToolExecutionError{ToolName: "t", Mandatory: true, Err: errors.New("x")}, codes.Aborted},
		{errors.Join(agent.ErrCancelled, context.DeadlineExceeded), codes.DeadlineExceeded},
		{errors.Join(agent.ErrCancelled, context.Canceled), codes.Canceled},
		{errors.New("disk on fire"), codes.Internal},
		{status.Error(codes.Unavailable, "down"), codes.Unavailable},
	}
	for _, tt := range tests {
		if got := status.Code(toStatus(tt.err)); got != tt.want {
			t.Errorf("toStatus(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}

func TestSafeIntToInt32(t *testing.T) {
	if got := safeIntToInt32(1 << 40); got != 1<<31-1 {
		t.Errorf("safeIntToInt32(1<<40) = %d", got)
	}
	if got := safeIntToInt32(-(1 << 40)); got != -1<<31 {
		t.Errorf("safeIntToInt32(-(1<<40)) = %d", got)
	}
	if got := safeIntToInt32(42); got != 42 {
		t.Errorf("safeIntToInt32(42) = %d", got)
	}
}
