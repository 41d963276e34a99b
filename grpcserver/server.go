package grpcserver

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/status"

	"agentd/agent"
	"agentd/grpcserver/pb"
	loggerv2 "agentd/logger/v2"
)

// Server represents the gRPC server for agentd
type Server struct {
	grpcServer *grpc.Server
	listener   net.Listener
	network    string
	address    string
	service    *AgentService
	logger     loggerv2.Logger
}

// Config holds gRPC server configuration
type Config struct {
	// Network is "unix" (default) or "tcp"
	Network string
	Address string
	Logger  loggerv2.Logger
	// MaxMessageSize bounds request and response size; 0 means 16MB
	MaxMessageSize int
}

// NewServer creates a new gRPC server serving a
func NewServer(cfg Config, a *agent.Agent) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = loggerv2.NewDefault()
	}
	network := cfg.Network
	if network == "" {
		network = "unix"
	}
	maxMsg := cfg.MaxMessageSize
	if maxMsg <= 0 {
		maxMsg = 16 * 1024 * 1024
	}

	// Create gRPC server with keepalive settings
	grpcServer := grpc.NewServer(
		grpc.KeepaliveParams(keepalive.ServerParameters{
			MaxConnectionIdle:     5 * time.Minute,
			MaxConnectionAge:      30 * time.Minute,
			MaxConnectionAgeGrace: 5 * time.Second,
			Time:                  1 * time.Minute,
			Timeout:               20 * time.Second,
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             30 * time.Second,
			PermitWithoutStream: true,
		}),
		grpc.MaxRecvMsgSize(maxMsg),
		grpc.MaxSendMsgSize(maxMsg),
		grpc.ChainUnaryInterceptor(unaryLogger(logger)),
		grpc.ChainStreamInterceptor(streamLogger(logger)),
	)

	service := NewAgentService(a, logger)
	pb.RegisterAgentServiceServer(grpcServer, service)

	return &Server{
		grpcServer: grpcServer,
		network:    network,
		address:    cfg.Address,
		service:    service,
		logger:     logger,
	}
}

// Start listens on the configured address and serves until Shutdown
func (s *Server) Start() error {
	if s.network == "unix" {
		// Remove existing socket file if it exists
		if err := os.Remove(s.address); err != nil && !os.IsNotExist(err) {
			return err
		}
	}

	listener, err := net.Listen(s.network, s.address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s %s: %w", s.network, s.address, err)
	}
	s.logger.Info("Starting gRPC server",
		loggerv2.String("network", s.network),
		loggerv2.String("address", listener.Addr().String()))
	return s.Serve(listener)
}

// Serve serves on an existing listener
func (s *Server) Serve(listener net.Listener) error {
	s.listener = listener
	return s.grpcServer.Serve(listener)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down gRPC server")

	// Graceful stop with timeout
	done := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("gRPC server stopped gracefully")
	case <-ctx.Done():
		s.logger.Warn("gRPC server shutdown timed out, forcing stop")
		s.grpcServer.Stop()
	}

	// Clean up socket file
	if s.network == "unix" && s.address != "" {
		os.Remove(s.address)
	}

	return nil
}

// GetService returns the agent service (for advanced use cases)
func (s *Server) GetService() *AgentService {
	return s.service
}

func unaryLogger(logger loggerv2.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.Debug("RPC completed",
			loggerv2.String("method", info.FullMethod),
			loggerv2.String("code", status.Code(err).String()),
			loggerv2.Duration("duration", time.Since(start)))
		return resp, err
	}
}

func streamLogger(logger loggerv2.Logger) grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		err := handler(srv, ss)
		logger.Debug("Stream completed",
			loggerv2.String("method", info.FullMethod),
			loggerv2.String("code", status.Code(err).String()),
			loggerv2.Duration("duration", time.Since(start)))
		return err
	}
}
