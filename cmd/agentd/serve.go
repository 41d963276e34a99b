package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"agentd/agent"
	"agentd/config"
	"agentd/conversation"
	"agentd/events"
	"agentd/executor"
	"agentd/grpcserver"
	"agentd/llm"
	loggerv2 "agentd/logger/v2"
	"agentd/mcpclient"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the gRPC server",
}

func init() {
	// Assigned here rather than in the literal to avoid an initialization
	// cycle: serve reads serveCmd's flags.
	serveCmd.RunE = func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		defer logger.Close()
		return serve(cmd.Context(), cfg, logger)
	}

	flags := serveCmd.Flags()
	flags.String("network", "unix", "listener network (unix, tcp)")
	flags.String("address", "/tmp/agentd.sock", "socket path or host:port")
	flags.String("store", "memory", "conversation store (memory, sqlite)")
	flags.String("store-dsn", "", "sqlite database path")
	flags.String("mcp-config", "", "MCP servers file (mcp_servers.json)")
	flags.Int("max-tool-rounds", 8, "maximum tool rounds per request")
	flags.Duration("tool-timeout", 30*time.Second, "default per-tool timeout")
	flags.Int("max-concurrent-tools", 4, "tool calls run at once per request")
	flags.Int("parent-pid", 0, "parent process ID to monitor (exit when parent dies)")

	bindFlags(flags, map[string]string{
		"server.network":             "network",
		"server.address":             "address",
		"store.driver":               "store",
		"store.dsn":                  "store-dsn",
		"mcp.config":                 "mcp-config",
		"agent.max_tool_rounds":      "max-tool-rounds",
		"agent.tool_timeout":         "tool-timeout",
		"agent.max_concurrent_tools": "max-concurrent-tools",
	})
}

func serve(ctx context.Context, cfg *config.Config, logger loggerv2.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}

	store, err := conversation.Open(cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		return fmt.Errorf("failed to open conversation store: %w", err)
	}
	defer store.Close()

	catalog, err := llm.LoadCatalog(cfg.Models.File, cfg.Models.Default, llm.NewProviderFactory(logger))
	if err != nil {
		return err
	}

	registry := executor.NewRegistry()
	if err := registry.Register(executor.Builtins()...); err != nil {
		return err
	}
	mcpConfig, err := mcpclient.LoadConfig(cfg.MCP.Config, logger)
	if err != nil {
		return err
	}
	mcpManager := mcpclient.NewManager(logger)
	defer mcpManager.Close()
	if _, err := mcpManager.Connect(ctx, mcpConfig, registry); err != nil {
		return err
	}

	coordinator := executor.NewCoordinator(registry,
		executor.WithLogger(logger),
		executor.WithMaxConcurrent(cfg.Agent.MaxConcurrentTools),
		executor.WithDefaultTimeout(cfg.Agent.ToolTimeout))

	a := agent.New(catalog, store, coordinator,
		agent.WithLogger(logger),
		agent.WithEmitter(events.NewEventEmitter(events.NewLoggingObserver(logger))),
		agent.WithMaxToolRounds(cfg.Agent.MaxToolRounds),
		agent.WithStreamBuffer(cfg.Agent.StreamBuffer),
		agent.WithTokenCounter(llm.NewTokenCounter(cfg.Models.TokenEncoding)))

	server := grpcserver.NewServer(grpcserver.Config{
		Network: cfg.Server.Network,
		Address: cfg.Server.Address,
		Logger:  logger,
	}, a)

	// Handle graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	parentPID, _ := serveCmd.Flags().GetInt("parent-pid")
	if parentPID > 0 {
		go watchParent(parentPID, logger, shutdown)
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("agentd gRPC server starting",
			loggerv2.String("network", cfg.Server.Network),
			loggerv2.String("address", cfg.Server.Address),
			loggerv2.String("store", cfg.Store.Driver),
			loggerv2.String("default_model", catalog.Default()),
			loggerv2.Int("tools", registry.Len()))
		serveErr <- server.Start()
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-shutdown:
		logger.Info("Shutdown signal received")
	}

	// Graceful shutdown with timeout
	stopCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(stopCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	logger.Info("Server stopped gracefully")
	return nil
}

// watchParent signals shutdown once the parent process is gone
func watchParent(pid int, logger loggerv2.Logger, shutdown chan<- os.Signal) {
	for {
		time.Sleep(1 * time.Second)
		proc, err := os.FindProcess(pid)
		if err != nil {
			logger.Info("Parent process not found, shutting down", loggerv2.Int("parent_pid", pid))
			shutdown <- syscall.SIGTERM
			return
		}
		// On Unix, sending signal 0 checks if process exists
		if err := proc.Signal(syscall.Signal(0)); err != nil {
			logger.Info("Parent process died, shutting down", loggerv2.Int("parent_pid", pid))
			shutdown <- syscall.SIGTERM
			return
		}
	}
}
