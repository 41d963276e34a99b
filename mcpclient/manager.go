package mcpclient

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"agentd/executor"
	loggerv2 "agentd/logger/v2"
)

// Manager owns the MCP server connections of the process
type Manager struct {
	logger loggerv2.Logger

	mu      sync.Mutex
	clients []*Client
}

// NewManager creates a manager
func NewManager(logger loggerv2.Logger) *Manager {
	if logger == nil {
		logger = loggerv2.NewNoop()
	}
	return &Manager{logger: logger}
}

// Connect connects every enabled server in config and registers its tools.
// A server that fails to connect is logged and skipped; the number of tools
// registered is returned.
func (m *Manager) Connect(ctx context.Context, config *MCPConfig, registry *executor.Registry) (int, error) {
	if config == nil {
		return 0, nil
	}
	total := 0
	for _, name := range config.ListServers() {
		server := config.MCPServers[name]
		n, err := m.connectServer(ctx, name, server, registry)
		if err != nil {
			if errors.Is(err, executor.ErrToolExists) {
				return total, err
			}
			m.logger.Warn("Skipping MCP server",
				loggerv2.String("server", name),
				loggerv2.Error(err))
			continue
		}
		total += n
	}
	return total, nil
}

func (m *Manager) connectServer(ctx context.Context, name string, server ServerConfig, registry *executor.Registry) (int, error) {
	timeout, err := server.Timeout()
	if err != nil {
		return 0, err
	}

	c := NewClient(name, server, m.logger)
	if err := c.Connect(ctx); err != nil {
		return 0, err
	}
	tools, err := c.ListTools(ctx)
	if err != nil {
		_ = c.Close()
		return 0, err
	}

	wrapped := make([]executor.Tool, 0, len(tools))
	for _, tool := range tools {
		wrapped = append(wrapped, newTool(c, name, tool, server.Mandatory, timeout))
	}
	if err := registry.Register(wrapped...); err != nil {
		_ = c.Close()
		return 0, fmt.Errorf("server %s: %w", name, err)
	}

	m.mu.Lock()
	m.clients = append(m.clients, c)
	m.mu.Unlock()

	m.logger.Info("Registered MCP tools",
		loggerv2.String("server", name),
		loggerv2.Int("tools", len(wrapped)))
	return len(wrapped), nil
}

// Close disconnects every server
func (m *Manager) Close() error {
	m.mu.Lock()
	clients := m.clients
	m.clients = nil
	m.mu.Unlock()

	var errs []error
	for _, c := range clients {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", c.Name(), err))
		}
	}
	return errors.Join(errs...)
}
