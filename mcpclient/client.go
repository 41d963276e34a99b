package mcpclient

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"

	loggerv2 "agentd/logger/v2"
)

const (
	// initTimeout bounds the MCP handshake; npx-launched servers can be slow
	initTimeout     = 2 * time.Minute
	protocolVersion = "2024-11-05"
)

// Client is one connected MCP server
type Client struct {
	name   string
	config ServerConfig
	logger loggerv2.Logger

	mu         sync.RWMutex
	mcpClient  *client.Client
	serverInfo mcp.Implementation
}

// NewClient creates an unconnected client for the named server
func NewClient(name string, config ServerConfig, logger loggerv2.Logger) *Client {
	return &Client{
		name:   name,
		config: config,
		logger: logger.With(loggerv2.String("server", name)),
	}
}

// Name returns the server name
func (c *Client) Name() string { return c.name }

// Connect starts the transport and performs the MCP handshake
func (c *Client) Connect(ctx context.Context) error {
	start := time.Now()
	mc, err := c.startTransport(ctx)
	if err != nil {
		return err
	}

	// Fatal startup errors on stderr fail the handshake early
	fatal := make(chan error, 1)
	if c.config.GetProtocol() == ProtocolStdio {
		if stderr, ok := client.GetStderr(mc); ok && stderr != nil {
			go c.captureStderr(stderr, fatal)
		}
	}

	initCtx, cancel := context.WithTimeout(ctx, initTimeout)
	defer cancel()

	type initResult struct {
		result *mcp.InitializeResult
		err    error
	}
	done := make(chan initResult, 1)
	go func() {
		result, err := mc.Initialize(initCtx, mcp.InitializeRequest{
			Params: mcp.InitializeParams{
				ProtocolVersion: protocolVersion,
				Capabilities:    mcp.ClientCapabilities{},
				ClientInfo: mcp.Implementation{
					Name:    "agentd",
					Version: "1.0.0",
				},
			},
		})
		done <- initResult{result, err}
	}()

	var res initResult
	select {
	case res = <-done:
	case fatalErr := <-fatal:
		cancel()
		res.err = fatalErr
	case <-initCtx.Done():
		res.err = initCtx.Err()
	}
	if res.err != nil {
		_ = mc.Close()
		return fmt.Errorf("failed to initialize MCP server %s: %w", c.name, res.err)
	}

	c.mu.Lock()
	c.mcpClient = mc
	c.serverInfo = res.result.ServerInfo
	c.mu.Unlock()

	c.logger.Info("Connected to MCP server",
		loggerv2.String("protocol", string(c.config.GetProtocol())),
		loggerv2.String("server_name", res.result.ServerInfo.Name),
		loggerv2.Duration("duration", time.Since(start)))
	return nil
}

func (c *Client) startTransport(ctx context.Context) (*client.Client, error) {
	switch c.config.GetProtocol() {
	case ProtocolSSE:
		var options []transport.ClientOption
		if len(c.config.Headers) > 0 {
			options = append(options, transport.WithHeaders(c.config.Headers))
		}
		options = append(options, transport.WithSSELogger(loggerv2.ToUtilLogger(c.logger)))
		sse, err := transport.NewSSE(c.config.URL, options...)
		if err != nil {
			return nil, fmt.Errorf("failed to create SSE transport: %w", err)
		}
		return startRemote(client.NewClient(sse))

	case ProtocolHTTP:
		var options []transport.StreamableHTTPCOption
		if len(c.config.Headers) > 0 {
			options = append(options, transport.WithHTTPHeaders(c.config.Headers))
		}
		httpTransport, err := transport.NewStreamableHTTP(c.config.URL, options...)
		if err != nil {
			return nil, fmt.Errorf("failed to create HTTP transport: %w", err)
		}
		return startRemote(client.NewClient(httpTransport))

	default:
		c.logger.Debug("Starting stdio MCP server",
			loggerv2.String("command", c.config.Command),
			loggerv2.Any("args", c.config.Args))
		mc, err := client.NewStdioMCPClient(c.config.Command, c.config.environ(), c.config.Args...)
		if err != nil {
			return nil, fmt.Errorf("failed to create stdio client: %w", err)
		}
		return mc, nil
	}
}

// startRemote starts a network transport. The stream outlives the connect
// context, so it is started with a background context.
func startRemote(mc *client.Client) (*client.Client, error) {
	if err := mc.Start(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to start MCP client: %w", err)
	}
	return mc, nil
}

func (c *Client) connected() (*client.Client, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.mcpClient == nil {
		return nil, fmt.Errorf("MCP server %s is not connected", c.name)
	}
	return c.mcpClient, nil
}

// ListTools returns all available tools from the server
func (c *Client) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	mc, err := c.connected()
	if err != nil {
		return nil, err
	}
	result, err := mc.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}
	return result.Tools, nil
}

// CallTool invokes a tool. A broken stdio pipe triggers one reconnect and retry.
func (c *Client) CallTool(ctx context.Context, name string, arguments map[string]interface{}) (*mcp.CallToolResult, error) {
	result, err := c.callOnce(ctx, name, arguments)
	if err == nil || !IsBrokenPipeError(err) || ctx.Err() != nil {
		return result, err
	}

	c.logger.Warn("MCP connection broken, reconnecting", loggerv2.String("tool", name), loggerv2.Error(err))
	_ = c.Close()
	if cerr := c.Connect(ctx); cerr != nil {
		return nil, errors.Join(err, cerr)
	}
	return c.callOnce(ctx, name, arguments)
}

func (c *Client) callOnce(ctx context.Context, name string, arguments map[string]interface{}) (*mcp.CallToolResult, error) {
	mc, err := c.connected()
	if err != nil {
		return nil, err
	}
	result, err := mc.CallTool(ctx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: arguments,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to call tool %s: %w", name, err)
	}
	return result, nil
}

// Close closes the connection
func (c *Client) Close() error {
	c.mu.Lock()
	mc := c.mcpClient
	c.mcpClient = nil
	c.mu.Unlock()
	if mc == nil {
		return nil
	}
	return mc.Close()
}

// captureStderr logs the server's stderr and reports the first fatal line
func (c *Client) captureStderr(stderr io.Reader, fatal chan<- error) {
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	sent := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		c.logger.Debug("MCP stderr", loggerv2.String("line", line))
		if !sent {
			if err := detectFatalError(line); err != nil {
				sent = true
				select {
				case fatal <- err:
				default:
				}
			}
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) {
		c.logger.Debug("Error reading MCP stderr", loggerv2.Error(err))
	}
}

// detectFatalError reports stderr lines that mean the server cannot start
func detectFatalError(line string) error {
	lower := strings.ToLower(line)
	switch {
	case strings.Contains(lower, "npm") && strings.Contains(lower, "is known not to run on node.js"):
		return fmt.Errorf("Node.js version mismatch detected: %s", line)
	case strings.Contains(lower, "syntaxerror"):
		return fmt.Errorf("syntax error detected: %s", line)
	case strings.Contains(lower, "error:") &&
		(strings.Contains(lower, "cannot") ||
			strings.Contains(lower, "unable") ||
			strings.Contains(lower, "not found") ||
			strings.Contains(lower, "permission denied")):
		return fmt.Errorf("critical error detected: %s", line)
	}
	return nil
}
