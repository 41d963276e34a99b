// Package mcpclient exposes the tools of MCP servers to the executor.
//
// Servers are listed in an mcp_servers.json file. Each server is connected
// once at startup; its tools are registered as <server>__<tool>.
package mcpclient

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	loggerv2 "agentd/logger/v2"
)

// ProtocolType defines the connection protocol
type ProtocolType string

const (
	ProtocolStdio ProtocolType = "stdio"
	ProtocolSSE   ProtocolType = "sse"
	ProtocolHTTP  ProtocolType = "http"
)

// ServerConfig is one entry of mcpServers
type ServerConfig struct {
	Command     string            `json:"command,omitempty"`
	Args        []string          `json:"args,omitempty"`
	Env         map[string]string `json:"env,omitempty"`
	Description string            `json:"description,omitempty"`
	Protocol    ProtocolType      `json:"protocol,omitempty"`
	// SSE/HTTP specific fields
	URL     string            `json:"url,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	// Disabled servers are skipped
	Disabled bool `json:"disabled,omitempty"`
	// Mandatory marks every tool of the server mandatory
	Mandatory bool `json:"mandatory,omitempty"`
	// ToolTimeout overrides the default per-call timeout, e.g. "45s"
	ToolTimeout string `json:"tool_timeout,omitempty"`
}

// GetProtocol returns the configured protocol, inferring it when unset
func (c ServerConfig) GetProtocol() ProtocolType {
	if c.Protocol != "" {
		return c.Protocol
	}
	if c.URL != "" {
		if strings.Contains(c.URL, "/sse") {
			return ProtocolSSE
		}
		return ProtocolHTTP
	}
	return ProtocolStdio
}

// Timeout parses ToolTimeout; zero means the coordinator default
func (c ServerConfig) Timeout() (time.Duration, error) {
	if c.ToolTimeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.ToolTimeout)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid tool_timeout %q", c.ToolTimeout)
	}
	return d, nil
}

// environ merges the server env over the process environment
func (c ServerConfig) environ() []string {
	envMap := make(map[string]string)
	for _, e := range os.Environ() {
		if idx := strings.IndexByte(e, '='); idx > 0 {
			envMap[e[:idx]] = e[idx+1:]
		}
	}
	for key, value := range c.Env {
		envMap[key] = value
	}
	env := make([]string, 0, len(envMap))
	for key, value := range envMap {
		env = append(env, key+"="+value)
	}
	sort.Strings(env)
	return env
}

func (c ServerConfig) validate(name string) error {
	if strings.Contains(name, ToolSeparator) {
		return fmt.Errorf("server name %q must not contain %q", name, ToolSeparator)
	}
	switch c.GetProtocol() {
	case ProtocolStdio:
		if c.Command == "" {
			return fmt.Errorf("server %s: command is required for stdio", name)
		}
	case ProtocolSSE, ProtocolHTTP:
		if c.URL == "" {
			return fmt.Errorf("server %s: url is required for %s", name, c.GetProtocol())
		}
	default:
		return fmt.Errorf("server %s: unknown protocol %q", name, c.Protocol)
	}
	if _, err := c.Timeout(); err != nil {
		return fmt.Errorf("server %s: %w", name, err)
	}
	return nil
}

// MCPConfig is the mcp_servers.json layout
type MCPConfig struct {
	MCPServers map[string]ServerConfig `json:"mcpServers"`
}

// ParseConfig decodes and validates an mcp_servers.json document
func ParseConfig(data []byte) (*MCPConfig, error) {
	var config MCPConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse MCP config: %w", err)
	}
	if config.MCPServers == nil {
		config.MCPServers = make(map[string]ServerConfig)
	}
	for name, server := range config.MCPServers {
		if err := server.validate(name); err != nil {
			return nil, err
		}
	}
	return &config, nil
}

// LoadConfig loads MCP server configuration from the specified file.
// If configPath is empty, returns an empty config.
func LoadConfig(configPath string, logger loggerv2.Logger) (*MCPConfig, error) {
	if configPath == "" {
		return &MCPConfig{MCPServers: make(map[string]ServerConfig)}, nil
	}

	//nolint:gosec // G304: configPath comes from command-line/config, not user input
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}
	config, err := ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", configPath, err)
	}
	if logger != nil {
		logger.Debug("Loaded MCP config",
			loggerv2.String("config_path", configPath),
			loggerv2.Int("servers", len(config.MCPServers)))
	}
	return config, nil
}

// ListServers returns the enabled server names in sorted order
func (c *MCPConfig) ListServers() []string {
	names := make([]string, 0, len(c.MCPServers))
	for name, server := range c.MCPServers {
		if !server.Disabled {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
