// Package config loads agentd settings from defaults, an optional config
// file, a .env file and AGENTD_* environment variables, in increasing order
// of precedence. Command-line flags bound to the same viper instance win
// over all of them.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. AGENTD_SERVER_ADDRESS
const EnvPrefix = "AGENTD"

// Config is the resolved agentd configuration
type Config struct {
	Server ServerConfig
	Log    LogConfig
	Store  StoreConfig
	Models ModelsConfig
	Agent  AgentConfig
	MCP    MCPConfig
}

type ServerConfig struct {
	Network string
	Address string
	// ShutdownTimeout bounds graceful stop
	ShutdownTimeout time.Duration
}

type LogConfig struct {
	Level  string
	Format string
	Output string
}

type StoreConfig struct {
	Driver string
	DSN    string
}

type ModelsConfig struct {
	// File is a models.yaml catalog; empty uses the built-in echo model
	File    string
	Default string
	// TokenEncoding is the tiktoken encoding used to estimate usage
	TokenEncoding string
}

type AgentConfig struct {
	MaxToolRounds      int
	ToolTimeout        time.Duration
	MaxConcurrentTools int
	StreamBuffer       int
}

type MCPConfig struct {
	// Config is an mcp_servers.json file; empty disables MCP tools
	Config string
}

// SetDefaults registers the default of every key on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.network", "unix")
	v.SetDefault("server.address", "/tmp/agentd.sock")
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.output", "stderr")
	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.dsn", "")
	v.SetDefault("models.file", "")
	v.SetDefault("models.default", "")
	v.SetDefault("models.token_encoding", "cl100k_base")
	v.SetDefault("agent.max_tool_rounds", 8)
	v.SetDefault("agent.tool_timeout", 30*time.Second)
	v.SetDefault("agent.max_concurrent_tools", 4)
	v.SetDefault("agent.stream_buffer", 16)
	v.SetDefault("mcp.config", "")
}

// New returns a viper instance with defaults and environment binding set up
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadDotEnv loads path (".env" when empty) into the process environment.
// A missing file is not an error; variables already set are kept.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Load reads configFile (if set) into v and resolves the configuration
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", configFile, err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Network:         v.GetString("server.network"),
			Address:         v.GetString("server.address"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Store: StoreConfig{
			Driver: v.GetString("store.driver"),
			DSN:    v.GetString("store.dsn"),
		},
		Models: ModelsConfig{
			File:          v.GetString("models.file"),
			Default:       v.GetString("models.default"),
			TokenEncoding: v.GetString("models.token_encoding"),
		},
		Agent: AgentConfig{
			MaxToolRounds:      v.GetInt("agent.max_tool_rounds"),
			ToolTimeout:        v.GetDuration("agent.tool_timeout"),
			MaxConcurrentTools: v.GetInt("agent.max_concurrent_tools"),
			StreamBuffer:       v.GetInt("agent.stream_buffer"),
		},
		MCP: MCPConfig{
			Config: v.GetString("mcp.config"),
		},
	}
	return cfg, cfg.Validate()
}

// Validate checks value ranges
func (c *Config) Validate() error {
	switch c.Server.Network {
	case "unix", "tcp":
	default:
		return fmt.Errorf("server.network must be unix or tcp, got %q", c.Server.Network)
	}
	if c.Server.Address == "" {
		return fmt.Errorf("server.address is required")
	}
	switch c.Store.Driver {
	case "memory":
	case "sqlite":
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("unknown store.driver %q", c.Store.Driver)
	}
	if c.Agent.MaxToolRounds <= 0 {
		return fmt.Errorf("agent.max_tool_rounds must be positive")
	}
	if c.Agent.ToolTimeout <= 0 {
		return fmt.Errorf("agent.tool_timeout must be positive")
	}
	if c.Agent.MaxConcurrentTools <= 0 {
		return fmt.Errorf("agent.max_concurrent_tools must be positive")
	}
	if c.Agent.StreamBuffer <= 0 {
		return fmt.Errorf("agent.stream_buffer must be positive")
	}
	return nil
}
