package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load(New(), "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Network != "unix" || cfg.Store.Driver != "memory" || cfg.Log.Level != "info" {
		t.Errorf("defaults = %+v", cfg)
	}
	if cfg.Agent.MaxToolRounds != 8 || cfg.Agent.ToolTimeout != 30*time.Second || cfg.Agent.MaxConcurrentTools != 4 {
		t.Errorf("agent defaults = %+v", cfg.Agent)
	}
}

func TestConfigFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agentd.yaml")
	data := `
server:
  network: tcp
  address: 127.0.0.1:7070
store:
  driver: sqlite
  dsn: /tmp/agentd.db
agent:
  tool_timeout: 5s
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	t.Setenv("AGENTD_AGENT_MAX_TOOL_ROUNDS", "3")
	t.Setenv("AGENTD_LOG_LEVEL", "debug")

	cfg, err := Load(New(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Network != "tcp" || cfg.Server.Address != "127.0.0.1:7070" {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Store.Driver != "sqlite" || cfg.Store.DSN != "/tmp/agentd.db" {
		t.Errorf("store = %+v", cfg.Store)
	}
	if cfg.Agent.ToolTimeout != 5*time.Second || cfg.Agent.MaxToolRounds != 3 {
		t.Errorf("agent = %+v", cfg.Agent)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %s, want env override", cfg.Log.Level)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad network", func(c *Config) { c.Server.Network = "udp" }},
		{"empty address", func(c *Config) { c.Server.Address = "" }},
		{"sqlite without dsn", func(c *Config) { c.Store.Driver = "sqlite"; c.Store.DSN = "" }},
		{"unknown driver", func(c *Config) { c.Store.Driver = "redis" }},
		{"zero rounds", func(c *Config) { c.Agent.MaxToolRounds = 0 }},
		{"zero concurrency", func(c *Config) { c.Agent.MaxConcurrentTools = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(New(), "")
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	if err := LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Errorf("missing .env error = %v, want nil", err)
	}

	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("AGENTD_TEST_DOTENV=loaded\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	t.Setenv("AGENTD_TEST_DOTENV", "")
	os.Unsetenv("AGENTD_TEST_DOTENV")
	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv() error = %v", err)
	}
	if got := os.Getenv("AGENTD_TEST_DOTENV"); got != "loaded" {
		t.Errorf("AGENTD_TEST_DOTENV = %q", got)
	}
}
