package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"agentd/config"
	loggerv2 "agentd/logger/v2"
)

var (
	v          = config.New()
	configFile string
	envFile    string
)

// rootCmd is the agentd daemon
var rootCmd = &cobra.Command{
	Use:   "agentd",
	Short: "Conversational agent service over gRPC",
	Long: `agentd serves the AgentService gRPC API: it runs chat turns against the
configured models, executes tool calls, and keeps conversation history.

Examples:
  # Serve on the default unix socket with the built-in echo model
  agentd serve

  # Serve over TCP with a model catalog, MCP tools and sqlite history
  agentd serve --network tcp --address 127.0.0.1:7070 \
    --models models.yaml --mcp-config mcp_servers.json \
    --store sqlite --store-dsn agentd.db`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return config.LoadDotEnv(envFile)
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "config file (yaml, json or toml)")
	flags.StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the config")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "text", "log format (text, json)")
	flags.String("log-output", "stderr", "log output: stdout, stderr or a file path")
	flags.String("models", "", "model catalog file (models.yaml); empty uses the echo model")
	flags.String("default-model", "", "override the catalog default model")

	bindFlags(flags, map[string]string{
		"log.level":      "log-level",
		"log.format":     "log-format",
		"log.output":     "log-output",
		"models.file":    "models",
		"models.default": "default-model",
	})

	rootCmd.AddCommand(serveCmd, modelsCmd)
}

// bindFlags binds viper keys to flags; a missing flag is a programming error
func bindFlags(flags *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("bind %s: %v", name, err))
		}
	}
}

// loadConfig resolves the configuration and builds the process logger
func loadConfig() (*config.Config, loggerv2.Logger, error) {
	cfg, err := config.Load(v, configFile)
	if err != nil {
		return nil, nil, err
	}
	logger, err := loggerv2.New(loggerv2.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, logger, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
