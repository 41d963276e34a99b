package v2

import "io"

// Config holds configuration for creating a logger instance
type Config struct {
	// Level specifies the minimum log level (debug, info, warn, error)
	Level string

	// Format specifies the output format (text, json)
	Format string

	// Output specifies where to write logs
	// Options: "stdout", "stderr", or a file path
	Output string

	// Writer overrides Output when set. Mostly useful in tests.
	Writer io.Writer

	// ReportCaller adds file:line of the call site to every entry
	ReportCaller bool
}

// DefaultConfig returns the configuration used by NewDefault
func DefaultConfig() Config {
	return Config{
		Level:        "info",
		Format:       "text",
		Output:       "stderr",
		ReportCaller: true,
	}
}
