package v2

// Logger is the logging interface used across agentd.
// It hides the logrus backend from callers.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, err error, fields ...Field)
	Fatal(msg string, err error, fields ...Field)

	// With returns a child logger that adds fields to every entry
	With(fields ...Field) Logger

	// Close releases the log file, if any
	Close() error
}

// Field represents a structured log field
type Field struct {
	Key   string
	Value interface{}
}
