package v2

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// loggerImpl implements Logger on top of logrus
type loggerImpl struct {
	logrus *logrus.Logger
	file   *os.File
	fields []Field // preset fields for child loggers
}

// New creates a new logger instance with the specified configuration
func New(cfg Config) (Logger, error) {
	logrusLogger := logrus.New()

	level := cfg.Level
	if level == "" {
		level = "info"
	}
	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	logrusLogger.SetLevel(logLevel)

	callerPrettyfier := func(f *runtime.Frame) (string, string) {
		return "", fmt.Sprintf("%s:%d", filepath.Base(f.File), f.Line)
	}

	switch strings.ToLower(cfg.Format) {
	case "json":
		logrusLogger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat:  time.RFC3339,
			CallerPrettyfier: callerPrettyfier,
		})
	case "text", "":
		logrusLogger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:    true,
			TimestampFormat:  time.RFC3339,
			CallerPrettyfier: callerPrettyfier,
		})
	default:
		return nil, fmt.Errorf("unsupported log format: %s", cfg.Format)
	}

	logrusLogger.SetReportCaller(cfg.ReportCaller)

	var file *os.File
	var writer io.Writer

	switch {
	case cfg.Writer != nil:
		writer = cfg.Writer
	case strings.EqualFold(cfg.Output, "stdout"):
		writer = os.Stdout
	case strings.EqualFold(cfg.Output, "stderr"), cfg.Output == "":
		writer = os.Stderr
	default:
		if err := os.MkdirAll(filepath.Dir(cfg.Output), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		//nolint:gosec // G304: path comes from operator configuration
		file, err = os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		writer = file
	}

	logrusLogger.SetOutput(writer)

	return &loggerImpl{
		logrus: logrusLogger,
		file:   file,
	}, nil
}

// NewDefault creates a logger with DefaultConfig, falling back to a no-op logger
func NewDefault() Logger {
	logger, err := New(DefaultConfig())
	if err != nil {
		return NewNoop()
	}
	return logger
}

// NewNoop creates a no-op logger that does nothing
// This is useful for testing when you don't want any logging output
func NewNoop() Logger {
	return &noopLogger{}
}

type noopLogger struct{}

func (n *noopLogger) Debug(msg string, fields ...Field)            {}
func (n *noopLogger) Info(msg string, fields ...Field)             {}
func (n *noopLogger) Warn(msg string, fields ...Field)             {}
func (n *noopLogger) Error(msg string, err error, fields ...Field) {}
func (n *noopLogger) Fatal(msg string, err error, fields ...Field) {}
func (n *noopLogger) With(fields ...Field) Logger                  { return n }
func (n *noopLogger) Close() error                                 { return nil }

func (l *loggerImpl) entry(fields []Field) *logrus.Entry {
	logrusFields := make(logrus.Fields, len(l.fields)+len(fields))
	for _, field := range l.fields {
		logrusFields[field.Key] = field.Value
	}
	for _, field := range fields {
		logrusFields[field.Key] = field.Value
	}
	return l.logrus.WithFields(logrusFields)
}

func (l *loggerImpl) Debug(msg string, fields ...Field) {
	l.entry(fields).Debug(msg)
}

func (l *loggerImpl) Info(msg string, fields ...Field) {
	l.entry(fields).Info(msg)
}

func (l *loggerImpl) Warn(msg string, fields ...Field) {
	l.entry(fields).Warn(msg)
}

func (l *loggerImpl) Error(msg string, err error, fields ...Field) {
	entry := l.entry(fields)
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Error(msg)
}

func (l *loggerImpl) Fatal(msg string, err error, fields ...Field) {
	entry := l.entry(fields)
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Fatal(msg)
}

func (l *loggerImpl) With(fields ...Field) Logger {
	// copy so siblings created from the same parent don't share a backing array
	preset := make([]Field, 0, len(l.fields)+len(fields))
	preset = append(preset, l.fields...)
	preset = append(preset, fields...)
	return &loggerImpl{
		logrus: l.logrus,
		fields: preset, // child loggers don't own the file handle
	}
}

func (l *loggerImpl) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}
