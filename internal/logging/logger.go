package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// LogLevel represents different log levels
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

// String returns the string representation of the log level
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarn:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

// ParseLevel converts a configuration string into a LogLevel.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	case "fatal":
		return LevelFatal, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// Logger interface for structured logging
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...interface{})
	Info(ctx context.Context, msg string, fields ...interface{})
	Warn(ctx context.Context, err error, msg string, fields ...interface{})
	Error(ctx context.Context, err error, msg string, fields ...interface{})
	Fatal(ctx context.Context, err error, msg string, fields ...interface{})

	With(fields ...interface{}) Logger
	WithComponent(component string) Logger
}

// PreviewLogger implements structured logging on top of slog
type PreviewLogger struct {
	logger    *slog.Logger
	level     LogLevel
	component string
	fields    map[string]interface{}
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level     LogLevel
	Format    string // "json" or "text"
	Output    io.Writer
	AddSource bool
	Component string
}

// DefaultConfig returns default logger configuration
func DefaultConfig() *LoggerConfig {
	return &LoggerConfig{
		Level:  LevelInfo,
		Format: "text",
		Output: os.Stderr,
	}
}

// NewLogger creates a new structured logger
func NewLogger(config *LoggerConfig) *PreviewLogger {
	if config == nil {
		config = DefaultConfig()
	}
	output := config.Output
	if output == nil {
		output = os.Stderr
	}

	opts := &slog.HandlerOptions{
		Level:     config.Level.slogLevel(),
		AddSource: config.AddSource,
	}

	var handler slog.Handler
	if config.Format == "json" {
		handler = slog.NewJSONHandler(output, opts)
	} else {
		handler = slog.NewTextHandler(output, opts)
	}

	return &PreviewLogger{
		logger:    slog.New(handler),
		level:     config.Level,
		component: config.Component,
		fields:    make(map[string]interface{}),
	}
}

// NewNopLogger returns a logger that discards everything.
func NewNopLogger() *PreviewLogger {
	return NewLogger(&LoggerConfig{Level: LevelFatal, Output: io.Discard})
}

// Debug logs a debug message
func (l *PreviewLogger) Debug(ctx context.Context, msg string, fields ...interface{}) {
	if l.level > LevelDebug {
		return
	}
	l.log(ctx, slog.LevelDebug, nil, msg, fields...)
}

// Info logs an info message
func (l *PreviewLogger) Info(ctx context.Context, msg string, fields ...interface{}) {
	if l.level > LevelInfo {
		return
	}
	l.log(ctx, slog.LevelInfo, nil, msg, fields...)
}

// Warn logs a warning message
func (l *PreviewLogger) Warn(ctx context.Context, err error, msg string, fields ...interface{}) {
	if l.level > LevelWarn {
		return
	}
	l.log(ctx, slog.LevelWarn, err, msg, fields...)
}

// Error logs an error message
func (l *PreviewLogger) Error(ctx context.Context, err error, msg string, fields ...interface{}) {
	if l.level > LevelError {
		return
	}
	l.log(ctx, slog.LevelError, err, msg, fields...)
}

// Fatal logs at ERROR level. It does not exit; the caller decides.
func (l *PreviewLogger) Fatal(ctx context.Context, err error, msg string, fields ...interface{}) {
	l.log(ctx, slog.LevelError, err, msg, fields...)
}

// With creates a new logger with additional fields
func (l *PreviewLogger) With(fields ...interface{}) Logger {
	newFields := make(map[string]interface{}, len(l.fields)+len(fields)/2)
	for k, v := range l.fields {
		newFields[k] = v
	}

	for i := 0; i+1 < len(fields); i += 2 {
		if key, ok := fields[i].(string); ok {
			newFields[key] = fields[i+1]
		}
	}

	return &PreviewLogger{
		logger:    l.logger,
		level:     l.level,
		component: l.component,
		fields:    newFields,
	}
}

// WithComponent creates a new logger with component context
func (l *PreviewLogger) WithComponent(component string) Logger {
	return &PreviewLogger{
		logger:    l.logger,
		level:     l.level,
		component: component,
		fields:    l.fields,
	}
}

func (l *PreviewLogger) log(ctx context.Context, level slog.Level, err error, msg string, fields ...interface{}) {
	if ctx == nil {
		ctx = context.Background()
	}
	attrs := make([]slog.Attr, 0, len(l.fields)+len(fields)/2+2)

	if l.component != "" {
		attrs = append(attrs, slog.String("component", l.component))
	}

	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}

	for k, v := range l.fields {
		attrs = append(attrs, slog.Any(k, v))
	}

	for i := 0; i+1 < len(fields); i += 2 {
		if key, ok := fields[i].(string); ok {
			attrs = append(attrs, slog.Any(key, fields[i+1]))
		}
	}

	record := slog.NewRecord(time.Now(), level, msg, 0)
	record.AddAttrs(attrs...)

	_ = l.logger.Handler().Handle(ctx, record)
}

// Security-focused logging utilities

// SanitizeForLog redacts values that look like credentials and truncates
// long payloads such as whole markup fragments.
func SanitizeForLog(data string) string {
	sensitive := []string{
		"password", "token", "secret", "key", "auth",
	}

	lower := strings.ToLower(data)
	for _, word := range sensitive {
		if strings.Contains(lower, word) {
			return "[REDACTED]"
		}
	}

	if len(data) > 200 {
		return data[:200] + "...[TRUNCATED]"
	}

	return data
}

// LogSecurityEvent logs security-related events, such as a request for the
// unsanitized render path.
func LogSecurityEvent(ctx context.Context, logger Logger, event string, details map[string]interface{}) {
	fields := []interface{}{"event_type", "security", "event", event}
	for k, v := range details {
		if str, ok := v.(string); ok {
			v = SanitizeForLog(str)
		}
		fields = append(fields, k, v)
	}

	logger.Warn(ctx, nil, "Security event", fields...)
}
