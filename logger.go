package courier

import (
	"log/slog"
	"os"

	"github.com/google/uuid"
)

// Logger is the leveled key/value logging hook. It is observability only:
// implementations must never block or influence control flow.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// SimpleLogger is a slog-backed Logger writing text lines to stderr.
type SimpleLogger struct {
	logger *slog.Logger
}

// NewSimpleLogger returns a SimpleLogger at debug level.
func NewSimpleLogger() *SimpleLogger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})
	return &SimpleLogger{logger: slog.New(handler)}
}

func (l *SimpleLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l *SimpleLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Info(msg, keysAndValues...)
}

func (l *SimpleLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn(msg, keysAndValues...)
}

func (l *SimpleLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, keysAndValues...)
}

// DebugConfig gates per-concern debug logging so insight can be enabled
// selectively without drowning in noise.
type DebugConfig struct {
	Enabled bool

	LogRequests      bool
	LogRetries       bool
	LogCircuit       bool
	LogDeduplication bool

	// RequestIDGen produces the correlation ID attached to every log line
	// and RequestError for one Execute call.
	RequestIDGen func() string
}

// DefaultDebugConfig enables all concerns with UUID request IDs.
func DefaultDebugConfig() *DebugConfig {
	return &DebugConfig{
		Enabled:          false,
		LogRequests:      true,
		LogRetries:       true,
		LogCircuit:       true,
		LogDeduplication: true,
		RequestIDGen:     uuid.NewString,
	}
}
