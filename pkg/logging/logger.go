package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/run-bigpig/healthchat/pkg/memory"
)

// Logger is an interface for logging
type Logger interface {
	Info(ctx context.Context, msg string, fields map[string]interface{})
	Warn(ctx context.Context, msg string, fields map[string]interface{})
	Error(ctx context.Context, msg string, fields map[string]interface{})
	Debug(ctx context.Context, msg string, fields map[string]interface{})
}

// ZeroLogger implements Logger using zerolog
type ZeroLogger struct {
	logger zerolog.Logger
	out    io.Writer
	json   bool
	level  zerolog.Level
}

// Option configures a ZeroLogger
type Option func(*ZeroLogger)

// New creates a new ZeroLogger writing human-readable output to stdout
func New(opts ...Option) *ZeroLogger {
	l := &ZeroLogger{out: os.Stdout, level: zerolog.InfoLevel}
	for _, opt := range opts {
		opt(l)
	}

	var w io.Writer = l.out
	if !l.json {
		w = zerolog.ConsoleWriter{Out: l.out, TimeFormat: time.RFC3339}
	}
	l.logger = zerolog.New(w).With().Timestamp().Logger().Level(l.level)
	return l
}

// NewNop returns a logger that discards everything
func NewNop() *ZeroLogger {
	return &ZeroLogger{logger: zerolog.Nop()}
}

// WithLevel sets the minimum level. Unknown names fall back to info.
func WithLevel(level string) Option {
	return func(l *ZeroLogger) {
		l.level = ParseLevel(level)
	}
}

// WithOutput redirects log output
func WithOutput(w io.Writer) Option {
	return func(l *ZeroLogger) {
		l.out = w
	}
}

// WithJSON switches to newline-delimited JSON output
func WithJSON(enabled bool) Option {
	return func(l *ZeroLogger) {
		l.json = enabled
	}
}

// ParseLevel maps a level name (case-insensitive) to a zerolog level
func ParseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// Info logs an info message
func (l *ZeroLogger) Info(ctx context.Context, msg string, fields map[string]interface{}) {
	l.write(ctx, l.logger.Info(), msg, fields)
}

// Warn logs a warning message
func (l *ZeroLogger) Warn(ctx context.Context, msg string, fields map[string]interface{}) {
	l.write(ctx, l.logger.Warn(), msg, fields)
}

// Error logs an error message
func (l *ZeroLogger) Error(ctx context.Context, msg string, fields map[string]interface{}) {
	l.write(ctx, l.logger.Error(), msg, fields)
}

// Debug logs a debug message
func (l *ZeroLogger) Debug(ctx context.Context, msg string, fields map[string]interface{}) {
	l.write(ctx, l.logger.Debug(), msg, fields)
}

func (l *ZeroLogger) write(ctx context.Context, event *zerolog.Event, msg string, fields map[string]interface{}) {
	if event == nil {
		return
	}
	if ctx != nil {
		if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
			event = event.Str("trace_id", sc.TraceID().String())
		}
		if id, ok := memory.GetConversationID(ctx); ok {
			event = event.Str("conversation_id", id)
		}
	}
	for k, v := range fields {
		event = event.Interface(k, v)
	}
	event.Msg(msg)
}
