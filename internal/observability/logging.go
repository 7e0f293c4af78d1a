// Package observability provides logging, metrics, and tracing for the client SDK.
package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Logger wraps slog.Logger to provide specialized logging methods.
type Logger struct {
	*slog.Logger
}

// GlobalLogger is the default logger instance for the application.
var GlobalLogger *Logger

func init() {
	GlobalLogger = NewLogger(os.Stderr, LoggingConfig{Level: "info", Format: "text"})
}

// LogContextKey is a type for context keys used by the logging package.
type LogContextKey string

// Context keys for logging
const (
	RequestIDKey LogContextKey = "request_id"
	UserIDKey    LogContextKey = "user_id"
)

// LoggingConfig selects the level and output format of the logger.
type LoggingConfig struct {
	Level  string
	Format string // "json" or "text"
}

// ctxHandler is a slog.Handler that adds context values to the log record.
type ctxHandler struct {
	slog.Handler
}

func (h *ctxHandler) Handle(ctx context.Context, r slog.Record) error {
	if rid, ok := ctx.Value(RequestIDKey).(string); ok && rid != "" {
		r.AddAttrs(slog.String("request_id", rid))
	}
	if uid, ok := ctx.Value(UserIDKey).(uint); ok && uid != 0 {
		r.AddAttrs(slog.Uint64("user_id", uint64(uid)))
	}
	return h.Handler.Handle(ctx, r)
}

func (h *ctxHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ctxHandler{h.Handler.WithAttrs(attrs)}
}

func (h *ctxHandler) WithGroup(name string) slog.Handler {
	return &ctxHandler{h.Handler.WithGroup(name)}
}

// NewLogger builds a context-aware logger writing to w.
func NewLogger(w io.Writer, cfg LoggingConfig) *Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}
	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return &Logger{Logger: slog.New(&ctxHandler{handler})}
}

// ConfigureGlobal replaces GlobalLogger and the slog default.
func ConfigureGlobal(w io.Writer, cfg LoggingConfig) *Logger {
	GlobalLogger = NewLogger(w, cfg)
	slog.SetDefault(GlobalLogger.Logger)
	return GlobalLogger
}

// ParseLevel maps a level name to a slog level; unknown names map to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithRequestID returns a new context with the given request ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

// ExtractRequestID retrieves the request ID from the context.
func ExtractRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// ClientLogger provides structured logging for SDK operations.
type ClientLogger struct {
	component string
	logger    *Logger
}

// NewClientLogger creates a ClientLogger for the given component. A nil
// logger falls back to GlobalLogger at call time.
func NewClientLogger(component string, logger *Logger) *ClientLogger {
	return &ClientLogger{component: component, logger: logger}
}

func (l *ClientLogger) base() *Logger {
	if l.logger != nil {
		return l.logger
	}
	return GlobalLogger
}

// LogRequest logs a completed backend request.
func (l *ClientLogger) LogRequest(ctx context.Context, method, path string, status int, elapsed time.Duration) {
	l.base().DebugContext(ctx, "api request",
		slog.String("component", l.component),
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Duration("elapsed", elapsed),
	)
}

// LogRequestError logs a backend request that failed.
func (l *ClientLogger) LogRequestError(ctx context.Context, method, path string, status int, err error) {
	l.base().WarnContext(ctx, "api request failed",
		slog.String("component", l.component),
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.String("error", err.Error()),
	)
}

// LogMutation logs the outcome of a mutation hook.
func (l *ClientLogger) LogMutation(ctx context.Context, action string, invalidated []string, err error) {
	attrs := []any{
		slog.String("component", l.component),
		slog.String("action", action),
		slog.Any("invalidated", invalidated),
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
		l.base().WarnContext(ctx, "mutation failed", attrs...)
		return
	}
	l.base().InfoContext(ctx, "mutation succeeded", attrs...)
}

// LogCache logs a cache event such as a hit, miss or invalidation.
func (l *ClientLogger) LogCache(ctx context.Context, event, key string) {
	l.base().DebugContext(ctx, "query cache",
		slog.String("component", l.component),
		slog.String("event", event),
		slog.String("key", key),
	)
}

// LogSession logs a session status transition.
func (l *ClientLogger) LogSession(ctx context.Context, from, to string) {
	l.base().InfoContext(ctx, "session status changed",
		slog.String("component", l.component),
		slog.String("from", from),
		slog.String("to", to),
	)
}

// LogStorageError logs a failed durable storage operation.
func (l *ClientLogger) LogStorageError(ctx context.Context, backend, operation string, err error) {
	l.base().WarnContext(ctx, "storage operation failed",
		slog.String("component", l.component),
		slog.String("backend", backend),
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}
