// Package notify delivers short user-facing messages after mutations.
package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"chub/internal/observability"
)

// Level is the severity of a toast.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Toast is one notification.
type Toast struct {
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	UserID  uint      `json:"user_id,omitempty"`
	At      time.Time `json:"at"`
}

// Notifier surfaces mutation outcomes to the user. Implementations must not
// block for long and never fail the caller.
type Notifier interface {
	Success(ctx context.Context, message string)
	Error(ctx context.Context, message string)
}

// Nop discards every toast.
type Nop struct{}

func (Nop) Success(context.Context, string) {}
func (Nop) Error(context.Context, string)   {}

// LogNotifier writes toasts to the structured log.
type LogNotifier struct {
	logger *observability.Logger
}

// NewLogNotifier logs through l, or GlobalLogger when l is nil.
func NewLogNotifier(l *observability.Logger) *LogNotifier {
	return &LogNotifier{logger: l}
}

func (n *LogNotifier) log() *observability.Logger {
	if n.logger != nil {
		return n.logger
	}
	return observability.GlobalLogger
}

func (n *LogNotifier) Success(ctx context.Context, message string) {
	n.log().InfoContext(ctx, "notification", slog.String("level", string(LevelSuccess)), slog.String("message", message))
}

func (n *LogNotifier) Error(ctx context.Context, message string) {
	n.log().WarnContext(ctx, "notification", slog.String("level", string(LevelError)), slog.String("message", message))
}

// WriterNotifier prints toasts as lines, e.g. to stderr for the CLI.
type WriterNotifier struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterNotifier returns a WriterNotifier writing to w.
func NewWriterNotifier(w io.Writer) *WriterNotifier {
	return &WriterNotifier{w: w}
}

func (n *WriterNotifier) Success(_ context.Context, message string) {
	n.write("✓", message)
}

func (n *WriterNotifier) Error(_ context.Context, message string) {
	n.write("✗", message)
}

func (n *WriterNotifier) write(mark, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, _ = fmt.Fprintf(n.w, "%s %s\n", mark, message)
}

// Recorder keeps every toast in memory.
type Recorder struct {
	mu     sync.Mutex
	toasts []Toast
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Success(_ context.Context, message string) {
	r.add(LevelSuccess, message)
}

func (r *Recorder) Error(_ context.Context, message string) {
	r.add(LevelError, message)
}

func (r *Recorder) add(level Level, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toasts = append(r.toasts, Toast{Level: level, Message: message, At: time.Now()})
}

// Toasts returns a copy of the recorded toasts in order.
func (r *Recorder) Toasts() []Toast {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Toast(nil), r.toasts...)
}

// Last returns the most recent toast.
func (r *Recorder) Last() (Toast, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.toasts) == 0 {
		return Toast{}, false
	}
	return r.toasts[len(r.toasts)-1], true
}

// Errors returns the messages of error toasts.
func (r *Recorder) Errors() []string {
	return r.messages(LevelError)
}

// Successes returns the messages of success toasts.
func (r *Recorder) Successes() []string {
	return r.messages(LevelSuccess)
}

func (r *Recorder) messages(level Level) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, t := range r.toasts {
		if t.Level == level {
			out = append(out, t.Message)
		}
	}
	return out
}

// Reset drops every recorded toast.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toasts = nil
}

// Multi fans out to several notifiers in order.
type Multi []Notifier

func (m Multi) Success(ctx context.Context, message string) {
	for _, n := range m {
		if n != nil {
			n.Success(ctx, message)
		}
	}
}

func (m Multi) Error(ctx context.Context, message string) {
	for _, n := range m {
		if n != nil {
			n.Error(ctx, message)
		}
	}
}
