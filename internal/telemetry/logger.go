package telemetry

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/oklog/ulid/v2"
)

type contextKey string

const sessionIDKey contextKey = "session"

// NewLogger creates a structured logger writing text or JSON records.
func NewLogger(w io.Writer, level slog.Level, format string) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// ParseLevel maps a level name such as "debug" or "warn" to a slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(name))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", name)
	}
	return level, nil
}

// NewSessionID returns a new lexically sortable session identifier.
func NewSessionID() string {
	return ulid.Make().String()
}

// WithSessionID adds a session ID to the context.
// If id is empty, a new one is generated.
func WithSessionID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = NewSessionID()
	}
	return context.WithValue(ctx, sessionIDKey, id)
}

// SessionID retrieves the session ID from context.
func SessionID(ctx context.Context) string {
	if id, ok := ctx.Value(sessionIDKey).(string); ok {
		return id
	}
	return ""
}

// SessionLogger returns a logger with session-scoped fields.
func SessionLogger(logger *slog.Logger, ctx context.Context, backend string) *slog.Logger {
	attrs := []any{
		slog.String("backend", backend),
	}
	if id := SessionID(ctx); id != "" {
		attrs = append(attrs, slog.String("session", id))
	}
	return logger.With(attrs...)
}
