package ops

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/sandwichfarm/emojichat/internal/config"
)

// Logger is a structured logger wrapper
type Logger struct {
	*slog.Logger
	level  slog.Level
	format string
}

// NewLogger creates a new structured logger based on config
func NewLogger(cfg *config.Logging) *Logger {
	return NewLoggerWithWriter(cfg, os.Stderr)
}

// NewLoggerWithWriter creates a logger with a custom writer
func NewLoggerWithWriter(cfg *config.Logging, w io.Writer) *Logger {
	level := parseLevel(cfg.Level)

	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.Format(time.RFC3339))
				}
			}
			return a
		},
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
		level:  level,
		format: cfg.Format,
	}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithComponent adds a component field to all log messages
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		Logger: l.Logger.With("component", component),
		level:  l.level,
		format: l.format,
	}
}

// WithFields adds custom fields to the logger
func (l *Logger) WithFields(fields ...any) *Logger {
	return &Logger{
		Logger: l.Logger.With(fields...),
		level:  l.level,
		format: l.format,
	}
}

// IsDebugEnabled returns true if debug logging is enabled
func (l *Logger) IsDebugEnabled() bool {
	return l.level <= slog.LevelDebug
}

// Component-specific logger helpers

// LogSubscription logs a subscription lifecycle transition
func (l *Logger) LogSubscription(purpose string, state string, fields ...any) {
	args := append([]any{"purpose", purpose, "state", state}, fields...)
	l.Debug("subscription state", args...)
}

// LogDroppedEvent logs an incoming item that failed validation
func (l *Logger) LogDroppedEvent(relay string, reason string, eventID string) {
	l.Warn("dropped invalid event",
		"relay", relay,
		"reason", reason,
		"event_id", eventID)
}

// LogRelayRetry logs a live substream failure and its scheduled retry
func (l *Logger) LogRelayRetry(relay string, backoff time.Duration, err error) {
	l.Warn("live subscription interrupted, retrying",
		"relay", relay,
		"backoff", backoff.String(),
		"error", err)
}

// LogPublishResult logs per-relay publish acknowledgements
func (l *Logger) LogPublishResult(eventID string, relay string, ok bool, message string) {
	if ok {
		l.Info("publish accepted",
			"event_id", eventID,
			"relay", relay)
	} else {
		l.Warn("publish rejected",
			"event_id", eventID,
			"relay", relay,
			"message", message)
	}
}

// LogProfileBatch logs a profile fetch batch being started
func (l *Logger) LogProfileBatch(authors int, superseded bool) {
	l.Debug("profile fetch batch",
		"authors", authors,
		"superseded_previous", superseded)
}

// Default logger configuration
var defaultLogger *Logger

func init() {
	defaultLogger = NewLogger(&config.Logging{
		Level:  "info",
		Format: "text",
	})
}

// Default returns the default logger
func Default() *Logger {
	return defaultLogger
}

// SetDefault sets the default logger
func SetDefault(l *Logger) {
	defaultLogger = l
}
