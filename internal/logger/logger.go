package logger

import (
	"context"
	"log/slog"
	"os"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
)

// Logger emits structured JSON log records with the fields shared by all
// services: service name, hostname, action and request id.
type Logger struct {
	service  string
	hostname string
	handler  *slog.Logger
}

// New creates a logger for the given service name.
func New(service string) *Logger {
	hostname, _ := os.Hostname()

	handler := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	return &Logger{
		service:  service,
		hostname: hostname,
		handler:  handler,
	}
}

// GenerateRequestID returns a fresh id used to correlate log records of one request.
func GenerateRequestID() string {
	return uuid.NewString()
}

func (l *Logger) baseAttrs(action, requestID string) []slog.Attr {
	return []slog.Attr{
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
		slog.String("service", l.service),
		slog.String("hostname", l.hostname),
		slog.String("action", action),
		slog.String("request_id", requestID),
	}
}

func detailAttrs(details map[string]interface{}) []slog.Attr {
	if len(details) == 0 {
		return nil
	}
	attrs := make([]slog.Attr, 0, len(details))
	for k, v := range details {
		attrs = append(attrs, slog.Any(k, v))
	}
	return []slog.Attr{{Key: "details", Value: slog.GroupValue(attrs...)}}
}

// Info logs an informational record.
func (l *Logger) Info(action, message, requestID string, details map[string]interface{}) {
	attrs := append(l.baseAttrs(action, requestID), detailAttrs(details)...)
	l.handler.LogAttrs(context.TODO(), slog.LevelInfo, message, attrs...)
}

// Debug logs a debug record.
func (l *Logger) Debug(action, message, requestID string, details map[string]interface{}) {
	attrs := append(l.baseAttrs(action, requestID), detailAttrs(details)...)
	l.handler.LogAttrs(context.TODO(), slog.LevelDebug, message, attrs...)
}

// Error logs an error record with the error message and stack.
func (l *Logger) Error(action, message, requestID string, err error, details map[string]interface{}) {
	attrs := append(l.baseAttrs(action, requestID), detailAttrs(details)...)
	if err != nil {
		attrs = append(attrs, slog.Group("error",
			slog.String("msg", err.Error()),
			slog.String("stack", string(debug.Stack())),
		))
	}
	l.handler.LogAttrs(context.TODO(), slog.LevelError, message, attrs...)
}
