// Package logger provides the structured logging contract used across the
// auth service. Implementations live in internal/infrastructure/monitoring;
// this package only defines the interface, the field helpers and the masking
// rules for sensitive values.
package logger

import (
	"context"
	"strings"
	"time"
)

// Logger defines the interface for structured, context-aware logging.
type Logger interface {
	// Debug logs a debug message.
	Debug(ctx context.Context, message string, fields ...Field)

	// Info logs an informational message.
	Info(ctx context.Context, message string, fields ...Field)

	// Warn logs a warning message.
	Warn(ctx context.Context, message string, fields ...Field)

	// Error logs an error message.
	Error(ctx context.Context, message string, err error, fields ...Field)

	// Fatal logs a fatal message and exits the application.
	Fatal(ctx context.Context, message string, err error, fields ...Field)

	// WithFields creates a new logger with additional base fields.
	WithFields(fields ...Field) Logger

	// WithComponent creates a new logger scoped to a component name.
	WithComponent(component string) Logger
}

// ================================================================================
// Field helpers
// ================================================================================

// Field represents a key-value pair for structured logging.
type Field struct {
	Key   string
	Value any
}

// String creates a string field.
func String(key, value string) Field { return Field{Key: key, Value: value} }

// Int creates an integer field.
func Int(key string, value int) Field { return Field{Key: key, Value: value} }

// Int64 creates an int64 field.
func Int64(key string, value int64) Field { return Field{Key: key, Value: value} }

// Bool creates a boolean field.
func Bool(key string, value bool) Field { return Field{Key: key, Value: value} }

// Duration creates a duration field rendered in its string form.
func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value.String()}
}

// Time creates an RFC3339 time field.
func Time(key string, value time.Time) Field {
	return Field{Key: key, Value: value.Format(time.RFC3339)}
}

// Err creates an error field.
func Err(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}
	return Field{Key: "error", Value: err.Error()}
}

// Any creates a field with any value.
func Any(key string, value any) Field { return Field{Key: key, Value: value} }

// ================================================================================
// Sensitive value masking
// ================================================================================

var sensitiveKeys = []string{
	"password",
	"secret",
	"token",
	"authorization",
	"signature",
	"api_key",
}

// Sanitize masks values whose key looks sensitive so raw tokens and secrets
// never reach log sinks.
func Sanitize(key string, value any) any {
	keyLower := strings.ToLower(key)
	for _, sensitive := range sensitiveKeys {
		if strings.Contains(keyLower, sensitive) {
			if s, ok := value.(string); ok && s != "" {
				return maskString(s)
			}
			return "***REDACTED***"
		}
	}
	return value
}

// maskString keeps the first and last four characters of long values.
func maskString(s string) string {
	if len(s) <= 8 {
		return "***"
	}
	return s[:4] + "***" + s[len(s)-4:]
}
