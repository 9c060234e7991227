// Package logger provides the structured logging used across recordlock.
package logger

import (
	"context"
)

// Logger is a structured logger. Log methods take a message followed by
// alternating key-value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)

	// With returns a child logger that adds args to every entry.
	With(args ...any) Logger

	// WithContext returns a child logger carrying the actor and request id found in ctx.
	WithContext(ctx context.Context) Logger
}
