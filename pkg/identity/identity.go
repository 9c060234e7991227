// Package identity carries the acting user and request correlation id through a context.
package identity

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

type contextKey int

const (
	actorKey contextKey = iota
	requestIDKey
)

// WithActor stores the acting user's identity in ctx.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey, strings.TrimSpace(actor))
}

// Actor returns the identity stored by WithActor.
func Actor(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	actor, ok := ctx.Value(actorKey).(string)
	return actor, ok && actor != ""
}

// WithRequestID stores a request correlation id in ctx. An empty id is replaced by a new UUID.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if strings.TrimSpace(requestID) == "" {
		requestID = uuid.NewString()
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestID returns the id stored by WithRequestID.
func RequestID(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(requestIDKey).(string)
	return id, ok && id != ""
}
