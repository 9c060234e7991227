package locking

import (
	"context"

	"github.com/nimburion/recordlock/pkg/identity"
)

// AnonymousActor is recorded as holder when no actor identity is available.
const AnonymousActor = "anonymous"

// ActorProvider returns the identity of the caller attributed as lock holder.
type ActorProvider func(ctx context.Context) string

// WithActor stores the acting user's identity in ctx.
func WithActor(ctx context.Context, actor string) context.Context {
	return identity.WithActor(ctx, actor)
}

// ActorFromContext returns the identity stored by WithActor, or AnonymousActor.
func ActorFromContext(ctx context.Context) string {
	if actor, ok := identity.Actor(ctx); ok {
		return actor
	}
	return AnonymousActor
}
