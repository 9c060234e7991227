// Package actor attributes management requests to the operator that sent them.
package actor

import (
	"strings"

	"github.com/nimburion/recordlock/pkg/identity"
	"github.com/nimburion/recordlock/pkg/server/router"
)

// ActorHeader carries the operator identity set by the fronting proxy.
const ActorHeader = "X-Actor"

// Actor stores the X-Actor header as the acting identity. Requests without
// the header fall back to fallback; an empty fallback leaves the context untouched.
func Actor(fallback string) router.Middleware {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			name := strings.TrimSpace(c.Request().Header.Get(ActorHeader))
			if name == "" {
				name = fallback
			}
			if name != "" {
				c.SetRequest(c.Request().WithContext(identity.WithActor(c.Request().Context(), name)))
			}
			return next(c)
		}
	}
}
