package requestid

import (
	"github.com/nimburion/recordlock/pkg/identity"
	"github.com/nimburion/recordlock/pkg/server/router"
)

// RequestIDHeader is the HTTP header name for request ID.
const RequestIDHeader = "X-Request-ID"

// RequestID creates middleware that keeps an incoming X-Request-ID or
// generates a UUID, echoes it on the response and stores it in the request context.
func RequestID() router.Middleware {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			ctx := identity.WithRequestID(c.Request().Context(), c.Request().Header.Get(RequestIDHeader))
			requestID, _ := identity.RequestID(ctx)

			c.Response().Header().Set(RequestIDHeader, requestID)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}
