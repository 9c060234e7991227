// Package recovery turns handler panics into 500 responses.
package recovery

import (
	"net/http"
	"runtime/debug"

	"github.com/nimburion/recordlock/pkg/identity"
	"github.com/nimburion/recordlock/pkg/observability/logger"
	"github.com/nimburion/recordlock/pkg/server/router"
)

// Recovery creates middleware that recovers from panics in HTTP handlers,
// logs them with a stack trace and answers HTTP 500.
func Recovery(log logger.Logger) router.Middleware {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				requestID, _ := identity.RequestID(c.Request().Context())
				log.Error("panic recovered",
					"request_id", requestID,
					"panic", r,
					"stack", string(debug.Stack()),
				)
				if c.Response().Written() {
					return
				}
				err = c.JSON(http.StatusInternalServerError, router.ErrorResponse{
					Error:     router.ErrorBody{Code: "internal", Message: "an unexpected error occurred"},
					RequestID: requestID,
				})
			}()

			return next(c)
		}
	}
}
