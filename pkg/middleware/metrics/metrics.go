// Package metrics records Prometheus request metrics for the management server.
package metrics

import (
	"github.com/nimburion/recordlock/pkg/observability/metrics"
	"github.com/nimburion/recordlock/pkg/server/router"
)

// Metrics counts and times requests in registry, labelled by route template
// so raw ids never become label values.
func Metrics(registry *metrics.Registry) router.Middleware {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			finish := registry.StartRequest(c.Request().Method)
			err := next(c)
			finish(c.Route(), c.Response().Status())
			return err
		}
	}
}
