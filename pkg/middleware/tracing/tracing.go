// Package tracing opens a server span for each management request.
package tracing

import (
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/nimburion/recordlock/pkg/identity"
	obstracing "github.com/nimburion/recordlock/pkg/observability/tracing"
	"github.com/nimburion/recordlock/pkg/server/router"
)

// Tracing extracts the incoming trace context and wraps the handler in a
// span named "<method> <route template>". Responses with status 5xx mark
// the span as failed.
func Tracing() router.Middleware {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			req := c.Request()
			ctx := otel.GetTextMapPropagator().Extract(req.Context(), propagation.HeaderCarrier(req.Header))

			route := c.Route()
			ctx, span := otel.Tracer(obstracing.ScopeHTTP).Start(ctx,
				req.Method+" "+route,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					attribute.String("http.method", req.Method),
					attribute.String("http.route", route),
				),
			)
			defer span.End()

			if id, ok := identity.RequestID(ctx); ok {
				span.SetAttributes(attribute.String("request.id", id))
			}
			c.SetRequest(req.WithContext(ctx))

			err := next(c)

			status := c.Response().Status()
			span.SetAttributes(attribute.Int("http.status_code", status))
			switch {
			case err != nil:
				obstracing.RecordError(span, err)
			case status >= http.StatusInternalServerError:
				span.SetStatus(codes.Error, http.StatusText(status))
			}
			return err
		}
	}
}
