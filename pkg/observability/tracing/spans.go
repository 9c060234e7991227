package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Instrumentation scope names.
const (
	ScopePolicySource = "recordlock/policystore"
	ScopeHTTP         = "recordlock/http"
)

// StartPolicyLoadSpan opens a client span around one read of a remote
// policy source, named "policy.load <system>".
func StartPolicyLoadSpan(ctx context.Context, system string, opts ...SpanOption) (context.Context, trace.Span) {
	spanOpts := &spanOptions{
		attributes: []attribute.KeyValue{
			attribute.String("policy.source", system),
		},
	}
	for _, opt := range opts {
		opt(spanOpts)
	}

	ctx, span := otel.Tracer(ScopePolicySource).Start(ctx,
		fmt.Sprintf("policy.load %s", system),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	span.SetAttributes(spanOpts.attributes...)
	return ctx, span
}

// SpanOption adds attributes to a span.
type SpanOption func(*spanOptions)

type spanOptions struct {
	attributes []attribute.KeyValue
}

// WithDBSystem sets the database system, e.g. "postgresql".
func WithDBSystem(system string) SpanOption {
	return func(opts *spanOptions) {
		opts.attributes = append(opts.attributes, attribute.String("db.system", system))
	}
}

// WithDBTable sets the table read.
func WithDBTable(table string) SpanOption {
	return func(opts *spanOptions) {
		opts.attributes = append(opts.attributes, attribute.String("db.sql.table", table))
	}
}

// WithRedisKey sets the Redis key read.
func WithRedisKey(key string) SpanOption {
	return func(opts *spanOptions) {
		opts.attributes = append(opts.attributes,
			attribute.String("db.system", "redis"),
			attribute.String("db.redis.key", key),
		)
	}
}

// RecordPolicyCount notes how many policies a load returned.
func RecordPolicyCount(span trace.Span, n int) {
	span.SetAttributes(attribute.Int("policy.count", n))
}

// RecordError marks the span as failed. A nil err is ignored.
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// RecordSuccess sets the span status to OK.
func RecordSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}
