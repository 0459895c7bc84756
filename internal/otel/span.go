// Package otel provides OpenTelemetry span helpers for the OPTIMADE index server.
package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys shared by the spans of the server
const (
	AttrEndpoint        = attribute.Key("optimade.endpoint")
	AttrBaseURL         = attribute.Key("optimade.base_url")
	AttrAPIVersion      = attribute.Key("optimade.api_version")
	AttrParamKind       = attribute.Key("optimade.param_kind")
	AttrParamCount      = attribute.Key("optimade.query_params.count")
	AttrInvalidCount    = attribute.Key("optimade.query_params.invalid")
	AttrIgnoredCount    = attribute.Key("optimade.query_params.ignored")
	AttrLinkID          = attribute.Key("optimade.link.id")
	AttrPageLimit       = attribute.Key("pagination.limit")
	AttrPageOffset      = attribute.Key("pagination.offset")
	AttrResultCount     = attribute.Key("result.count")
	AttrProvidersSource = attribute.Key("optimade.providers.source")
)

// StartSpan starts a new span if the tracer is non-nil, otherwise returns the span already
// in ctx, which is a no-op span when tracing is disabled.
func StartSpan(
	ctx context.Context,
	tracer trace.Tracer,
	name string,
	opts ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, name, opts...)
}

// RecordError records err on span and marks the span failed. The status description stays
// generic; the error itself is kept as a span event.
func RecordError(span trace.Span, err error) {
	if err != nil && span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "operation failed")
	}
}
