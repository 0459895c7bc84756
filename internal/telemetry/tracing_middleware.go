package telemetry

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	optimadeotel "github.com/stacklok/optimade-server/internal/otel"
	"github.com/stacklok/optimade-server/internal/versions"
)

// TracerName is the tracer of the server spans
const TracerName = "github.com/stacklok/optimade-server/http"

// statusVersionNotSupported is the OPTIMADE answer to an unserved versioned base URL.
// It is a client error despite being in the 5xx range.
const statusVersionNotSupported = 553

// TracingMiddleware starts a server span per request, named after the route once chi has
// matched it and tagged with the OPTIMADE endpoint and base URL. A nil provider disables it.
func TracingMiddleware(provider trace.TracerProvider) func(http.Handler) http.Handler {
	if provider == nil {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	tracer := provider.Tracer(TracerName)
	propagator := otel.GetTextMapPropagator()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			ctx, span := tracer.Start(ctx, r.Method+" "+r.URL.Path,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					semconv.HTTPRequestMethodKey.String(r.Method),
					semconv.URLPath(r.URL.Path),
					semconv.UserAgentOriginal(r.UserAgent()),
					optimadeotel.AttrAPIVersion.String(versions.APIVersion),
					optimadeotel.AttrParamCount.Int(len(r.URL.Query())),
				),
			)
			defer span.End()

			next.ServeHTTP(ww, r.WithContext(ctx))

			route := RouteOf(r)
			status := ww.Status()
			span.SetName(r.Method + " " + route.Pattern)
			span.SetAttributes(
				semconv.HTTPRouteKey.String(route.Pattern),
				semconv.HTTPResponseStatusCode(status),
				optimadeotel.AttrEndpoint.String(route.Endpoint),
				optimadeotel.AttrBaseURL.String(route.BaseURL),
			)

			switch {
			case status == statusVersionNotSupported:
				span.SetStatus(codes.Unset, "")
			case status >= http.StatusInternalServerError:
				span.SetStatus(codes.Error, http.StatusText(status))
			default:
				span.SetStatus(codes.Ok, "")
			}
		})
	}
}
