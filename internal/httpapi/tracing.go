package httpapi

import (
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"

	"routerd/internal/tracing"
)

// TraceHeader echoes the trace id of the request span.
const TraceHeader = "X-Trace-ID"

// TracingMiddleware opens an http.request span, continuing an incoming
// traceparent when present. The route pattern is attached after routing.
func TracingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		ctx, span := tracing.StartSpan(ctx, "http.request",
			attribute.String("http.method", r.Method),
			attribute.String("http.path", r.URL.Path),
		)
		defer span.End()
		if sc := span.SpanContext(); sc.HasTraceID() {
			w.Header().Set(TraceHeader, sc.TraceID().String())
		}
		sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		r = r.WithContext(ctx)
		next.ServeHTTP(sr, r)
		span.SetAttributes(
			attribute.String("http.route", routePatternOrPath(r)),
			attribute.Int("http.status_code", sr.status),
		)
		if sr.status >= 500 {
			span.SetStatus(codes.Error, http.StatusText(sr.status))
		}
	})
}
