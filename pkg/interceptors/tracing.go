package interceptors

import (
	"context"
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// NewTracingMiddleware instruments requests with OpenTelemetry server spans.
func NewTracingMiddleware(tracer trace.Tracer) Middleware {
	if tracer == nil {
		tracer = otel.Tracer("capture/interceptors")
	}
	propagator := otel.GetTextMapPropagator()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ctx, span := tracer.Start(ctx, r.Method, trace.WithSpanKind(trace.SpanKindServer))
			defer span.End()

			span.SetAttributes(
				attribute.String("http.request.method", r.Method),
				attribute.String("url.path", r.URL.Path),
			)
			if id, ok := GetRequestIDFromContext(ctx); ok {
				span.SetAttributes(attribute.String("http.request_id", id))
			}

			route := &routeHolder{}
			ctx = context.WithValue(ctx, routeKey{}, route)

			rec := newStatusRecorder(w)
			req := r.WithContext(ctx)
			next.ServeHTTP(rec, req)

			span.SetName(req.Method + " " + route.resolve(req))

			span.SetAttributes(attribute.Int("http.response.status_code", rec.status))
			if rec.status >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, fmt.Sprintf("status %d", rec.status))
			} else {
				span.SetStatus(codes.Ok, "ok")
			}
		})
	}
}

type routeKey struct{}

type routeHolder struct {
	pattern string
}

// resolve returns the matched ServeMux pattern. Middleware between the tracer and the mux
// may hand the mux a copy of the request, so RecordRoute reports it from the inside.
func (h *routeHolder) resolve(r *http.Request) string {
	switch {
	case h.pattern != "":
		return h.pattern
	case r.Pattern != "":
		return r.Pattern
	default:
		return "unmatched"
	}
}

// RecordRoute wraps a handler registered on a ServeMux and reports the matched pattern
// to NewTracingMiddleware, keeping span names free of path parameters.
func RecordRoute(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h, ok := r.Context().Value(routeKey{}).(*routeHolder); ok {
			h.pattern = r.Pattern
		}
		next.ServeHTTP(w, r)
	})
}
