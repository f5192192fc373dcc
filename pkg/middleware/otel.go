package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/corehttp/pkg/protocol"
	"github.com/vango-dev/corehttp/pkg/router"
)

// Default tracer name for corehttp servers.
const defaultTracerName = "corehttp"

// OTelConfig configures the OpenTelemetry middleware.
type OTelConfig struct {
	// TracerName is the name of the tracer (default: "corehttp").
	TracerName string

	// TracerProvider supplies the tracer.
	// Default: the global provider from otel.GetTracerProvider().
	TracerProvider trace.TracerProvider

	// Filter determines which requests to trace.
	// If nil, all requests are traced.
	Filter func(req *protocol.Request) bool

	// AttributeExtractor adds custom attributes for a request.
	AttributeExtractor func(req *protocol.Request) []attribute.KeyValue
}

// OTelOption configures the OpenTelemetry middleware.
type OTelOption func(*OTelConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) OTelOption {
	return func(c *OTelConfig) {
		c.TracerName = name
	}
}

// WithTracerProvider sets the tracer provider.
func WithTracerProvider(tp trace.TracerProvider) OTelOption {
	return func(c *OTelConfig) {
		c.TracerProvider = tp
	}
}

// WithRequestFilter sets a filter function for requests.
func WithRequestFilter(filter func(req *protocol.Request) bool) OTelOption {
	return func(c *OTelConfig) {
		c.Filter = filter
	}
}

// WithAttributeExtractor sets a custom attribute extractor.
func WithAttributeExtractor(extractor func(req *protocol.Request) []attribute.KeyValue) OTelOption {
	return func(c *OTelConfig) {
		c.AttributeExtractor = extractor
	}
}

// OpenTelemetry creates middleware that starts a server span per request.
//
// The span is named after the method and carries the target path, the peer
// address and the response status. Handler errors are recorded on the span.
// The span context is stored on the request, see TraceContext.
func OpenTelemetry(opts ...OTelOption) router.Middleware {
	config := OTelConfig{TracerName: defaultTracerName}
	for _, opt := range opts {
		opt(&config)
	}
	tp := config.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	tracer := tp.Tracer(config.TracerName)

	return func(next router.Handler) router.Handler {
		return router.HandlerFunc(func(req *protocol.Request) (*protocol.Response, error) {
			if config.Filter != nil && !config.Filter(req) {
				return next.Serve(req)
			}

			attrs := []attribute.KeyValue{
				attribute.String("http.request.method", req.Method),
				attribute.String("url.path", req.Path),
				attribute.String("network.protocol.version", req.Protocol),
				attribute.String("client.address", req.RemoteAddr),
			}
			if config.AttributeExtractor != nil {
				attrs = append(attrs, config.AttributeExtractor(req)...)
			}

			parent := req.Context()
			ctx, span := tracer.Start(parent, "HTTP "+req.Method,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(attrs...),
			)
			defer span.End()

			req.SetContext(ctx)
			resp, err := next.Serve(req)
			req.SetContext(parent)

			switch {
			case err != nil:
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			case resp != nil:
				span.SetAttributes(attribute.Int("http.response.status_code", resp.Code))
				if resp.Code >= protocol.StatusInternalServerError {
					span.SetStatus(codes.Error, protocol.StatusText(resp.Code))
				} else {
					span.SetStatus(codes.Ok, "")
				}
			}
			return resp, err
		})
	}
}

// SpanFromRequest returns the span started for req, or a no-op span.
func SpanFromRequest(req *protocol.Request) trace.Span {
	return trace.SpanFromContext(req.Context())
}

// TraceContext returns the request context carrying the current span, for
// propagation to downstream calls.
func TraceContext(req *protocol.Request) context.Context {
	return req.Context()
}
