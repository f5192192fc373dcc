package middleware

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/corehttp/pkg/protocol"
	"github.com/vango-dev/corehttp/pkg/router"
)

func newTracer(t *testing.T) (*tracetest.SpanRecorder, *sdktrace.TracerProvider) {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { tp.Shutdown(context.Background()) })
	return sr, tp
}

func attrMap(kvs []attribute.KeyValue) map[string]string {
	m := make(map[string]string, len(kvs))
	for _, kv := range kvs {
		m[string(kv.Key)] = kv.Value.Emit()
	}
	return m
}

func TestOpenTelemetrySpan(t *testing.T) {
	sr, tp := newTracer(t)
	mw := OpenTelemetry(
		WithTracerProvider(tp),
		WithAttributeExtractor(func(*protocol.Request) []attribute.KeyValue {
			return []attribute.KeyValue{attribute.String("test.attr", "ok")}
		}),
	)

	var inner trace.SpanContext
	h := mw(router.HandlerFunc(func(req *protocol.Request) (*protocol.Response, error) {
		inner = SpanFromRequest(req).SpanContext()
		assert.Equal(t, inner, trace.SpanContextFromContext(TraceContext(req)))
		return protocol.NewResponse(protocol.StatusOK), nil
	}))

	req := newRequest("GET", "/items")
	_, err := h.Serve(req)
	require.NoError(t, err)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "HTTP GET", span.Name())
	assert.Equal(t, trace.SpanKindServer, span.SpanKind())
	assert.Equal(t, codes.Ok, span.Status().Code)
	assert.True(t, inner.IsValid())
	assert.Equal(t, span.SpanContext().SpanID(), inner.SpanID())

	attrs := attrMap(span.Attributes())
	assert.Equal(t, "GET", attrs["http.request.method"])
	assert.Equal(t, "/items", attrs["url.path"])
	assert.Equal(t, "127.0.0.1:5555", attrs["client.address"])
	assert.Equal(t, "200", attrs["http.response.status_code"])
	assert.Equal(t, "ok", attrs["test.attr"])

	// The request context is restored once the handler returns.
	assert.False(t, SpanFromRequest(req).SpanContext().IsValid())
}

func TestOpenTelemetryErrors(t *testing.T) {
	sr, tp := newTracer(t)
	mw := OpenTelemetry(WithTracerProvider(tp), WithTracerName("test"))

	_, err := mw(fail(errors.New("boom"))).Serve(newRequest("POST", "/"))
	require.Error(t, err)
	_, err = mw(respond(protocol.StatusInternalServerError)).Serve(newRequest("GET", "/"))
	require.NoError(t, err)

	spans := sr.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "boom", spans[0].Status().Description)
	require.Len(t, spans[0].Events(), 1)
	assert.Equal(t, "exception", spans[0].Events()[0].Name)
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Equal(t, "test", spans[0].InstrumentationScope().Name)
}

func TestOpenTelemetryFilter(t *testing.T) {
	sr, tp := newTracer(t)
	mw := OpenTelemetry(WithTracerProvider(tp), WithRequestFilter(func(req *protocol.Request) bool {
		return req.Path != "/healthz"
	}))

	_, err := mw(respond(protocol.StatusOK)).Serve(newRequest("GET", "/healthz"))
	require.NoError(t, err)
	assert.Empty(t, sr.Ended())
}
