package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vango-dev/corehttp/pkg/protocol"
	"github.com/vango-dev/corehttp/pkg/router"
)

// RequestIDHeader carries the request id on requests and responses.
const RequestIDHeader = "X-Request-Id"

type requestIDKey struct{}

// RequestID returns the id the Logger middleware assigned to req, or "" when
// the request did not pass through it.
func RequestID(req *protocol.Request) string {
	id, _ := req.Context().Value(requestIDKey{}).(string)
	return id
}

// Logger returns middleware that logs one line per request.
//
// A request id is taken from the X-Request-Id header or generated. It is
// carried on the request context, see RequestID, and echoed on the response. Server errors are logged at error level, client errors at
// warn, everything else at info.
func Logger(logger *slog.Logger) router.Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "http")

	return func(next router.Handler) router.Handler {
		return router.HandlerFunc(func(req *protocol.Request) (*protocol.Response, error) {
			id := req.Header.Get(RequestIDHeader)
			if id == "" {
				id = uuid.NewString()
			}
			method, path := req.Method, req.Path
			start := time.Now()

			parent := req.Context()
			req.SetContext(context.WithValue(parent, requestIDKey{}, id))
			resp, err := next.Serve(req)
			req.SetContext(parent)

			attrs := []any{
				"request_id", id,
				"method", method,
				"path", path,
				"remote", req.RemoteAddr,
				"duration", time.Since(start),
			}
			if err != nil {
				logger.Error("request failed", append(attrs, "error", err)...)
				return resp, err
			}
			if resp == nil {
				return nil, nil
			}
			resp.Header.Set(RequestIDHeader, id)

			attrs = append(attrs, "status", resp.Code)
			switch {
			case resp.Code >= 500:
				logger.Error("request", attrs...)
			case resp.Code >= 400:
				logger.Warn("request", attrs...)
			default:
				logger.Info("request", attrs...)
			}
			return resp, nil
		})
	}
}
