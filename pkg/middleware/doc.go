// Package middleware provides router middleware for corehttp servers.
//
// This package includes:
//   - Prometheus request metrics
//   - OpenTelemetry spans per request
//   - Structured request logging with request ids
//
// Middleware wraps router.Handler values and is installed with Router.Use:
//
//	r := router.New()
//	r.Use(
//	    middleware.Logger(logger),
//	    middleware.OpenTelemetry(),
//	    middleware.Prometheus(middleware.WithRegistry(reg)),
//	)
//
// # Prometheus Metrics
//
// The Prometheus middleware records:
//   - corehttp_requests_total: requests by method and status code
//   - corehttp_request_duration_seconds: handler duration by method
//   - corehttp_request_errors_total: handler errors by method and category
//   - corehttp_requests_in_flight: requests currently being handled
//   - corehttp_websocket_upgrades_total: accepted WebSocket handshakes
//
// Expose them on the admin port with promhttp.
//
// # Context Propagation
//
// The OpenTelemetry middleware stores the span context on the request, so
// handlers can pass req.Context() to downstream calls and inherit the trace.
package middleware
