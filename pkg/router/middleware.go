package router

import "github.com/vango-dev/corehttp/pkg/protocol"

// Middleware wraps a Handler.
type Middleware func(next Handler) Handler

// Chain composes middleware into one. Middleware runs in order (first to
// last), with the handler at the end.
func Chain(mw ...Middleware) Middleware {
	return func(next Handler) Handler {
		for i := len(mw) - 1; i >= 0; i-- {
			next = mw[i](next)
		}
		return next
	}
}

// Only applies mw to requests for which cond returns true.
func Only(cond func(req *protocol.Request) bool, mw Middleware) Middleware {
	return func(next Handler) Handler {
		wrapped := mw(next)
		return HandlerFunc(func(req *protocol.Request) (*protocol.Response, error) {
			if cond(req) {
				return wrapped.Serve(req)
			}
			return next.Serve(req)
		})
	}
}
