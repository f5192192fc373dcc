package router

import (
	"strings"
	"sync"

	"github.com/vango-dev/corehttp/pkg/protocol"
)

// Handler responds to a decoded request.
type Handler interface {
	Serve(req *protocol.Request) (*protocol.Response, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(req *protocol.Request) (*protocol.Response, error)

// Serve calls f(req).
func (f HandlerFunc) Serve(req *protocol.Request) (*protocol.Response, error) {
	return f(req)
}

type route struct {
	handler Handler
	strip   bool
}

// Router dispatches requests by longest matching path prefix. It is safe
// for concurrent use; routes may change while requests are served.
type Router struct {
	mu         sync.RWMutex
	tree       *PathTree[route]
	middleware []Middleware
	notFound   Handler
}

// New returns an empty router.
func New() *Router {
	return &Router{tree: NewPathTree[route]()}
}

// Handle binds h at path. h sees the request path unchanged.
func (r *Router) Handle(path string, h Handler) {
	r.bind(path, route{handler: h})
}

// HandleFunc binds fn at path.
func (r *Router) HandleFunc(path string, fn HandlerFunc) {
	r.Handle(path, fn)
}

// Mount binds h at path. h sees the request path with the matched prefix
// removed, "/" if nothing remains.
func (r *Router) Mount(path string, h Handler) {
	r.bind(path, route{handler: h, strip: true})
}

func (r *Router) bind(path string, rt route) {
	r.mu.Lock()
	r.tree.Insert(path, rt)
	r.mu.Unlock()
}

// Remove unbinds path and everything below it.
func (r *Router) Remove(path string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.tree.Remove(path)
	return ok
}

// Use appends middleware wrapped around every dispatched request, the
// first added being the outermost.
func (r *Router) Use(mw ...Middleware) {
	r.mu.Lock()
	r.middleware = append(r.middleware, mw...)
	r.mu.Unlock()
}

// NotFound sets the handler used when no route matches. The default
// responds 404.
func (r *Router) NotFound(h Handler) {
	r.mu.Lock()
	r.notFound = h
	r.mu.Unlock()
}

// Serve routes req. The query string, if still present, does not take part
// in matching but is kept on a stripped path.
func (r *Router) Serve(req *protocol.Request) (*protocol.Response, error) {
	r.mu.RLock()
	mw := r.middleware
	r.mu.RUnlock()

	return Chain(mw...)(HandlerFunc(r.dispatch)).Serve(req)
}

func (r *Router) dispatch(req *protocol.Request) (*protocol.Response, error) {
	path, query, hasQuery := strings.Cut(req.Path, "?")

	r.mu.RLock()
	m, ok := r.tree.Lookup(path)
	notFound := r.notFound
	r.mu.RUnlock()

	if !ok {
		if notFound != nil {
			return notFound.Serve(req)
		}
		return protocol.NewResponse(protocol.StatusNotFound), nil
	}

	if m.Value.strip {
		req.Path = m.Rest
		if hasQuery {
			req.Path += "?" + query
		}
	}
	return m.Value.handler.Serve(req)
}

// Len returns the number of bound routes.
func (r *Router) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tree.Len()
}
