package protocol

import (
	"context"
	"net/url"
	"strings"
)

// Request is a decoded HTTP request. A connection reuses one Request for
// every exchange; Decode resets it before populating it again.
type Request struct {
	Method   string
	Path     string
	Protocol string
	Header   Header

	// Params holds query, form and multipart parameters. For file parts the
	// key is the original file name and the value the stored location.
	Params map[string]string

	Cookies map[string]string

	// Body holds the raw body of POST and PUT requests that are neither
	// form encoded nor multipart.
	Body []byte

	RemoteAddr string

	ctx context.Context
}

// NewRequest returns an empty request.
func NewRequest() *Request {
	return &Request{
		Params:  make(map[string]string),
		Cookies: make(map[string]string),
	}
}

// Reset clears the request for reuse. RemoteAddr and the context are kept
// since they belong to the connection.
func (r *Request) Reset() {
	r.Method = ""
	r.Path = ""
	r.Protocol = ""
	r.Header.Reset()
	if r.Params == nil {
		r.Params = make(map[string]string)
	} else {
		clear(r.Params)
	}
	if r.Cookies == nil {
		r.Cookies = make(map[string]string)
	} else {
		clear(r.Cookies)
	}
	r.Body = nil
}

// Context returns the request context, never nil.
func (r *Request) Context() context.Context {
	if r.ctx == nil {
		return context.Background()
	}
	return r.ctx
}

// SetContext replaces the request context.
func (r *Request) SetContext(ctx context.Context) {
	r.ctx = ctx
}

// Param returns a query, form or multipart parameter.
func (r *Request) Param(name string) string {
	return r.Params[name]
}

// Cookie returns a request cookie value.
func (r *Request) Cookie(name string) string {
	return r.Cookies[name]
}

// parsePairs splits s on sep into key=value pairs. Keys without '=' are
// stored with an empty value and empty pairs are skipped.
func parsePairs(s, sep string, unescape bool, dst map[string]string) {
	for _, pair := range strings.Split(s, sep) {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if unescape {
			key = queryUnescape(key)
			value = queryUnescape(value)
		}
		dst[key] = value
	}
}

func queryUnescape(s string) string {
	if u, err := url.QueryUnescape(s); err == nil {
		return u
	}
	return s
}
