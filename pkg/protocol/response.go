package protocol

import (
	"bufio"
	"bytes"
	"io"

	"github.com/vango-dev/corehttp/pkg/session"
)

// DefaultProtocol is the version written on response status lines.
const DefaultProtocol = "HTTP/1.1"

// Response is an HTTP response waiting to be written.
type Response struct {
	Protocol string
	Code     int
	Message  string
	Header   Header

	// Cookies are written as one Set-Cookie line each, in order.
	Cookies []*Cookie

	// Content is the body source. It is closed after writing when it
	// implements io.Closer.
	Content io.Reader

	// ContentLength is the number of bytes to copy from Content. -1 means
	// unknown, and the body is sent with chunked transfer coding.
	ContentLength int64

	// Session is the connection the response is written to.
	Session *session.Session

	// Upgrade, when set, takes over the session after the response has been
	// written. The connection is closed when it returns.
	Upgrade func(*session.Session) error
}

// NewResponse returns an empty response with the standard reason phrase.
func NewResponse(code int) *Response {
	return &Response{
		Protocol: DefaultProtocol,
		Code:     code,
		Message:  StatusText(code),
	}
}

// NewContentResponse returns a response carrying data.
func NewContentResponse(code int, contentType string, data []byte) *Response {
	return NewStreamResponse(code, contentType, bytes.NewReader(data), int64(len(data)))
}

// NewStreamResponse returns a response copying length bytes from content.
// Pass -1 to stream content until EOF with chunked transfer coding.
func NewStreamResponse(code int, contentType string, content io.Reader, length int64) *Response {
	resp := NewResponse(code)
	resp.Header.Set("Content-Type", contentType)
	resp.Content = content
	resp.ContentLength = length
	return resp
}

// SetHeader sets a header and returns resp for chaining.
func (resp *Response) SetHeader(key, value string) *Response {
	resp.Header.Set(key, value)
	return resp
}

// AddCookie appends a cookie and returns resp for chaining.
func (resp *Response) AddCookie(c *Cookie) *Response {
	resp.Cookies = append(resp.Cookies, c)
	return resp
}

// Write encodes the response to its session.
func (resp *Response) Write() error {
	if resp.Session == nil {
		return ErrNoSession
	}
	return resp.Session.Write(func(w *bufio.Writer) error {
		return WriteResponse(w, resp)
	})
}
