package protocol

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/vango-dev/corehttp/pkg/upload"
)

// Decoding limits.
const (
	// DefaultMaxLineSize bounds the request line and each header line.
	DefaultMaxLineSize = 64 << 10

	// DefaultMaxBodySize bounds Content-Length framed bodies and file parts.
	DefaultMaxBodySize = 32 << 20
)

const formURLEncoded = "application/x-www-form-urlencoded"

var defaultStore upload.Store = upload.TempStore()

// Decoder reads requests from a buffered stream.
//
// The zero value is ready to use and stores file parts in the OS temporary
// directory.
type Decoder struct {
	// Store receives multipart file parts. Nil means the OS temp folder.
	Store upload.Store

	// MaxBodySize bounds a body or file part. Zero means DefaultMaxBodySize.
	MaxBodySize int64

	// MaxLineSize bounds a single line. Zero means DefaultMaxLineSize.
	MaxLineSize int
}

func (d *Decoder) store() upload.Store {
	if d.Store != nil {
		return d.Store
	}
	return defaultStore
}

func (d *Decoder) maxBody() int64 {
	if d.MaxBodySize > 0 {
		return d.MaxBodySize
	}
	return DefaultMaxBodySize
}

func (d *Decoder) maxLine() int {
	if d.MaxLineSize > 0 {
		return d.MaxLineSize
	}
	return DefaultMaxLineSize
}

// Decode reads one request from r into req.
//
// It returns ErrEndOfStream when the stream ends before the first byte of a
// request. Errors from the underlying reader, such as read timeouts, are
// returned unwrapped or wrapped with %w.
func (d *Decoder) Decode(r *bufio.Reader, req *Request) error {
	req.Reset()

	line, err := d.requestLine(r)
	if err != nil {
		return err
	}
	parts := strings.Split(line, " ")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return fmt.Errorf("%w: %q", ErrMalformedRequestLine, line)
	}
	req.Method, req.Path, req.Protocol = parts[0], parts[1], parts[2]

	if err := d.readHeader(r, &req.Header); err != nil {
		return err
	}

	if cookie, ok := req.Header.Lookup("Cookie"); ok {
		parsePairs(cookie, ";", false, req.Cookies)
	}

	switch req.Method {
	case "GET", "HEAD":
		if path, query, ok := strings.Cut(req.Path, "?"); ok {
			req.Path = path
			parsePairs(query, "&", true, req.Params)
		}
	case "POST", "PUT":
		return d.readBody(r, req)
	}
	return nil
}

// requestLine skips blank lines before the request line.
func (d *Decoder) requestLine(r *bufio.Reader) (string, error) {
	for {
		line, err := readLine(r, d.maxLine())
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", ErrEndOfStream
			}
			return "", err
		}
		if line != "" {
			return line, nil
		}
	}
}

func (d *Decoder) readHeader(r *bufio.Reader, h *Header) error {
	for {
		line, err := readLine(r, d.maxLine())
		if err != nil {
			return unexpectedEOF(err)
		}
		if line == "" {
			return nil
		}
		key, value, err := splitHeaderLine(line)
		if err != nil {
			return err
		}
		h.Set(key, value)
	}
}

func splitHeaderLine(line string) (key, value string, err error) {
	i := strings.IndexByte(line, ':')
	if i <= 0 {
		return "", "", fmt.Errorf("%w: %q", ErrMalformedHeader, line)
	}
	value = line[i+1:]
	if strings.HasPrefix(value, " ") {
		value = value[1:]
	}
	return line[:i], value, nil
}

func (d *Decoder) readBody(r *bufio.Reader, req *Request) error {
	contentType := req.Header.Get("Content-Type")
	if strings.Contains(contentType, "multipart/") {
		return d.readMultipart(r, req, contentType)
	}

	n, err := contentLength(&req.Header)
	if err != nil {
		return err
	}
	if n > d.maxBody() {
		return fmt.Errorf("%w: %d bytes", ErrBodyTooLarge, n)
	}
	if n == 0 {
		return nil
	}

	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return truncated(err)
	}

	if strings.EqualFold(contentType, formURLEncoded) {
		parsePairs(string(body), "&", true, req.Params)
		return nil
	}
	req.Body = body
	return nil
}

func contentLength(h *Header) (int64, error) {
	v, ok := h.Lookup("Content-Length")
	if !ok {
		return 0, nil
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: Content-Length %q", ErrMalformedHeader, v)
	}
	return n, nil
}

// readLine reads a line terminated by LF, dropping the trailing CRLF or LF.
// A final line without a terminator is reported as io.ErrUnexpectedEOF; an
// empty stream as io.EOF.
func readLine(r *bufio.Reader, max int) (string, error) {
	var buf []byte
	for {
		chunk, err := r.ReadSlice('\n')
		if len(buf)+len(chunk) > max {
			return "", ErrLineTooLong
		}
		switch {
		case err == nil:
			if buf == nil {
				return string(trimEOL(chunk)), nil
			}
			buf = append(buf, chunk...)
			return string(trimEOL(buf)), nil
		case errors.Is(err, bufio.ErrBufferFull):
			buf = append(buf, chunk...)
		case errors.Is(err, io.EOF):
			if len(buf) == 0 && len(chunk) == 0 {
				return "", io.EOF
			}
			return "", io.ErrUnexpectedEOF
		default:
			return "", err
		}
	}
}

func trimEOL(b []byte) []byte {
	b = bytes.TrimSuffix(b, []byte{'\n'})
	return bytes.TrimSuffix(b, []byte{'\r'})
}

func unexpectedEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}

func truncated(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrTruncatedBody
	}
	return err
}
