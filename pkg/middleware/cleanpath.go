package middleware

import (
	"errors"
	"strings"

	"github.com/vango-dev/corehttp/pkg/protocol"
	"github.com/vango-dev/corehttp/pkg/router"
)

// Path cleaning errors.
var (
	ErrBackslashInPath      = errors.New("middleware: path contains backslash")
	ErrNullByteInPath       = errors.New("middleware: path contains null byte")
	ErrInvalidPercentEscape = errors.New("middleware: invalid percent escape")
	ErrPathEscapesRoot      = errors.New("middleware: path escapes root")
)

// CleanPath normalizes a request path. Repeated slashes collapse, "." is
// dropped and ".." removes the previous segment. The trailing slash is
// removed except for "/". A query string, if present, is kept as is.
//
// Paths with a backslash, a NUL byte (literal or %00), a malformed percent
// escape or a ".." above the root are rejected.
func CleanPath(input string) (string, error) {
	path, query, hasQuery := strings.Cut(input, "?")

	if strings.Contains(path, "\\") {
		return "", ErrBackslashInPath
	}
	if strings.Contains(path, "\x00") || strings.Contains(strings.ToUpper(path), "%00") {
		return "", ErrNullByteInPath
	}
	if err := validatePercentEscapes(path); err != nil {
		return "", err
	}

	var segs []string
	for _, seg := range strings.Split(path, "/") {
		switch seg {
		case "", ".":
		case "..":
			if len(segs) == 0 {
				return "", ErrPathEscapesRoot
			}
			segs = segs[:len(segs)-1]
		default:
			segs = append(segs, seg)
		}
	}

	clean := "/" + strings.Join(segs, "/")
	if hasQuery {
		clean += "?" + query
	}
	return clean, nil
}

func validatePercentEscapes(path string) error {
	for i := 0; i < len(path); i++ {
		if path[i] != '%' {
			continue
		}
		if i+2 >= len(path) || !isHex(path[i+1]) || !isHex(path[i+2]) {
			return ErrInvalidPercentEscape
		}
		i += 2
	}
	return nil
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// CleanPaths returns middleware that rewrites req.Path with CleanPath and
// answers 400 Bad Request when the path is rejected.
func CleanPaths() router.Middleware {
	return func(next router.Handler) router.Handler {
		return router.HandlerFunc(func(req *protocol.Request) (*protocol.Response, error) {
			clean, err := CleanPath(req.Path)
			if err != nil {
				return protocol.NewResponse(protocol.StatusBadRequest), nil
			}
			req.Path = clean
			return next.Serve(req)
		})
	}
}
