package static

import (
	"io/fs"
	"log/slog"
	"mime"
	"os"
	"path"
	"strings"

	"github.com/vango-dev/corehttp/pkg/protocol"
)

const (
	// DefaultDir is the content folder used by Dir("").
	DefaultDir = "WebContent"

	// DefaultIndex is the page served for "/".
	DefaultIndex = "index.html"

	// DefaultGzipMinLength is the file size above which gzip is used.
	DefaultGzipMinLength = 2048
)

// CacheControl selects the Cache-Control policy for served files.
type CacheControl int

const (
	// CacheControlNone adds no caching headers.
	CacheControlNone CacheControl = iota

	// CacheControlNoStore forbids caching.
	CacheControlNoStore

	// CacheControlProduction caches fingerprinted files for a year and
	// everything else for an hour with revalidation.
	CacheControlProduction
)

// Handler serves files from a file system.
type Handler struct {
	fsys          fs.FS
	index         string
	gzipMinLength int64
	cache         CacheControl
	headers       map[string]string
	logger        *slog.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithIndex sets the page served for "/".
func WithIndex(name string) Option {
	return func(h *Handler) { h.index = name }
}

// WithGzipMinLength sets the size above which files are compressed.
func WithGzipMinLength(n int64) Option {
	return func(h *Handler) { h.gzipMinLength = n }
}

// WithCacheControl sets the caching policy.
func WithCacheControl(c CacheControl) Option {
	return func(h *Handler) { h.cache = c }
}

// WithHeaders adds fixed headers to every file response.
func WithHeaders(headers map[string]string) Option {
	return func(h *Handler) { h.headers = headers }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) { h.logger = logger }
}

// New returns a handler serving files from fsys.
func New(fsys fs.FS, opts ...Option) *Handler {
	h := &Handler{
		fsys:          fsys,
		index:         DefaultIndex,
		gzipMinLength: DefaultGzipMinLength,
		logger:        slog.Default().With("component", "static"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Dir returns a handler serving files below dir. An empty dir means
// DefaultDir.
func Dir(dir string, opts ...Option) *Handler {
	if dir == "" {
		dir = DefaultDir
	}
	return New(os.DirFS(dir), opts...)
}

// Serve answers req with the requested file or 404.
func (h *Handler) Serve(req *protocol.Request) (*protocol.Response, error) {
	if req.Method != "GET" {
		return protocol.NewResponse(protocol.StatusNotFound), nil
	}

	p := req.Path
	if p == "/" || p == "" {
		p = "/" + h.index
	}
	rel, ok := relPath(p)
	if !ok {
		return protocol.NewResponse(protocol.StatusNotFound), nil
	}

	f, err := h.fsys.Open(rel)
	if err != nil {
		return protocol.NewResponse(protocol.StatusNotFound), nil
	}
	info, err := f.Stat()
	if err != nil || info.IsDir() {
		f.Close()
		return protocol.NewResponse(protocol.StatusNotFound), nil
	}

	contentType := ContentType(rel)
	var resp *protocol.Response
	if acceptsGzip(req) && info.Size() > h.gzipMinLength {
		resp = protocol.NewStreamResponse(protocol.StatusOK, contentType, f, -1)
		resp.Header.Set("Content-Encoding", "gzip")
	} else {
		resp = protocol.NewStreamResponse(protocol.StatusOK, contentType, f, info.Size())
	}
	h.applyCacheHeaders(resp, rel)
	for k, v := range h.headers {
		resp.Header.Set(k, v)
	}

	h.logger.Debug("serving file", "path", rel, "size", info.Size())
	return resp, nil
}

func (h *Handler) applyCacheHeaders(resp *protocol.Response, rel string) {
	switch h.cache {
	case CacheControlNoStore:
		resp.Header.Set("Cache-Control", "no-store, no-cache, must-revalidate")
	case CacheControlProduction:
		if isFingerprinted(rel) {
			resp.Header.Set("Cache-Control", "public, max-age=31536000, immutable")
		} else {
			resp.Header.Set("Cache-Control", "public, max-age=3600, must-revalidate")
		}
	}
}

// ContentType returns the MIME type for name's extension, or
// application/octet-stream when unknown.
func ContentType(name string) string {
	if t := mime.TypeByExtension(path.Ext(name)); t != "" {
		return t
	}
	return "application/octet-stream"
}

func acceptsGzip(req *protocol.Request) bool {
	return strings.Contains(req.Header.Get("Accept-Encoding"), "gzip")
}

// relPath turns a request path into a file system path. It rejects
// traversal, NUL bytes and backslashes.
func relPath(p string) (string, bool) {
	rel := strings.TrimPrefix(p, "/")
	if rel == "" || strings.IndexByte(rel, 0) != -1 || strings.Contains(rel, "\\") {
		return "", false
	}
	for _, seg := range strings.Split(rel, "/") {
		if seg == "." || seg == ".." {
			return "", false
		}
	}
	rel = strings.TrimSuffix(rel, "/")
	if !fs.ValidPath(rel) {
		return "", false
	}
	return rel, true
}

// isFingerprinted reports whether the name carries a content hash, as in
// "app.a1b2c3d4.css".
func isFingerprinted(name string) bool {
	parts := strings.Split(path.Base(name), ".")
	if len(parts) < 3 {
		return false
	}
	hash := parts[len(parts)-2]
	if len(hash) < 8 {
		return false
	}
	for _, c := range hash {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}
