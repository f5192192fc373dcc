// Package static serves files from a directory over the protocol router.
//
// A Handler answers GET requests only. The path "/" maps to the index page,
// the Content-Type is derived from the file extension, and files larger than
// the gzip threshold are sent gzip compressed with chunked framing when the
// client accepts gzip. Anything else yields 404.
//
// Mount the handler with router.Mount so the route prefix is stripped:
//
//	r := router.New()
//	r.Mount("/", static.Dir("WebContent"))
package static
