// Package protocol implements the HTTP/1.1 message codec used by the server.
//
// A Decoder turns the bytes of one request into a reusable Request value,
// and WriteResponse serializes a Response with its status line, Set-Cookie
// lines, headers and body.
//
// # Request decoding
//
//	GET /search?q=go HTTP/1.1\r\n
//	Host: example.com\r\n
//	Cookie: sid=abc; theme=dark\r\n
//	\r\n
//
// Query strings are only decoded for GET and HEAD. POST and PUT bodies are
// framed by Content-Length, or by the multipart boundary when the content
// type is multipart/*. File parts are handed to an upload.Store and the
// stored location is recorded in Request.Params under the file name.
//
// # Response encoding
//
// A Response with ContentLength -1 is sent with chunked transfer coding. When
// Content-Encoding is gzip and the length is known, the body is compressed in
// memory first so that Content-Length states the compressed size.
package protocol
