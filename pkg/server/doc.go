// Package server accepts connections and drives the HTTP exchange on each.
//
// The Server owns the listening socket and a registry of live connections.
// Every accepted socket is wrapped in a session, registered, and handed to
// the Executor, which by default runs it on its own goroutine. The
// connection handler then loops:
//
//	AWAITING_REQUEST → DISPATCHING → WRITING_RESPONSE → AWAITING_REQUEST | CLOSED
//
// A connection stays open only while the exchange asks for it: a response
// Connection header is honored as is, otherwise the request must carry
// "Connection: keep-alive". Decode and handler failures are answered with
// 500 and "Connection: close". A 101 response with an Upgrade function hands
// the session to that function and the connection closes when it returns.
//
// Idle connections are dropped after the socket timeout (5 seconds by
// default); upgrade functions clear the timeout on their session.
package server
