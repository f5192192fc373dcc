// Package session holds the per-connection state shared by the connection
// handler, the response being written and, after an upgrade, the WebSocket
// engine.
//
// A Session owns the buffered input and output streams of one accepted
// socket. Reads go through an inactivity timeout that is re-armed before
// every read from the socket; a zero timeout disables it, which is what the
// WebSocket engine does once a connection has been upgraded.
//
// Writes are serialized: every caller goes through Write, which holds the
// session's write lock for the duration of the callback and flushes the
// buffered writer before releasing it. This lets handlers push WebSocket
// frames from goroutines other than the one running the read loop.
package session
