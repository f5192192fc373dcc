// Package websocket implements the server side of the WebSocket protocol on
// top of the HTTP codec.
//
// A Handler answers the opening handshake with 101 Switching Protocol and
// sets Response.Upgrade. Once the connection handler has written that
// response it calls the upgrade function, which takes the session over:
// the idle read timeout is removed and frames are read until the peer sends
// a close frame or the stream fails.
//
//	type echo struct{ websocket.NopListener }
//
//	func (echo) OnText(c *websocket.Conn, text string) { c.SendText(text) }
//
//	r.Handle("/ws", websocket.NewHandler(echo{}, websocket.WithPaths("/ws")))
//
// # Masking
//
// Frames from the client are always unmasked on read. Frames sent by the
// server are unmasked unless the handler is built with WithMaskedOutbound,
// in which case every frame is masked with a key generated once per
// connection and kept on the session.
package websocket
