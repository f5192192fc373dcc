package websocket

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/vango-dev/corehttp/pkg/protocol"
	"github.com/vango-dev/corehttp/pkg/session"
)

// DefaultMaxMessageSize bounds a reassembled message.
const DefaultMaxMessageSize = 16 << 20

var errInvalidUTF8 = fmt.Errorf("%w: invalid UTF-8 in text message", ErrProtocolViolation)

// Listener receives the events of upgraded connections. Embed NopListener to
// implement only some of them.
type Listener interface {
	OnOpen(c *Conn)
	OnText(c *Conn, text string)
	OnBinary(c *Conn, data []byte)
	OnPong(c *Conn, data []byte)

	// OnClose is called exactly once per connection, after the read loop
	// ends. err is nil when the peer closed the connection normally.
	OnClose(c *Conn, err error)
}

// NopListener ignores every event.
type NopListener struct{}

func (NopListener) OnOpen(*Conn)           {}
func (NopListener) OnText(*Conn, string)   {}
func (NopListener) OnBinary(*Conn, []byte) {}
func (NopListener) OnPong(*Conn, []byte)   {}
func (NopListener) OnClose(*Conn, error)   {}

// Handler performs the opening handshake and runs upgraded connections.
type Handler struct {
	listener       Listener
	paths          map[string]struct{}
	maskOutbound   bool
	maxMessageSize int64
	logger         *slog.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithPaths sets the request paths accepted for upgrade. The default is "/".
func WithPaths(paths ...string) Option {
	return func(h *Handler) {
		h.paths = make(map[string]struct{}, len(paths))
		for _, p := range paths {
			h.paths[p] = struct{}{}
		}
	}
}

// WithMaskedOutbound masks every frame the server sends with a key generated
// when the connection is upgraded.
func WithMaskedOutbound() Option {
	return func(h *Handler) { h.maskOutbound = true }
}

// WithMaxMessageSize bounds a reassembled message. Zero disables the limit.
func WithMaxMessageSize(n int64) Option {
	return func(h *Handler) { h.maxMessageSize = n }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) { h.logger = logger }
}

// NewHandler returns a handler delivering events to l.
func NewHandler(l Listener, opts ...Option) *Handler {
	h := &Handler{
		listener:       l,
		paths:          map[string]struct{}{"/": {}},
		maxMessageSize: DefaultMaxMessageSize,
		logger:         slog.Default().With("component", "websocket"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Serve answers the opening handshake. A request without Sec-WebSocket-Key
// gets 400, one for a path outside the upgrade set gets 404.
func (h *Handler) Serve(req *protocol.Request) (*protocol.Response, error) {
	key := strings.TrimSpace(req.Header.Get("Sec-WebSocket-Key"))
	if key == "" {
		return protocol.NewResponse(protocol.StatusBadRequest), nil
	}
	path, _, _ := strings.Cut(req.Path, "?")
	if _, ok := h.paths[path]; !ok {
		return protocol.NewResponse(protocol.StatusNotFound), nil
	}

	resp := protocol.NewResponse(protocol.StatusSwitchingProtocol)
	resp.Header.Set("Sec-WebSocket-Accept", AcceptKey(key))
	resp.Header.Set("Upgrade", "websocket")
	resp.Header.Set("Connection", "Upgrade")
	resp.Upgrade = h.run
	return resp, nil
}

// run owns the session until the peer closes it or the stream fails.
func (h *Handler) run(sess *session.Session) error {
	sess.SetReadTimeout(0)

	if h.maskOutbound {
		var mask [4]byte
		if _, err := rand.Read(mask[:]); err != nil {
			return fmt.Errorf("websocket: generating mask: %w", err)
		}
		sess.SetOutboundMask(mask)
	}

	c := newConn(sess, h.maskOutbound)
	h.logger.Debug("connection upgraded", "session", sess.ID())

	err := h.readLoop(c)
	c.markClosed()
	h.listener.OnClose(c, err)

	if err != nil {
		h.logger.Debug("connection closed", "session", sess.ID(), "error", err)
	}
	return err
}

func (h *Handler) readLoop(c *Conn) (err error) {
	defer func() {
		if err != nil {
			c.sendClose(closeCode(err))
		}
	}()

	h.listener.OnOpen(c)

	r := c.sess.Reader()
	var (
		msg   []byte
		msgOp Opcode
		open  bool
	)
	for {
		f, err := ReadFrame(r, h.maxMessageSize)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return io.ErrUnexpectedEOF
			}
			return err
		}

		if f.Opcode.IsControl() {
			switch f.Opcode {
			case OpClose:
				c.send(OpClose, closeReply(f.Payload))
				return nil
			case OpPing:
				if err := c.send(OpPong, f.Payload); err != nil {
					return err
				}
			case OpPong:
				h.listener.OnPong(c, f.Payload)
			}
			continue
		}

		if f.Opcode == OpContinuation {
			if !open {
				return fmt.Errorf("%w: continuation without message", ErrProtocolViolation)
			}
		} else {
			if open {
				return fmt.Errorf("%w: new message before final fragment", ErrProtocolViolation)
			}
			msgOp, open = f.Opcode, true
		}

		if h.maxMessageSize > 0 && int64(len(msg)+len(f.Payload)) > h.maxMessageSize {
			return ErrFrameTooLarge
		}
		msg = append(msg, f.Payload...)
		if !f.Fin {
			continue
		}

		switch msgOp {
		case OpText:
			if !utf8.Valid(msg) {
				return errInvalidUTF8
			}
			h.listener.OnText(c, string(msg))
		case OpBinary:
			h.listener.OnBinary(c, msg)
		}
		msg, open = nil, false
	}
}

// closeReply echoes the status code of a close frame.
func closeReply(payload []byte) []byte {
	if len(payload) >= 2 {
		return payload[:2]
	}
	return nil
}

func closeCode(err error) int {
	switch {
	case errors.Is(err, ErrFrameTooLarge):
		return CloseMessageTooLarge
	case errors.Is(err, errInvalidUTF8):
		return CloseInvalidPayload
	case errors.Is(err, ErrProtocolViolation):
		return CloseProtocolError
	default:
		return CloseGoingAway
	}
}
