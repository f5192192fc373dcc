package websocket

import (
	"bufio"
	"encoding/binary"
	"errors"
	"sync"

	"github.com/vango-dev/corehttp/pkg/session"
)

// Close status codes.
const (
	CloseNormal          = 1000
	CloseGoingAway       = 1001
	CloseProtocolError   = 1002
	CloseInvalidPayload  = 1007
	CloseMessageTooLarge = 1009
)

// Conn is an upgraded connection. Send methods are safe for concurrent use.
type Conn struct {
	sess   *session.Session
	masked bool

	closeOnce sync.Once
	closed    chan struct{}
}

func newConn(sess *session.Session, masked bool) *Conn {
	return &Conn{
		sess:   sess,
		masked: masked,
		closed: make(chan struct{}),
	}
}

// Session returns the underlying session.
func (c *Conn) Session() *session.Session { return c.sess }

// ID returns the session id.
func (c *Conn) ID() uint64 { return c.sess.ID() }

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() string { return c.sess.RemoteAddr() }

// SendText sends a text message in one frame.
func (c *Conn) SendText(text string) error {
	return c.send(OpText, []byte(text))
}

// SendBinary sends a binary message in one frame.
func (c *Conn) SendBinary(data []byte) error {
	return c.send(OpBinary, data)
}

// SendPing sends a ping. The peer answers with a pong carrying the same
// payload, which is delivered to Listener.OnPong.
func (c *Conn) SendPing(payload []byte) error {
	if len(payload) > maxControlPayload {
		return ErrFrameTooLarge
	}
	return c.send(OpPing, payload)
}

// Close sends a close frame with the given status code and closes the
// session.
func (c *Conn) Close(code int) error {
	err := c.sendClose(code)
	c.markClosed()
	if cerr := c.sess.Close(); err == nil {
		err = cerr
	}
	return err
}

func (c *Conn) sendClose(code int) error {
	var payload [2]byte
	binary.BigEndian.PutUint16(payload[:], uint16(code))
	return c.send(OpClose, payload[:])
}

func (c *Conn) send(op Opcode, payload []byte) error {
	select {
	case <-c.closed:
		return ErrConnClosed
	default:
	}

	f := Frame{Fin: true, Opcode: op, Payload: payload}
	if c.masked {
		f.Mask, f.Masked = c.sess.OutboundMask()
	}
	err := c.sess.Write(func(w *bufio.Writer) error {
		return WriteFrame(w, f)
	})
	if errors.Is(err, session.ErrClosed) {
		return ErrConnClosed
	}
	return err
}

func (c *Conn) markClosed() {
	c.closeOnce.Do(func() { close(c.closed) })
}
