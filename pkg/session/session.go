package session

import (
	"bufio"
	"errors"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultBufferSize is the size of the read and write buffers of a Session.
const DefaultBufferSize = 8 << 10

// ErrClosed is returned by Write once the session has been closed.
var ErrClosed = errors.New("session: closed")

// ids is the process-wide session id counter.
var ids atomic.Uint64

// Session is the state of one accepted connection.
type Session struct {
	id   uint64
	conn net.Conn

	r *bufio.Reader
	w *bufio.Writer

	// readTimeout is a time.Duration; zero disables the inactivity timeout.
	readTimeout atomic.Int64

	writeMu sync.Mutex
	closed  bool

	// Outbound WebSocket mask, set once at upgrade time when the
	// handler's policy masks server frames.
	mask   [4]byte
	masked bool

	closeOnce sync.Once
	closeErr  error
}

// New wraps conn in a Session with the next monotonic id.
func New(conn net.Conn) *Session {
	s := &Session{
		id:   ids.Add(1),
		conn: conn,
	}
	s.r = bufio.NewReaderSize(deadlineReader{s}, DefaultBufferSize)
	s.w = bufio.NewWriterSize(conn, DefaultBufferSize)
	return s
}

// ID returns the session id.
func (s *Session) ID() uint64 {
	return s.id
}

// Conn returns the underlying connection.
func (s *Session) Conn() net.Conn {
	return s.conn
}

// RemoteAddr returns the peer address.
func (s *Session) RemoteAddr() string {
	if a := s.conn.RemoteAddr(); a != nil {
		return a.String()
	}
	return ""
}

// Reader returns the buffered input stream. Only the goroutine that owns the
// connection may read from it.
func (s *Session) Reader() *bufio.Reader {
	return s.r
}

// SetReadTimeout sets the inactivity timeout applied to every read.
func (s *Session) SetReadTimeout(d time.Duration) {
	if d < 0 {
		d = 0
	}
	s.readTimeout.Store(int64(d))
}

// ReadTimeout returns the current inactivity timeout.
func (s *Session) ReadTimeout() time.Duration {
	return time.Duration(s.readTimeout.Load())
}

// Write runs fn with exclusive access to the output stream and flushes it
// afterwards.
func (s *Session) Write(fn func(w *bufio.Writer) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if err := fn(s.w); err != nil {
		return err
	}
	return s.w.Flush()
}

// SetOutboundMask stores the key used to mask outbound WebSocket frames.
func (s *Session) SetOutboundMask(mask [4]byte) {
	s.writeMu.Lock()
	s.mask = mask
	s.masked = true
	s.writeMu.Unlock()
}

// OutboundMask returns the outbound mask and whether one was set.
func (s *Session) OutboundMask() ([4]byte, bool) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.mask, s.masked
}

// Close closes the connection. It is safe to call more than once; only the
// first call closes the socket.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.writeMu.Lock()
		s.closed = true
		s.writeMu.Unlock()
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}

// String implements fmt.Stringer.
func (s *Session) String() string {
	return "session " + strconv.FormatUint(s.id, 10)
}

// deadlineReader re-arms the read deadline before each read from the socket.
type deadlineReader struct {
	s *Session
}

func (d deadlineReader) Read(p []byte) (int, error) {
	if t := d.s.ReadTimeout(); t > 0 {
		_ = d.s.conn.SetReadDeadline(time.Now().Add(t))
	} else {
		_ = d.s.conn.SetReadDeadline(time.Time{})
	}
	return d.s.conn.Read(p)
}
