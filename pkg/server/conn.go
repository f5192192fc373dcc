package server

import (
	"context"
	"errors"
	"net"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vango-dev/corehttp/pkg/protocol"
	"github.com/vango-dev/corehttp/pkg/session"
)

// State is the state of a connection.
type State int32

const (
	StateAwaitingRequest State = iota
	StateDispatching
	StateWritingResponse
	StateUpgraded
	StateClosed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateAwaitingRequest:
		return "AWAITING_REQUEST"
	case StateDispatching:
		return "DISPATCHING"
	case StateWritingResponse:
		return "WRITING_RESPONSE"
	case StateUpgraded:
		return "UPGRADED"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ConnInfo describes a live connection.
type ConnInfo struct {
	ID         uint64    `json:"id"`
	RemoteAddr string    `json:"remote_addr"`
	State      State     `json:"state"`
	Requests   int64     `json:"requests"`
	Since      time.Time `json:"since"`
}

// conn drives one accepted connection.
type conn struct {
	srv    *Server
	sess   *session.Session
	since  time.Time
	ctx    context.Context
	cancel context.CancelFunc

	state    atomic.Int32
	requests atomic.Int64

	closeOnce sync.Once
}

func newConn(srv *Server, sess *session.Session, parent context.Context) *conn {
	ctx, cancel := context.WithCancel(parent)
	return &conn{
		srv:    srv,
		sess:   sess,
		since:  time.Now(),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (c *conn) setState(s State) { c.state.Store(int32(s)) }

func (c *conn) info() ConnInfo {
	return ConnInfo{
		ID:         c.sess.ID(),
		RemoteAddr: c.sess.RemoteAddr(),
		State:      State(c.state.Load()),
		Requests:   c.requests.Load(),
		Since:      c.since,
	}
}

// serve runs the request loop until the connection closes.
func (c *conn) serve() {
	defer c.close()

	logger := c.srv.logger.With("conn", c.sess.ID(), "remote", c.sess.RemoteAddr())
	logger.Debug("connection accepted")

	req := protocol.NewRequest()
	req.RemoteAddr = c.sess.RemoteAddr()
	req.SetContext(c.ctx)
	decoder := c.srv.decoder

	for {
		c.setState(StateAwaitingRequest)
		if err := decoder.Decode(c.sess.Reader(), req); err != nil {
			switch {
			case errors.Is(err, protocol.ErrEndOfStream):
			case isTimeout(err):
				logger.Debug("connection idle", "error", err)
			case errors.Is(err, net.ErrClosed), errors.Is(err, session.ErrClosed):
			default:
				c.srv.metrics.decodeErrors.Add(1)
				logger.Warn("bad request", "error", err)
				c.write(internalError())
			}
			return
		}
		c.requests.Add(1)
		c.srv.metrics.requests.Add(1)

		c.setState(StateDispatching)
		resp, err := c.dispatch(req)
		keepAlive := false
		if err != nil {
			c.srv.metrics.handlerErrors.Add(1)
			var herr *HandlerError
			if errors.As(err, &herr) && herr.Panic != nil {
				c.srv.metrics.handlerPanics.Add(1)
				logger.Error("internal server error", "error", err, "stack", string(herr.Stack))
			} else {
				logger.Warn("internal server error", "error", err)
			}
			resp = internalError()
		} else {
			keepAlive = persist(req, resp)
		}

		c.setState(StateWritingResponse)
		if err := c.write(resp); err != nil {
			logger.Debug("write failed", "error", err)
			return
		}

		if resp.Upgrade != nil && resp.Code == protocol.StatusSwitchingProtocol {
			c.setState(StateUpgraded)
			c.srv.metrics.upgrades.Add(1)
			if err := resp.Upgrade(c.sess); err != nil {
				logger.Debug("upgraded connection ended", "error", err)
			}
			return
		}
		if !keepAlive {
			return
		}
	}
}

// dispatch calls the handler, turning errors and panics into HandlerError.
func (c *conn) dispatch(req *protocol.Request) (resp *protocol.Response, err error) {
	defer func() {
		if p := recover(); p != nil {
			resp = nil
			err = &HandlerError{ConnID: c.sess.ID(), Panic: p, Stack: debug.Stack()}
		}
	}()

	resp, err = c.srv.Handler().Serve(req)
	if err != nil {
		return nil, &HandlerError{ConnID: c.sess.ID(), Err: err}
	}
	if resp == nil {
		return nil, &HandlerError{ConnID: c.sess.ID(), Err: ErrNilResponse}
	}
	return resp, nil
}

func (c *conn) write(resp *protocol.Response) error {
	resp.Session = c.sess
	return resp.Write()
}

// close releases the socket and removes the connection from the registry.
// It is safe to call more than once.
func (c *conn) close() {
	c.closeOnce.Do(func() {
		c.setState(StateClosed)
		c.cancel()
		c.sess.Close()
		c.srv.remove(c)
		c.srv.logger.Debug("connection closed", "conn", c.sess.ID())
	})
}

// persist decides whether the connection stays open after resp and
// annotates resp accordingly. A Connection header set by the handler wins;
// otherwise only a request asking for keep-alive keeps the connection.
func persist(req *protocol.Request, resp *protocol.Response) bool {
	if v, ok := resp.Header.Lookup("Connection"); ok {
		return v == "keep-alive"
	}
	if req.Header.Get("Connection") == "keep-alive" {
		resp.Header.Set("Connection", "keep-alive")
		return true
	}
	resp.Header.Set("Connection", "close")
	return false
}

func internalError() *protocol.Response {
	resp := protocol.NewResponse(protocol.StatusInternalServerError)
	resp.Header.Set("Connection", "close")
	return resp
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
