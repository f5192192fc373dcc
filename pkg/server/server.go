package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/vango-dev/corehttp/pkg/protocol"
	"github.com/vango-dev/corehttp/pkg/router"
	"github.com/vango-dev/corehttp/pkg/session"
)

// Server accepts connections and serves HTTP on them.
type Server struct {
	config  *ServerConfig
	decoder protocol.Decoder
	limiter *rate.Limiter
	metrics metricsCollector
	logger  *slog.Logger

	// mu guards everything below.
	mu            sync.Mutex
	handler       router.Handler
	executor      Executor
	provider      ListenerProvider
	socketTimeout time.Duration
	listener      net.Listener
	cancel        context.CancelFunc
	acceptDone    chan struct{}
	acceptErr     error
	conns         map[uint64]*conn
}

// New creates a new Server with the given configuration.
func New(config *ServerConfig) *Server {
	config = config.withDefaults()

	s := &Server{
		config: config,
		decoder: protocol.Decoder{
			Store:       config.UploadStore,
			MaxBodySize: config.MaxBodySize,
			MaxLineSize: config.MaxLineSize,
		},
		logger:        config.Logger,
		handler:       router.New(),
		executor:      config.Executor,
		provider:      config.Provider,
		socketTimeout: config.SocketTimeout,
		conns:         make(map[uint64]*conn),
	}
	if config.AcceptRate > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(config.AcceptRate), config.AcceptBurst)
	}
	return s
}

// SetHandler sets the handler for all requests.
func (s *Server) SetHandler(h router.Handler) {
	s.mu.Lock()
	s.handler = h
	s.mu.Unlock()
}

// Handler returns the request handler.
func (s *Server) Handler() router.Handler {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handler
}

// SetSocketTimeout sets the read inactivity timeout for connections
// accepted from now on. Zero disables it.
func (s *Server) SetSocketTimeout(d time.Duration) {
	s.mu.Lock()
	s.socketTimeout = d
	s.mu.Unlock()
}

// SocketTimeout returns the read inactivity timeout.
func (s *Server) SocketTimeout() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.socketTimeout
}

// SetExecutor replaces the executor used for connections accepted from now
// on.
func (s *Server) SetExecutor(e Executor) {
	s.mu.Lock()
	s.executor = e
	s.mu.Unlock()
}

// SetListenerProvider replaces the provider used by the next Connect.
func (s *Server) SetListenerProvider(p ListenerProvider) {
	s.mu.Lock()
	s.provider = p
	s.mu.Unlock()
}

// Connect binds the configured address and starts accepting connections in
// the background. A bind failure is returned as *BindError and leaves the
// server disconnected.
func (s *Server) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return ErrAlreadyStarted
	}
	ln, err := s.provider.Listen(s.config.Address)
	if err != nil {
		return &BindError{Addr: s.config.Address, Err: err}
	}
	s.startLocked(ln)
	return nil
}

// Serve starts accepting connections from ln in the background.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return ErrAlreadyStarted
	}
	s.startLocked(ln)
	return nil
}

func (s *Server) startLocked(ln net.Listener) {
	ctx, cancel := context.WithCancel(context.Background())
	s.listener = ln
	s.cancel = cancel
	s.acceptDone = make(chan struct{})
	s.acceptErr = nil

	s.logger.Info("server started", "address", ln.Addr().String())
	go s.acceptLoop(ctx, ln, s.acceptDone)
}

// Run connects and serves until ctx is done or accepting fails.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Connect(); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		s.Disconnect()
		return nil
	case <-s.Done():
		if err := s.Err(); err != nil {
			return err
		}
		return ErrServerClosed
	}
}

// Done returns a channel closed when the accept loop started by the last
// Connect or Serve exits. It returns nil before the first start.
func (s *Server) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acceptDone
}

// Err returns the accept error that stopped the server, if any.
func (s *Server) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acceptErr
}

// Connected reports whether the server is accepting connections.
func (s *Server) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listener != nil
}

// Addr returns the listening address, or nil when disconnected.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Disconnect stops accepting, closes every live connection, and waits for
// the accept loop to exit. It is safe to call more than once.
func (s *Server) Disconnect() error {
	if done := s.stop(); done != nil {
		<-done
	}
	return nil
}

// stop closes the listener and all connections without waiting.
func (s *Server) stop() <-chan struct{} {
	s.mu.Lock()
	if s.listener == nil {
		s.mu.Unlock()
		return nil
	}
	ln, done := s.listener, s.acceptDone
	s.listener = nil
	s.cancel()
	conns := make([]*conn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	ln.Close()
	for _, c := range conns {
		c.close()
	}
	s.logger.Info("server stopped", "closed_connections", len(conns))
	return done
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener, done chan struct{}) {
	defer close(done)

	for {
		if s.limiter != nil && !s.limiter.Allow() {
			s.metrics.acceptThrottled.Add(1)
			if err := s.limiter.Wait(ctx); err != nil {
				return
			}
		}

		nc, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Error("accept failed", "error", err)
			s.mu.Lock()
			s.acceptErr = err
			s.mu.Unlock()
			s.stop()
			return
		}
		s.accept(ctx, nc)
	}
}

// accept registers nc and submits its handler to the executor.
func (s *Server) accept(ctx context.Context, nc net.Conn) {
	sess := session.New(nc)
	c := newConn(s, sess, ctx)

	s.mu.Lock()
	if s.listener == nil {
		s.mu.Unlock()
		sess.Close()
		return
	}
	sess.SetReadTimeout(s.socketTimeout)
	s.conns[sess.ID()] = c
	executor := s.executor
	s.mu.Unlock()

	s.metrics.opened()
	executor.Execute(c.serve)
}

func (s *Server) remove(c *conn) {
	s.mu.Lock()
	if _, ok := s.conns[c.sess.ID()]; ok {
		delete(s.conns, c.sess.ID())
		s.metrics.closed()
	}
	s.mu.Unlock()
}

// ConnectionCount returns the number of live connections.
func (s *Server) ConnectionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Connections returns a snapshot of the live connections ordered by id.
func (s *Server) Connections() []ConnInfo {
	s.mu.Lock()
	infos := make([]ConnInfo, 0, len(s.conns))
	for _, c := range s.conns {
		infos = append(infos, c.info())
	}
	s.mu.Unlock()

	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// Logger returns the server logger.
func (s *Server) Logger() *slog.Logger {
	return s.logger
}
