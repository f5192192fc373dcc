package server

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/corehttp/pkg/protocol"
	"github.com/vango-dev/corehttp/pkg/router"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startServer(t *testing.T, h router.Handler, mutate ...func(*ServerConfig)) *Server {
	t.Helper()
	cfg := DefaultServerConfig()
	cfg.Address = "127.0.0.1:0"
	cfg.Logger = quietLogger()
	for _, m := range mutate {
		m(cfg)
	}
	s := New(cfg)
	if h != nil {
		s.SetHandler(h)
	}
	require.NoError(t, s.Connect())
	t.Cleanup(func() { s.Disconnect() })
	return s
}

func hello() router.Handler {
	return router.HandlerFunc(func(req *protocol.Request) (*protocol.Response, error) {
		return protocol.NewContentResponse(protocol.StatusOK, "text/plain", []byte("hello "+req.Path)), nil
	})
}

func dial(t *testing.T, s *Server) (net.Conn, *bufio.Reader) {
	t.Helper()
	c, err := net.Dial("tcp", s.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	c.SetDeadline(time.Now().Add(5 * time.Second))
	return c, bufio.NewReader(c)
}

func readResponse(t *testing.T, r *bufio.Reader) (*http.Response, string) {
	t.Helper()
	resp, err := http.ReadResponse(r, nil)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	return resp, string(body)
}

func expectEOF(t *testing.T, r *bufio.Reader) {
	t.Helper()
	_, err := r.ReadByte()
	assert.ErrorIs(t, err, io.EOF)
}

func TestSingleExchangeThenClose(t *testing.T) {
	s := startServer(t, hello())
	c, r := dial(t, s)

	_, err := io.WriteString(c, "GET /a HTTP/1.1\r\nHost: x\r\n\r\n")
	require.NoError(t, err)

	resp, body := readResponse(t, r)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "hello /a", body)
	assert.True(t, resp.Close)
	expectEOF(t, r)

	assert.Eventually(t, func() bool { return s.ConnectionCount() == 0 }, time.Second, 10*time.Millisecond)
}

func TestKeepAlive(t *testing.T) {
	s := startServer(t, hello())
	c, r := dial(t, s)

	for _, path := range []string{"/one", "/two", "/three"} {
		_, err := io.WriteString(c, "GET "+path+" HTTP/1.1\r\nConnection: keep-alive\r\n\r\n")
		require.NoError(t, err)
		resp, body := readResponse(t, r)
		assert.False(t, resp.Close)
		assert.Equal(t, "keep-alive", resp.Header.Get("Connection"))
		assert.Equal(t, "hello "+path, body)
	}

	_, err := io.WriteString(c, "GET /last HTTP/1.1\r\n\r\n")
	require.NoError(t, err)
	_, body := readResponse(t, r)
	assert.Equal(t, "hello /last", body)
	expectEOF(t, r)

	m := s.Metrics()
	assert.Equal(t, int64(4), m.Requests)
}

func TestKeepAliveIsLiteral(t *testing.T) {
	s := startServer(t, hello())
	c, r := dial(t, s)

	_, err := io.WriteString(c, "GET / HTTP/1.1\r\nConnection: Keep-Alive\r\n\r\n")
	require.NoError(t, err)
	resp, _ := readResponse(t, r)
	assert.True(t, resp.Close)
	expectEOF(t, r)
}

func TestInternalErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler router.HandlerFunc
		panics  int64
	}{
		{
			name: "error",
			handler: func(*protocol.Request) (*protocol.Response, error) {
				return nil, errors.New("boom")
			},
		},
		{
			name: "panic",
			handler: func(*protocol.Request) (*protocol.Response, error) {
				panic("boom")
			},
			panics: 1,
		},
		{
			name: "nil response",
			handler: func(*protocol.Request) (*protocol.Response, error) {
				return nil, nil
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := startServer(t, tt.handler)
			c, r := dial(t, s)

			_, err := io.WriteString(c, "GET / HTTP/1.1\r\nConnection: keep-alive\r\n\r\n")
			require.NoError(t, err)
			resp, _ := readResponse(t, r)
			assert.Equal(t, 500, resp.StatusCode)
			assert.True(t, resp.Close)
			expectEOF(t, r)

			m := s.Metrics()
			assert.Equal(t, int64(1), m.HandlerErrors)
			assert.Equal(t, tt.panics, m.HandlerPanics)
		})
	}
}

func TestMalformedRequest(t *testing.T) {
	s := startServer(t, hello())
	c, r := dial(t, s)

	_, err := io.WriteString(c, "NONSENSE\r\n\r\n")
	require.NoError(t, err)
	resp, _ := readResponse(t, r)
	assert.Equal(t, 500, resp.StatusCode)
	expectEOF(t, r)
	assert.Equal(t, int64(1), s.Metrics().DecodeErrors)
}

func TestIdleTimeoutClosesQuietly(t *testing.T) {
	s := startServer(t, hello(), func(cfg *ServerConfig) {
		cfg.SocketTimeout = 50 * time.Millisecond
	})
	_, r := dial(t, s)

	expectEOF(t, r)
	assert.Zero(t, s.Metrics().DecodeErrors)
}

func TestDefaultHandlerIsNotFound(t *testing.T) {
	s := startServer(t, nil)
	c, r := dial(t, s)

	_, err := io.WriteString(c, "GET / HTTP/1.1\r\n\r\n")
	require.NoError(t, err)
	resp, _ := readResponse(t, r)
	assert.Equal(t, 404, resp.StatusCode)
}

func TestConnectionsRegistry(t *testing.T) {
	block := make(chan struct{})
	entered := make(chan struct{}, 1)
	s := startServer(t, router.HandlerFunc(func(*protocol.Request) (*protocol.Response, error) {
		entered <- struct{}{}
		<-block
		return protocol.NewResponse(protocol.StatusOK), nil
	}))

	c, r := dial(t, s)
	_, err := io.WriteString(c, "GET / HTTP/1.1\r\n\r\n")
	require.NoError(t, err)
	<-entered

	infos := s.Connections()
	require.Len(t, infos, 1)
	assert.Equal(t, StateDispatching, infos[0].State)
	assert.Equal(t, int64(1), infos[0].Requests)
	assert.Equal(t, c.LocalAddr().String(), infos[0].RemoteAddr)

	close(block)
	readResponse(t, r)
	assert.Eventually(t, func() bool { return s.ConnectionCount() == 0 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(1), s.Metrics().TotalConnections)
	assert.Equal(t, int64(1), s.Metrics().PeakConnections)
}

func TestDisconnect(t *testing.T) {
	s := startServer(t, hello())
	addr := s.Addr().String()
	_, r := dial(t, s)
	assert.Eventually(t, func() bool { return s.ConnectionCount() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, s.Disconnect())
	assert.False(t, s.Connected())
	assert.Nil(t, s.Addr())
	assert.Zero(t, s.ConnectionCount())
	expectEOF(t, r)

	_, err := net.DialTimeout("tcp", addr, 100*time.Millisecond)
	assert.Error(t, err)

	// Idempotent.
	require.NoError(t, s.Disconnect())
}

func TestConnectTwice(t *testing.T) {
	s := startServer(t, hello())
	assert.ErrorIs(t, s.Connect(), ErrAlreadyStarted)
}

func TestBindError(t *testing.T) {
	s := startServer(t, hello())

	cfg := DefaultServerConfig()
	cfg.Address = s.Addr().String()
	cfg.Logger = quietLogger()
	other := New(cfg)

	err := other.Connect()
	var bindErr *BindError
	require.ErrorAs(t, err, &bindErr)
	assert.Equal(t, cfg.Address, bindErr.Addr)
	assert.False(t, other.Connected())
}

func TestRun(t *testing.T) {
	cfg := DefaultServerConfig()
	cfg.Address = "127.0.0.1:0"
	cfg.Logger = quietLogger()
	s := New(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	assert.Eventually(t, s.Connected, time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
	assert.False(t, s.Connected())
}

func TestServeListener(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := New(&ServerConfig{Logger: quietLogger()})
	s.SetHandler(hello())
	require.NoError(t, s.Serve(ln))
	t.Cleanup(func() { s.Disconnect() })

	assert.Equal(t, ln.Addr().String(), s.Addr().String())
	c, r := dial(t, s)
	_, err = io.WriteString(c, "GET /x HTTP/1.1\r\n\r\n")
	require.NoError(t, err)
	_, body := readResponse(t, r)
	assert.Equal(t, "hello /x", body)
}

func TestPersist(t *testing.T) {
	tests := []struct {
		name     string
		reqConn  string
		respConn string
		want     bool
		header   string
	}{
		{"no header", "", "", false, "close"},
		{"keep-alive", "keep-alive", "", true, "keep-alive"},
		{"mixed case", "Keep-Alive", "", false, "close"},
		{"close", "close", "", false, "close"},
		{"handler closes", "keep-alive", "close", false, "close"},
		{"handler keeps", "", "keep-alive", true, "keep-alive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := protocol.NewRequest()
			if tt.reqConn != "" {
				req.Header.Set("Connection", tt.reqConn)
			}
			resp := protocol.NewResponse(protocol.StatusOK)
			if tt.respConn != "" {
				resp.Header.Set("Connection", tt.respConn)
			}
			assert.Equal(t, tt.want, persist(req, resp))
			assert.Equal(t, tt.header, resp.Header.Get("Connection"))
		})
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "AWAITING_REQUEST", StateAwaitingRequest.String())
	assert.Equal(t, "UPGRADED", StateUpgraded.String())
	assert.Equal(t, "UNKNOWN", State(42).String())

	text, err := StateClosed.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "CLOSED", string(text))
}

func TestConfigDefaults(t *testing.T) {
	cfg := (&ServerConfig{SocketTimeout: -1, AcceptRate: 10}).withDefaults()
	assert.Equal(t, "0.0.0.0:8080", cfg.Address)
	assert.Zero(t, cfg.SocketTimeout)
	assert.Equal(t, 1, cfg.AcceptBurst)
	assert.Equal(t, int64(32<<20), cfg.MaxBodySize)
	assert.Equal(t, 64<<10, cfg.MaxLineSize)
	assert.NotNil(t, cfg.UploadStore)
	assert.IsType(t, TCPProvider{}, cfg.Provider)
	assert.IsType(t, GoExecutor{}, cfg.Executor)
	assert.NotNil(t, cfg.Logger)

	assert.Equal(t, 5*time.Second, (*ServerConfig)(nil).withDefaults().SocketTimeout)
}

func TestHandlerErrorMessages(t *testing.T) {
	err := &HandlerError{ConnID: 3, Err: ErrNilResponse}
	assert.ErrorIs(t, err, ErrNilResponse)
	assert.True(t, strings.Contains(err.Error(), "connection 3"))

	panicErr := &HandlerError{ConnID: 4, Panic: "bad"}
	assert.Contains(t, panicErr.Error(), "panic")
}
