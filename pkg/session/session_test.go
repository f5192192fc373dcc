package session

import (
	"bufio"
	"errors"
	"io"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pipe(t *testing.T) (*Session, net.Conn) {
	t.Helper()
	server, client := net.Pipe()
	t.Cleanup(func() {
		server.Close()
		client.Close()
	})
	return New(server), client
}

func TestSessionIDsAreMonotonic(t *testing.T) {
	a, _ := pipe(t)
	b, _ := pipe(t)
	assert.Greater(t, b.ID(), a.ID())
	assert.Equal(t, "session "+itoa(a.ID()), a.String())
}

func TestSessionWriteFlushes(t *testing.T) {
	s, client := pipe(t)

	done := make(chan error, 1)
	go func() {
		done <- s.Write(func(w *bufio.Writer) error {
			_, err := w.WriteString("hello")
			return err
		})
	}()

	buf := make([]byte, 5)
	_, err := io.ReadFull(client, buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf))
	require.NoError(t, <-done)
}

func TestSessionWriteCallbackError(t *testing.T) {
	s, _ := pipe(t)
	boom := errors.New("boom")
	err := s.Write(func(w *bufio.Writer) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestSessionWritesAreSerialized(t *testing.T) {
	s, client := pipe(t)

	const writers = 8
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Write(func(w *bufio.Writer) error {
				_, err := w.WriteString("abcd")
				return err
			})
		}()
	}

	buf := make([]byte, 4*writers)
	_, err := io.ReadFull(client, buf)
	require.NoError(t, err)
	wg.Wait()
	for i := 0; i < writers; i++ {
		assert.Equal(t, "abcd", string(buf[i*4:i*4+4]))
	}
}

func TestSessionCloseIsIdempotent(t *testing.T) {
	s, _ := pipe(t)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	err := s.Write(func(w *bufio.Writer) error { return nil })
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSessionReadTimeout(t *testing.T) {
	s, _ := pipe(t)
	s.SetReadTimeout(20 * time.Millisecond)
	assert.Equal(t, 20*time.Millisecond, s.ReadTimeout())

	_, err := s.Reader().ReadByte()
	require.Error(t, err)
	var ne net.Error
	require.True(t, errors.As(err, &ne))
	assert.True(t, ne.Timeout())
}

func TestSessionReadTimeoutDisabled(t *testing.T) {
	s, client := pipe(t)
	s.SetReadTimeout(-time.Second)
	assert.Zero(t, s.ReadTimeout())

	go func() {
		time.Sleep(30 * time.Millisecond)
		client.Write([]byte{'x'})
	}()
	b, err := s.Reader().ReadByte()
	require.NoError(t, err)
	assert.Equal(t, byte('x'), b)
}

func TestSessionOutboundMask(t *testing.T) {
	s, _ := pipe(t)
	_, ok := s.OutboundMask()
	assert.False(t, ok)

	s.SetOutboundMask([4]byte{1, 2, 3, 4})
	mask, ok := s.OutboundMask()
	assert.True(t, ok)
	assert.Equal(t, [4]byte{1, 2, 3, 4}, mask)
}

func itoa(v uint64) string {
	return strconv.FormatUint(v, 10)
}
