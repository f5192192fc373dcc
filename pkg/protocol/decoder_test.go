package protocol

import (
	"bufio"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, raw string) (*Request, error) {
	t.Helper()
	var d Decoder
	req := NewRequest()
	err := d.Decode(bufio.NewReader(strings.NewReader(raw)), req)
	return req, err
}

func TestDecodeRequestLine(t *testing.T) {
	tests := []struct {
		line   string
		method string
		path   string
		proto  string
	}{
		{"GET / HTTP/1.1", "GET", "/", "HTTP/1.1"},
		{"DELETE /items/42 HTTP/1.0", "DELETE", "/items/42", "HTTP/1.0"},
		{"OPTIONS * HTTP/1.1", "OPTIONS", "*", "HTTP/1.1"},
		{"PATCH /a/b/c?x=1 HTTP/2", "PATCH", "/a/b/c?x=1", "HTTP/2"},
	}
	for _, tc := range tests {
		t.Run(tc.line, func(t *testing.T) {
			req, err := decode(t, tc.line+"\r\n\r\n")
			require.NoError(t, err)
			assert.Equal(t, tc.method, req.Method)
			assert.Equal(t, tc.path, req.Path)
			assert.Equal(t, tc.proto, req.Protocol)
			assert.Equal(t, tc.line, strings.Join([]string{req.Method, req.Path, req.Protocol}, " "))
		})
	}
}

func TestDecodeMalformedRequestLine(t *testing.T) {
	for _, line := range []string{
		"GET /",
		"GET /a b HTTP/1.1",
		"GET  HTTP/1.1",
		"GARBAGE",
	} {
		t.Run(line, func(t *testing.T) {
			_, err := decode(t, line+"\r\n\r\n")
			assert.ErrorIs(t, err, ErrMalformedRequestLine)
		})
	}
}

func TestDecodeEndOfStream(t *testing.T) {
	_, err := decode(t, "")
	assert.ErrorIs(t, err, ErrEndOfStream)

	_, err = decode(t, "\r\n\r\n")
	assert.ErrorIs(t, err, ErrEndOfStream)
}

func TestDecodeSkipsLeadingBlankLines(t *testing.T) {
	req, err := decode(t, "\r\n\r\nGET /x HTTP/1.1\r\n\r\n")
	require.NoError(t, err)
	assert.Equal(t, "/x", req.Path)
}

func TestDecodeHeaders(t *testing.T) {
	req, err := decode(t, "GET / HTTP/1.1\r\n"+
		"Host: example.com\r\n"+
		"X-Tight:value\r\n"+
		"X-Padded:   spaced\r\n"+
		"host: override\r\n"+
		"\r\n")
	require.NoError(t, err)

	assert.Equal(t, "override", req.Header.Get("Host"))
	assert.Equal(t, "value", req.Header.Get("x-tight"))
	assert.Equal(t, "  spaced", req.Header.Get("X-Padded"))
	assert.Equal(t, 3, req.Header.Len())
}

func TestDecodeMalformedHeader(t *testing.T) {
	_, err := decode(t, "GET / HTTP/1.1\r\nno colon here\r\n\r\n")
	assert.ErrorIs(t, err, ErrMalformedHeader)
}

func TestDecodeHeadersCutShort(t *testing.T) {
	_, err := decode(t, "GET / HTTP/1.1\r\nHost: a\r\n")
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestDecodeQuery(t *testing.T) {
	req, err := decode(t, "GET /s?a=1&b=2 HTTP/1.1\r\n\r\n")
	require.NoError(t, err)
	assert.Equal(t, "/s", req.Path)
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, req.Params)
}

func TestDecodeQueryPercentDecoding(t *testing.T) {
	req, err := decode(t, "HEAD /s?q=hello+world&name=J%C3%BCrgen&flag&&bad=%zz HTTP/1.1\r\n\r\n")
	require.NoError(t, err)
	assert.Equal(t, "hello world", req.Param("q"))
	assert.Equal(t, "Jürgen", req.Param("name"))
	assert.Equal(t, "%zz", req.Param("bad"))

	v, ok := req.Params["flag"]
	assert.True(t, ok)
	assert.Equal(t, "", v)
	assert.Len(t, req.Params, 4)
}

func TestDecodeQueryIgnoredForOtherMethods(t *testing.T) {
	req, err := decode(t, "DELETE /s?a=1 HTTP/1.1\r\n\r\n")
	require.NoError(t, err)
	assert.Equal(t, "/s?a=1", req.Path)
	assert.Empty(t, req.Params)
}

func TestDecodeCookies(t *testing.T) {
	req, err := decode(t, "GET / HTTP/1.1\r\nCookie: x=1; y=2\r\n\r\n")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"x": "1", "y": "2"}, req.Cookies)
	assert.Equal(t, "2", req.Cookie("y"))
}

func TestDecodeFormBody(t *testing.T) {
	req, err := decode(t, "POST /f HTTP/1.1\r\n"+
		"Content-Type: application/x-www-form-urlencoded\r\n"+
		"Content-Length: 7\r\n"+
		"\r\n"+
		"a=1&b=2")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, req.Params)
	assert.Nil(t, req.Body)
}

func TestDecodeRawBody(t *testing.T) {
	req, err := decode(t, "PUT /doc HTTP/1.1\r\n"+
		"Content-Type: application/json\r\n"+
		"Content-Length: 13\r\n"+
		"\r\n"+
		`{"id":1,"x":}`)
	require.NoError(t, err)
	assert.Equal(t, `{"id":1,"x":}`, string(req.Body))
	assert.Empty(t, req.Params)
}

func TestDecodeBodyWithoutLength(t *testing.T) {
	req, err := decode(t, "POST /empty HTTP/1.1\r\n\r\n")
	require.NoError(t, err)
	assert.Nil(t, req.Body)
}

func TestDecodeTruncatedBody(t *testing.T) {
	_, err := decode(t, "POST /f HTTP/1.1\r\nContent-Length: 10\r\n\r\nabc")
	assert.ErrorIs(t, err, ErrTruncatedBody)
}

func TestDecodeBadContentLength(t *testing.T) {
	_, err := decode(t, "POST /f HTTP/1.1\r\nContent-Length: ten\r\n\r\n")
	assert.ErrorIs(t, err, ErrMalformedHeader)

	_, err = decode(t, "POST /f HTTP/1.1\r\nContent-Length: -4\r\n\r\n")
	assert.ErrorIs(t, err, ErrMalformedHeader)
}

func TestDecodeBodyTooLarge(t *testing.T) {
	d := Decoder{MaxBodySize: 4}
	err := d.Decode(bufio.NewReader(strings.NewReader(
		"POST /f HTTP/1.1\r\nContent-Length: 5\r\n\r\n12345")), NewRequest())
	assert.ErrorIs(t, err, ErrBodyTooLarge)
}

func TestDecodeLineTooLong(t *testing.T) {
	d := Decoder{MaxLineSize: 32}
	raw := "GET /" + strings.Repeat("a", 64) + " HTTP/1.1\r\n\r\n"
	err := d.Decode(bufio.NewReaderSize(strings.NewReader(raw), 16), NewRequest())
	assert.ErrorIs(t, err, ErrLineTooLong)
}

func TestDecodeLongLineAcrossBuffer(t *testing.T) {
	path := "/" + strings.Repeat("p", 100)
	var d Decoder
	req := NewRequest()
	err := d.Decode(bufio.NewReaderSize(strings.NewReader("GET "+path+" HTTP/1.1\r\n\r\n"), 16), req)
	require.NoError(t, err)
	assert.Equal(t, path, req.Path)
}

func TestDecodeReusesRequest(t *testing.T) {
	raw := "GET /first?a=1 HTTP/1.1\r\nCookie: c=1\r\nX-One: 1\r\n\r\n" +
		"POST /second HTTP/1.1\r\nContent-Length: 3\r\n\r\nxyz"
	r := bufio.NewReader(strings.NewReader(raw))

	var d Decoder
	req := NewRequest()
	req.RemoteAddr = "10.0.0.1:5555"

	require.NoError(t, d.Decode(r, req))
	assert.Equal(t, "/first", req.Path)
	assert.Equal(t, "1", req.Param("a"))

	require.NoError(t, d.Decode(r, req))
	assert.Equal(t, "POST", req.Method)
	assert.Equal(t, "/second", req.Path)
	assert.Empty(t, req.Params)
	assert.Empty(t, req.Cookies)
	assert.False(t, req.Header.Has("X-One"))
	assert.Equal(t, "xyz", string(req.Body))
	assert.Equal(t, "10.0.0.1:5555", req.RemoteAddr)

	assert.ErrorIs(t, d.Decode(r, req), ErrEndOfStream)
}

type failingReader struct{ err error }

func (f failingReader) Read([]byte) (int, error) { return 0, f.err }

func TestDecodePassesReaderErrors(t *testing.T) {
	boom := errors.New("boom")
	var d Decoder
	err := d.Decode(bufio.NewReader(failingReader{boom}), NewRequest())
	assert.ErrorIs(t, err, boom)
}
