package protocol

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"errors"
	"io"
	"net/http"
	"net/http/httputil"
	"strconv"
	"time"
)

var crlf = []byte("\r\n")

// WriteResponse encodes resp to w and flushes it.
//
// Date and Content-Length (or Transfer-Encoding: chunked) are set on
// resp.Header before the header block is written. For a gzip encoded body of
// known length the header block is written after compression so that
// Content-Length is the compressed size.
func WriteResponse(w io.Writer, resp *Response) error {
	bw, ok := w.(*bufio.Writer)
	if !ok {
		bw = bufio.NewWriter(w)
	}
	if c, ok := resp.Content.(io.Closer); ok {
		defer c.Close()
	}

	proto := resp.Protocol
	if proto == "" {
		proto = DefaultProtocol
	}
	msg := resp.Message
	if msg == "" {
		msg = StatusText(resp.Code)
	}
	bw.WriteString(proto)
	bw.WriteByte(' ')
	bw.WriteString(strconv.Itoa(resp.Code))
	bw.WriteByte(' ')
	bw.WriteString(msg)
	bw.Write(crlf)

	for _, c := range resp.Cookies {
		bw.WriteString("Set-Cookie: ")
		bw.WriteString(c.String())
		bw.Write(crlf)
	}

	gz := resp.Header.Get("Content-Encoding") == "gzip"
	length := resp.ContentLength
	deferHeader := gz && length > 0
	if !deferHeader {
		writeHeader(bw, &resp.Header, length)
	}

	switch {
	case length == 0:
	case length < 0:
		if err := writeChunked(bw, resp.Content, gz); err != nil {
			return err
		}
	case gz:
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if err := copyExact(zw, resp.Content, length); err != nil {
			return err
		}
		if err := zw.Close(); err != nil {
			return err
		}
		writeHeader(bw, &resp.Header, int64(buf.Len()))
		bw.Write(buf.Bytes())
	default:
		if err := copyExact(bw, resp.Content, length); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func writeHeader(bw *bufio.Writer, h *Header, length int64) {
	h.Set("Date", time.Now().UTC().Format(http.TimeFormat))
	if length < 0 {
		h.Del("Content-Length")
		h.Set("Transfer-Encoding", "chunked")
	} else {
		h.Set("Content-Length", strconv.FormatInt(length, 10))
	}
	h.Each(func(key, value string) {
		bw.WriteString(key)
		bw.WriteString(": ")
		bw.WriteString(value)
		bw.Write(crlf)
	})
	bw.Write(crlf)
}

// writeChunked streams content until EOF as chunks, compressing first when
// gz is set. The gzip stream is finished before the last chunk.
func writeChunked(bw *bufio.Writer, content io.Reader, gz bool) error {
	cw := httputil.NewChunkedWriter(bw)
	if content != nil {
		var dst io.Writer = cw
		var zw *gzip.Writer
		if gz {
			zw = gzip.NewWriter(cw)
			dst = zw
		}
		if _, err := io.Copy(dst, content); err != nil {
			return err
		}
		if zw != nil {
			if err := zw.Close(); err != nil {
				return err
			}
		}
	}
	// Close writes the zero-length chunk; the trailer section is empty.
	if err := cw.Close(); err != nil {
		return err
	}
	_, err := bw.Write(crlf)
	return err
}

func copyExact(dst io.Writer, src io.Reader, n int64) error {
	if src == nil {
		return ErrPrematureEOF
	}
	if _, err := io.CopyN(dst, src, n); err != nil {
		if errors.Is(err, io.EOF) {
			return ErrPrematureEOF
		}
		return err
	}
	return nil
}
