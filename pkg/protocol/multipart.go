package protocol

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// readMultipart decodes a multipart body. Each part starts with a delimiter
// line containing the boundary and a block of part headers. File parts carry
// a filename attribute and are framed by their own Content-Length; field
// parts carry their value on the next line. A delimiter ending in "--"
// closes the body.
func (d *Decoder) readMultipart(r *bufio.Reader, req *Request, contentType string) error {
	boundary := attribute(contentType, "boundary")
	if boundary == "" {
		return fmt.Errorf("%w: missing boundary", ErrMalformedMultipart)
	}

	var part Header
	for {
		line, err := readLine(r, d.maxLine())
		if err != nil {
			return truncated(err)
		}
		if line == "" {
			continue
		}
		if !strings.Contains(line, boundary) {
			return fmt.Errorf("%w: expected boundary, got %q", ErrMalformedMultipart, line)
		}
		if strings.HasSuffix(line, "--") {
			return nil
		}

		part.Reset()
		if err := d.readPartHeader(r, &part); err != nil {
			return err
		}
		disposition, ok := part.Lookup("Content-Disposition")
		if !ok {
			return fmt.Errorf("%w: part without Content-Disposition", ErrMalformedMultipart)
		}

		if filename, ok := attributeOK(disposition, "filename"); ok {
			if err := d.readFilePart(r, req, &part, filename); err != nil {
				return err
			}
			continue
		}

		name := attribute(disposition, "name")
		if name == "" {
			return fmt.Errorf("%w: part without name", ErrMalformedMultipart)
		}
		value, err := readLine(r, d.maxLine())
		if err != nil {
			return truncated(err)
		}
		req.Params[name] = value
	}
}

func (d *Decoder) readPartHeader(r *bufio.Reader, h *Header) error {
	for {
		line, err := readLine(r, d.maxLine())
		if err != nil {
			return truncated(err)
		}
		if line == "" {
			return nil
		}
		key, value, err := splitHeaderLine(line)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedMultipart, err)
		}
		h.Set(strings.TrimSpace(key), value)
	}
}

func (d *Decoder) readFilePart(r *bufio.Reader, req *Request, part *Header, filename string) error {
	n, err := contentLength(part)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedMultipart, err)
	}
	if n > d.maxBody() {
		return fmt.Errorf("%w: part %q is %d bytes", ErrBodyTooLarge, filename, n)
	}

	// Browsers send an empty filename for a file input left blank.
	if filename == "" {
		if _, err := io.CopyN(io.Discard, r, n); err != nil {
			return truncated(err)
		}
		return nil
	}

	location, err := d.store().Save(req.Context(), filename, n, io.LimitReader(r, n))
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return ErrTruncatedBody
		}
		return fmt.Errorf("protocol: storing part %q: %w", filename, err)
	}
	req.Params[filename] = location
	return nil
}

// attribute returns the value of a ;-separated key=value attribute with any
// surrounding quotes removed.
func attribute(header, key string) string {
	v, _ := attributeOK(header, key)
	return v
}

func attributeOK(header, key string) (string, bool) {
	for _, param := range strings.Split(header, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(param), "=")
		if !ok || !strings.EqualFold(strings.TrimSpace(k), key) {
			continue
		}
		return unquote(strings.TrimSpace(v)), true
	}
	return "", false
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
