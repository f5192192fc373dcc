package protocol

import "errors"

// Codec errors.
var (
	// ErrEndOfStream reports that the peer closed the stream before sending
	// another request. It ends a keep-alive loop and is not a failure.
	ErrEndOfStream = errors.New("protocol: end of stream")

	ErrTruncatedBody        = errors.New("protocol: truncated body")
	ErrPrematureEOF         = errors.New("protocol: premature end of content")
	ErrMalformedMultipart   = errors.New("protocol: malformed multipart body")
	ErrMalformedRequestLine = errors.New("protocol: malformed request line")
	ErrMalformedHeader      = errors.New("protocol: malformed header")
	ErrBodyTooLarge         = errors.New("protocol: body too large")
	ErrLineTooLong          = errors.New("protocol: line too long")
	ErrNoSession            = errors.New("protocol: response has no session")
)
