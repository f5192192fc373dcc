package websocket

import "errors"

var (
	// ErrProtocolViolation is returned when a peer sends a frame that breaks
	// the framing rules, such as reserved bits being set.
	ErrProtocolViolation = errors.New("websocket: protocol violation")

	// ErrFrameTooLarge is returned when a frame or reassembled message
	// exceeds the configured limit.
	ErrFrameTooLarge = errors.New("websocket: message too large")

	// ErrConnClosed is returned when sending on a closed connection.
	ErrConnClosed = errors.New("websocket: connection closed")
)
