package server

import (
	"errors"
	"fmt"
)

// Sentinel errors for server lifecycle conditions.
var (
	// ErrServerClosed is returned by Run after Disconnect.
	ErrServerClosed = errors.New("server: closed")

	// ErrAlreadyStarted is returned when Connect is called on a running server.
	ErrAlreadyStarted = errors.New("server: already started")

	// ErrNilResponse is reported when a handler returns neither a response
	// nor an error.
	ErrNilResponse = errors.New("server: handler returned no response")
)

// BindError is returned when the listening socket cannot be created.
type BindError struct {
	Addr string
	Err  error
}

// Error returns the error message.
func (e *BindError) Error() string {
	return fmt.Sprintf("server: bind %s: %v", e.Addr, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *BindError) Unwrap() error {
	return e.Err
}

// HandlerError reports a failed or panicking request handler. The
// connection answers it with 500 and closes.
type HandlerError struct {
	ConnID uint64
	Err    error
	Panic  any
	Stack  []byte
}

// Error returns the error message.
func (e *HandlerError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("server: handler panic on connection %d: %v", e.ConnID, e.Panic)
	}
	return fmt.Sprintf("server: handler failed on connection %d: %v", e.ConnID, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *HandlerError) Unwrap() error {
	return e.Err
}
