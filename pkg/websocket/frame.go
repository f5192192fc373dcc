package websocket

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Opcode identifies the type of a frame.
type Opcode uint8

const (
	OpContinuation Opcode = 0x0
	OpText         Opcode = 0x1
	OpBinary       Opcode = 0x2
	OpClose        Opcode = 0x8
	OpPing         Opcode = 0x9
	OpPong         Opcode = 0xA
)

// String returns the name of the opcode.
func (op Opcode) String() string {
	switch op {
	case OpContinuation:
		return "Continuation"
	case OpText:
		return "Text"
	case OpBinary:
		return "Binary"
	case OpClose:
		return "Close"
	case OpPing:
		return "Ping"
	case OpPong:
		return "Pong"
	default:
		return fmt.Sprintf("Opcode(%d)", uint8(op))
	}
}

// IsControl reports whether op is a control opcode.
func (op Opcode) IsControl() bool {
	return op&0x8 != 0
}

func (op Opcode) valid() bool {
	switch op {
	case OpContinuation, OpText, OpBinary, OpClose, OpPing, OpPong:
		return true
	}
	return false
}

// Header bits.
const (
	finBit  = 0x80
	rsvBits = 0x70
	maskBit = 0x80

	maxControlPayload = 125
)

// Frame is one WebSocket frame.
//
// Wire format:
//
//	byte 0      FIN (1 bit) | RSV1-3 (3 bits) | opcode (4 bits)
//	byte 1      MASK (1 bit) | payload length (7 bits)
//	0, 2 or 8   extended payload length, big-endian (length 126 or 127)
//	0 or 4      masking key
//	payload
type Frame struct {
	Fin     bool
	Opcode  Opcode
	Masked  bool
	Mask    [4]byte
	Payload []byte
}

// ReadFrame reads one frame and unmasks its payload. A payload larger than
// maxPayload fails with ErrFrameTooLarge; zero means no limit.
func ReadFrame(r io.Reader, maxPayload int64) (Frame, error) {
	var f Frame
	var head [2]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return f, err
	}

	if head[0]&rsvBits != 0 {
		return f, fmt.Errorf("%w: reserved bits set", ErrProtocolViolation)
	}
	f.Fin = head[0]&finBit != 0
	f.Opcode = Opcode(head[0] & 0x0F)
	if !f.Opcode.valid() {
		return f, fmt.Errorf("%w: unknown opcode %d", ErrProtocolViolation, f.Opcode)
	}
	f.Masked = head[1]&maskBit != 0

	length := uint64(head[1] & 0x7F)
	switch length {
	case 126:
		var ext [2]byte
		if _, err := io.ReadFull(r, ext[:]); err != nil {
			return f, unexpected(err)
		}
		length = uint64(binary.BigEndian.Uint16(ext[:]))
	case 127:
		var ext [8]byte
		if _, err := io.ReadFull(r, ext[:]); err != nil {
			return f, unexpected(err)
		}
		length = binary.BigEndian.Uint64(ext[:])
		if length>>63 != 0 {
			return f, fmt.Errorf("%w: payload length overflow", ErrProtocolViolation)
		}
	}

	if f.Opcode.IsControl() && (length > maxControlPayload || !f.Fin) {
		return f, fmt.Errorf("%w: invalid control frame", ErrProtocolViolation)
	}
	if maxPayload > 0 && length > uint64(maxPayload) {
		return f, fmt.Errorf("%w: frame of %d bytes", ErrFrameTooLarge, length)
	}

	if f.Masked {
		if _, err := io.ReadFull(r, f.Mask[:]); err != nil {
			return f, unexpected(err)
		}
	}

	f.Payload = make([]byte, length)
	if _, err := io.ReadFull(r, f.Payload); err != nil {
		return f, unexpected(err)
	}
	if f.Masked {
		MaskBytes(f.Mask, 0, f.Payload)
	}
	return f, nil
}

// WriteFrame writes f. When f.Masked is set the payload is masked with
// f.Mask on the wire; f.Payload itself is not modified.
func WriteFrame(w io.Writer, f Frame) error {
	var head [14]byte
	head[0] = byte(f.Opcode) & 0x0F
	if f.Fin {
		head[0] |= finBit
	}

	n := 2
	length := len(f.Payload)
	switch {
	case length < 126:
		head[1] = byte(length)
	case length <= 0xFFFF:
		head[1] = 126
		binary.BigEndian.PutUint16(head[2:], uint16(length))
		n += 2
	default:
		head[1] = 127
		binary.BigEndian.PutUint64(head[2:], uint64(length))
		n += 8
	}

	payload := f.Payload
	if f.Masked {
		head[1] |= maskBit
		copy(head[n:], f.Mask[:])
		n += 4
		payload = make([]byte, length)
		copy(payload, f.Payload)
		MaskBytes(f.Mask, 0, payload)
	}

	if _, err := w.Write(head[:n]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// MaskBytes XORs b in place with mask, starting at mask offset pos, and
// returns the offset following the last byte. Applying it twice with the same
// mask and offset restores the input.
func MaskBytes(mask [4]byte, pos int, b []byte) int {
	for i := range b {
		b[i] ^= mask[(pos+i)&3]
	}
	return (pos + len(b)) & 3
}

func unexpected(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
