package protocol

import (
	"errors"
	"fmt"
)

// Domain errors for the protocol package.
//
// Decoding failures are reported as *DecodeError, which unwraps to one of
// these sentinels:
//
//	if errors.Is(err, protocol.ErrTruncated) {
//	    // wait for more bytes
//	}
var (
	// ErrUnknownType is returned when a frame starts with an unrecognised tag.
	ErrUnknownType = errors.New("protocol: unknown packet type")

	// ErrTruncated is returned when the buffer ends before the frame does.
	ErrTruncated = errors.New("protocol: truncated frame")

	// ErrInvalidText is returned when a text payload is not valid UTF-8.
	ErrInvalidText = errors.New("protocol: invalid text payload")

	// ErrFrameTooLarge is returned when a declared payload exceeds MaxPayloadLen.
	ErrFrameTooLarge = errors.New("protocol: frame too large")
)

// DecodeError describes where in a buffer decoding failed.
type DecodeError struct {
	// Offset is the position of the offending frame's tag byte.
	Offset int
	// Tag is the tag byte found at Offset.
	Tag byte
	// Err is one of the package sentinel errors.
	Err error
	// Detail adds context such as the declared and available lengths.
	Detail string
}

func (e *DecodeError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%v at offset %d (tag 0x%02X)", e.Err, e.Offset, e.Tag)
	}
	return fmt.Sprintf("%v at offset %d (tag 0x%02X): %s", e.Err, e.Offset, e.Tag, e.Detail)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
