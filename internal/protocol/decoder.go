package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"iter"
	"unicode/utf8"
)

// Decoder yields the frames contained in a byte buffer, one at a time.
//
// A Decoder is single-use: it only moves forward, and once it has returned
// an error every later call to Next returns the same error.
type Decoder struct {
	buf []byte
	off int
	err error
}

// NewDecoder returns a Decoder positioned at the start of buf.
// The buffer is not copied; it must not be modified while decoding.
func NewDecoder(buf []byte) *Decoder {
	return &Decoder{buf: buf}
}

// Offset returns the number of bytes consumed by successfully decoded frames.
// After an ErrTruncated failure, buf[Offset():] is the incomplete frame.
func (d *Decoder) Offset() int {
	return d.off
}

// Remaining returns the number of bytes not yet consumed.
func (d *Decoder) Remaining() int {
	return len(d.buf) - d.off
}

// Next decodes the frame at the cursor and advances past it.
//
// Returns:
//   - Packet: the decoded frame
//   - error: io.EOF once the buffer is exhausted on a frame boundary,
//     or a *DecodeError describing the malformed frame
func (d *Decoder) Next() (Packet, error) {
	if d.err != nil {
		return nil, d.err
	}
	if d.off == len(d.buf) {
		d.err = io.EOF
		return nil, d.err
	}

	pkt, err := d.decodeAt(d.buf[d.off:])
	if err != nil {
		d.err = err
		return nil, err
	}
	d.off += pkt.Len()
	return pkt, nil
}

// All returns the remaining frames as a sequence. Iteration stops after the
// first error, which is yielded with a nil Packet. A clean end of buffer is
// not reported.
func (d *Decoder) All() iter.Seq2[Packet, error] {
	return func(yield func(Packet, error) bool) {
		for {
			pkt, err := d.Next()
			if err == io.EOF { //nolint:errorlint // sentinel returned unwrapped by Next
				return
			}
			if !yield(pkt, err) || err != nil {
				return
			}
		}
	}
}

// Decode decodes every frame in buf.
//
// Returns:
//   - []Packet: frames decoded before any failure, in stream order
//   - error: nil if buf holds only whole frames, otherwise a *DecodeError
func Decode(buf []byte) ([]Packet, error) {
	var pkts []Packet
	for pkt, err := range NewDecoder(buf).All() {
		if err != nil {
			return pkts, err
		}
		pkts = append(pkts, pkt)
	}
	return pkts, nil
}

// decodeAt decodes the single frame starting at b[0].
func (d *Decoder) decodeAt(b []byte) (Packet, error) {
	tag := Type(b[0])

	switch tag {
	case TypeServerAck:
		if len(b) < ServerAckLen {
			return nil, d.fail(tag, ErrTruncated, fmt.Sprintf("need %d bytes, have %d", ServerAckLen, len(b)))
		}
		return &ServerAck{
			AssignedID: b[1],
			UnixTime:   binary.BigEndian.Uint32(b[2:6]),
		}, nil

	case TypeRegistration, TypeStatusUpdate, TypeImage:
		sourceID, field, payload, err := d.deviceFrame(tag, b)
		if err != nil {
			return nil, err
		}
		switch tag {
		case TypeRegistration:
			if !utf8.Valid(payload) {
				return nil, d.fail(tag, ErrInvalidText, "device info is not UTF-8")
			}
			return &Registration{SourceID: sourceID, BatteryLevel: field, Info: string(payload)}, nil
		case TypeStatusUpdate:
			if !utf8.Valid(payload) {
				return nil, d.fail(tag, ErrInvalidText, "status content is not UTF-8")
			}
			return &StatusUpdate{SourceID: sourceID, Priority: field, Content: string(payload)}, nil
		default:
			return &Image{SourceID: sourceID, Reserved: field, Data: bytes.Clone(payload)}, nil
		}

	default:
		return nil, d.fail(tag, ErrUnknownType, "")
	}
}

// deviceFrame reads the shared 10-byte header and slices the payload.
// The payload aliases b.
func (d *Decoder) deviceFrame(tag Type, b []byte) (sourceID uint32, field uint8, payload []byte, err error) {
	if len(b) < HeaderLen {
		return 0, 0, nil, d.fail(tag, ErrTruncated, fmt.Sprintf("header needs %d bytes, have %d", HeaderLen, len(b)))
	}

	sourceID = binary.BigEndian.Uint32(b[1:5])
	field = b[5]
	declared := binary.BigEndian.Uint32(b[6:10])

	if declared > MaxPayloadLen {
		return 0, 0, nil, d.fail(tag, ErrFrameTooLarge, fmt.Sprintf("declared %d bytes, limit %d", declared, MaxPayloadLen))
	}

	total := HeaderLen + int(declared)
	if len(b) < total {
		return 0, 0, nil, d.fail(tag, ErrTruncated, fmt.Sprintf("frame needs %d bytes, have %d", total, len(b)))
	}

	return sourceID, field, b[HeaderLen:total], nil
}

func (d *Decoder) fail(tag Type, sentinel error, detail string) *DecodeError {
	return &DecodeError{
		Offset: d.off,
		Tag:    byte(tag),
		Err:    sentinel,
		Detail: detail,
	}
}
