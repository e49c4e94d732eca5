package protocol

import (
	"encoding/binary"
	"fmt"
)

// Type is the one-byte tag that opens every frame.
type Type byte

// Packet type tags.
const (
	TypeRegistration Type = 0x00
	TypeServerAck    Type = 0x01
	TypeStatusUpdate Type = 0x02
	TypeImage        Type = 0x03
)

// Frame layout constants.
const (
	// HeaderLen is the fixed header size of registration, status and image
	// frames: tag(1) + source_id(4) + u8 field(1) + payload length(4).
	HeaderLen = 10

	// ServerAckLen is the total size of a server acknowledgement frame:
	// tag(1) + assigned_id(1) + unix seconds(4).
	ServerAckLen = 6

	// MaxPayloadLen bounds the declared payload length of a single frame.
	// Sensor firmware caps packets well below this.
	MaxPayloadLen = 64 * 1024
)

// String returns the packet type name.
func (t Type) String() string {
	switch t {
	case TypeRegistration:
		return "registration"
	case TypeServerAck:
		return "server_ack"
	case TypeStatusUpdate:
		return "status_update"
	case TypeImage:
		return "image"
	default:
		return fmt.Sprintf("unknown(0x%02X)", byte(t))
	}
}

// Packet is one decoded frame. The concrete types are *Registration,
// *ServerAck, *StatusUpdate and *Image.
type Packet interface {
	// Type returns the frame's tag.
	Type() Type
	// Len returns the encoded frame length, header included.
	Len() int
	// Encode returns the frame's wire representation.
	Encode() []byte

	sealed()
}

// Registration is sent by a device that has no id yet.
type Registration struct {
	// SourceID is zero for a fresh device. A non-zero value means the device
	// already holds an id and is retrying.
	SourceID uint32
	// BatteryLevel is the device's battery charge in percent.
	BatteryLevel uint8
	// Info is the device's display name, e.g. "Kitchen Sensor".
	Info string
}

// ServerAck answers a registration with the assigned id and server time.
type ServerAck struct {
	AssignedID uint8
	// UnixTime is the server clock in whole seconds.
	UnixTime uint32
}

// StatusUpdate carries an event or heartbeat from a registered device.
type StatusUpdate struct {
	SourceID uint32
	// Priority ranges 0 (informational) to 3 (alert).
	Priority uint8
	Content  string
}

// Image is reserved for camera attachments. It is framed like the other
// device packets but carries opaque bytes and has no handler yet.
type Image struct {
	SourceID uint32
	Reserved uint8
	Data     []byte
}

func (*Registration) Type() Type { return TypeRegistration }
func (*ServerAck) Type() Type    { return TypeServerAck }
func (*StatusUpdate) Type() Type { return TypeStatusUpdate }
func (*Image) Type() Type        { return TypeImage }

func (p *Registration) Len() int { return HeaderLen + len(p.Info) }
func (*ServerAck) Len() int      { return ServerAckLen }
func (p *StatusUpdate) Len() int { return HeaderLen + len(p.Content) }
func (p *Image) Len() int        { return HeaderLen + len(p.Data) }

func (*Registration) sealed() {}
func (*ServerAck) sealed()    {}
func (*StatusUpdate) sealed() {}
func (*Image) sealed()        {}

// Encode returns the registration frame.
func (p *Registration) Encode() []byte {
	return encodeDeviceFrame(TypeRegistration, p.SourceID, p.BatteryLevel, []byte(p.Info))
}

// Encode returns the acknowledgement frame.
func (p *ServerAck) Encode() []byte {
	buf := make([]byte, ServerAckLen)
	buf[0] = byte(TypeServerAck)
	buf[1] = p.AssignedID
	binary.BigEndian.PutUint32(buf[2:6], p.UnixTime)
	return buf
}

// Encode returns the status update frame.
func (p *StatusUpdate) Encode() []byte {
	return encodeDeviceFrame(TypeStatusUpdate, p.SourceID, p.Priority, []byte(p.Content))
}

// Encode returns the image frame.
func (p *Image) Encode() []byte {
	return encodeDeviceFrame(TypeImage, p.SourceID, p.Reserved, p.Data)
}

// encodeDeviceFrame writes the shared 10-byte header followed by payload.
func encodeDeviceFrame(t Type, sourceID uint32, field uint8, payload []byte) []byte {
	buf := make([]byte, HeaderLen+len(payload))
	buf[0] = byte(t)
	binary.BigEndian.PutUint32(buf[1:5], sourceID)
	buf[5] = field
	binary.BigEndian.PutUint32(buf[6:10], uint32(len(payload))) //nolint:gosec // bounded by MaxPayloadLen in practice
	copy(buf[HeaderLen:], payload)
	return buf
}

// Encode concatenates the frames of several packets.
func Encode(pkts ...Packet) []byte {
	size := 0
	for _, p := range pkts {
		size += p.Len()
	}
	buf := make([]byte, 0, size)
	for _, p := range pkts {
		buf = append(buf, p.Encode()...)
	}
	return buf
}
