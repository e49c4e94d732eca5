// Package protocol implements the base station's binary wire format.
//
// Sensor devices and the base station exchange tag-prefixed frames over a
// plain TCP stream. Every frame starts with a one-byte type tag followed by a
// fixed header; registration, status and image frames then carry a
// length-prefixed payload. All integers are big-endian.
//
//	Registration  0x00  tag | u32 source_id | u8 battery | u32 len | info
//	ServerAck     0x01  tag | u8 assigned_id | u32 unix_seconds
//	StatusUpdate  0x02  tag | u32 source_id | u8 priority | u32 len | content
//	Image         0x03  tag | u32 source_id | u8 reserved | u32 len | data
//
// Frames are self-delimiting, so several may arrive concatenated in a single
// read. A Decoder walks such a buffer frame by frame:
//
//	dec := protocol.NewDecoder(buf)
//	for {
//	    pkt, err := dec.Next()
//	    if errors.Is(err, io.EOF) {
//	        break
//	    }
//	    if err != nil {
//	        return err // *DecodeError
//	    }
//	    handle(pkt)
//	}
//
// A buffer that ends part-way through a frame yields ErrTruncated rather than
// being silently discarded; callers reading from a stream can keep the
// undecoded tail (see Decoder.Offset) and retry once more bytes arrive.
package protocol
