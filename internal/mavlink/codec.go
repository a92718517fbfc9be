package mavlink

import (
	"bytes"

	"github.com/sirupsen/logrus"

	"github.com/jwidauer/mavlink-shouter/internal/mavlink/definitions"
)

// Codec turns byte streams into frames and frames back into bytes. It is
// stateless and safe to share across endpoints; each endpoint wraps it in its
// own Decoder to hold per-stream buffer state.
type Codec struct {
	offsets definitions.Table
}

// NewCodec creates a codec using the given targeting offset table. Message ids
// absent from the table decode with a full-broadcast target.
func NewCodec(offsets definitions.Table) *Codec {
	return &Codec{offsets: offsets}
}

// Encode returns the on-wire bytes of a frame. Frames carry their complete
// wire representation, so encoding returns Data itself; the bytes are shared,
// not copied.
func (c *Codec) Encode(f Frame) []byte {
	return f.Data
}

// NewDecoder creates a decoder for one byte stream.
func (c *Codec) NewDecoder(log *logrus.Entry) *Decoder {
	return &Decoder{codec: c, log: log}
}

// Decoder extracts frames from a growable input buffer. Feed bytes with Write
// and drain frames with Next. Decoding never fails: malformed input is skipped
// by scanning forward to the next magic byte, and incomplete frames simply
// wait for more bytes.
type Decoder struct {
	codec *Codec
	log   *logrus.Entry
	buf   []byte

	// OnResync, when set, is called every time framing is lost and the
	// decoder scans forward for a magic byte.
	OnResync func()
}

// Write appends stream bytes to the decode buffer.
func (d *Decoder) Write(p []byte) {
	d.buf = append(d.buf, p...)
}

// Buffered returns the number of bytes waiting to be decoded.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// Next returns the next complete frame, or ok=false when the buffer holds no
// complete frame and more bytes are needed.
func (d *Decoder) Next() (Frame, bool) {
	for {
		if len(d.buf) == 0 {
			return Frame{}, false
		}
		switch d.buf[0] {
		case V1Magic:
			return d.decodeV1()
		case V2Magic:
			return d.decodeV2()
		default:
			if !d.resync() {
				return Frame{}, false
			}
		}
	}
}

// resync drops bytes up to the next magic byte. It returns false when no
// magic byte exists and the buffer has been cleared.
func (d *Decoder) resync() bool {
	d.log.Warnf("received invalid magic byte %#02x, trying to resync", d.buf[0])
	if d.OnResync != nil {
		d.OnResync()
	}
	pos := bytes.IndexByte(d.buf, V1Magic)
	if p2 := bytes.IndexByte(d.buf, V2Magic); p2 >= 0 && (pos < 0 || p2 < pos) {
		pos = p2
	}
	if pos < 0 {
		d.buf = d.buf[:0]
		return false
	}
	d.buf = d.buf[pos:]
	return true
}

func (d *Decoder) decodeV1() (Frame, bool) {
	if len(d.buf) < V1MinPacketLen {
		return Frame{}, false
	}
	payloadLen := int(d.buf[1])
	frameLen := V1HeaderLen + payloadLen + V1ChecksumLen
	if len(d.buf) < frameLen {
		return Frame{}, false
	}

	data := d.consume(frameLen)
	sender := SysCompID{SysID: data[3], CompID: data[4]}
	msgID := uint32(data[5])
	payload := data[V1HeaderLen : V1HeaderLen+payloadLen]

	return d.frame(msgID, sender, payload, data), true
}

func (d *Decoder) decodeV2() (Frame, bool) {
	if len(d.buf) < V2MinPacketLen {
		return Frame{}, false
	}
	payloadLen := int(d.buf[1])
	frameLen := V2HeaderLen + payloadLen + V2ChecksumLen
	if d.buf[2]&IncompatFlagSigned != 0 {
		frameLen += V2SignatureLen
	}
	if len(d.buf) < frameLen {
		return Frame{}, false
	}

	data := d.consume(frameLen)
	sender := SysCompID{SysID: data[5], CompID: data[6]}
	msgID := uint32(data[7]) | uint32(data[8])<<8 | uint32(data[9])<<16
	payload := data[V2HeaderLen : V2HeaderLen+payloadLen]

	return d.frame(msgID, sender, payload, data), true
}

// consume splits off the first n buffered bytes as an owned slice.
func (d *Decoder) consume(n int) []byte {
	data := make([]byte, n)
	copy(data, d.buf[:n])
	d.buf = d.buf[n:]
	return data
}

func (d *Decoder) frame(msgID uint32, sender SysCompID, payload, data []byte) Frame {
	target := d.codec.targetFromPayload(msgID, payload)
	d.log.Debugf("msg_id: %d, sender: %s, target: %s", msgID, sender, target)
	return Frame{
		RoutingInfo: RoutingInfo{Sender: sender, Target: target},
		Data:        data,
	}
}

// targetFromPayload reads the target ids out of a reordered payload. Offsets
// beyond the payload fall back to 0, and unknown message ids are treated as
// full broadcast.
func (c *Codec) targetFromPayload(msgID uint32, payload []byte) SysCompID {
	off, ok := c.offsets[msgID]
	if !ok {
		return SysCompID{}
	}
	var target SysCompID
	if off.SystemID < len(payload) {
		target.SysID = payload[off.SystemID]
	}
	if off.ComponentID >= 0 && off.ComponentID < len(payload) {
		target.CompID = payload[off.ComponentID]
	}
	return target
}
