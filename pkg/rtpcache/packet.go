package rtpcache

import (
	"encoding/binary"

	"github.com/pion/rtp"
)

const (
	seqNumOffset    = 2
	timestampOffset = 4
	ssrcOffset      = 8
)

// RawPacket is one RTP packet as raw bytes: a backing buffer plus the offset
// and length of the packet within it. The buffer may be larger than the
// packet so pooled packets can be reused without reallocating. Header fields
// are read directly from the buffer.
type RawPacket struct {
	buf    []byte
	offset int
	length int
}

// NewRawPacket wraps buf without copying it.
func NewRawPacket(buf []byte, offset, length int) *RawPacket {
	return &RawPacket{buf: buf, offset: offset, length: length}
}

// NewRawPacketFromRTP marshals a parsed pion packet into a RawPacket.
func NewRawPacketFromRTP(p *rtp.Packet) (*RawPacket, error) {
	buf, err := p.Marshal()
	if err != nil {
		return nil, err
	}
	return &RawPacket{buf: buf, length: len(buf)}, nil
}

// Buffer returns the backing buffer.
func (p *RawPacket) Buffer() []byte { return p.buf }

// SetBuffer replaces the backing buffer.
func (p *RawPacket) SetBuffer(buf []byte) { p.buf = buf }

// Offset returns the offset of the packet within the buffer.
func (p *RawPacket) Offset() int { return p.offset }

// SetOffset sets the offset of the packet within the buffer.
func (p *RawPacket) SetOffset(offset int) { p.offset = offset }

// Length returns the length of the packet.
func (p *RawPacket) Length() int { return p.length }

// SetLength sets the length of the packet.
func (p *RawPacket) SetLength(length int) { p.length = length }

// SequenceNumber returns the RTP sequence number.
func (p *RawPacket) SequenceNumber() uint16 {
	return binary.BigEndian.Uint16(p.buf[p.offset+seqNumOffset:])
}

// Timestamp returns the RTP media timestamp.
func (p *RawPacket) Timestamp() uint32 {
	return binary.BigEndian.Uint32(p.buf[p.offset+timestampOffset:])
}

// SSRC returns the synchronization source identifier.
func (p *RawPacket) SSRC() uint32 {
	return binary.BigEndian.Uint32(p.buf[p.offset+ssrcOffset:])
}

// clone returns an independent copy of the packet, including the full
// backing buffer.
func (p *RawPacket) clone() *RawPacket {
	buf := make([]byte, len(p.buf))
	copy(buf, p.buf)
	return &RawPacket{buf: buf, offset: p.offset, length: p.length}
}
