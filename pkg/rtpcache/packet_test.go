package rtpcache

import (
	"testing"

	"github.com/huandu/go-assert"
	"github.com/pion/rtp"
)

// rawPacket builds a RawPacket by marshalling an RTP packet with the given
// header fields.
func rawPacket(t *testing.T, ssrc uint32, seq uint16, ts uint32, payload []byte) *RawPacket {
	t.Helper()

	pkt, err := NewRawPacketFromRTP(&rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			SequenceNumber: seq,
			Timestamp:      ts,
			SSRC:           ssrc,
		},
		Payload: payload,
	})
	assert.Assert(t, err == nil)
	return pkt
}

func packetBytes(p *RawPacket) []byte {
	return p.Buffer()[p.Offset() : p.Offset()+p.Length()]
}

func TestRawPacketHeaderFields(t *testing.T) {
	pkt := rawPacket(t, 0xdecafbad, 4242, 90000, []byte{1, 2, 3})

	assert.Equal(t, pkt.SSRC(), uint32(0xdecafbad))
	assert.Equal(t, pkt.SequenceNumber(), uint16(4242))
	assert.Equal(t, pkt.Timestamp(), uint32(90000))
	assert.Equal(t, pkt.Offset(), 0)
	assert.Equal(t, pkt.Length(), 12+3)
}

func TestRawPacketWithOffset(t *testing.T) {
	inner := rawPacket(t, 7, 65535, 0, []byte{9})

	// The same packet placed mid-buffer must read the same header fields.
	buf := append(make([]byte, 4), inner.Buffer()...)
	pkt := NewRawPacket(buf, 4, inner.Length())

	assert.Equal(t, pkt.SSRC(), uint32(7))
	assert.Equal(t, pkt.SequenceNumber(), uint16(65535))
	assert.Equal(t, pkt.Timestamp(), uint32(0))
	assert.Equal(t, packetBytes(pkt), packetBytes(inner))
}

func TestRawPacketClone(t *testing.T) {
	pkt := rawPacket(t, 1, 2, 3, []byte{4, 5})
	dup := pkt.clone()

	assert.Equal(t, packetBytes(dup), packetBytes(pkt))

	dup.Buffer()[dup.Offset()] ^= 0xff
	assert.NotEqual(t, packetBytes(dup), packetBytes(pkt))
}
