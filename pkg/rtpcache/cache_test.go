package rtpcache

import (
	"sync"
	"testing"

	"github.com/huandu/go-assert"
)

// stubNow pins the package clock to *ms for the duration of the test.
func stubNow(t *testing.T, ms *int64) {
	t.Helper()

	old := nowMs
	nowMs = func() int64 { return *ms }
	t.Cleanup(func() { nowMs = old })
}

func TestRoundTripReturnsIndependentCopy(t *testing.T) {
	p := testCache(Config{})
	pkt := rawPacket(t, 99, 1234, 5678, []byte{0xde, 0xad, 0xbe, 0xef})

	p.CachePacket(pkt)

	got := p.Get(99, 1234)
	assert.Assert(t, got != nil)
	assert.Equal(t, packetBytes(got), packetBytes(pkt))

	// Mutating the returned copy must not affect later lookups.
	got.Buffer()[got.Offset()+got.Length()-1] ^= 0xff
	again := p.Get(99, 1234)
	assert.Assert(t, again != got)
	assert.Equal(t, packetBytes(again), packetBytes(pkt))
}

func TestStreamCeiling(t *testing.T) {
	p := testCache(Config{MaxStreams: 2})

	p.CachePacket(rawPacket(t, 1, 10, 0, []byte{1}))
	p.CachePacket(rawPacket(t, 2, 10, 0, []byte{2}))
	p.CachePacket(rawPacket(t, 3, 10, 0, []byte{3})) // shed: ceiling reached

	assert.Equal(t, p.Stats().TotalPacketsAdded, int64(2))
	assert.Assert(t, p.Get(1, 10) != nil)
	assert.Assert(t, p.Get(2, 10) != nil)
	assert.Assert(t, p.Get(3, 10) == nil)

	// An SSRC that already has a cache is unaffected by the ceiling.
	p.CachePacket(rawPacket(t, 1, 11, 0, []byte{4}))
	assert.Equal(t, p.Stats().TotalPacketsAdded, int64(3))
}

func TestIdleSweep(t *testing.T) {
	now := int64(50_000)
	stubNow(t, &now)

	p := testCache(Config{MaxAgeMillis: 500}) // idle timeout 550 ms

	pkt1 := rawPacket(t, 1, 1, 1000, []byte{1})
	p.CachePacket(pkt1)
	now = 50_400
	p.CachePacket(rawPacket(t, 2, 1, 1000, []byte{2, 3}))

	before := p.Stats()
	assert.Equal(t, before.SizePackets, 2)

	p.Clean(50_551) // ssrc 1 idle for 551 ms, ssrc 2 for 151 ms
	stats := p.Stats()
	assert.Equal(t, stats.SizePackets, 1)
	assert.Equal(t, stats.SizeBytes, before.SizeBytes-pkt1.Length())
	assert.Assert(t, p.Get(1, 1) == nil)
	assert.Assert(t, p.Get(2, 1) != nil)
}

func TestHitMissCounting(t *testing.T) {
	p := testCache(Config{MaxStreams: 1})

	p.CachePacket(rawPacket(t, 1, 10, 0, []byte{1}))
	p.CachePacket(rawPacket(t, 2, 10, 0, []byte{1})) // shed

	assert.Assert(t, p.Get(1, 10) != nil)
	assert.Assert(t, p.Get(1, 11) == nil)
	assert.Assert(t, p.Get(2, 10) == nil)
	assert.Assert(t, p.Get(3, 10) == nil)

	stats := p.Stats()
	assert.Equal(t, stats.TotalHits, int64(1))
	assert.Equal(t, stats.TotalMisses, int64(3))
	assert.Equal(t, stats.TotalPacketsAdded, int64(1))
}

func TestOldestHitWatermark(t *testing.T) {
	now := int64(1_000)
	stubNow(t, &now)

	p := testCache(Config{})
	p.CachePacket(rawPacket(t, 1, 10, 0, []byte{1}))

	now = 1_250
	p.Get(1, 10)
	assert.Equal(t, p.Stats().OldestHitMillis, int64(250))

	now = 1_300
	p.Get(1, 10)
	assert.Equal(t, p.Stats().OldestHitMillis, int64(300))

	// A younger hit never lowers the watermark.
	p.CachePacket(rawPacket(t, 1, 11, 0, []byte{2}))
	p.Get(1, 11)
	assert.Equal(t, p.Stats().OldestHitMillis, int64(300))
}

func TestCloseClearsAndIsIdempotent(t *testing.T) {
	p := testCache(Config{})
	p.CachePacket(rawPacket(t, 5, 1, 0, []byte{1}))
	assert.Assert(t, p.Get(5, 1) != nil)

	p.Close()
	stats := p.Stats()
	assert.Equal(t, stats.SizePackets, 0)
	assert.Equal(t, stats.SizeBytes, 0)
	assert.Equal(t, stats.TotalPacketsAdded, int64(0))
	assert.Assert(t, p.Get(5, 1) == nil)

	p.Close() // nothing left to summarize or clear
	assert.Equal(t, p.Stats().SizePackets, 0)
}

func TestConcurrentInsertGetClean(t *testing.T) {
	p := testCache(Config{MaxPacketsPerStream: 32})

	pkts := make([]*RawPacket, 64)
	for i := range pkts {
		pkts[i] = rawPacket(t, uint32(i%4), uint16(i), uint32(i)*900, []byte{byte(i)})
	}

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				p.CachePacket(pkts[i%len(pkts)])
			}
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				p.Get(uint32(i%4), uint16(i%64))
				if i%100 == 0 {
					p.Clean(nowMs())
				}
			}
		}()
	}
	wg.Wait()

	stats := p.Stats()
	assert.Equal(t, stats.TotalHits+stats.TotalMisses, int64(4*500))
	assert.Equal(t, stats.TotalPacketsAdded, int64(4*500))
}
