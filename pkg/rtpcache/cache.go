package rtpcache

import (
	"sync"
	"time"

	"github.com/samber/lo"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// nowMs is the wall clock used for insertion times, replaceable in tests.
var nowMs = func() int64 { return time.Now().UnixMilli() }

// PacketCache answers retransmission requests for recently sent RTP packets,
// looked up by SSRC and sequence number. It keeps one streamCache per SSRC,
// bounded in count, and shares two reuse pools and the size counters across
// all of them.
//
// Locking is three-tiered: the registry lock guards the SSRC map, each
// stream cache has its own lock, and the size counters have theirs, so the
// insert paths of different streams only contend on the brief counter
// update.
type PacketCache struct {
	cfg Config
	log *zap.Logger

	// streamID identifies the owning media stream, used only in logs.
	streamID int

	// maxAgeTicks is cfg.MaxAgeMillis on the RTP clock.
	maxAgeTicks uint32

	mu     sync.Mutex
	caches map[uint32]*streamCache

	sizesMu          sync.Mutex
	sizeInBytes      int
	sizeInPackets    int
	maxSizeInBytes   int
	maxSizeInPackets int

	totalHits         atomic.Int64
	totalMisses       atomic.Int64
	totalPacketsAdded atomic.Int64

	// oldestHit is the age in ms of the oldest packet ever served from the
	// cache. It only increases.
	oldestHit atomic.Int64

	packets    *packetPool
	containers *containerPool
}

// NewPacketCache returns a cache for the media stream identified by
// streamID. A nil logger disables logging.
func NewPacketCache(streamID int, cfg Config, log *zap.Logger) *PacketCache {
	cfg = cfg.WithDefaults()
	if log == nil {
		log = zap.NewNop()
	}
	return &PacketCache{
		cfg:         cfg,
		log:         log,
		streamID:    streamID,
		maxAgeTicks: cfg.maxAgeTicks(),
		caches:      make(map[uint32]*streamCache),
		packets:     newPacketPool(poolSize),
		containers:  newContainerPool(poolSize),
	}
}

// CachePacket stores a copy of pkt. If the stream ceiling has been reached
// and pkt's SSRC has no cache yet, the packet is silently not cached:
// caching is advisory and shedding is preferable to unbounded growth.
func (p *PacketCache) CachePacket(pkt *RawPacket) {
	cache := p.getCache(pkt.SSRC(), true)
	if cache == nil {
		return
	}
	cache.insert(pkt)
	p.totalPacketsAdded.Inc()
}

// GetContainer returns a copy of the packet with the given SSRC and sequence
// number together with its insertion time, or nil if the cache does not hold
// it.
func (p *PacketCache) GetContainer(ssrc uint32, seq uint16) *Container {
	cache := p.getCache(ssrc, false)

	var container *Container
	if cache != nil {
		container = cache.get(seq)
	}
	if container == nil {
		p.totalMisses.Inc()
		return nil
	}

	if container.TimeAdded > 0 {
		p.increaseOldestHit(nowMs() - container.TimeAdded)
	}
	p.totalHits.Inc()
	return container
}

// Get returns a copy of the packet with the given SSRC and sequence number,
// or nil if the cache does not hold it.
func (p *PacketCache) Get(ssrc uint32, seq uint16) *RawPacket {
	container := p.GetContainer(ssrc, seq)
	if container == nil {
		return nil
	}
	return container.Packet
}

// Clean removes stream caches that have not received a packet for longer
// than the idle timeout. It is meant to be invoked periodically by the
// surrounding pipeline; the cache does not schedule it itself.
func (p *PacketCache) Clean(now int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	timeout := p.cfg.streamTimeoutMillis()
	for ssrc, cache := range p.caches {
		if cache.lastInsertTime.Load()+timeout < now {
			p.log.Debug("removing idle ssrc cache",
				zap.Int("stream_id", p.streamID),
				zap.Uint32("ssrc", ssrc))
			cache.empty()
			delete(p.caches, ssrc)
		}
	}
}

// Close logs a final statistics summary if any packets were cached, then
// releases every entry and both pools. A second call finds nothing to
// summarize or release.
func (p *PacketCache) Close() {
	if p.totalPacketsAdded.Load() > 0 {
		stats := p.Stats()
		p.log.Info("packet cache closed",
			zap.Int("stream_id", p.streamID),
			zap.Int("max_size_bytes", stats.MaxSizeBytes),
			zap.Int("max_size_packets", stats.MaxSizePackets),
			zap.Int64("total_hits", stats.TotalHits),
			zap.Int64("total_misses", stats.TotalMisses),
			zap.Int64("total_packets", stats.TotalPacketsAdded),
			zap.Int64("oldest_hit_ms", stats.OldestHitMillis))
	}

	p.mu.Lock()
	for ssrc, cache := range p.caches {
		cache.empty()
		delete(p.caches, ssrc)
	}
	p.mu.Unlock()

	p.totalHits.Store(0)
	p.totalMisses.Store(0)
	p.totalPacketsAdded.Store(0)
	p.oldestHit.Store(0)

	p.packets.drain()
	p.containers.drain()
}

// getCache resolves the cache for ssrc, creating one if create is set and
// the stream ceiling allows it.
func (p *PacketCache) getCache(ssrc uint32, create bool) *streamCache {
	p.mu.Lock()
	defer p.mu.Unlock()

	cache := p.caches[ssrc]
	if cache == nil && create {
		if len(p.caches) < p.cfg.MaxStreams {
			cache = newStreamCache(p)
			p.caches[ssrc] = cache
		} else {
			p.log.Warn("not caching packet, too many SSRCs already cached",
				zap.Int("stream_id", p.streamID),
				zap.Uint32("ssrc", ssrc))
		}
	}
	return cache
}

// returnContainer recycles a container and the packet it holds.
func (p *PacketCache) returnContainer(c *Container) {
	if c == nil {
		return
	}
	p.packets.release(c.Packet)
	p.containers.release(c)
}

// addSizes accounts for one inserted packet of the given length, minus the
// entry it replaced, and advances the maxima.
func (p *PacketCache) addSizes(length int, replaced *Container) {
	p.sizesMu.Lock()
	defer p.sizesMu.Unlock()

	p.sizeInPackets++
	p.sizeInBytes += length
	if replaced != nil {
		p.sizeInPackets--
		p.sizeInBytes -= replaced.Packet.Length()
	}

	p.maxSizeInPackets = lo.Max([]int{p.maxSizeInPackets, p.sizeInPackets})
	p.maxSizeInBytes = lo.Max([]int{p.maxSizeInBytes, p.sizeInBytes})
}

func (p *PacketCache) subtractSizes(packets, bytes int) {
	p.sizesMu.Lock()
	defer p.sizesMu.Unlock()

	p.sizeInPackets -= packets
	p.sizeInBytes -= bytes
}

func (p *PacketCache) increaseOldestHit(age int64) {
	for {
		cur := p.oldestHit.Load()
		if age <= cur || p.oldestHit.CompareAndSwap(cur, age) {
			return
		}
	}
}
