package rtpcache

import (
	"sync"

	"github.com/huandu/skiplist"
	"go.uber.org/atomic"
)

const (
	seqNumSpace = 1 << 16
	seqNumHalf  = 1 << 15
)

// lessThanTS reports whether a is earlier than b modulo 2^32: the two differ
// and the forward (wrapping) distance from a to b is under half the modulus.
// Valid as long as a and b are less than 2^31 ticks apart in true time,
// which the bounded cache window guarantees.
func lessThanTS(a, b uint32) bool {
	if a == b {
		return false
	}
	return b-a < 1<<31
}

// streamCache holds the cached packets of a single SSRC, ordered by extended
// packet index. All methods serialize on the cache's own lock; the shared
// size counters and pools are reached through the owning PacketCache.
type streamCache struct {
	mu    sync.Mutex
	owner *PacketCache

	// list maps extended index (int64) to *Container. Key order is insertion
	// order for any span under one wrap of the sequence number space.
	list *skiplist.SkipList

	// lastInsertTime is read by the registry's idle sweep without taking mu.
	lastInsertTime atomic.Int64

	// Rollover counter and highest received sequence number, tracked with
	// the RFC3711 packet index estimation procedure.
	roc uint32
	sl  int32 // -1 until the first packet is seen
}

func newStreamCache(owner *PacketCache) *streamCache {
	return &streamCache{
		owner: owner,
		list:  skiplist.New(skiplist.Int64),
		sl:    -1,
	}
}

// calculateIndex computes the extended index of a packet from its sequence
// number and updates roc and sl. The rollover arithmetic wraps modulo 2^32.
func (s *streamCache) calculateIndex(seq uint16) int64 {
	if s.sl == -1 {
		s.sl = int32(seq)
		return int64(seq)
	}

	v := s.roc
	if s.sl < seqNumHalf {
		if int32(seq)-s.sl > seqNumHalf {
			// An old packet from before the last wrap, reordered late.
			v = s.roc - 1
		}
	} else if s.sl-seqNumHalf > int32(seq) {
		// The sequence number wrapped.
		v = s.roc + 1
	}

	if v == s.roc && int32(seq) > s.sl {
		s.sl = int32(seq)
	} else if v == s.roc+1 {
		s.sl = int32(seq)
		s.roc = v
	}

	// A rollover decrement before any wrap has been seen underflows v; the
	// int32 cast turns it into a negative index ordered before everything.
	return int64(seq) + int64(int32(v))*seqNumSpace
}

// insert copies pkt into a pooled packet and stores it under its extended
// index. An entry already present at that index is replaced, refreshing its
// insertion time, and recycled into the pools.
func (s *streamCache) insert(pkt *RawPacket) {
	s.mu.Lock()
	defer s.mu.Unlock()

	length := pkt.Length()
	cached := s.owner.packets.acquire(length)
	copy(cached.buf, pkt.buf[pkt.offset:pkt.offset+length])
	cached.length = length

	index := s.calculateIndex(pkt.SequenceNumber())

	container := s.owner.containers.acquire()
	container.Packet = cached
	container.TimeAdded = nowMs()

	var old *Container
	if el := s.list.Get(index); el != nil {
		old = el.Value.(*Container)
	}
	s.list.Set(index, container)

	s.owner.addSizes(length, old)
	s.owner.returnContainer(old)

	s.lastInsertTime.Store(nowMs())
	s.clean()
}

// get returns an independent copy of the cached packet with the given
// sequence number, or nil. The request is assumed to concern the newest
// rollover generation, falling back to the previous one: the short cache
// window means no stream ever holds entries spanning more than one rollover.
func (s *streamCache) get(seq uint16) *Container {
	s.mu.Lock()
	defer s.mu.Unlock()

	el := s.list.Get(int64(seq) + int64(s.roc)*seqNumSpace)
	if el == nil && s.roc > 0 {
		el = s.list.Get(int64(seq) + int64(s.roc-1)*seqNumSpace)
	}
	if el == nil {
		return nil
	}

	cached := el.Value.(*Container)
	return &Container{
		Packet:    cached.Packet.clone(),
		TimeAdded: cached.TimeAdded,
	}
}

// clean drops the oldest entries until the cache holds at most
// MaxPacketsPerStream packets, none more than the configured window older
// (on the RTP clock) than the newest entry. Called with s.mu held.
func (s *streamCache) clean() {
	size := s.list.Len()
	if size == 0 {
		return
	}

	newest := s.list.Back().Value.(*Container)
	cleanBefore := newest.Packet.Timestamp() - s.owner.maxAgeTicks

	removedPackets := 0
	removedBytes := 0
	for {
		front := s.list.Front()
		if front == nil {
			break
		}
		container := front.Value.(*Container)

		if size > s.owner.cfg.MaxPacketsPerStream {
			// Over the count bound: remove regardless of age.
			size--
		} else if !lessThanTS(container.Packet.Timestamp(), cleanBefore) {
			// This entry is recent enough, and all following entries are
			// newer still.
			break
		}

		s.list.RemoveFront()
		removedPackets++
		removedBytes += container.Packet.Length()
		s.owner.returnContainer(container)
	}

	s.owner.subtractSizes(removedPackets, removedBytes)
}

// empty recycles every entry and zeroes the cache's contribution to the
// shared size counters.
func (s *streamCache) empty() {
	s.mu.Lock()
	defer s.mu.Unlock()

	removedPackets := s.list.Len()
	removedBytes := 0
	for el := s.list.Front(); el != nil; el = el.Next() {
		container := el.Value.(*Container)
		removedBytes += container.Packet.Length()
		s.owner.returnContainer(container)
	}
	s.list.Init()

	s.owner.subtractSizes(removedPackets, removedBytes)
}
