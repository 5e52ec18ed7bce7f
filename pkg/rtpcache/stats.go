package rtpcache

// Stats is a point-in-time snapshot of the cache counters.
type Stats struct {
	// SizeBytes and SizePackets are the current totals across all SSRCs.
	SizeBytes   int
	SizePackets int

	// MaxSizeBytes and MaxSizePackets are the highest totals ever reached.
	MaxSizeBytes   int
	MaxSizePackets int

	TotalHits         int64
	TotalMisses       int64
	TotalPacketsAdded int64

	// OldestHitMillis is the age of the oldest packet ever served.
	OldestHitMillis int64
}

// Stats returns a snapshot of the cache counters.
func (p *PacketCache) Stats() Stats {
	p.sizesMu.Lock()
	sizeBytes := p.sizeInBytes
	sizePackets := p.sizeInPackets
	maxBytes := p.maxSizeInBytes
	maxPackets := p.maxSizeInPackets
	p.sizesMu.Unlock()

	return Stats{
		SizeBytes:         sizeBytes,
		SizePackets:       sizePackets,
		MaxSizeBytes:      maxBytes,
		MaxSizePackets:    maxPackets,
		TotalHits:         p.totalHits.Load(),
		TotalMisses:       p.totalMisses.Load(),
		TotalPacketsAdded: p.totalPacketsAdded.Load(),
		OldestHitMillis:   p.oldestHit.Load(),
	}
}
