package rtpcache

// noTimeAdded marks a Container that does not hold a live cache entry.
const noTimeAdded = int64(-1)

// Container pairs a cached packet with the time it entered the cache.
// Containers are recycled through the container pool; a pooled one has a nil
// Packet and a TimeAdded of noTimeAdded.
type Container struct {
	Packet *RawPacket

	// TimeAdded is the insertion time in milliseconds since the epoch.
	TimeAdded int64
}
