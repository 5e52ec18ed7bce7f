package rtpcache

// poolSize bounds each of the two reuse pools.
const poolSize = 100

// packetPool is a bounded free list of RawPackets shared by every stream
// cache. A buffered channel gives non-blocking concurrent acquire/release:
// acquire allocates when the pool is empty, release drops the packet when
// the pool is full.
type packetPool struct {
	free chan *RawPacket
}

func newPacketPool(size int) *packetPool {
	return &packetPool{free: make(chan *RawPacket, size)}
}

// acquire returns a packet whose buffer holds at least length bytes, with
// offset and length reset to zero.
func (p *packetPool) acquire(length int) *RawPacket {
	var pkt *RawPacket
	select {
	case pkt = <-p.free:
	default:
		pkt = NewRawPacket(make([]byte, length), 0, 0)
	}

	if len(pkt.buf) < length {
		pkt.buf = make([]byte, length)
	}
	pkt.offset = 0
	pkt.length = 0
	return pkt
}

func (p *packetPool) release(pkt *RawPacket) {
	if pkt == nil {
		return
	}
	select {
	case p.free <- pkt:
	default:
	}
}

func (p *packetPool) drain() {
	for {
		select {
		case <-p.free:
		default:
			return
		}
	}
}

// containerPool is the bounded free list of Containers, with the same
// overflow behavior as packetPool.
type containerPool struct {
	free chan *Container
}

func newContainerPool(size int) *containerPool {
	return &containerPool{free: make(chan *Container, size)}
}

func (p *containerPool) acquire() *Container {
	select {
	case c := <-p.free:
		return c
	default:
		return &Container{TimeAdded: noTimeAdded}
	}
}

// release clears the container and returns it to the pool. The packet it
// held must be released separately.
func (p *containerPool) release(c *Container) {
	if c == nil {
		return
	}
	c.Packet = nil
	c.TimeAdded = noTimeAdded
	select {
	case p.free <- c:
	default:
	}
}

func (p *containerPool) drain() {
	for {
		select {
		case <-p.free:
		default:
			return
		}
	}
}
