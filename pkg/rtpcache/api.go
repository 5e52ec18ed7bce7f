// Package rtpcache keeps a short history of outgoing RTP packets per SSRC so
// that retransmission requests (e.g. triggered by RTCP NACK) can be answered
// from memory. Entries are bounded both by count and by age on the RTP clock,
// and buffers are pooled to keep the insert path allocation-free in steady
// state.
package rtpcache

const (
	// DefaultMaxStreams is the default number of distinct SSRCs tracked.
	DefaultMaxStreams = 50

	// DefaultMaxPacketsPerStream is the default number of packets kept per SSRC.
	DefaultMaxPacketsPerStream = 200

	// DefaultMaxAgeMillis is the default cache window: packets older than this
	// relative to the newest packet of their stream are dropped.
	DefaultMaxAgeMillis = 500

	// rtpClockRate is the assumed rate of the RTP clock, used only to convert
	// the millisecond window into RTP ticks for age-based eviction.
	rtpClockRate = 90000

	// streamTimeoutMarginMillis is added to the age window to form the idle
	// timeout after which a stream's cache is removed by Clean.
	streamTimeoutMarginMillis = 50
)

// Config holds the cache tunables. The zero value means "use the defaults".
type Config struct {
	// MaxStreams bounds how many distinct SSRCs get a cache. Packets of
	// further SSRCs are not cached.
	MaxStreams int

	// MaxPacketsPerStream bounds the number of entries kept per SSRC.
	MaxPacketsPerStream int

	// MaxAgeMillis bounds how much older than the newest cached packet of the
	// same stream an entry may be, measured on the RTP clock.
	MaxAgeMillis int
}

// WithDefaults returns c with every non-positive field replaced by its
// default value.
func (c Config) WithDefaults() Config {
	if c.MaxStreams <= 0 {
		c.MaxStreams = DefaultMaxStreams
	}
	if c.MaxPacketsPerStream <= 0 {
		c.MaxPacketsPerStream = DefaultMaxPacketsPerStream
	}
	if c.MaxAgeMillis <= 0 {
		c.MaxAgeMillis = DefaultMaxAgeMillis
	}
	return c
}

// maxAgeTicks is the cache window expressed in RTP clock ticks.
func (c Config) maxAgeTicks() uint32 {
	return uint32(rtpClockRate/1000) * uint32(c.MaxAgeMillis)
}

// streamTimeoutMillis is how long a stream cache may go without an insert
// before Clean removes it.
func (c Config) streamTimeoutMillis() int64 {
	return int64(c.MaxAgeMillis + streamTimeoutMarginMillis)
}
